package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/imagetrace/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	lastTTL   time.Duration
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalled = true
	m.lastTTL = ttl
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockVisionClient is a mock implementation of domain.VisionClient
type MockVisionClient struct {
	result     *domain.MatchResult
	err        error
	calls      int
	lastSource domain.ImageSource
}

func NewMockVisionClient() *MockVisionClient {
	return &MockVisionClient{}
}

func (m *MockVisionClient) DetectWeb(ctx context.Context, image domain.ImageSource) (*domain.MatchResult, error) {
	m.calls++
	m.lastSource = image
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// MockTracker is a mock implementation of domain.SearchTracker
type MockTracker struct {
	searches  map[string]int64
	signups   []domain.BetaSignup
	err       error
	statsResp *domain.SearchStats
}

func NewMockTracker() *MockTracker {
	return &MockTracker{searches: make(map[string]int64)}
}

func (m *MockTracker) RecordSearch(ctx context.Context, imageKey string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.searches[imageKey]++
	return m.searches[imageKey], nil
}

func (m *MockTracker) RecordSignup(ctx context.Context, signup domain.BetaSignup) error {
	if m.err != nil {
		return m.err
	}
	m.signups = append(m.signups, signup)
	return nil
}

func (m *MockTracker) Stats(ctx context.Context) (*domain.SearchStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.statsResp, nil
}

func visionResult() *domain.MatchResult {
	return &domain.MatchResult{
		WebEntities: []domain.WebEntity{{EntityID: "/m/vase", Score: 0.7, Description: "Vase"}},
		VisuallySimilarImages: []domain.ImageMatch{
			{URL: "https://i.etsystatic.com/a.jpg", Score: 0.97},
		},
		PagesWithMatchingImages: []domain.PageMatch{
			{URL: "https://www.etsy.com/listing/1/vase", Score: 0.93, PageTitle: "Blue vase"},
		},
	}
}

func newTestAnalysisService(cache domain.CacheRepository, client domain.VisionClient, tracker domain.SearchTracker) *AnalysisService {
	return NewAnalysisService(
		cache,
		client,
		tracker,
		newTestPipeline(10),
		NewSessionStore(time.Hour, nil),
		zerolog.Nop(),
		AnalysisServiceConfig{MaxUploadBytes: 16},
	)
}

func TestNewAnalysisService(t *testing.T) {
	t.Run("creates service with default values", func(t *testing.T) {
		svc := NewAnalysisService(nil, NewMockVisionClient(), nil, newTestPipeline(10), NewSessionStore(0, nil), zerolog.Nop(), AnalysisServiceConfig{})
		if svc.cacheTTL != 24*time.Hour {
			t.Errorf("cacheTTL = %v, want 24h", svc.cacheTTL)
		}
		if svc.maxUploadBytes != 10<<20 {
			t.Errorf("maxUploadBytes = %v, want 10MiB", svc.maxUploadBytes)
		}
	})

	t.Run("creates service with custom values", func(t *testing.T) {
		svc := NewAnalysisService(nil, NewMockVisionClient(), nil, newTestPipeline(10), NewSessionStore(0, nil), zerolog.Nop(), AnalysisServiceConfig{
			CacheTTL:       time.Hour,
			MaxUploadBytes: 1024,
		})
		if svc.cacheTTL != time.Hour {
			t.Errorf("cacheTTL = %v, want 1h", svc.cacheTTL)
		}
		if svc.maxUploadBytes != 1024 {
			t.Errorf("maxUploadBytes = %v, want 1024", svc.maxUploadBytes)
		}
	})
}

func TestAnalyzeURL(t *testing.T) {
	ctx := context.Background()

	t.Run("returns error for invalid URLs", func(t *testing.T) {
		svc := newTestAnalysisService(NewMockCacheRepository(), NewMockVisionClient(), nil)

		for _, raw := range []string{"", "   ", "ftp://example.com/a.jpg", "/relative.jpg", "https://"} {
			_, err := svc.AnalyzeURL(ctx, raw)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("AnalyzeURL(%q) error = %v, want ErrInvalidRequest", raw, err)
			}
		}
	})

	t.Run("calls vision on cache miss and caches the result", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(cache, client, nil)

		session, err := svc.AnalyzeURL(ctx, "  https://example.com/vase.jpg ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.calls != 1 {
			t.Errorf("vision calls = %d, want 1", client.calls)
		}
		if client.lastSource.URL != "https://example.com/vase.jpg" {
			t.Errorf("source URL = %q, want trimmed URL", client.lastSource.URL)
		}
		if !cache.setCalled {
			t.Error("expected cache.Set to be called")
		}
		if cache.lastTTL != 24*time.Hour {
			t.Errorf("cache TTL = %v, want 24h", cache.lastTTL)
		}
		if got := len(session.View().Filtered.ExactMatches); got != 1 {
			t.Errorf("exact matches = %d, want 1", got)
		}
	})

	t.Run("returns cached data on cache hit", func(t *testing.T) {
		cache := NewMockCacheRepository()
		payload, _ := json.Marshal(visionResult())
		cache.data[cacheKey("url", []byte("https://example.com/vase.jpg"))] = payload

		client := NewMockVisionClient()
		svc := newTestAnalysisService(cache, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.calls != 0 {
			t.Errorf("vision calls = %d, want 0", client.calls)
		}
		if got := len(session.View().Filtered.AllPages); got != 1 {
			t.Errorf("pages = %d, want 1", got)
		}
	})

	t.Run("treats a corrupt cache entry as a miss", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.data[cacheKey("url", []byte("https://example.com/vase.jpg"))] = []byte("{not json")

		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(cache, client, nil)

		if _, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.calls != 1 {
			t.Errorf("vision calls = %d, want 1", client.calls)
		}
	})

	t.Run("returns error when vision fails", func(t *testing.T) {
		client := NewMockVisionClient()
		client.err = domain.ErrVisionUnavailable
		svc := newTestAnalysisService(NewMockCacheRepository(), client, nil)

		_, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if !errors.Is(err, domain.ErrVisionUnavailable) {
			t.Errorf("error = %v, want ErrVisionUnavailable", err)
		}
	})

	t.Run("continues even if caching fails", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.setError = errors.New("cache write failed")
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(cache, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session == nil {
			t.Error("expected session even when cache write fails")
		}
	})

	t.Run("works without a cache", func(t *testing.T) {
		client := NewMockVisionClient()
		svc := newTestAnalysisService(nil, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := session.View().Dashboard.TotalMatches; got != 0 {
			t.Errorf("total matches = %d, want 0 for a nil result", got)
		}
	})

	t.Run("stores the session", func(t *testing.T) {
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(nil, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := svc.Session(session.ID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != session {
			t.Error("Session returned a different session")
		}
		if _, err := svc.Session("unknown"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestAnalyzeImage(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty content", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), nil)
		_, err := svc.AnalyzeImage(ctx, nil)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		client := NewMockVisionClient()
		svc := newTestAnalysisService(nil, client, nil)
		_, err := svc.AnalyzeImage(ctx, make([]byte, 17))
		if !errors.Is(err, domain.ErrImageTooLarge) {
			t.Errorf("error = %v, want ErrImageTooLarge", err)
		}
		if client.calls != 0 {
			t.Error("vision must not be called for oversized images")
		}
	})

	t.Run("keys the cache by content hash", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(cache, client, nil)

		content := []byte("\x89PNG fake")
		if _, err := svc.AnalyzeImage(ctx, content); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.AnalyzeImage(ctx, content); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.calls != 1 {
			t.Errorf("vision calls = %d, want 1", client.calls)
		}
		if _, ok := cache.data[cacheKey("content", content)]; !ok {
			t.Error("expected content-keyed cache entry")
		}
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("re-runs detection and keeps session state", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(cache, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		showSpam := true
		session.UpdateOptions(domain.FilterOptionsPatch{ShowSpam: &showSpam})
		session.ToggleSaved("https://www.etsy.com/listing/1/vase")

		updated := visionResult()
		updated.PagesWithMatchingImages = append(updated.PagesWithMatchingImages, domain.PageMatch{
			URL: "https://www.etsy.com/listing/2/vase", Score: 0.91, PageTitle: "Blue vase",
		})
		client.result = updated

		refreshed, err := svc.Refresh(ctx, session.ID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if refreshed != session {
			t.Error("Refresh returned a different session")
		}
		if client.calls != 2 {
			t.Errorf("vision calls = %d, want 2 (cache bypassed)", client.calls)
		}
		if client.lastSource.URL != "https://example.com/vase.jpg" {
			t.Errorf("source URL = %q, want the original image URL", client.lastSource.URL)
		}

		view := session.View()
		if got := len(view.Filtered.AllPages); got != 2 {
			t.Errorf("pages = %d, want 2", got)
		}
		if !view.Options.ShowSpam {
			t.Error("options must survive a refresh")
		}
		if len(view.Saved) != 1 {
			t.Errorf("saved = %v, want the saved URL kept", view.Saved)
		}
	})

	t.Run("returns not found for unknown sessions", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), nil)
		if _, err := svc.Refresh(ctx, "unknown"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("keeps the old result when vision fails", func(t *testing.T) {
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(nil, client, nil)

		session, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		client.err = domain.ErrVisionUnavailable

		if _, err := svc.Refresh(ctx, session.ID()); !errors.Is(err, domain.ErrVisionUnavailable) {
			t.Errorf("error = %v, want ErrVisionUnavailable", err)
		}
		if got := len(session.View().Filtered.AllPages); got != 1 {
			t.Errorf("pages = %d, want 1", got)
		}
	})

	t.Run("rejects sessions without an image", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), nil)
		session := NewSession(svc.pipeline, nil)
		svc.sessions.Put(session)

		if _, err := svc.Refresh(ctx, session.ID()); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestCacheKey(t *testing.T) {
	key := cacheKey("url", []byte("https://example.com/a.jpg"))
	if !strings.HasPrefix(key, "vision:url:") {
		t.Errorf("key = %v, want vision:url: prefix", key)
	}
	if len(key) != len("vision:url:")+64 {
		t.Errorf("key length = %d, want sha256 hex suffix", len(key))
	}
	if key == cacheKey("content", []byte("https://example.com/a.jpg")) {
		t.Error("url and content keys must not collide")
	}
}

func TestTracking(t *testing.T) {
	ctx := context.Background()

	t.Run("records each search", func(t *testing.T) {
		tracker := NewMockTracker()
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(NewMockCacheRepository(), client, tracker)

		for i := 0; i < 2; i++ {
			if _, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		key := cacheKey("url", []byte("https://example.com/vase.jpg"))
		if tracker.searches[key] != 2 {
			t.Errorf("search count = %d, want 2", tracker.searches[key])
		}
	})

	t.Run("tracking failure is not fatal", func(t *testing.T) {
		tracker := NewMockTracker()
		tracker.err = domain.ErrTrackingFailure
		client := NewMockVisionClient()
		client.result = visionResult()
		svc := newTestAnalysisService(nil, client, tracker)

		if _, err := svc.AnalyzeURL(ctx, "https://example.com/vase.jpg"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("stats without tracker are zero", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), nil)
		stats, err := svc.Stats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *stats != (domain.SearchStats{}) {
			t.Errorf("stats = %+v, want zero", *stats)
		}
	})

	t.Run("stats come from the tracker", func(t *testing.T) {
		tracker := NewMockTracker()
		tracker.statsResp = &domain.SearchStats{TotalSearches: 4, UniqueImages: 2, BetaSignups: 1}
		svc := newTestAnalysisService(nil, NewMockVisionClient(), tracker)

		stats, err := svc.Stats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalSearches != 4 {
			t.Errorf("TotalSearches = %d, want 4", stats.TotalSearches)
		}
	})
}

func TestRecordSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid email", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), NewMockTracker())
		err := svc.RecordSignup(ctx, domain.BetaSignup{Email: "not-an-email"})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("normalizes email and stamps creation time", func(t *testing.T) {
		tracker := NewMockTracker()
		svc := newTestAnalysisService(nil, NewMockVisionClient(), tracker)

		if err := svc.RecordSignup(ctx, domain.BetaSignup{Email: "  Ada@Example.COM ", Name: "Ada"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracker.signups) != 1 {
			t.Fatalf("signups = %d, want 1", len(tracker.signups))
		}
		if tracker.signups[0].Email != "ada@example.com" {
			t.Errorf("Email = %q, want ada@example.com", tracker.signups[0].Email)
		}
		if tracker.signups[0].CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("is a no-op without tracker", func(t *testing.T) {
		svc := newTestAnalysisService(nil, NewMockVisionClient(), nil)
		if err := svc.RecordSignup(ctx, domain.BetaSignup{Email: "ada@example.com"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("propagates tracker errors", func(t *testing.T) {
		tracker := NewMockTracker()
		tracker.err = domain.ErrTrackingFailure
		svc := newTestAnalysisService(nil, NewMockVisionClient(), tracker)
		err := svc.RecordSignup(ctx, domain.BetaSignup{Email: "ada@example.com"})
		if !errors.Is(err, domain.ErrTrackingFailure) {
			t.Errorf("error = %v, want ErrTrackingFailure", err)
		}
	})
}
