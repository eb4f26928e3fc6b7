package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/imagetrace/backend/internal/domain"
)

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	CacheTTL       time.Duration
	MaxUploadBytes int64
}

// AnalysisService runs web detection for an image and opens a session over the result
type AnalysisService struct {
	cache    domain.CacheRepository
	vision   domain.VisionClient
	tracker  domain.SearchTracker
	pipeline *Pipeline
	sessions *SessionStore
	log      zerolog.Logger

	cacheTTL       time.Duration
	maxUploadBytes int64
}

// NewAnalysisService creates an analysis service. cache and tracker may be nil.
func NewAnalysisService(
	cache domain.CacheRepository,
	vision domain.VisionClient,
	tracker domain.SearchTracker,
	pipeline *Pipeline,
	sessions *SessionStore,
	log zerolog.Logger,
	config AnalysisServiceConfig,
) *AnalysisService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	maxUpload := config.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	return &AnalysisService{
		cache:          cache,
		vision:         vision,
		tracker:        tracker,
		pipeline:       pipeline,
		sessions:       sessions,
		log:            log.With().Str("component", "analysis").Logger(),
		cacheTTL:       cacheTTL,
		maxUploadBytes: maxUpload,
	}
}

// AnalyzeURL runs web detection for a publicly reachable image URL
func (s *AnalysisService) AnalyzeURL(ctx context.Context, imageURL string) (*Session, error) {
	imageURL = strings.TrimSpace(imageURL)
	if !isHTTPURL(imageURL) {
		return nil, fmt.Errorf("%w: image URL must be an absolute http(s) URL", domain.ErrInvalidRequest)
	}
	return s.analyze(ctx, domain.ImageSource{URL: imageURL}, cacheKey("url", []byte(imageURL)))
}

// AnalyzeImage runs web detection for uploaded image content
func (s *AnalysisService) AnalyzeImage(ctx context.Context, content []byte) (*Session, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: image content is empty", domain.ErrInvalidRequest)
	}
	if int64(len(content)) > s.maxUploadBytes {
		return nil, domain.ErrImageTooLarge
	}
	return s.analyze(ctx, domain.ImageSource{Content: content}, cacheKey("content", content))
}

// Session returns a previously opened session
func (s *AnalysisService) Session(id string) (*Session, error) {
	return s.sessions.Get(id)
}

// Stats returns tracked usage, or zeroes when tracking is disabled
func (s *AnalysisService) Stats(ctx context.Context) (*domain.SearchStats, error) {
	if s.tracker == nil {
		return &domain.SearchStats{}, nil
	}
	return s.tracker.Stats(ctx)
}

// RecordSignup stores a beta-signup lead
func (s *AnalysisService) RecordSignup(ctx context.Context, signup domain.BetaSignup) error {
	signup.Email = strings.TrimSpace(strings.ToLower(signup.Email))
	if signup.Email == "" || !strings.Contains(signup.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidRequest)
	}
	if s.tracker == nil {
		return nil
	}
	if signup.CreatedAt.IsZero() {
		signup.CreatedAt = time.Now().UTC()
	}
	return s.tracker.RecordSignup(ctx, signup)
}

// Refresh re-runs web detection for a session's image, bypassing the cache.
// Options and saved/reviewed state are kept.
func (s *AnalysisService) Refresh(ctx context.Context, id string) (*Session, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if session.source.URL == "" && len(session.source.Content) == 0 {
		return nil, fmt.Errorf("%w: session has no image to refresh", domain.ErrInvalidRequest)
	}

	raw, err := s.detect(ctx, session.source, session.cacheKey)
	if err != nil {
		return nil, err
	}
	session.SetResult(s.pipeline.Enrich(raw))

	s.log.Info().Str("session", session.ID()).Msg("analysis refreshed")
	return session, nil
}

func (s *AnalysisService) analyze(ctx context.Context, source domain.ImageSource, key string) (*Session, error) {
	raw, err := s.getFromCache(ctx, key)
	if err != nil {
		raw, err = s.detect(ctx, source, key)
		if err != nil {
			return nil, err
		}
	} else {
		s.log.Debug().Str("key", key).Msg("web detection cache hit")
	}

	s.trackSearch(ctx, key)

	session := NewSession(s.pipeline, s.pipeline.Enrich(raw))
	session.source = source
	session.cacheKey = key
	s.sessions.Put(session)

	s.log.Info().
		Str("session", session.ID()).
		Int("images", len(raw.VisuallySimilarImages)).
		Int("pages", len(raw.PagesWithMatchingImages)).
		Msg("analysis complete")

	return session, nil
}

// detect calls the vision API and caches the raw result
func (s *AnalysisService) detect(ctx context.Context, source domain.ImageSource, key string) (*domain.MatchResult, error) {
	raw, err := s.vision.DetectWeb(ctx, source)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = &domain.MatchResult{}
	}
	if err := s.setInCache(ctx, key, raw); err != nil {
		// caching is best effort
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache web detection result")
	}
	return raw, nil
}

func (s *AnalysisService) trackSearch(ctx context.Context, key string) {
	if s.tracker == nil {
		return
	}
	count, err := s.tracker.RecordSearch(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to record search")
		return
	}
	s.log.Debug().Int64("count", count).Msg("search recorded")
}

// cacheKey hashes the image identity so uploads and long URLs share one key format.
// Format: "vision:{kind}:{sha256}"
func cacheKey(kind string, identity []byte) string {
	sum := sha256.Sum256(identity)
	return "vision:" + kind + ":" + hex.EncodeToString(sum[:])
}

func (s *AnalysisService) getFromCache(ctx context.Context, key string) (*domain.MatchResult, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var result domain.MatchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &result, nil
}

func (s *AnalysisService) setInCache(ctx context.Context, key string, result *domain.MatchResult) error {
	if s.cache == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, payload, s.cacheTTL)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
