package usecase

import (
	"math/rand"
	"sync"
	"time"

	"github.com/imagetrace/backend/internal/domain"
)

// backfillWindowDays is how far back a missing discovery date may be placed
const backfillWindowDays = 30

// Enricher normalizes a raw MatchResult: missing dates, spam flags and platform labels
type Enricher struct {
	sites *SiteClassifier
	spam  *SpamDetector

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// NewEnricher creates an enricher. rnd drives the backfilled dates; pass a
// seeded source in tests for deterministic output.
func NewEnricher(sites *SiteClassifier, spam *SpamDetector, rnd *rand.Rand) *Enricher {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Enricher{sites: sites, spam: spam, rnd: rnd}
}

// Enrich returns a normalized copy of result. Fields that are already present
// are never overwritten, so enriching twice equals enriching once.
func (e *Enricher) Enrich(result *domain.MatchResult, now time.Time) *domain.MatchResult {
	if result == nil {
		return &domain.MatchResult{
			WebEntities:             []domain.WebEntity{},
			VisuallySimilarImages:   []domain.ImageMatch{},
			PagesWithMatchingImages: []domain.PageMatch{},
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := &domain.MatchResult{
		WebEntities:             append([]domain.WebEntity{}, result.WebEntities...),
		VisuallySimilarImages:   make([]domain.ImageMatch, len(result.VisuallySimilarImages)),
		PagesWithMatchingImages: make([]domain.PageMatch, len(result.PagesWithMatchingImages)),
	}

	for i, img := range result.VisuallySimilarImages {
		out.VisuallySimilarImages[i] = e.enrichImage(img, now)
	}

	for i, page := range result.PagesWithMatchingImages {
		if page.DateFound == nil {
			page.DateFound = e.backfillDate(now)
		}
		if page.IsSpam == nil {
			spam := e.spam.Evaluate(page.URL, page.PageTitle, page.Score)
			page.IsSpam = &spam
		}
		if page.Platform == "" {
			page.Platform = WebsiteName(page.URL, "")
		}
		if len(page.MatchingImages) > 0 {
			images := make([]domain.ImageMatch, len(page.MatchingImages))
			for j, img := range page.MatchingImages {
				images[j] = e.enrichImage(img, now)
			}
			page.MatchingImages = images
		}
		out.PagesWithMatchingImages[i] = page
	}

	return out
}

func (e *Enricher) enrichImage(img domain.ImageMatch, now time.Time) domain.ImageMatch {
	if img.DateFound == nil {
		img.DateFound = e.backfillDate(now)
	}
	if img.Platform == "" {
		if platform, ok := e.sites.SourcePlatform(img.URL); ok {
			img.Platform = platform
		} else if e.sites.IsCDNURL(img.URL) {
			img.Platform = e.sites.CDNInfo(img.URL)
		}
	}
	return img
}

// backfillDate picks a day uniformly within the window preceding now
func (e *Enricher) backfillDate(now time.Time) *time.Time {
	daysAgo := e.rnd.Intn(backfillWindowDays) + 1
	t := now.AddDate(0, 0, -daysAgo)
	return &t
}
