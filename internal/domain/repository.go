package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque encoded payloads so memory and redis backends behave the same.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ImageSource is the image submitted for web detection: either a URL or raw content
type ImageSource struct {
	URL     string
	Content []byte
}

// VisionClient defines the interface for the upstream web-detection API
type VisionClient interface {
	DetectWeb(ctx context.Context, image ImageSource) (*MatchResult, error)
}

// SearchStats is the aggregate tracked by the tracking store
type SearchStats struct {
	TotalSearches int64 `json:"totalSearches"`
	UniqueImages  int64 `json:"uniqueImages"`
	BetaSignups   int64 `json:"betaSignups"`
}

// BetaSignup is a lead collected from the landing page
type BetaSignup struct {
	Email     string    `json:"email" binding:"required,email"`
	Name      string    `json:"name,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchTracker defines the interface for search-count and lead persistence
type SearchTracker interface {
	RecordSearch(ctx context.Context, imageKey string) (int64, error)
	RecordSignup(ctx context.Context, signup BetaSignup) error
	Stats(ctx context.Context) (*SearchStats, error)
}
