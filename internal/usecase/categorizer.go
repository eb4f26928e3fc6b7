package usecase

import (
	"regexp"
	"strings"

	"github.com/imagetrace/backend/internal/domain"
)

// Thresholds holds the fixed confidence boundaries of the match tiers (0..1)
type Thresholds struct {
	Exact         float64
	Partial       float64
	Similar       float64
	EnableSimilar bool
	PageFloor     float64
}

// DefaultThresholds returns exact ≥ 0.90, partial ≥ 0.70, similar ≥ 0.65, pages ≥ 0.60
func DefaultThresholds() Thresholds {
	return Thresholds{
		Exact:         0.90,
		Partial:       0.70,
		Similar:       0.65,
		EnableSimilar: true,
		PageFloor:     0.60,
	}
}

var (
	productPathPattern   = regexp.MustCompile(`(?i)/(product|products|item|items|dp|gp/product|listing|itm)/|/p/\d+`)
	categoryPathPattern  = regexp.MustCompile(`(?i)/(category|categories|collection|collections|shop|catalog)/`)
	productTitlePattern  = regexp.MustCompile(`(?i)\bbuy\b|\bproduct\b|\bfor sale\b|[$€£¥]\s?\d+([.,]\d{2})?\s*$|\d+([.,]\d{2})?\s?(usd|eur|gbp|€|\$)\s*$`)
	categoryTitlePattern = regexp.MustCompile(`(?i)\bcollections?\b|\bcateg(ory|ories)\b|\bproducts\b|\bshop all\b`)
)

// ImageBuckets is the tiered partition of a set of image matches
type ImageBuckets struct {
	Exact   []domain.ImageMatch
	Partial []domain.ImageMatch
	Similar []domain.ImageMatch
}

// PageBuckets is the page-type partition of a set of page matches
type PageBuckets struct {
	Product  []domain.PageMatch
	Category []domain.PageMatch
	Search   []domain.PageMatch
	Other    []domain.PageMatch
}

// All returns the buckets concatenated in product, category, search, other order
func (b PageBuckets) All() []domain.PageMatch {
	all := make([]domain.PageMatch, 0, len(b.Product)+len(b.Category)+len(b.Search)+len(b.Other))
	all = append(all, b.Product...)
	all = append(all, b.Category...)
	all = append(all, b.Search...)
	return append(all, b.Other...)
}

// Categorizer partitions matches into tiers and page types
type Categorizer struct {
	thresholds Thresholds
	sites      *SiteClassifier
}

// NewCategorizer creates a categorizer; sites is used to drop CDN-hosted pages
func NewCategorizer(thresholds Thresholds, sites *SiteClassifier) *Categorizer {
	return &Categorizer{thresholds: thresholds, sites: sites}
}

// Thresholds returns the tier boundaries in use
func (c *Categorizer) Thresholds() Thresholds {
	return c.thresholds
}

// Tier returns the record kind an image score falls into, or false when it
// is below every active tier
func (c *Categorizer) Tier(score float64) (domain.RecordKind, bool) {
	t := c.thresholds
	switch {
	case score >= t.Exact:
		return domain.RecordExact, true
	case score >= t.Partial:
		return domain.RecordPartial, true
	case t.EnableSimilar && score >= t.Similar:
		return domain.RecordSimilar, true
	}
	return "", false
}

// PartitionImages splits images into exact, partial and similar tiers, keeping input order
func (c *Categorizer) PartitionImages(images []domain.ImageMatch) ImageBuckets {
	buckets := ImageBuckets{
		Exact:   []domain.ImageMatch{},
		Partial: []domain.ImageMatch{},
		Similar: []domain.ImageMatch{},
	}
	for _, img := range images {
		kind, ok := c.Tier(img.Score)
		if !ok {
			continue
		}
		switch kind {
		case domain.RecordExact:
			buckets.Exact = append(buckets.Exact, img)
		case domain.RecordPartial:
			buckets.Partial = append(buckets.Partial, img)
		case domain.RecordSimilar:
			buckets.Similar = append(buckets.Similar, img)
		}
	}
	return buckets
}

// PartitionPages drops pages below the page floor and CDN-hosted pages, then
// buckets the rest by page type. An explicit upstream page type wins over inference.
func (c *Categorizer) PartitionPages(pages []domain.PageMatch) PageBuckets {
	buckets := PageBuckets{
		Product:  []domain.PageMatch{},
		Category: []domain.PageMatch{},
		Search:   []domain.PageMatch{},
		Other:    []domain.PageMatch{},
	}
	for _, page := range pages {
		if page.Score < c.thresholds.PageFloor {
			continue
		}
		if c.sites != nil && c.sites.IsCDNURL(page.URL) {
			continue
		}

		pageType := page.PageType
		if pageType == "" || pageType == domain.PageTypeUnknown {
			pageType = DeterminePageType(page.URL, page.PageTitle)
		}
		page.PageType = pageType

		switch pageType {
		case domain.PageTypeProduct:
			buckets.Product = append(buckets.Product, page)
		case domain.PageTypeCategory:
			buckets.Category = append(buckets.Category, page)
		case domain.PageTypeSearch:
			buckets.Search = append(buckets.Search, page)
		default:
			buckets.Other = append(buckets.Other, page)
		}
	}
	return buckets
}

// DeterminePageType infers product or category pages from URL path and title.
// Search pages are never inferred; they only come from an explicit page type.
func DeterminePageType(rawURL, title string) domain.PageType {
	lowerURL := strings.ToLower(rawURL)
	title = strings.TrimSpace(title)

	if productPathPattern.MatchString(lowerURL) {
		return domain.PageTypeProduct
	}
	if categoryPathPattern.MatchString(lowerURL) {
		return domain.PageTypeCategory
	}
	if productTitlePattern.MatchString(title) {
		return domain.PageTypeProduct
	}
	if categoryTitlePattern.MatchString(title) {
		return domain.PageTypeCategory
	}
	return domain.PageTypeUnknown
}
