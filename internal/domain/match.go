package domain

import "time"

// WebEntity is a labelled concept the vision provider associated with the image
type WebEntity struct {
	EntityID    string  `json:"entityId"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// ImageMatch is a single image found to resemble the query image
type ImageMatch struct {
	URL       string     `json:"url"`
	Score     float64    `json:"score"` // Confidence 0..1
	ImageURL  string     `json:"imageUrl,omitempty"`
	Platform  string     `json:"platform,omitempty"`
	DateFound *time.Time `json:"dateFound,omitempty"`
}

// PageType is the inferred kind of a page that embeds a matching image
type PageType string

const (
	PageTypeProduct  PageType = "product"
	PageTypeCategory PageType = "category"
	PageTypeSearch   PageType = "search"
	PageTypeUnknown  PageType = "unknown"
)

// PageMatch is a web page that contains one or more matching images
type PageMatch struct {
	URL            string       `json:"url"`
	Score          float64      `json:"score"`
	PageTitle      string       `json:"pageTitle"`
	Platform       string       `json:"platform,omitempty"`
	PageType       PageType     `json:"pageType,omitempty"`
	MatchingImages []ImageMatch `json:"matchingImages,omitempty"`
	DateFound      *time.Time   `json:"dateFound,omitempty"`
	IsSpam         *bool        `json:"isSpam,omitempty"`
}

// Spam reports whether the page was flagged as spam during enrichment
func (p PageMatch) Spam() bool {
	return p.IsSpam != nil && *p.IsSpam
}

// MatchURL, MatchScore and FoundAt let sorting treat images and pages alike.

func (m ImageMatch) MatchURL() string { return m.URL }
func (m ImageMatch) MatchScore() float64 { return m.Score }
func (m ImageMatch) FoundAt() *time.Time { return m.DateFound }
func (p PageMatch) MatchURL() string { return p.URL }
func (p PageMatch) MatchScore() float64 { return p.Score }
func (p PageMatch) FoundAt() *time.Time { return p.DateFound }

// MatchResult is the raw output of one web-detection request
type MatchResult struct {
	WebEntities             []WebEntity  `json:"webEntities"`
	VisuallySimilarImages   []ImageMatch `json:"visuallySimilarImages"`
	PagesWithMatchingImages []PageMatch  `json:"pagesWithMatchingImages"`
}

// FilteredData is the categorized, filtered and sorted view of a MatchResult
type FilteredData struct {
	ExactMatches   []ImageMatch `json:"exactMatches"`
	PartialMatches []ImageMatch `json:"partialMatches"`
	SimilarMatches []ImageMatch `json:"similarMatches"`
	ProductPages   []PageMatch  `json:"productPages"`
	CategoryPages  []PageMatch  `json:"categoryPages"`
	SearchPages    []PageMatch  `json:"searchPages"`
	OtherPages     []PageMatch  `json:"otherPages"`
	AllPages       []PageMatch  `json:"allPages"`
}

// RecordKind discriminates the entries produced by FilteredData.Records
type RecordKind string

const (
	RecordExact   RecordKind = "exact"
	RecordPartial RecordKind = "partial"
	RecordSimilar RecordKind = "similar"
	RecordPage    RecordKind = "page"
)

// Record is a tagged union over image and page matches.
// Image is set for the image kinds, Page for RecordPage.
type Record struct {
	Kind  RecordKind
	Image *ImageMatch
	Page  *PageMatch
}

// URL returns the URL of whichever match the record carries
func (r Record) URL() string {
	if r.Kind == RecordPage {
		return r.Page.URL
	}
	return r.Image.URL
}

// Score returns the confidence of whichever match the record carries
func (r Record) Score() float64 {
	if r.Kind == RecordPage {
		return r.Page.Score
	}
	return r.Image.Score
}

// DateFound returns the discovery timestamp, nil when unknown
func (r Record) DateFound() *time.Time {
	if r.Kind == RecordPage {
		return r.Page.DateFound
	}
	return r.Image.DateFound
}

// Records flattens the buckets in the fixed order exact, partial, similar, allPages
func (f *FilteredData) Records() []Record {
	records := make([]Record, 0, len(f.ExactMatches)+len(f.PartialMatches)+len(f.SimilarMatches)+len(f.AllPages))
	for i := range f.ExactMatches {
		records = append(records, Record{Kind: RecordExact, Image: &f.ExactMatches[i]})
	}
	for i := range f.PartialMatches {
		records = append(records, Record{Kind: RecordPartial, Image: &f.PartialMatches[i]})
	}
	for i := range f.SimilarMatches {
		records = append(records, Record{Kind: RecordSimilar, Image: &f.SimilarMatches[i]})
	}
	for i := range f.AllPages {
		records = append(records, Record{Kind: RecordPage, Page: &f.AllPages[i]})
	}
	return records
}

// SiteCategory is the semantic class of a website
type SiteCategory string

const (
	SiteMarketplace SiteCategory = "marketplace"
	SiteSocial      SiteCategory = "social"
	SiteEcommerce   SiteCategory = "ecommerce"
	SiteOther       SiteCategory = "other"
)

// TopDomain is one entry of the dashboard's top-domains table
type TopDomain struct {
	Domain string       `json:"domain"`
	Count  int          `json:"count"`
	Type   SiteCategory `json:"type"`
}

// DashboardData summarizes a FilteredData
type DashboardData struct {
	TotalMatches      int         `json:"totalMatches"`
	ExactMatches      int         `json:"exactMatches"`
	PartialMatches    int         `json:"partialMatches"`
	SimilarMatches    int         `json:"similarMatches"`
	DomainsCount      int         `json:"domainsCount"`
	MarketplacesCount int         `json:"marketplacesCount"`
	SocialMediaCount  int         `json:"socialMediaCount"`
	EcommerceCount    int         `json:"ecommerceCount"`
	HighestConfidence float64     `json:"highestConfidence"`
	TopDomains        []TopDomain `json:"topDomains"`
}

// PageGroup is a named, ordered group of pages for grouped display
type PageGroup struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Pages []PageMatch `json:"pages"`
}
