package vision

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/imagetrace/backend/internal/domain"
)

// Default confidences for records the API returns without a score.
// The list an image appears in is the only signal left.
const (
	DefaultFullMatchScore    = 0.95
	DefaultPartialMatchScore = 0.80
	DefaultSimilarScore      = 0.65
	DefaultPageScore         = 0.60
)

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string               `json:"content,omitempty"`
	Source  *annotateImageSource `json:"source,omitempty"`
}

type annotateImageSource struct {
	ImageURI string `json:"imageUri"`
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []annotateImageResponse `json:"responses"`
}

type annotateImageResponse struct {
	WebDetection *webDetectionResult `json:"webDetection"`
	Error        *statusError        `json:"error"`
}

type statusError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type webDetectionResult struct {
	WebEntities             []webEntity `json:"webEntities"`
	FullMatchingImages      []webImage  `json:"fullMatchingImages"`
	PartialMatchingImages   []webImage  `json:"partialMatchingImages"`
	VisuallySimilarImages   []webImage  `json:"visuallySimilarImages"`
	PagesWithMatchingImages []webPage   `json:"pagesWithMatchingImages"`
}

type webEntity struct {
	EntityID    string   `json:"entityId"`
	Score       *float64 `json:"score"`
	Description string   `json:"description"`
}

type webImage struct {
	URL   string   `json:"url"`
	Score *float64 `json:"score"`
}

type webPage struct {
	URL                   string     `json:"url"`
	Score                 *float64   `json:"score"`
	PageTitle             string     `json:"pageTitle"`
	FullMatchingImages    []webImage `json:"fullMatchingImages"`
	PartialMatchingImages []webImage `json:"partialMatchingImages"`
}

// MapWebDetection converts the API's web detection into our domain MatchResult.
// Full, partial and similar image lists are merged into one list, deduplicated
// by URL with the strongest list winning; missing scores get list defaults.
func MapWebDetection(wd *webDetectionResult) *domain.MatchResult {
	result := &domain.MatchResult{
		WebEntities:             []domain.WebEntity{},
		VisuallySimilarImages:   []domain.ImageMatch{},
		PagesWithMatchingImages: []domain.PageMatch{},
	}
	if wd == nil {
		return result
	}

	for _, e := range wd.WebEntities {
		if e.Description == "" && e.EntityID == "" {
			continue
		}
		result.WebEntities = append(result.WebEntities, domain.WebEntity{
			EntityID:    e.EntityID,
			Score:       scoreOr(e.Score, 0),
			Description: e.Description,
		})
	}

	seen := make(map[string]bool)
	addImages := func(images []webImage, fallback float64) {
		for _, img := range images {
			if img.URL == "" || seen[img.URL] {
				continue
			}
			seen[img.URL] = true
			result.VisuallySimilarImages = append(result.VisuallySimilarImages, domain.ImageMatch{
				URL:      img.URL,
				ImageURL: img.URL,
				Score:    clampScore(scoreOr(img.Score, fallback)),
			})
		}
	}
	addImages(wd.FullMatchingImages, DefaultFullMatchScore)
	addImages(wd.PartialMatchingImages, DefaultPartialMatchScore)
	addImages(wd.VisuallySimilarImages, DefaultSimilarScore)

	for _, p := range wd.PagesWithMatchingImages {
		if p.URL == "" {
			continue
		}
		result.PagesWithMatchingImages = append(result.PagesWithMatchingImages, mapPage(p))
	}

	return result
}

func mapPage(p webPage) domain.PageMatch {
	fallback := DefaultPageScore
	switch {
	case len(p.FullMatchingImages) > 0:
		fallback = DefaultFullMatchScore
	case len(p.PartialMatchingImages) > 0:
		fallback = DefaultPartialMatchScore
	}

	page := domain.PageMatch{
		URL:       p.URL,
		Score:     clampScore(scoreOr(p.Score, fallback)),
		PageTitle: PlainTitle(p.PageTitle),
	}

	for _, img := range p.FullMatchingImages {
		page.MatchingImages = append(page.MatchingImages, domain.ImageMatch{
			URL: img.URL, ImageURL: img.URL, Score: clampScore(scoreOr(img.Score, DefaultFullMatchScore)),
		})
	}
	for _, img := range p.PartialMatchingImages {
		page.MatchingImages = append(page.MatchingImages, domain.ImageMatch{
			URL: img.URL, ImageURL: img.URL, Score: clampScore(scoreOr(img.Score, DefaultPartialMatchScore)),
		})
	}
	return page
}

// PlainTitle strips the HTML markup the API puts in page titles (<b> highlights,
// entities) and collapses whitespace
func PlainTitle(title string) string {
	if !strings.ContainsAny(title, "<&") {
		return strings.Join(strings.Fields(title), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(title))
	if err != nil {
		return strings.Join(strings.Fields(title), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func scoreOr(score *float64, fallback float64) float64 {
	if score == nil {
		return fallback
	}
	return *score
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
