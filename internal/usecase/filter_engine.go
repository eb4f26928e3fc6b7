package usecase

import (
	"cmp"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/imagetrace/backend/internal/domain"
)

// scoredMatch is the view of a match that sorting and filtering need
type scoredMatch interface {
	MatchURL() string
	MatchScore() float64
	FoundAt() *time.Time
}

// FilterEngine applies filter options to a normalized MatchResult
type FilterEngine struct {
	categorizer *Categorizer
	locale      language.Tag
	now         func() time.Time
}

// NewFilterEngine creates a filter engine. now supplies the instant used in
// place of missing dates when sorting by date; nil means time.Now.
func NewFilterEngine(categorizer *Categorizer, locale language.Tag, now func() time.Time) *FilterEngine {
	if now == nil {
		now = time.Now
	}
	return &FilterEngine{categorizer: categorizer, locale: locale, now: now}
}

// Apply categorizes, filters and sorts result. Every call returns fresh slices;
// the input is never modified. A nil result yields all-empty buckets.
func (f *FilterEngine) Apply(result *domain.MatchResult, opts domain.FilterOptions) domain.FilteredData {
	if result == nil {
		result = &domain.MatchResult{}
	}
	minConfidence := float64(domain.ClampConfidence(opts.MinConfidence)) / 100

	images := f.categorizer.PartitionImages(result.VisuallySimilarImages)
	pages := f.categorizer.PartitionPages(result.PagesWithMatchingImages)

	keepImage := func(m domain.ImageMatch) bool { return m.Score >= minConfidence }
	keepPage := func(p domain.PageMatch) bool {
		if p.Score < minConfidence {
			return false
		}
		return opts.ShowSpam || !p.Spam()
	}

	visible := PageBuckets{
		Product:  filterMatches(pages.Product, keepPage),
		Category: filterMatches(pages.Category, keepPage),
		Search:   filterMatches(pages.Search, keepPage),
		Other:    filterMatches(pages.Other, keepPage),
	}

	s := &sorter{
		by:       opts.SortBy,
		desc:     opts.SortOrder != domain.SortAsc,
		collator: collate.New(f.locale, collate.IgnoreCase),
		now:      f.now(),
	}

	return domain.FilteredData{
		ExactMatches:   sortMatches(s, filterMatches(images.Exact, keepImage)),
		PartialMatches: sortMatches(s, filterMatches(images.Partial, keepImage)),
		SimilarMatches: sortMatches(s, filterMatches(images.Similar, keepImage)),
		ProductPages:   sortMatches(s, visible.Product),
		CategoryPages:  sortMatches(s, visible.Category),
		SearchPages:    sortMatches(s, visible.Search),
		OtherPages:     sortMatches(s, visible.Other),
		AllPages:       sortMatches(s, visible.All()),
	}
}

func filterMatches[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// sorter holds the per-call sort state. collate.Collator is not safe for
// concurrent use, so a sorter must not outlive a single Apply.
type sorter struct {
	by       domain.SortBy
	desc     bool
	collator *collate.Collator
	now      time.Time
}

// sortMatches returns a stably sorted copy of items
func sortMatches[T scoredMatch](s *sorter, items []T) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}

	hosts := make(map[string]string, len(out))
	hostOf := func(u string) string {
		h, ok := hosts[u]
		if !ok {
			h = Hostname(u)
			hosts[u] = h
		}
		return h
	}

	var compare func(a, b T) int
	switch s.by {
	case domain.SortByDate:
		compare = func(a, b T) int {
			return s.dateOf(a.FoundAt()).Compare(s.dateOf(b.FoundAt()))
		}
	case domain.SortByDomain:
		compare = func(a, b T) int {
			return s.collator.CompareString(hostOf(a.MatchURL()), hostOf(b.MatchURL()))
		}
	case domain.SortByCount:
		counts := make(map[string]int)
		for _, item := range out {
			counts[hostOf(item.MatchURL())]++
		}
		compare = func(a, b T) int {
			return cmp.Compare(counts[hostOf(a.MatchURL())], counts[hostOf(b.MatchURL())])
		}
	default:
		compare = func(a, b T) int {
			return cmp.Compare(a.MatchScore(), b.MatchScore())
		}
	}

	if s.desc {
		asc := compare
		compare = func(a, b T) int { return asc(b, a) }
	}

	slices.SortStableFunc(out, compare)
	return out
}

// dateOf treats a missing date as now, so undated records sort as most recent
func (s *sorter) dateOf(t *time.Time) time.Time {
	if t == nil {
		return s.now
	}
	return *t
}
