package usecase

import (
	"math/rand"
	"time"

	"golang.org/x/text/language"

	"github.com/imagetrace/backend/internal/domain"
)

// PipelineConfig holds configuration for the result pipeline
type PipelineConfig struct {
	Thresholds Thresholds
	Sites      SiteLists
	SpamMode   SpamMode
	PageSize   int
	Locale     language.Tag
	Rand       *rand.Rand
	Now        func() time.Time
}

// Pipeline turns a raw MatchResult into filtered, summarized view models
type Pipeline struct {
	enricher    *Enricher
	engine      *FilterEngine
	aggregator  *DomainAggregator
	categorizer *Categorizer
	pageSize    int
	now         func() time.Time
}

// NewPipeline builds every stage from config
func NewPipeline(config PipelineConfig) *Pipeline {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	thresholds := config.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	locale := config.Locale
	if locale == language.Und {
		locale = language.English
	}

	sites := NewSiteClassifier(config.Sites)
	categorizer := NewCategorizer(thresholds, sites)

	return &Pipeline{
		enricher:    NewEnricher(sites, NewSpamDetector(config.SpamMode), config.Rand),
		engine:      NewFilterEngine(categorizer, locale, now),
		aggregator:  NewDomainAggregator(sites),
		categorizer: categorizer,
		pageSize:    pageSize,
		now:         now,
	}
}

// Enrich normalizes a raw result as of the pipeline clock
func (p *Pipeline) Enrich(raw *domain.MatchResult) *domain.MatchResult {
	return p.enricher.Enrich(raw, p.now())
}

// Filter applies options to an enriched result
func (p *Pipeline) Filter(result *domain.MatchResult, opts domain.FilterOptions) domain.FilteredData {
	return p.engine.Apply(result, opts)
}

// Summarize builds dashboard statistics
func (p *Pipeline) Summarize(filtered domain.FilteredData) domain.DashboardData {
	return p.aggregator.Summarize(filtered)
}

// Group groups the filtered pages
func (p *Pipeline) Group(filtered domain.FilteredData, groupBy domain.GroupBy) []domain.PageGroup {
	return p.aggregator.GroupPages(filtered, groupBy)
}

// Thresholds returns the tier boundaries in use
func (p *Pipeline) Thresholds() Thresholds {
	return p.categorizer.Thresholds()
}

// PageSize returns the incremental-reveal page size
func (p *Pipeline) PageSize() int {
	return p.pageSize
}
