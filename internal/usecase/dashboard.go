package usecase

import (
	"slices"

	"github.com/imagetrace/backend/internal/domain"
)

// topDomainsLimit caps the dashboard's top-domains table
const topDomainsLimit = 10

// DomainAggregator derives dashboard statistics and page groupings from FilteredData
type DomainAggregator struct {
	sites *SiteClassifier
}

// NewDomainAggregator creates an aggregator that classifies hostnames with sites
func NewDomainAggregator(sites *SiteClassifier) *DomainAggregator {
	return &DomainAggregator{sites: sites}
}

type domainTally struct {
	count int
	kind  domain.SiteCategory
	order int
}

// Summarize projects filtered into dashboard statistics. It is deterministic:
// the same input always yields the same output.
func (a *DomainAggregator) Summarize(filtered domain.FilteredData) domain.DashboardData {
	tallies := make(map[string]*domainTally)
	var order []string
	highest := 0.0

	for _, rec := range filtered.Records() {
		host := Hostname(rec.URL())
		t, ok := tallies[host]
		if !ok {
			// first-seen type wins
			t = &domainTally{kind: a.sites.Categorize(host), order: len(order)}
			tallies[host] = t
			order = append(order, host)
		}
		t.count++
		if s := rec.Score(); s > highest {
			highest = s
		}
	}

	dashboard := domain.DashboardData{
		TotalMatches:      len(filtered.ExactMatches) + len(filtered.PartialMatches) + len(filtered.SimilarMatches) + len(filtered.AllPages),
		ExactMatches:      len(filtered.ExactMatches),
		PartialMatches:    len(filtered.PartialMatches),
		SimilarMatches:    len(filtered.SimilarMatches),
		DomainsCount:      len(tallies),
		HighestConfidence: highest,
		TopDomains:        make([]domain.TopDomain, 0, min(len(order), topDomainsLimit)),
	}

	for _, host := range order {
		switch tallies[host].kind {
		case domain.SiteMarketplace:
			dashboard.MarketplacesCount++
		case domain.SiteSocial:
			dashboard.SocialMediaCount++
		case domain.SiteEcommerce:
			dashboard.EcommerceCount++
		}
	}

	ranked := slices.Clone(order)
	slices.SortStableFunc(ranked, func(x, y string) int {
		return tallies[y].count - tallies[x].count
	})
	if len(ranked) > topDomainsLimit {
		ranked = ranked[:topDomainsLimit]
	}
	for _, host := range ranked {
		dashboard.TopDomains = append(dashboard.TopDomains, domain.TopDomain{
			Domain: host,
			Count:  tallies[host].count,
			Type:   tallies[host].kind,
		})
	}

	return dashboard
}

// GroupPages groups filtered.AllPages for display. Groups appear in the
// order their first page appears in AllPages; pages keep their sorted order.
// GroupByNone returns a single group holding every page.
func (a *DomainAggregator) GroupPages(filtered domain.FilteredData, groupBy domain.GroupBy) []domain.PageGroup {
	switch groupBy {
	case domain.GroupByDomain:
		return groupPagesBy(filtered.AllPages, func(p domain.PageMatch) (string, string) {
			host := Hostname(p.URL)
			return host, WebsiteName(p.URL, p.Platform)
		})
	case domain.GroupByType:
		return groupPagesBy(filtered.AllPages, func(p domain.PageMatch) (string, string) {
			kind := p.PageType
			if kind == "" {
				kind = domain.PageTypeUnknown
			}
			return string(kind), pageTypeLabel(kind)
		})
	default:
		return []domain.PageGroup{{
			Key:   string(domain.GroupByNone),
			Label: "All pages",
			Pages: slices.Clone(filtered.AllPages),
		}}
	}
}

func groupPagesBy(pages []domain.PageMatch, keyOf func(domain.PageMatch) (string, string)) []domain.PageGroup {
	index := make(map[string]int)
	groups := []domain.PageGroup{}
	for _, p := range pages {
		key, label := keyOf(p)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.PageGroup{Key: key, Label: label})
		}
		groups[i].Pages = append(groups[i].Pages, p)
	}
	return groups
}

func pageTypeLabel(t domain.PageType) string {
	switch t {
	case domain.PageTypeProduct:
		return "Product pages"
	case domain.PageTypeCategory:
		return "Category pages"
	case domain.PageTypeSearch:
		return "Search pages"
	default:
		return "Other pages"
	}
}
