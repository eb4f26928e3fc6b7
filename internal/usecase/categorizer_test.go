package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagetrace/backend/internal/domain"
)

func newTestCategorizer(t Thresholds) *Categorizer {
	return NewCategorizer(t, NewSiteClassifier(SiteLists{}))
}

func TestCategorizer_Tier(t *testing.T) {
	c := newTestCategorizer(DefaultThresholds())

	tests := []struct {
		score  float64
		want   domain.RecordKind
		wantOK bool
	}{
		{1.0, domain.RecordExact, true},
		{0.90, domain.RecordExact, true},
		{0.8999, domain.RecordPartial, true},
		{0.70, domain.RecordPartial, true},
		{0.69, domain.RecordSimilar, true},
		{0.65, domain.RecordSimilar, true},
		{0.64, "", false},
		{0, "", false},
	}

	for _, tt := range tests {
		kind, ok := c.Tier(tt.score)
		assert.Equal(t, tt.wantOK, ok, "score %v", tt.score)
		assert.Equal(t, tt.want, kind, "score %v", tt.score)
	}
}

func TestCategorizer_SimilarDisabled(t *testing.T) {
	thresholds := DefaultThresholds()
	thresholds.EnableSimilar = false
	c := newTestCategorizer(thresholds)

	_, ok := c.Tier(0.68)
	assert.False(t, ok)

	buckets := c.PartitionImages([]domain.ImageMatch{{URL: "a", Score: 0.68}})
	assert.Empty(t, buckets.Similar)
}

func TestCategorizer_PartitionImages(t *testing.T) {
	c := newTestCategorizer(DefaultThresholds())

	images := []domain.ImageMatch{
		{URL: "https://a.example.com/1.jpg", Score: 0.95},
		{URL: "https://a.example.com/2.jpg", Score: 0.72},
		{URL: "https://a.example.com/3.jpg", Score: 0.91},
		{URL: "https://a.example.com/4.jpg", Score: 0.66},
		{URL: "https://a.example.com/5.jpg", Score: 0.20},
	}

	buckets := c.PartitionImages(images)

	require.Len(t, buckets.Exact, 2)
	assert.Equal(t, "https://a.example.com/1.jpg", buckets.Exact[0].URL, "input order is kept")
	assert.Equal(t, "https://a.example.com/3.jpg", buckets.Exact[1].URL)
	require.Len(t, buckets.Partial, 1)
	require.Len(t, buckets.Similar, 1)

	empty := c.PartitionImages(nil)
	assert.NotNil(t, empty.Exact)
	assert.NotNil(t, empty.Partial)
	assert.NotNil(t, empty.Similar)
}

func TestCategorizer_PartitionPages(t *testing.T) {
	c := newTestCategorizer(DefaultThresholds())

	pages := []domain.PageMatch{
		{URL: "https://www.amazon.com/dp/B01/", Score: 0.9, PageTitle: "Vase"},
		{URL: "https://shop.example.com/collections/vases/", Score: 0.8, PageTitle: "Vases"},
		{URL: "https://example.com/results", Score: 0.8, PageType: domain.PageTypeSearch},
		{URL: "https://blog.example.com/my-vase", Score: 0.7, PageTitle: "My new vase"},
		{URL: "https://example.com/low", Score: 0.59, PageTitle: "Buy vase"},
		{URL: "https://d1.cloudfront.net/page", Score: 0.95, PageTitle: "Vase"},
		{URL: "https://blog.example.com/listing-like", Score: 0.7, PageType: domain.PageTypeProduct},
	}

	buckets := c.PartitionPages(pages)

	require.Len(t, buckets.Product, 2)
	assert.Equal(t, domain.PageTypeProduct, buckets.Product[0].PageType)
	assert.Equal(t, "https://blog.example.com/listing-like", buckets.Product[1].URL, "explicit type wins")
	require.Len(t, buckets.Category, 1)
	require.Len(t, buckets.Search, 1)
	require.Len(t, buckets.Other, 1)
	assert.Equal(t, domain.PageTypeUnknown, buckets.Other[0].PageType)

	assert.Len(t, buckets.All(), 5)
	assert.Empty(t, pages[0].PageType, "input is not modified")
}

func TestDeterminePageType(t *testing.T) {
	tests := []struct {
		url   string
		title string
		want  domain.PageType
	}{
		{"https://www.amazon.com/gp/product/B01/", "", domain.PageTypeProduct},
		{"https://www.ebay.com/itm/123", "", domain.PageTypeProduct},
		{"https://shop.example.com/p/12345", "", domain.PageTypeProduct},
		{"https://shop.example.com/products/blue-vase", "", domain.PageTypeProduct},
		{"https://shop.example.com/category/home/", "", domain.PageTypeCategory},
		{"https://shop.example.com/catalog/vases/", "", domain.PageTypeCategory},
		{"https://example.com/a", "Buy blue vase online", domain.PageTypeProduct},
		{"https://example.com/a", "Blue vase $24.99", domain.PageTypeProduct},
		{"https://example.com/a", "Home decor collection", domain.PageTypeCategory},
		{"https://example.com/search?q=vase", "Search results", domain.PageTypeUnknown},
		{"https://example.com/blog/post", "Our trip to Lisbon", domain.PageTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeterminePageType(tt.url, tt.title), "%s | %s", tt.url, tt.title)
	}
}
