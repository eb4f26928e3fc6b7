package usecase

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imagetrace/backend/internal/domain"
)

// HostAlias maps a hostname fragment to a friendly provider or platform name
type HostAlias struct {
	Fragment string
	Name     string
}

// SiteLists is the static data the site classifier matches against
type SiteLists struct {
	Marketplaces []string
	Social       []string
	Ecommerce    []string
	CDNs         []HostAlias
	ImageHosts   []HostAlias
}

// DefaultSiteLists returns the built-in classification data
func DefaultSiteLists() SiteLists {
	return SiteLists{
		Marketplaces: []string{
			"amazon", "ebay", "etsy", "walmart", "aliexpress", "alibaba", "target",
			"bestbuy", "wish", "rakuten", "mercadolibre", "flipkart", "temu",
			"wayfair", "overstock", "newegg", "craigslist", "poshmark", "depop",
			"mercari", "allegro", "zalando",
		},
		Social: []string{
			"facebook", "instagram", "twitter", "pinterest", "tiktok", "reddit",
			"linkedin", "tumblr", "youtube", "snapchat", "flickr", "weibo",
			"vk", "threads", "mastodon", "deviantart", "behance", "dribbble",
		},
		Ecommerce: []string{
			"shopify", "bigcommerce", "woocommerce", "squarespace", "wix",
			"magento", "prestashop", "ecwid", "shop", "store", "boutique",
			"mart", "outlet", "buy",
		},
		CDNs: []HostAlias{
			{"cloudfront.net", "Amazon CloudFront"},
			{"media-amazon.com", "Amazon Media"},
			{"ssl-images-amazon.com", "Amazon Images"},
			{"images-amazon.com", "Amazon Images"},
			{"akamaihd.net", "Akamai"},
			{"akamaized.net", "Akamai"},
			{"fastly.net", "Fastly"},
			{"cloudflare", "Cloudflare"},
			{"cdn.shopify.com", "Shopify CDN"},
			{"shopifycdn", "Shopify CDN"},
			{"googleusercontent.com", "Google User Content"},
			{"gstatic.com", "Google Static"},
			{"fbcdn.net", "Facebook CDN"},
			{"cdninstagram.com", "Instagram CDN"},
			{"pinimg.com", "Pinterest CDN"},
			{"twimg.com", "Twitter Media"},
			{"ebayimg.com", "eBay Images"},
			{"etsystatic.com", "Etsy Static"},
			{"staticflickr.com", "Flickr Static"},
			{"alicdn.com", "Alibaba CDN"},
			{"imgix.net", "imgix"},
			{"cloudinary.com", "Cloudinary"},
			{"wp.com", "WordPress CDN"},
			{"squarespace-cdn.com", "Squarespace CDN"},
			{"wixstatic.com", "Wix Static"},
			{"azureedge.net", "Azure CDN"},
			{"b-cdn.net", "BunnyCDN"},
			{"jsdelivr.net", "jsDelivr"},
			{"redditmedia.com", "Reddit Media"},
			{"i.redd.it", "Reddit Media"},
		},
		ImageHosts: []HostAlias{
			{"media-amazon.com", "Amazon"},
			{"ssl-images-amazon.com", "Amazon"},
			{"images-amazon.com", "Amazon"},
			{"staticflickr.com", "Flickr"},
			{"pinimg.com", "Pinterest"},
			{"ebayimg.com", "eBay"},
			{"etsystatic.com", "Etsy"},
			{"fbcdn.net", "Facebook"},
			{"cdninstagram.com", "Instagram"},
			{"twimg.com", "Twitter"},
			{"cdn.shopify.com", "Shopify"},
			{"alicdn.com", "AliExpress"},
			{"walmartimages.com", "Walmart"},
			{"i.redd.it", "Reddit"},
			{"redditmedia.com", "Reddit"},
			{"wixstatic.com", "Wix"},
		},
	}
}

// displayNames overrides the naive capitalization for well-known labels
var displayNames = map[string]string{
	"ebay":         "eBay",
	"aliexpress":   "AliExpress",
	"bestbuy":      "Best Buy",
	"mercadolibre": "Mercado Libre",
	"linkedin":     "LinkedIn",
	"tiktok":       "TikTok",
	"youtube":      "YouTube",
	"deviantart":   "DeviantArt",
	"vk":           "VK",
}

// SiteClassifier canonicalizes URLs and assigns them a site category
type SiteClassifier struct {
	lists SiteLists
}

// NewSiteClassifier creates a classifier over the given lists.
// Empty lists fall back to the defaults.
func NewSiteClassifier(lists SiteLists) *SiteClassifier {
	defaults := DefaultSiteLists()
	if len(lists.Marketplaces) == 0 {
		lists.Marketplaces = defaults.Marketplaces
	}
	if len(lists.Social) == 0 {
		lists.Social = defaults.Social
	}
	if len(lists.Ecommerce) == 0 {
		lists.Ecommerce = defaults.Ecommerce
	}
	if len(lists.CDNs) == 0 {
		lists.CDNs = defaults.CDNs
	}
	if len(lists.ImageHosts) == 0 {
		lists.ImageHosts = defaults.ImageHosts
	}
	return &SiteClassifier{lists: lists}
}

// WithExtraCDNs returns lists with the given fragment→name pairs appended in key order
func (l SiteLists) WithExtraCDNs(extra map[string]string) SiteLists {
	if len(extra) == 0 {
		return l
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	base := l.CDNs
	if len(base) == 0 {
		base = DefaultSiteLists().CDNs
	}
	cdns := append([]HostAlias(nil), base...)
	for _, k := range keys {
		cdns = append(cdns, HostAlias{Fragment: strings.ToLower(k), Name: extra[k]})
	}
	l.CDNs = cdns
	return l
}

// Hostname returns the lower-cased host of rawURL without a leading "www.".
// Unparseable input, or input without a host, is returned unchanged.
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// DomainLabel returns the registrable label of a hostname, e.g. "amazon" for
// "smile.amazon.co.uk". This is a heuristic, not a public-suffix lookup.
func DomainLabel(hostname string) string {
	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return hostname
	}
	if len(parts) >= 3 && parts[len(parts)-2] == "co" {
		return parts[len(parts)-3]
	}
	return parts[len(parts)-2]
}

// WebsiteName returns a display name for rawURL; a non-empty override wins verbatim
func WebsiteName(rawURL, override string) string {
	if override != "" {
		return override
	}
	return displayName(DomainLabel(Hostname(rawURL)))
}

func displayName(label string) string {
	if name, ok := displayNames[label]; ok {
		return name
	}
	r, size := utf8.DecodeRuneInString(label)
	if r == utf8.RuneError {
		return label
	}
	return string(unicode.ToUpper(r)) + label[size:]
}

// Categorize classifies a hostname; marketplace beats social beats ecommerce
func (c *SiteClassifier) Categorize(hostname string) domain.SiteCategory {
	label := DomainLabel(strings.ToLower(hostname))

	if _, ok := matchAny(label, c.lists.Marketplaces); ok {
		return domain.SiteMarketplace
	}
	if _, ok := matchAny(label, c.lists.Social); ok {
		return domain.SiteSocial
	}
	if _, ok := matchAny(label, c.lists.Ecommerce); ok {
		return domain.SiteEcommerce
	}
	return domain.SiteOther
}

// IsCDNURL reports whether rawURL is served from a known CDN or asset host
func (c *SiteClassifier) IsCDNURL(rawURL string) bool {
	_, ok := matchAlias(Hostname(rawURL), c.lists.CDNs)
	return ok
}

// CDNInfo returns the friendly CDN provider name, or the hostname when unknown
func (c *SiteClassifier) CDNInfo(rawURL string) string {
	host := Hostname(rawURL)
	if name, ok := matchAlias(host, c.lists.CDNs); ok {
		return name
	}
	return host
}

// SourcePlatform resolves the platform an image originates from, including
// asset hosts whose domain differs from the platform's own
func (c *SiteClassifier) SourcePlatform(rawURL string) (string, bool) {
	host := Hostname(rawURL)
	if name, ok := matchAlias(host, c.lists.ImageHosts); ok {
		return name, true
	}

	label := DomainLabel(host)
	if entry, ok := matchAny(label, c.lists.Marketplaces); ok {
		return displayName(entry), true
	}
	if entry, ok := matchAny(label, c.lists.Social); ok {
		return displayName(entry), true
	}
	return "", false
}

// matchAny returns the first list entry that is a substring of s
func matchAny(s string, list []string) (string, bool) {
	s = strings.ToLower(s)
	for _, entry := range list {
		if entry != "" && strings.Contains(s, strings.ToLower(entry)) {
			return entry, true
		}
	}
	return "", false
}

func matchAlias(host string, aliases []HostAlias) (string, bool) {
	host = strings.ToLower(host)
	for _, a := range aliases {
		if a.Fragment != "" && strings.Contains(host, a.Fragment) {
			return a.Name, true
		}
	}
	return "", false
}
