package usecase

import (
	"net/url"
	"regexp"
	"strings"
)

// SpamMode selects which heuristic Evaluate applies
type SpamMode string

const (
	// SpamModeHeuristic flags pages by URL pattern and title quality only
	SpamModeHeuristic SpamMode = "heuristic"
	// SpamModeScored flags short links and tracking links with weak confidence
	SpamModeScored SpamMode = "scored"
	// SpamModeCombined flags a page when either heuristic does
	SpamModeCombined SpamMode = "combined"
)

// Score ceilings below which the scored heuristic treats a link as spam
const (
	shortLinkSpamCeiling    = 0.80
	trackingLinkSpamCeiling = 0.85
)

var shortenerDomains = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd", "buff.ly",
	"adf.ly", "bit.do", "cutt.ly", "shorte.st", "rebrand.ly", "tiny.cc",
	"rb.gy", "shorturl.at", "v.gd", "s.id", "lnkd.in",
}

var spamURLKeywords = []string{
	// Adult
	"porn", "xxx", "sex", "adult", "escort", "nude",
	// Gambling
	"casino", "poker", "betting", "slots", "gambling", "jackpot",
	// Pharma
	"viagra", "cialis", "pharmacy", "pills", "levitra", "tramadol",
}

var spamTitleKeywords = []string{
	"porn", "xxx", "sex", "nude", "escort", "casino", "poker", "betting",
	"slots", "jackpot", "dating", "hookup", "singles", "viagra", "cialis",
	"pharmacy", "cheap pills", "weight loss pills", "free money", "make money fast",
}

// Keywords that also occur inside ordinary words ("Essex", "adulthood") only
// count when they stand alone
var wholeWordSpamKeywords = map[string]bool{
	"sex": true, "adult": true, "pills": true, "slots": true,
}

var trackingParams = []string{
	"ref", "affiliate", "aff", "aff_id", "track", "tracking", "campaign", "utm_campaign",
}

var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top"}

var (
	ipv4HostPattern       = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	dynamicScriptIDRegex  = regexp.MustCompile(`(?i)\.(php|asp|aspx|cgi|jsp)\?(.*&)?[a-z_]*id=\d+`)
	paginationPathRegex   = regexp.MustCompile(`(?i)/page/\d+/?$|[?&]page=\d+|/forum[s]?/.*/t-?\d+|showthread\.php|viewtopic\.php`)
	numericTitlePattern   = regexp.MustCompile(`^[\d\s\p{P}]+$`)
	minMeaningfulTitleLen = 3
)

// SpamDetector decides whether a page result is likely noise
type SpamDetector struct {
	mode SpamMode
}

// NewSpamDetector creates a detector; unknown modes fall back to heuristic
func NewSpamDetector(mode SpamMode) *SpamDetector {
	switch mode {
	case SpamModeHeuristic, SpamModeScored, SpamModeCombined:
	default:
		mode = SpamModeHeuristic
	}
	return &SpamDetector{mode: mode}
}

// Mode returns the configured mode
func (d *SpamDetector) Mode() SpamMode {
	return d.mode
}

// Evaluate applies the configured heuristic to one page
func (d *SpamDetector) Evaluate(rawURL, pageTitle string, score float64) bool {
	switch d.mode {
	case SpamModeScored:
		return IsScoredSpam(rawURL, score)
	case SpamModeCombined:
		return IsLikelySpam(rawURL, pageTitle) || IsScoredSpam(rawURL, score)
	default:
		return IsLikelySpam(rawURL, pageTitle)
	}
}

// IsLikelySpam flags a page whose URL matches a spam pattern or whose title is low quality
func IsLikelySpam(rawURL, pageTitle string) bool {
	return hasSpamURLPattern(rawURL) || hasLowQualityTitle(pageTitle)
}

// IsScoredSpam flags short links below 0.80 confidence and tracking links below 0.85
func IsScoredSpam(rawURL string, score float64) bool {
	if isShortLink(Hostname(rawURL)) && score < shortLinkSpamCeiling {
		return true
	}
	if hasTrackingParam(rawURL) && score < trackingLinkSpamCeiling {
		return true
	}
	return false
}

func hasSpamURLPattern(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	host := Hostname(lower)

	if isShortLink(host) {
		return true
	}
	if ipv4HostPattern.MatchString(host) {
		return true
	}
	for _, kw := range spamURLKeywords {
		if containsSpamKeyword(lower, kw) {
			return true
		}
	}
	if isSuspiciousTLDRoot(lower, host) {
		return true
	}
	if dynamicScriptIDRegex.MatchString(lower) {
		return true
	}
	return paginationPathRegex.MatchString(lower)
}

func hasLowQualityTitle(title string) bool {
	t := strings.TrimSpace(title)
	if len([]rune(t)) < minMeaningfulTitleLen {
		return true
	}
	if numericTitlePattern.MatchString(t) {
		return true
	}
	lower := strings.ToLower(t)
	for _, kw := range spamTitleKeywords {
		if containsSpamKeyword(lower, kw) {
			return true
		}
	}
	return false
}

// containsSpamKeyword reports whether kw occurs in the lower-cased s
func containsSpamKeyword(s, kw string) bool {
	if !wholeWordSpamKeywords[kw] {
		return strings.Contains(s, kw)
	}
	for from := 0; ; {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func isShortLink(host string) bool {
	for _, d := range shortenerDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// isSuspiciousTLDRoot matches throwaway TLDs that only serve a landing page
func isSuspiciousTLDRoot(lowerURL, host string) bool {
	hasTLD := false
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			hasTLD = true
			break
		}
	}
	if !hasTLD {
		return false
	}
	u, err := url.Parse(lowerURL)
	if err != nil {
		return false
	}
	return u.Path == "" || u.Path == "/"
}

func hasTrackingParam(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	query := u.Query()
	for _, p := range trackingParams {
		if query.Has(p) {
			return true
		}
	}
	return false
}
