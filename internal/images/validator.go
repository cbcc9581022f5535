// Package images filters user-supplied image references down to well-formed
// absolute URLs. It runs once at the repository write boundary and again,
// defensively, when a display image is chosen.
package images

import "net/url"

// IsValidURL reports whether raw parses as an absolute http(s) URL with a host.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// FilterValid returns the subsequence of urls that are well-formed absolute
// URLs, preserving relative order. Invalid entries are dropped, never rewritten.
func FilterValid(urls []string) []string {
	valid := make([]string, 0, len(urls))
	for _, raw := range urls {
		if IsValidURL(raw) {
			valid = append(valid, raw)
		}
	}
	return valid
}

// DisplayURL resolves the image to show for a listing: the first valid URL, or
// the placeholder when none validate. The input is re-checked here because not
// every historical document funneled through write-time validation.
func DisplayURL(urls []string, placeholder string) string {
	for _, raw := range urls {
		if IsValidURL(raw) {
			return raw
		}
	}
	return placeholder
}
