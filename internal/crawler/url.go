package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	pageSuffix   = ".htm"
	minPostIDLen = 8
)

// PostID derives the numeric post identifier from an article URL. The last
// path segment is stripped of ".htm", split on "-", and its trailing token is
// accepted only when it is all digits and at least eight characters long.
// Other URLs yield ErrNoIdentity.
func PostID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoIdentity, rawURL, err)
	}
	segment := u.Path
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	segment = strings.ReplaceAll(segment, pageSuffix, "")
	parts := strings.Split(segment, "-")
	candidate := parts[len(parts)-1]
	if len(candidate) < minPostIDLen || !allDigits(candidate) {
		return "", fmt.Errorf("%w: %s", ErrNoIdentity, rawURL)
	}
	return candidate, nil
}

// CategoryLabel turns a listing URL such as https://tuoitre.vn/thoi-su.htm
// into its label ("thoi-su").
func CategoryLabel(listingURL string) string {
	segment := listingURL
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	return strings.ReplaceAll(segment, pageSuffix, "")
}

// PageURL returns the listing URL for the given page number. Page 1 is the
// bare listing; later pages live under {listing}/trang-{n}.htm.
func PageURL(listingURL string, page int) string {
	if page <= 1 {
		return listingURL
	}
	return fmt.Sprintf("%s/trang-%d%s", strings.ReplaceAll(listingURL, pageSuffix, ""), page, pageSuffix)
}

// ResolveURL makes a site-relative href absolute against base. Anything that
// already starts with "http" is returned untouched.
func ResolveURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

// FileExtension returns the extension of the last path segment of rawURL
// without the dot, e.g. "m4a" for ".../tuoitre-nu-123.m4a?v=2". It is empty
// when the segment has no extension or the URL does not parse.
func FileExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(u.Path), ".")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
