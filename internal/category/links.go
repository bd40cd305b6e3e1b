package category

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

// ExtractLinks returns the absolute article links on a listing page: every
// href ending in ".htm" matched by the chain, deduplicated in document order.
// When excludeVideo is set, links mentioning "video" are dropped.
func ExtractLinks(body []byte, chain crawler.SelectorChain, baseURL string, excludeVideo bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	seen := make(map[string]struct{})
	var links []string
	for _, a := range chain.Union(doc.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || !strings.HasSuffix(href, ".htm") {
			continue
		}
		if excludeVideo && strings.Contains(href, "video") {
			continue
		}
		link := href
		if !strings.HasPrefix(href, "http") {
			link = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links, nil
}
