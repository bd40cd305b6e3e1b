package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SelectorChain is an ordered list of CSS selectors tried as independent
// extraction strategies.
type SelectorChain []string

// First returns the matches of the first selector that yields anything.
func (c SelectorChain) First(root *goquery.Selection) *goquery.Selection {
	for _, sel := range c {
		if found := root.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

// Text returns the stripped text of the first non-empty match, or fallback.
func (c SelectorChain) Text(root *goquery.Selection, fallback string) string {
	for _, sel := range c {
		found := root.Find(sel)
		if found.Length() == 0 {
			continue
		}
		if text := StrippedText(found.First()); text != "" {
			return text
		}
	}
	return fallback
}

// Attr returns the first non-empty value of attr across the chain.
func (c SelectorChain) Attr(root *goquery.Selection, attr string) string {
	for _, sel := range c {
		var value string
		root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = strings.TrimSpace(s.AttrOr(attr, ""))
			return value == ""
		})
		if value != "" {
			return value
		}
	}
	return ""
}

// Union returns every element matched by any selector, in chain order,
// without duplicates.
func (c SelectorChain) Union(root *goquery.Selection) []*goquery.Selection {
	seen := make(map[*html.Node]struct{})
	var out []*goquery.Selection
	for _, sel := range c {
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if _, ok := seen[node]; ok {
				return
			}
			seen[node] = struct{}{}
			out = append(out, s)
		})
	}
	return out
}

// Remove detaches every element matched by any selector under root.
func (c SelectorChain) Remove(root *goquery.Selection) {
	for _, sel := range c {
		root.Find(sel).Remove()
	}
}

// StrippedText concatenates the whitespace-trimmed text nodes under s,
// dropping the empty ones.
func StrippedText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		collectText(node, &b)
	}
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}

// Selectors groups the selector chains used across the extraction steps.
type Selectors struct {
	Content       SelectorChain `mapstructure:"content"`
	Garbage       SelectorChain `mapstructure:"content_garbage"`
	Title         SelectorChain `mapstructure:"title"`
	Author        SelectorChain `mapstructure:"author"`
	Date          SelectorChain `mapstructure:"date"`
	ArticleID     SelectorChain `mapstructure:"article_id_inputs"`
	PublishedTime SelectorChain `mapstructure:"published_time"`
	Audio         SelectorChain `mapstructure:"audio"`
	ListingLinks  SelectorChain `mapstructure:"listing_links"`
}

// DefaultSelectors returns the chains that match the current site markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Content:       SelectorChain{"#main-detail-body", ".detail-content", ".fck_detail"},
		Garbage:       SelectorChain{".relate-container", ".knc-content", ".read-more", "script", "style", ".type_audio"},
		Title:         SelectorChain{"h1.article-title", "h1.detail-title"},
		Author:        SelectorChain{".author-info .name", ".detail-author .name"},
		Date:          SelectorChain{".detail-time", ".date-time"},
		ArticleID:     SelectorChain{"input#hdNewsId", "input#article_id"},
		PublishedTime: SelectorChain{`meta[property="article:published_time"]`},
		Audio:         SelectorChain{"audio"},
		ListingLinks:  SelectorChain{"h3 a", ".box-category-link-title", ".article-title a"},
	}
}
