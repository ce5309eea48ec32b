package scraper

import (
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const siteOrigin = "https://suumo.jp"

// Detail pages live under /chintai/jnc_<id> or /chintai/jc_<id>.
var detailPathPattern = regexp.MustCompile(`/chintai/(jnc|jc)_\d+`)

// CollectListingURLs extracts the ordered, duplicate-free list of absolute
// detail-page URLs from a search results page. Cards are independent: a card
// without a qualifying link is logged and skipped, never aborting the rest.
// An empty result is a valid outcome meaning no listings were found.
func CollectListingURLs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("Search page parse error: %v", err)
		return nil
	}

	var urls []string
	seen := make(map[string]struct{})

	cards := doc.Find(".cassetteitem")
	log.Printf("Search page: %d listing cards", cards.Length())

	cards.Each(func(i int, card *goquery.Selection) {
		found := false
		card.Find(`a[href*="/chintai/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if href == "" || href == "javascript:void(0)" || !detailPathPattern.MatchString(href) {
				return true
			}
			// First qualifying anchor wins for this card.
			if u := absoluteDetailURL(href); u != "" {
				if _, dup := seen[u]; !dup {
					seen[u] = struct{}{}
					urls = append(urls, u)
					found = true
				}
			}
			return false
		})
		if !found {
			log.Printf("Card %d: no detail link extracted", i+1)
		}
	})

	log.Printf("Extracted %d listing URLs", len(urls))
	return urls
}

func absoluteDetailURL(href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return siteOrigin + href
	default:
		return ""
	}
}
