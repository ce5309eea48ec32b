package scraper

import (
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"suumo_watcher/models"
)

const (
	noTitleLabel = "物件名なし"
	zeroYen      = "0円"
)

var (
	managementFeeRe = regexp.MustCompile(`管理費[・共益費]*[：:]\s*(.+)`)
	depositRe       = regexp.MustCompile(`敷金[：:]\s*(.+)`)
	keyMoneyRe      = regexp.MustCompile(`礼金[：:]\s*(.+)`)
)

// ScrapeDetail navigates one detail page and extracts its record. Every
// failure mode (navigation error, HTTP >= 400, parse surprise) is logged and
// yields nil; a single bad page never aborts the batch it belongs to.
func ScrapeDetail(page Page, pageURL string, timeout, settle time.Duration) *models.Property {
	status, err := page.Goto(pageURL, timeout)
	if err != nil {
		log.Printf("Detail navigation error for %s: %v", pageURL, err)
		return nil
	}
	if status >= 400 {
		log.Printf("Detail page %s returned HTTP %d", pageURL, status)
		return nil
	}

	page.WaitFor(settle)

	html, err := page.Content()
	if err != nil {
		log.Printf("Detail content error for %s: %v", pageURL, err)
		return nil
	}

	return ExtractDetail(html, pageURL)
}

// ExtractDetail parses a rendered detail page into a Property. Missing fields
// degrade to empty values; the four monetary fields default to "0円" when the
// page carries no amount, which is a normalization and not an error. Returns
// nil only when the document as a whole cannot be processed.
func ExtractDetail(html, pageURL string) (prop *models.Property) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Detail extraction panic for %s: %v", pageURL, r)
			prop = nil
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("Detail parse error for %s: %v", pageURL, err)
		return nil
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = noTitleLabel
	}

	address := tableValue(doc, "所在地")
	stationWalk := tableValue(doc, "駅徒歩")
	if stationWalk == "" {
		stationWalk = tableValue(doc, "最寄駅")
	}
	floor := tableValue(doc, "階")
	layout := tableValue(doc, "間取り")
	area := tableValue(doc, "専有面積")
	propertyType := tableValue(doc, "建物種別")
	postedDate := tableValue(doc, "情報更新日")

	noteLists := doc.Find(".property_view_note-list")

	// First note block carries rent (emphasized span) and the management fee.
	firstNote := noteLists.First()
	rent := strings.TrimSpace(firstNote.Find(".property_view_note-emphasis").Text())
	managementFee := noteValue(firstNote, 1, managementFeeRe)

	// Second note block carries deposit and key money in its first two spans.
	secondNote := noteLists.Eq(1)
	deposit := noteValue(secondNote, 0, depositRe)
	keyMoney := noteValue(secondNote, 1, keyMoneyRe)

	// The hidden clip key is the most reliable source for the property code.
	propertyCode := strings.TrimSpace(doc.Find("#clipkey").AttrOr("value", ""))
	if propertyCode == "" {
		propertyCode = tableValue(doc, "SUUMO物件コード")
	}
	if propertyCode == "" {
		propertyCode = tableValue(doc, "物件コード")
	}

	if rent == "" {
		rent = zeroYen
	}
	if managementFee == "" {
		managementFee = zeroYen
	}
	if deposit == "" {
		deposit = zeroYen
	}
	if keyMoney == "" {
		keyMoney = zeroYen
	}

	return &models.Property{
		URL:           pageURL,
		Title:         title,
		Address:       address,
		StationWalk:   stationWalk,
		Floor:         floor,
		Rent:          rent,
		ManagementFee: managementFee,
		Deposit:       deposit,
		KeyMoney:      keyMoney,
		Layout:        layout,
		Area:          area,
		PropertyType:  propertyType,
		PropertyCode:  propertyCode,
		PostedDate:    postedDate,
	}
}

// tableValue scans every table row in document order for a cell whose text
// equals or contains the label and returns the next cell in that row. The
// first matching row wins.
func tableValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td, th")
		cells.EachWithBreak(func(k int, cell *goquery.Selection) bool {
			text := strings.TrimSpace(cell.Text())
			if text == label || strings.Contains(text, label) {
				next := cells.Eq(k + 1)
				if next.Length() > 0 {
					value = strings.TrimSpace(next.Text())
					return false
				}
			}
			return true
		})
		return value == ""
	})
	return value
}

// noteValue extracts a labeled amount from the nth span of a note block.
// Non-breaking spaces are normalized and the site's "no charge" sentinels
// ("-", "なし") map to empty so the caller can apply the zero default.
func noteValue(list *goquery.Selection, spanIndex int, re *regexp.Regexp) string {
	text := strings.TrimSpace(list.Find("span").Eq(spanIndex).Text())
	if text == "" {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	v := strings.ReplaceAll(m[1], "\u00A0", " ")
	v = strings.TrimSpace(v)
	if v == "-" || v == "なし" {
		return ""
	}
	return v
}
