package scraper

import (
	"context"
	"log"
	"sync"
	"time"

	"suumo_watcher/models"
)

// BatchFetcher drives detail-page extraction over a session in fixed-size
// batches: batches run strictly in order, pages within a batch run
// concurrently, and a short pause separates batches to go easy on the site.
type BatchFetcher struct {
	MaxItems  int
	BatchSize int
	Pause     time.Duration
	Timeout   time.Duration
	Settle    time.Duration
}

// Fetch extracts records for up to MaxItems of the given URLs. A failed URL is
// logged and dropped; it never aborts its batch or the batches after it. The
// context is observed between batches only; in-flight extractions are bounded
// by their own navigation timeouts.
func (f *BatchFetcher) Fetch(ctx context.Context, session Session, urls []string) []models.Property {
	if f.MaxItems > 0 && len(urls) > f.MaxItems {
		log.Printf("Capping %d listing URLs to %d", len(urls), f.MaxItems)
		urls = urls[:f.MaxItems]
	}

	size := f.BatchSize
	if size <= 0 {
		size = 10
	}

	var properties []models.Property
	total := (len(urls) + size - 1) / size

	for start := 0; start < len(urls); start += size {
		if err := ctx.Err(); err != nil {
			log.Printf("Fetch aborted before batch %d: %v", start/size+1, err)
			break
		}

		end := min(start+size, len(urls))
		batch := urls[start:end]
		batchNum := start/size + 1
		log.Printf("Batch %d/%d: scraping %d detail pages", batchNum, total, len(batch))

		results := make([]*models.Property, len(batch))
		var wg sync.WaitGroup
		for i, pageURL := range batch {
			wg.Add(1)
			go func(i int, pageURL string) {
				defer wg.Done()
				page, err := session.NewPage()
				if err != nil {
					log.Printf("Page open error for %s: %v", pageURL, err)
					return
				}
				defer page.Close()
				results[i] = ScrapeDetail(page, pageURL, f.Timeout, f.Settle)
			}(i, pageURL)
		}
		wg.Wait()

		extracted := 0
		for _, r := range results {
			if r != nil && r.Valid() {
				properties = append(properties, *r)
				extracted++
			}
		}
		log.Printf("Batch %d/%d done: %d/%d extracted", batchNum, total, extracted, len(batch))

		if end < len(urls) && f.Pause > 0 {
			time.Sleep(f.Pause)
		}
	}

	return properties
}
