package models

import "time"

// Property is one scraped rental listing snapshot. All fields are kept as the
// raw text shown on the detail page; nothing is parsed into numbers because
// the site mixes units and annotations freely ("5.5万円", "2LDK", "徒歩5分").
type Property struct {
	ID            int64     `json:"id" db:"id"`
	ExecutionID   string    `json:"execution_id" db:"execution_id"`
	URL           string    `json:"url" db:"url"`
	Title         string    `json:"title" db:"title"`
	Address       string    `json:"address" db:"address"`
	StationWalk   string    `json:"station_walk" db:"station_walk"`
	Floor         string    `json:"floor" db:"floor"`
	Rent          string    `json:"rent" db:"rent"`
	ManagementFee string    `json:"management_fee" db:"management_fee"`
	Deposit       string    `json:"deposit" db:"deposit"`
	KeyMoney      string    `json:"key_money" db:"key_money"`
	Layout        string    `json:"layout" db:"layout"`
	Area          string    `json:"area" db:"area"`
	PropertyType  string    `json:"property_type" db:"property_type"`
	PropertyCode  string    `json:"property_code" db:"property_code"`
	PostedDate    string    `json:"posted_date" db:"posted_date"`
	ScrapedAt     time.Time `json:"scraped_at" db:"scraped_at"`
}

// Valid reports whether the record can be persisted. URL is the natural key
// within a scrape; a record without one is unusable.
func (p *Property) Valid() bool {
	return p.URL != ""
}
