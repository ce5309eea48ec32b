package httputil

import (
	"net/http"
	"time"
)

// Clients groups the process's shared HTTP clients. Page rendering goes
// through the headless browser, so the only direct HTTP traffic is API calls
// (LINE messaging).
type Clients struct {
	API *http.Client
}

func NewClients() *Clients {
	return &Clients{
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
