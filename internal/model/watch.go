package model

import "time"

// Status labels written to a watch after each scan.
const (
	StatusReady        = "Ready to scan"
	StatusNothingFound = "Nothing found"
	StatusTechError    = "Technical error"
)

// Watch is a tracked (site, search URL, match name) triple.
type Watch struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Site      string     `json:"site,omitempty"`
	Status    string     `json:"status"`
	Results   ResultSet  `json:"results"`
	LastScan  *time.Time `json:"lastScan,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewWatch returns a watch in its initial state: no results, ready status.
func NewWatch(name, url, site string) Watch {
	return Watch{
		Name:    name,
		URL:     url,
		Site:    site,
		Status:  StatusReady,
		Results: ResultSet{},
	}
}

// Target projects the watch onto the minimal view the scan engine needs.
func (w Watch) Target() ScanTarget {
	return ScanTarget{
		URL:             w.URL,
		MatchKey:        w.Name,
		PreviousResults: w.Results,
	}
}

// ScanTarget is the read projection of a watch handed to the scan engine.
type ScanTarget struct {
	URL             string
	MatchKey        string
	PreviousResults ResultSet
}

// ScanOutcome is the ephemeral result of scanning one target.
// NewItems is always a subset of CurrentResults.
type ScanOutcome struct {
	CurrentResults ResultSet `json:"results"`
	NewItems       ResultSet `json:"newItems"`
	PagesScanned   int       `json:"pagesScanned"`
	// Partial is set when a page after the first failed and only earlier pages contributed.
	Partial bool `json:"partial,omitempty"`
}

// HasNewItems reports whether the scan found anything absent from the previous snapshot.
func (o *ScanOutcome) HasNewItems() bool {
	return o != nil && len(o.NewItems) > 0
}

// ResultStatus is the label persisted on a watch after a successful scan.
func ResultStatus(results ResultSet) string {
	if len(results) == 0 {
		return StatusNothingFound
	}
	return "Found (" + itoa(len(results)) + ")"
}

// NewItemsStatus is the label returned to the caller of an ad hoc scan.
func NewItemsStatus(newCount int) string {
	if newCount == 0 {
		return "Nothing new"
	}
	if newCount == 1 {
		return "1 new item!"
	}
	return itoa(newCount) + " new items!"
}
