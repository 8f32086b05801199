package register

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ResultInfo is the pagination block of a register response. The register
// returns these counters as strings.
type ResultInfo struct {
	Page       string `json:"page"`
	PerPage    string `json:"per_page"`
	TotalCount string `json:"total_count"`
}

// Envelope is the common JSON shape of every register response. Data is kept
// raw because its shape differs per endpoint; it may also be absent or null,
// which the register uses to mean "nothing on record" rather than an error.
type Envelope struct {
	Status     string          `json:"Status"`
	ResultInfo *ResultInfo     `json:"ResultInfo"`
	Message    string          `json:"Message"`
	Data       json.RawMessage `json:"Data"`
}

// HasData reports whether the response carried a usable Data payload.
// Absent, null, and empty ("[]", "{}", "\"\"") payloads all count as no data.
func (e *Envelope) HasData() bool {
	b := bytes.TrimSpace(e.Data)
	if len(b) == 0 {
		return false
	}
	switch string(b) {
	case "null", "[]", "{}", `""`:
		return false
	}
	return true
}

// DecodeData unmarshals the Data payload into v.
func (e *Envelope) DecodeData(v any) error {
	if !e.HasData() {
		return errors.New("response has no data")
	}
	return json.Unmarshal(e.Data, v)
}

// SearchResult is one record of a register search response. JSON keys follow
// the register's spaced field names.
type SearchResult struct {
	Name            string `json:"Name"`
	ReferenceNumber string `json:"Reference Number"`
	Status          string `json:"Status"`
	BusinessType    string `json:"Type of business or Individual"`
	URL             string `json:"URL"`
}

// SearchResponse is a search envelope with its records decoded.
type SearchResponse struct {
	Envelope
	Results []SearchResult
}
