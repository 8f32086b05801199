// Package screen turns a list of names into a screening report by resolving
// each one against the register.
package screen

import (
	"github.com/regsift/fsregister/pkg/register"
)

// Subject is one register entity queued for screening.
type Subject struct {
	Name     string
	Category register.Category
}

// Outcomes recorded in Row.Outcome.
const (
	// OutcomeOK means the name resolved to exactly one reference number.
	OutcomeOK = "ok"
	// OutcomeNoMatch means the register returned no record for the name.
	OutcomeNoMatch = "no_match"
	// OutcomeAmbiguous means the name matched more than one record.
	OutcomeAmbiguous = "ambiguous"
	// OutcomeError means the lookup itself failed (transport, auth, bad input).
	OutcomeError = "error"
)

// Row is the stable output schema of a screening run.
type Row struct {
	Name            string
	Category        string
	ReferenceNumber string
	Outcome         string

	// Matches is the candidate count behind the outcome: "1" for ok, "0" for
	// no_match, the ambiguity count otherwise. Empty for error rows.
	Matches string

	Error string
}

// Header returns the stable CSV header for Row.
func Header() []string {
	return []string{
		"name",
		"category",
		"reference_number",
		"outcome",
		"matches",
		"error",
	}
}
