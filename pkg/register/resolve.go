package register

import (
	"context"
	"fmt"
	"strings"
)

// NoResultsError reports a search that matched no records.
type NoResultsError struct {
	Category Category
	Query    string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no %s record found matching %q: check the search parameters and try again", e.Category, e.Query)
}

// AmbiguousResultsError reports a search that matched more than one record.
// Count carries how many candidates came back.
type AmbiguousResultsError struct {
	Category Category
	Query    string
	Count    int
}

func (e *AmbiguousResultsError) Error() string {
	return fmt.Sprintf("%q matches %d %s records: make the name more precise, or inspect the candidates with Search", e.Query, e.Count, e.Category)
}

// ResolveReference reduces a name search to exactly one reference number.
//
// The match itself is the register's case-insensitive substring search; no
// ranking or fuzzy matching happens here. Zero matches yield a
// *NoResultsError, two or more an *AmbiguousResultsError carrying the count.
// Transport and auth failures pass through unchanged.
func (c *Client) ResolveReference(ctx context.Context, name string, cat Category) (string, error) {
	res, err := c.Search(ctx, name, cat)
	if err != nil {
		return "", err
	}
	switch n := len(res.Results); {
	case n == 0:
		return "", &NoResultsError{Category: cat, Query: name}
	case n > 1:
		return "", &AmbiguousResultsError{Category: cat, Query: name, Count: n}
	}
	ref := strings.TrimSpace(res.Results[0].ReferenceNumber)
	if ref == "" {
		return "", fmt.Errorf("search result for %q has no reference number", name)
	}
	return ref, nil
}

// ResolveFirmReference returns the unique firm reference number (FRN) for a
// firm name precise enough to match exactly one firm.
func (c *Client) ResolveFirmReference(ctx context.Context, firmName string) (string, error) {
	return c.ResolveReference(ctx, firmName, CategoryFirm)
}

// ResolveIndividualReference returns the unique individual reference number
// (IRN) for an individual's name.
func (c *Client) ResolveIndividualReference(ctx context.Context, individualName string) (string, error) {
	return c.ResolveReference(ctx, individualName, CategoryIndividual)
}

// ResolveFundReference returns the unique product reference number (PRN) for
// a fund or collective investment scheme name, including subfunds.
func (c *Client) ResolveFundReference(ctx context.Context, fundName string) (string, error) {
	return c.ResolveReference(ctx, fundName, CategoryFund)
}
