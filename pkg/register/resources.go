package register

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Category selects which register population an operation addresses.
type Category string

const (
	CategoryFirm       Category = "firm"
	CategoryIndividual Category = "individual"
	CategoryFund       Category = "fund"
)

// ParseCategory normalizes a user-supplied category label.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "firm":
		return CategoryFirm, nil
	case "individual":
		return CategoryIndividual, nil
	case "fund":
		return CategoryFund, nil
	}
	return "", fmt.Errorf("unknown category %q (want firm, individual, or fund)", s)
}

func (c Category) String() string { return string(c) }

func (c Category) valid() bool { return c.root() != "" }

// root returns the API path root for the category's resources.
func (c Category) root() string {
	switch c {
	case CategoryFirm:
		return "Firm"
	case CategoryIndividual:
		return "Individuals"
	case CategoryFund:
		return "CIS"
	}
	return ""
}

// resource fetches {root}/{ref}[/modifier...] for the category. A request for
// a reference the register does not know still returns 200 with an empty
// Data; callers should check Envelope.HasData.
func (c *Client) resource(ctx context.Context, op string, cat Category, ref string, modifiers ...string) (*Envelope, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%s reference number is required", cat)
	}
	// Each segment is escaped on its own so values like passport country
	// names ("United Kingdom") travel as one path element.
	parts := []string{cat.root(), url.PathEscape(ref)}
	for _, m := range modifiers {
		parts = append(parts, url.PathEscape(m))
	}
	return c.get(ctx, op, c.baseURL.JoinPath(parts...))
}

// Firm returns the profile of the firm with the given firm reference number (FRN).
func (c *Client) Firm(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firm", CategoryFirm, frn)
}

// FirmNames returns the alternative or secondary trading names of a firm.
func (c *Client) FirmNames(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmNames", CategoryFirm, frn, "Names")
}

// FirmAddress returns the listed business address of a firm.
func (c *Client) FirmAddress(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmAddress", CategoryFirm, frn, "Address")
}

// FirmControlledFunctions returns the controlled functions associated with a firm.
func (c *Client) FirmControlledFunctions(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmControlledFunctions", CategoryFirm, frn, "CF")
}

// FirmIndividuals returns the individuals associated with a firm.
func (c *Client) FirmIndividuals(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmIndividuals", CategoryFirm, frn, "Individuals")
}

// FirmPermissions returns the activities and permissions of a firm.
func (c *Client) FirmPermissions(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmPermissions", CategoryFirm, frn, "Permissions")
}

// FirmRequirements returns the requirements associated with a firm.
func (c *Client) FirmRequirements(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmRequirements", CategoryFirm, frn, "Requirements")
}

// FirmRequirementInvestmentTypes returns any investment types listed for a
// specific requirement of a firm.
func (c *Client) FirmRequirementInvestmentTypes(ctx context.Context, frn, requirementRef string) (*Envelope, error) {
	requirementRef = strings.TrimSpace(requirementRef)
	if requirementRef == "" {
		return nil, fmt.Errorf("requirement reference is required")
	}
	return c.resource(ctx, "firmRequirementInvestmentTypes", CategoryFirm, frn, "Requirements", requirementRef, "InvestmentTypes")
}

// FirmRegulators returns the regulators listed for a firm.
func (c *Client) FirmRegulators(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmRegulators", CategoryFirm, frn, "Regulators")
}

// FirmPassports returns the passports associated with a firm.
func (c *Client) FirmPassports(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmPassports", CategoryFirm, frn, "Passports")
}

// FirmPassportPermissions returns a firm's passport permissions for one country.
func (c *Client) FirmPassportPermissions(ctx context.Context, frn, country string) (*Envelope, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, fmt.Errorf("country is required")
	}
	return c.resource(ctx, "firmPassportPermissions", CategoryFirm, frn, "Passports", country, "Permission")
}

// FirmWaivers returns any waivers applying to a firm.
func (c *Client) FirmWaivers(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmWaivers", CategoryFirm, frn, "Waivers")
}

// FirmExclusions returns any exclusions applying to a firm.
func (c *Client) FirmExclusions(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmExclusions", CategoryFirm, frn, "Exclusions")
}

// FirmDisciplinaryHistory returns the disciplinary history of a firm. Firms
// with a clean record come back with an empty Data payload.
func (c *Client) FirmDisciplinaryHistory(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmDisciplinaryHistory", CategoryFirm, frn, "DisciplinaryHistory")
}

// FirmAppointedRepresentatives returns the appointed representatives of a firm.
func (c *Client) FirmAppointedRepresentatives(ctx context.Context, frn string) (*Envelope, error) {
	return c.resource(ctx, "firmAppointedRepresentatives", CategoryFirm, frn, "AR")
}

// Individual returns the profile of the individual with the given individual
// reference number (IRN).
func (c *Client) Individual(ctx context.Context, irn string) (*Envelope, error) {
	return c.resource(ctx, "individual", CategoryIndividual, irn)
}

// IndividualControlledFunctions returns the controlled functions associated
// with an individual.
func (c *Client) IndividualControlledFunctions(ctx context.Context, irn string) (*Envelope, error) {
	return c.resource(ctx, "individualControlledFunctions", CategoryIndividual, irn, "CF")
}

// IndividualDisciplinaryHistory returns the disciplinary history of an
// individual. Individuals with a clean record come back with an empty Data
// payload.
func (c *Client) IndividualDisciplinaryHistory(ctx context.Context, irn string) (*Envelope, error) {
	return c.resource(ctx, "individualDisciplinaryHistory", CategoryIndividual, irn, "DisciplinaryHistory")
}

// Fund returns the profile of the fund (collective investment scheme) with
// the given product reference number (PRN).
func (c *Client) Fund(ctx context.Context, prn string) (*Envelope, error) {
	return c.resource(ctx, "fund", CategoryFund, prn)
}

// FundNames returns the alternative or secondary trading names of a fund.
func (c *Client) FundNames(ctx context.Context, prn string) (*Envelope, error) {
	return c.resource(ctx, "fundNames", CategoryFund, prn, "Names")
}

// FundSubfunds returns the subfunds of a fund.
func (c *Client) FundSubfunds(ctx context.Context, prn string) (*Envelope, error) {
	return c.resource(ctx, "fundSubfunds", CategoryFund, prn, "Subfund")
}
