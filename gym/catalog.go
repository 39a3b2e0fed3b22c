package gym

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CustomMembership is the catalog entry with no preset term or fee.
const CustomMembership = "Custom"

// MembershipPlan is a preset membership offered at registration.
// Sessions is informational; registering does not grant them.
type MembershipPlan struct {
	Name     string          `json:"name"`
	Sessions int             `json:"sessions"`
	Months   int             `json:"months"`
	Fee      decimal.Decimal `json:"fee"`
}

var catalog = []MembershipPlan{
	{Name: "Monthly Premium", Sessions: 12, Months: 1, Fee: decimal.NewFromInt(150)},
	{Name: "Monthly Basic", Sessions: 8, Months: 1, Fee: decimal.NewFromInt(100)},
	{Name: "3-Month Premium", Sessions: 36, Months: 3, Fee: decimal.NewFromInt(400)},
	{Name: "3-Month Basic", Sessions: 24, Months: 3, Fee: decimal.NewFromInt(270)},
	{Name: "6-Month Premium", Sessions: 72, Months: 6, Fee: decimal.NewFromInt(750)},
	{Name: "6-Month Basic", Sessions: 48, Months: 6, Fee: decimal.NewFromInt(500)},
	{Name: "Annual Premium", Sessions: 144, Months: 12, Fee: decimal.NewFromInt(1400)},
	{Name: CustomMembership, Sessions: 0, Months: 0, Fee: decimal.Zero},
}

// Catalog returns the membership presets in display order.
func Catalog() []MembershipPlan {
	return append([]MembershipPlan{}, catalog...)
}

// LookupPlan finds a preset by name, ignoring case.
func LookupPlan(name string) (MembershipPlan, bool) {
	for _, p := range catalog {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return MembershipPlan{}, false
}

// IsCustom reports whether the plan carries no preset term.
func (p MembershipPlan) IsCustom() bool {
	return p.Name == CustomMembership
}

// EndDateFrom computes the end of a term starting at start.
func (p MembershipPlan) EndDateFrom(start Date) Date {
	return start.AddMonths(p.Months)
}
