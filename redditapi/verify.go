package redditapi

import "time"

// Rejection reasons surfaced to the caller on a 403. These are the only
// provider-specific strings that escape this package.
const (
	ReasonTooYoung    = "too young"
	ReasonNotEligible = "not eligible"
)

// Verification is the provider's verdict consumed by the connection
// controller: a verified identity plus an eligibility decision. Reason is
// set only when Eligible is false.
type Verification struct {
	Identity string
	Eligible bool
	Reason   string
}

// Evaluate applies the eligibility policy to a fetched profile. Accounts
// younger than minAge are rejected as too young; suspended accounts and
// accounts under minKarma are rejected as not eligible.
func Evaluate(p *Profile, minAge time.Duration, minKarma int, now time.Time) Verification {
	if now.Sub(p.CreatedAt()) < minAge {
		return Verification{Identity: p.Name, Reason: ReasonTooYoung}
	}
	if p.Suspended || p.TotalKarma < minKarma {
		return Verification{Identity: p.Name, Reason: ReasonNotEligible}
	}
	return Verification{Identity: p.Name, Eligible: true}
}
