package filters

import "fmt"

// Profile names the rule set a query path applies on top of the base rules.
type Profile int

const (
	// ProfileSearch is the plain filtered search. An empty filter set is
	// allowed and means the default window.
	ProfileSearch Profile = iota

	// ProfileDirect is a direct lookup: a primary filter must come with at
	// least one secondary filter.
	ProfileDirect

	// ProfilePeriod serves period reports and always needs a date range.
	ProfilePeriod
)

func (p Profile) String() string {
	switch p {
	case ProfileSearch:
		return "search"
	case ProfileDirect:
		return "direct"
	case ProfilePeriod:
		return "period"
	default:
		return fmt.Sprintf("Profile(%d)", int(p))
	}
}

// accepts is the final per-profile gate. Anything the specific rules let
// through but the profile does not accept is an invalid combination.
func (p Profile) accepts(f SearchFilterSet) bool {
	switch p {
	case ProfileSearch:
		return true
	case ProfileDirect:
		return f.hasPrimary() && f.hasSecondary()
	case ProfilePeriod:
		return f.hasDateRange()
	default:
		return false
	}
}
