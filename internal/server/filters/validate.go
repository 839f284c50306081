package filters

import (
	"strings"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
)

var federativeUnits = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {}, "ES": {}, "GO": {},
	"MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {}, "PB": {}, "PR": {}, "PE": {}, "PI": {},
	"RJ": {}, "RN": {}, "RS": {}, "RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

// Validator holds read-only rule parameters. The zero value applies no
// period length limit.
type Validator struct {
	// MaxWindowDays caps the date range on ProfilePeriod. Zero disables it.
	MaxWindowDays int
}

// Validate checks set against the base rules and the profile's rules with a
// zero Validator.
func Validate(set SearchFilterSet, profile Profile) (Validated, error) {
	return Validator{}.Validate(set, profile)
}

// Validate runs every rule and returns either a Validated set or a
// *ValidationError listing all violations. It has no side effects.
func (v Validator) Validate(set SearchFilterSet, profile Profile) (Validated, error) {
	var msgs []string
	fail := func(msg string) { msgs = append(msgs, msg) }

	if set.DateEnd != nil && set.DateStart == nil {
		fail(MsgDateStartRequired)
	}
	if set.DateStart != nil && set.DateEnd == nil {
		fail(MsgDateEndRequired)
	}
	if set.hasDateRange() && set.DateEnd.Before(*set.DateStart) {
		fail(MsgDateEndBeforeStart)
	}

	if set.DocumentID != nil {
		if n := len(common.DigitsOnly(*set.DocumentID)); n != 11 && n != 14 {
			fail(MsgInvalidDocument)
		}
	}

	if set.Creditor != nil && !isSet(set.Creditor) {
		fail(MsgBlankCreditor)
	}
	if set.State != nil {
		if !isSet(set.State) {
			fail(MsgBlankState)
		} else if _, ok := federativeUnits[strings.ToUpper(strings.TrimSpace(*set.State))]; !ok {
			fail(MsgInvalidState)
		}
	}

	if set.hasSecondary() && !set.hasPrimary() {
		fail(MsgSecondaryWithoutPrimary)
	}
	if (isSet(set.ContractNumber) || isSet(set.Plate)) && set.setCount() == 1 {
		fail(MsgPrimaryAlone)
	}

	switch profile {
	case ProfileDirect:
		if set.hasPrimary() && !set.hasSecondary() {
			fail(MsgInvalidDirectSearch)
		}
	case ProfilePeriod:
		if !set.hasDateRange() {
			fail(MsgPeriodRequired)
		} else if v.MaxWindowDays > 0 && set.DateEnd.Sub(*set.DateStart).Hours()/24 > float64(v.MaxWindowDays) {
			fail(MsgPeriodTooLong)
		}
	}

	if len(msgs) == 0 && !profile.accepts(set) {
		fail(MsgInvalidCombination)
	}

	if len(msgs) > 0 {
		return Validated{}, newValidationError(msgs)
	}
	return newValidated(set, profile), nil
}
