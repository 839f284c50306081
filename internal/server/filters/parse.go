package filters

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// Parse converts raw request values into a SearchFilterSet. A key that is
// present maps to a non-nil field even when its value is empty, so blank
// filters remain visible to Validate. Unparseable dates are reported as a
// *ValidationError.
func Parse(raw url.Values) (SearchFilterSet, error) {
	var (
		set  SearchFilterSet
		msgs []string
	)

	parseDate := func(key string) *time.Time {
		v, ok := lookup(raw, key)
		if !ok || strings.TrimSpace(*v) == "" {
			return nil
		}
		t, err := parseCivilDate(*v)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("%s %s", key, MsgInvalidDate))
			return nil
		}
		return &t
	}

	set.DateStart = parseDate(KeyDateStart)
	set.DateEnd = parseDate(KeyDateEnd)
	set.DocumentID, _ = lookup(raw, KeyDocumentID)
	set.Creditor, _ = lookup(raw, KeyCreditor)
	set.State, _ = lookup(raw, KeyState)
	set.Model, _ = lookup(raw, KeyModel)
	set.Stage, _ = lookup(raw, KeyStage)
	set.ContractNumber, _ = lookup(raw, KeyContractNumber)
	set.Plate, _ = lookup(raw, KeyPlate)

	if len(msgs) > 0 {
		return set, newValidationError(msgs)
	}
	return set, nil
}

func lookup(raw url.Values, key string) (*string, bool) {
	vs, ok := raw[key]
	if !ok {
		return nil, false
	}
	v := ""
	if len(vs) > 0 {
		v = vs[0]
	}
	return &v, true
}

func parseCivilDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
