package filters

import (
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
)

// Validated is a filter set that passed Validate, normalised: strings
// trimmed, UF and plate upper-cased, plate without separators, document
// reduced to digits, blank optional fields dropped. Only Validate creates it.
type Validated struct {
	set     SearchFilterSet
	profile Profile
	ok      bool
}

func newValidated(set SearchFilterSet, profile Profile) Validated {
	norm := SearchFilterSet{
		DateStart:      copyTime(set.DateStart),
		DateEnd:        copyTime(set.DateEnd),
		DocumentID:     normalize(set.DocumentID, common.DigitsOnly),
		Creditor:       normalize(set.Creditor, nil),
		State:          normalize(set.State, strings.ToUpper),
		Model:          normalize(set.Model, nil),
		Stage:          normalize(set.Stage, nil),
		ContractNumber: normalize(set.ContractNumber, nil),
		Plate:          normalize(set.Plate, normalizePlate),
	}
	return Validated{set: norm, profile: profile, ok: true}
}

// IsZero reports whether v was not produced by Validate.
func (v Validated) IsZero() bool { return !v.ok }

func (v Validated) Profile() Profile { return v.profile }

// Filters returns a copy of the normalised filter set.
func (v Validated) Filters() SearchFilterSet {
	s := v.set
	s.DateStart = copyTime(s.DateStart)
	s.DateEnd = copyTime(s.DateEnd)
	for _, p := range []**string{&s.DocumentID, &s.Creditor, &s.State, &s.Model, &s.Stage, &s.ContractNumber, &s.Plate} {
		if *p != nil {
			*p = Str(**p)
		}
	}
	return s
}

// DateRange returns the requested range; both are nil when none was given.
func (v Validated) DateRange() (start, end *time.Time) {
	return copyTime(v.set.DateStart), copyTime(v.set.DateEnd)
}

// OtherValues returns the non-date filter values, document excluded, in a
// fixed order. The document is left out on purpose: these values end up in
// refresh contexts, which are logged.
func (v Validated) OtherValues() []string {
	var out []string
	for _, p := range []*string{v.set.Creditor, v.set.State, v.set.Model, v.set.Stage, v.set.ContractNumber, v.set.Plate} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// HasDocument reports whether a CPF/CNPJ filter is present.
func (v Validated) HasDocument() bool { return v.set.DocumentID != nil }

// Canonical renders the set as a stable string for cache scoping. The
// document is passed through redact so plaintext never enters a key.
func (v Validated) Canonical(redact func(doc string) string) string {
	parts := []string{"profile=" + v.profile.String()}
	add := func(key string, p *string) {
		if p != nil {
			parts = append(parts, key+"="+*p)
		}
	}
	if v.set.DateStart != nil {
		parts = append(parts, KeyDateStart+"="+v.set.DateStart.Format("2006-01-02"))
	}
	if v.set.DateEnd != nil {
		parts = append(parts, KeyDateEnd+"="+v.set.DateEnd.Format("2006-01-02"))
	}
	if v.set.DocumentID != nil {
		parts = append(parts, KeyDocumentID+"="+redact(*v.set.DocumentID))
	}
	add(KeyCreditor, v.set.Creditor)
	add(KeyState, v.set.State)
	add(KeyModel, v.set.Model)
	add(KeyStage, v.set.Stage)
	add(KeyContractNumber, v.set.ContractNumber)
	add(KeyPlate, v.set.Plate)
	sort.Strings(parts[1:])
	return strings.Join(parts, "&")
}

// Document returns the digits-only document for blind indexing. It is the
// only accessor exposing it and should be called by the vault alone.
func (v Validated) Document() (string, bool) {
	if v.set.DocumentID == nil {
		return "", false
	}
	return *v.set.DocumentID, true
}

func normalize(p *string, fn func(string) string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	if fn != nil {
		s = fn(s)
	}
	return &s
}

func normalizePlate(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
