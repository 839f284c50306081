package filters

import (
	"strings"
	"time"
)

// Request parameter names.
const (
	KeyDateStart      = "dataInicio"
	KeyDateEnd        = "dataFim"
	KeyDocumentID     = "cpfCnpj"
	KeyCreditor       = "credor"
	KeyState          = "uf"
	KeyModel          = "modelo"
	KeyStage          = "etapa"
	KeyContractNumber = "contrato"
	KeyPlate          = "placa"
)

// SearchFilterSet is an optional-field filter set. nil means the filter was
// not supplied; a non-nil blank string means it was supplied empty, which
// some rules reject explicitly.
type SearchFilterSet struct {
	DateStart *time.Time
	DateEnd   *time.Time

	DocumentID     *string
	Creditor       *string
	State          *string
	Model          *string
	Stage          *string
	ContractNumber *string
	Plate          *string
}

// Str returns a pointer to s, for building filter sets in code.
func Str(s string) *string { return &s }

// Date returns a pointer to the civil date y-m-d in UTC.
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func isSet(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func (f SearchFilterSet) hasDateRange() bool {
	return f.DateStart != nil && f.DateEnd != nil
}

func (f SearchFilterSet) hasPrimary() bool {
	return f.hasDateRange() || isSet(f.ContractNumber) || isSet(f.Plate)
}

func (f SearchFilterSet) hasSecondary() bool {
	return isSet(f.Creditor) || isSet(f.State) || isSet(f.Model) || isSet(f.Stage)
}

// setCount counts supplied filters, the date range counting once.
func (f SearchFilterSet) setCount() int {
	n := 0
	if f.DateStart != nil || f.DateEnd != nil {
		n++
	}
	for _, s := range []*string{f.DocumentID, f.Creditor, f.State, f.Model, f.Stage, f.ContractNumber, f.Plate} {
		if isSet(s) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no filter at all was supplied.
func (f SearchFilterSet) IsEmpty() bool {
	return f.setCount() == 0
}
