// Package debtors stores debtor records in their sealed storage form. Nothing
// in this package sees plaintext sensitive values: sealing and opening happen
// in the vault package above it.
package debtors

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
)

// Repository is the persistence boundary for debtor records.
type Repository interface {
	// Put inserts or replaces a record by ID in a single statement.
	Put(ctx context.Context, rec *models.DebtorRecord) error

	// Get returns common.ErrorNotFound when no record has the id.
	Get(ctx context.Context, id string) (*models.DebtorRecord, error)

	// GetMany returns the records that exist among ids; missing ids are
	// silently absent from the result.
	GetMany(ctx context.Context, ids []string) ([]*models.DebtorRecord, error)

	All(ctx context.Context) ([]*models.DebtorRecord, error)

	Search(ctx context.Context, q Query) ([]*models.DebtorRecord, error)
}

// Query selects records by plaintext columns and the document blind index.
// Zero values mean "no constraint". From and To bound ReferenceDate
// inclusively, at day granularity.
type Query struct {
	From          *time.Time
	To            *time.Time
	DocumentIndex []byte

	Creditor       string // case-insensitive substring
	State          string
	VehicleModel   string // case-insensitive substring
	Stage          string
	ContractNumber string
	Plate          string
}

// Matches applies the query to a record in memory with the same semantics as
// the SQL built by PostgresRepository.
func (q Query) Matches(rec *models.DebtorRecord) bool {
	day := truncateDay(rec.ReferenceDate)
	if q.From != nil && day.Before(truncateDay(*q.From)) {
		return false
	}
	if q.To != nil && day.After(truncateDay(*q.To)) {
		return false
	}
	if len(q.DocumentIndex) > 0 && !bytes.Equal(q.DocumentIndex, rec.DocumentIndex) {
		return false
	}
	if q.Creditor != "" && !containsFold(rec.Creditor, q.Creditor) {
		return false
	}
	if q.VehicleModel != "" && !containsFold(rec.VehicleModel, q.VehicleModel) {
		return false
	}
	if q.State != "" && !strings.EqualFold(rec.State, q.State) {
		return false
	}
	if q.Stage != "" && rec.Stage != q.Stage {
		return false
	}
	if q.ContractNumber != "" && rec.ContractNumber != q.ContractNumber {
		return false
	}
	if q.Plate != "" && !strings.EqualFold(rec.Plate, q.Plate) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
