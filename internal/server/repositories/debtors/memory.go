package debtors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
)

// MemoryRepository is a process-local Repository for tests. Records are
// copied on the way in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.DebtorRecord
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.DebtorRecord), now: time.Now}
}

func (r *MemoryRepository) Put(ctx context.Context, rec *models.DebtorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := cloneRecord(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if prev, ok := r.records[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.records[c.ID] = c
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.DebtorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) GetMany(ctx context.Context, ids []string) ([]*models.DebtorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.DebtorRecord
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := r.records[id]; ok {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *MemoryRepository) All(ctx context.Context) ([]*models.DebtorRecord, error) {
	return r.Search(ctx, Query{})
}

func (r *MemoryRepository) Search(ctx context.Context, q Query) ([]*models.DebtorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.DebtorRecord
	for _, rec := range r.records {
		if q.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []*models.DebtorRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].ReferenceDate.Equal(recs[j].ReferenceDate) {
			return recs[i].ReferenceDate.After(recs[j].ReferenceDate)
		}
		return recs[i].ID < recs[j].ID
	})
}

func cloneRecord(rec *models.DebtorRecord) *models.DebtorRecord {
	c := *rec
	c.NameCipher = append([]byte(nil), rec.NameCipher...)
	c.DocumentCipher = append([]byte(nil), rec.DocumentCipher...)
	c.DocumentIndex = append([]byte(nil), rec.DocumentIndex...)
	return &c
}
