// Package vault is the only code path that seals and opens debtor records.
// It sits between the services and the debtors repository: records go down
// sealed and come back up as plaintext models.Debtor values that live only
// for the duration of the request.
package vault

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/cryptox"
	"github.com/dmitrijs2005/debtorkeeper/internal/dbx"
	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/debtors"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/repomanager"
)

// ErrInvalidID is returned by SaveEncrypted for a caller-supplied ID that is
// not a UUID.
var ErrInvalidID = errors.New("debtor id is not a UUID")

// DecryptTally counts the records a batch read had to skip.
type DecryptTally struct {
	Count int
	IDs   []string
}

func (t *DecryptTally) add(id string) {
	t.Count++
	t.IDs = append(t.IDs, id)
}

// FieldCodec is the part of *cryptox.Codec the vault needs.
type FieldCodec interface {
	EncryptString(s string) ([]byte, error)
	DecryptString(ciphertext []byte) (string, error)
	BlindIndex(value string) []byte
}

// EncryptedRepository seals and opens debtor records around a
// debtors.Repository.
type EncryptedRepository struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       FieldCodec
	log         logging.Logger
}

func NewEncryptedRepository(db *sql.DB, m repomanager.RepositoryManager, codec FieldCodec, log logging.Logger) *EncryptedRepository {
	if log == nil {
		log = logging.Nop{}
	}
	return &EncryptedRepository{
		db:          db,
		repomanager: m,
		codec:       codec,
		log:         log.With("component", "vault"),
	}
}

// SaveEncrypted seals every sensitive field of d and writes the record in one
// transaction. Sealing happens before the transaction starts, so a sealing
// failure writes nothing. An empty d.ID gets a fresh UUID.
func (r *EncryptedRepository) SaveEncrypted(ctx context.Context, d *models.Debtor) (string, error) {
	if d == nil {
		return "", fmt.Errorf("save debtor: %w", common.ErrorInternal)
	}

	id := d.ID
	if id == "" {
		id = uuid.NewString()
	} else if !validID(id) {
		return "", fmt.Errorf("save debtor: %w", ErrInvalidID)
	}

	rec, err := r.seal(id, d)
	if err != nil {
		return "", fmt.Errorf("save debtor: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return r.repomanager.Debtors(tx).Put(ctx, rec)
	})
	if err != nil {
		return "", fmt.Errorf("save debtor: %w", err)
	}

	d.ID = id
	r.log.Debug(ctx, "debtor saved", "id", id)
	return id, nil
}

// FindDecryptedByID returns common.ErrorNotFound when no record exists and a
// *cryptox.DecryptionError when the record cannot be opened. An id that is
// not a UUID cannot exist and is reported as not found.
func (r *EncryptedRepository) FindDecryptedByID(ctx context.Context, id string) (*models.Debtor, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}

	rec, err := r.repomanager.Debtors(r.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find debtor: %w", err)
	}

	d, err := r.open(rec)
	if err != nil {
		decryptFailuresTotal.WithLabelValues("single").Inc()
		r.log.Warn(ctx, "debtor could not be decrypted", "id", id)
		return nil, err
	}
	return d, nil
}

// FindAllDecrypted opens every stored record. Records that fail to open are
// skipped and reported in the tally; only storage failures return an error.
func (r *EncryptedRepository) FindAllDecrypted(ctx context.Context) ([]*models.Debtor, *DecryptTally, error) {
	recs, err := r.repomanager.Debtors(r.db).All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list debtors: %w", err)
	}
	out, tally := r.openAll(ctx, recs)
	return out, tally, nil
}

// Search runs a validated filter set against storage. The document filter is
// matched through its blind index.
func (r *EncryptedRepository) Search(ctx context.Context, v filters.Validated) ([]*models.Debtor, *DecryptTally, error) {
	if v.IsZero() {
		return nil, nil, fmt.Errorf("search debtors: %w", filters.ErrValidation)
	}

	recs, err := r.repomanager.Debtors(r.db).Search(ctx, r.query(v))
	if err != nil {
		return nil, nil, fmt.Errorf("search debtors: %w", err)
	}
	out, tally := r.openAll(ctx, recs)
	return out, tally, nil
}

// FindManyDecrypted opens the records among ids that still exist, with the
// same skip-and-tally policy as FindAllDecrypted. IDs that are not UUIDs are
// ignored.
func (r *EncryptedRepository) FindManyDecrypted(ctx context.Context, ids []string) ([]*models.Debtor, *DecryptTally, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	if len(ids) == 0 {
		return nil, &DecryptTally{}, nil
	}
	recs, err := r.repomanager.Debtors(r.db).GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load debtors: %w", err)
	}
	out, tally := r.openAll(ctx, recs)
	return out, tally, nil
}

// ScopeKey returns a cache scope key for v. The document is replaced by its
// blind index and the whole rendering is hashed, so keys carry no plaintext.
func (r *EncryptedRepository) ScopeKey(v filters.Validated) string {
	canonical := v.Canonical(func(doc string) string {
		return hex.EncodeToString(r.codec.BlindIndex(doc))
	})
	sum := sha256.Sum256([]byte(canonical))
	return "debtors:search:" + hex.EncodeToString(sum[:])
}

func (r *EncryptedRepository) query(v filters.Validated) debtors.Query {
	f := v.Filters()
	q := debtors.Query{
		From:           f.DateStart,
		To:             f.DateEnd,
		Creditor:       deref(f.Creditor),
		State:          deref(f.State),
		VehicleModel:   deref(f.Model),
		Stage:          deref(f.Stage),
		ContractNumber: deref(f.ContractNumber),
		Plate:          deref(f.Plate),
	}
	if doc, ok := v.Document(); ok {
		q.DocumentIndex = r.codec.BlindIndex(doc)
	}
	return q
}

func (r *EncryptedRepository) seal(id string, d *models.Debtor) (*models.DebtorRecord, error) {
	rec := &models.DebtorRecord{
		ID:             id,
		Creditor:       d.Creditor,
		State:          strings.ToUpper(d.State),
		VehicleModel:   d.VehicleModel,
		Stage:          d.Stage,
		ContractNumber: d.ContractNumber,
		Plate:          d.Plate,
		ReferenceDate:  d.ReferenceDate,
	}

	for _, f := range sensitiveFields {
		sealed, err := r.codec.EncryptString(*f.plain(d))
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", f.name, err)
		}
		*f.cipher(rec) = sealed
	}

	rec.DocumentIndex = r.codec.BlindIndex(common.DigitsOnly(d.DocumentID))
	return rec, nil
}

func (r *EncryptedRepository) open(rec *models.DebtorRecord) (*models.Debtor, error) {
	d := &models.Debtor{
		ID:             rec.ID,
		Creditor:       rec.Creditor,
		State:          rec.State,
		VehicleModel:   rec.VehicleModel,
		Stage:          rec.Stage,
		ContractNumber: rec.ContractNumber,
		Plate:          rec.Plate,
		ReferenceDate:  rec.ReferenceDate,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}

	for _, f := range sensitiveFields {
		plain, err := r.codec.DecryptString(*f.cipher(rec))
		if err != nil {
			de := &cryptox.DecryptionError{RecordID: rec.ID, Field: f.name, Reason: "unreadable"}
			var inner *cryptox.DecryptionError
			if errors.As(err, &inner) {
				de.Reason = inner.Reason
			}
			return nil, de
		}
		*f.plain(d) = plain
	}
	return d, nil
}

func (r *EncryptedRepository) openAll(ctx context.Context, recs []*models.DebtorRecord) ([]*models.Debtor, *DecryptTally) {
	tally := &DecryptTally{}
	out := make([]*models.Debtor, 0, len(recs))
	for _, rec := range recs {
		d, err := r.open(rec)
		if err != nil {
			tally.add(rec.ID)
			continue
		}
		out = append(out, d)
	}
	if tally.Count > 0 {
		decryptFailuresTotal.WithLabelValues("batch").Add(float64(tally.Count))
		r.log.Warn(ctx, "skipped records that could not be decrypted", "count", tally.Count, "ids", tally.IDs)
	}
	return out, tally
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
