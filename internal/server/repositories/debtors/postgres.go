package debtors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/dbx"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
)

const selectColumns = `id, name_cipher, document_cipher, document_index, creditor, state,
		vehicle_model, stage, contract_number, plate, reference_date, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Put upserts the record by ID. The whole row, ciphertext included, is
// written by one statement.
func (r *PostgresRepository) Put(ctx context.Context, rec *models.DebtorRecord) error {
	query := `
		INSERT INTO debtors (id, name_cipher, document_cipher, document_index, creditor, state,
			vehicle_model, stage, contract_number, plate, reference_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			name_cipher = EXCLUDED.name_cipher,
			document_cipher = EXCLUDED.document_cipher,
			document_index = EXCLUDED.document_index,
			creditor = EXCLUDED.creditor,
			state = EXCLUDED.state,
			vehicle_model = EXCLUDED.vehicle_model,
			stage = EXCLUDED.stage,
			contract_number = EXCLUDED.contract_number,
			plate = EXCLUDED.plate,
			reference_date = EXCLUDED.reference_date,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.NameCipher, rec.DocumentCipher, rec.DocumentIndex, rec.Creditor, rec.State,
		rec.VehicleModel, rec.Stage, rec.ContractNumber, rec.Plate, rec.ReferenceDate)
	if err != nil {
		return dbx.Wrap("put debtor", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.DebtorRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM debtors WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Wrap("get debtor", err)
	}
	return rec, nil
}

// GetMany loads the records among ids. The IDs travel as one array
// parameter, so the list length is not bounded by the bind parameter limit.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) ([]*models.DebtorRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + selectColumns + ` FROM debtors WHERE id = ANY($1)
		ORDER BY reference_date DESC, id`

	return r.list(ctx, "get debtors", query, ids)
}

func (r *PostgresRepository) All(ctx context.Context) ([]*models.DebtorRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM debtors ORDER BY reference_date DESC, id`
	return r.list(ctx, "list debtors", query)
}

func (r *PostgresRepository) Search(ctx context.Context, q Query) ([]*models.DebtorRecord, error) {
	where, args := buildWhere(q)
	query := `SELECT ` + selectColumns + ` FROM debtors` + where + ` ORDER BY reference_date DESC, id`
	return r.list(ctx, "search debtors", query, args...)
}

// buildWhere renders q as a WHERE clause with positional parameters. Values
// always travel as parameters, never inside the SQL text.
func buildWhere(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.From != nil {
		add("reference_date >= $%d", truncateDay(*q.From))
	}
	if q.To != nil {
		add("reference_date <= $%d", truncateDay(*q.To))
	}
	if len(q.DocumentIndex) > 0 {
		add("document_index = $%d", q.DocumentIndex)
	}
	if q.Creditor != "" {
		add("creditor ILIKE '%%' || $%d || '%%'", q.Creditor)
	}
	if q.State != "" {
		add("upper(state) = upper($%d)", q.State)
	}
	if q.VehicleModel != "" {
		add("vehicle_model ILIKE '%%' || $%d || '%%'", q.VehicleModel)
	}
	if q.Stage != "" {
		add("stage = $%d", q.Stage)
	}
	if q.ContractNumber != "" {
		add("contract_number = $%d", q.ContractNumber)
	}
	if q.Plate != "" {
		add("upper(plate) = upper($%d)", q.Plate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.DebtorRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Wrap(op, err)
	}
	defer rows.Close()

	var result []*models.DebtorRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dbx.Wrap(op, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Wrap(op, err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.DebtorRecord, error) {
	var rec models.DebtorRecord
	if err := s.Scan(
		&rec.ID, &rec.NameCipher, &rec.DocumentCipher, &rec.DocumentIndex, &rec.Creditor, &rec.State,
		&rec.VehicleModel, &rec.Stage, &rec.ContractNumber, &rec.Plate, &rec.ReferenceDate,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
