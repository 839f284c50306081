package vault

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/cryptox"
	"github.com/dmitrijs2005/debtorkeeper/internal/dbx"
	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/debtors"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/repomanager"
)

// --- helpers ---

type fakeRepoManager struct {
	repo debtors.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Debtors(db dbx.DBTX) debtors.Repository     { return m.repo }

type failingRepo struct {
	debtors.Repository
	err error
}

func (f *failingRepo) Put(context.Context, *models.DebtorRecord) error             { return f.err }
func (f *failingRepo) All(context.Context) ([]*models.DebtorRecord, error)         { return nil, f.err }
func (f *failingRepo) Get(context.Context, string) (*models.DebtorRecord, error)   { return nil, f.err }
func (f *failingRepo) Search(context.Context, debtors.Query) ([]*models.DebtorRecord, error) {
	return nil, f.err
}

type failingCodec struct {
	FieldCodec
}

func (failingCodec) EncryptString(string) ([]byte, error) {
	return nil, errors.New("entropy source unavailable")
}

func testCodec(t *testing.T, b byte) *cryptox.Codec {
	t.Helper()
	c, err := cryptox.NewCodec(bytes.Repeat([]byte{b}, cryptox.KeySize))
	require.NoError(t, err)
	return c
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newVault(t *testing.T, db *sql.DB, repo debtors.Repository, codec FieldCodec) *EncryptedRepository {
	t.Helper()
	return NewEncryptedRepository(db, &fakeRepoManager{repo: repo}, codec, logging.Nop{})
}

func sampleDebtor(i int) *models.Debtor {
	return &models.Debtor{
		Name:           fmt.Sprintf("Maria da Silva %d", i),
		DocumentID:     fmt.Sprintf("123.456.789-%02d", i),
		Creditor:       "Banco X",
		State:          "sp",
		VehicleModel:   "Onix",
		Stage:          "notificado",
		ContractNumber: fmt.Sprintf("C-%d", i),
		Plate:          "ABC1D23",
		ReferenceDate:  time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
	}
}

func testID(i int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
}

// corrupt flips a bit in the stored name ciphertext of id.
func corrupt(t *testing.T, repo debtors.Repository, id string) {
	t.Helper()
	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	rec.NameCipher[len(rec.NameCipher)-1] ^= 0x01
	require.NoError(t, repo.Put(context.Background(), rec))
}

// seed stores n debtors straight into repo, outside any transaction.
func seed(t *testing.T, repo debtors.Repository, codec FieldCodec, n int) []string {
	t.Helper()
	v := newVault(t, nil, repo, codec)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rec, err := v.seal(testID(i), sampleDebtor(i))
		require.NoError(t, err)
		require.NoError(t, repo.Put(context.Background(), rec))
		ids = append(ids, rec.ID)
	}
	return ids
}

// --- tests ---

func TestSaveEncrypted_RoundTrip(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := debtors.NewMemoryRepository()
	v := newVault(t, db, repo, testCodec(t, 1))

	d := sampleDebtor(1)
	id, err := v.SaveEncrypted(context.Background(), d)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, d.ID)
	require.NoError(t, mock.ExpectationsWereMet())

	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.NameCipher), "Maria")
	assert.NotContains(t, string(rec.DocumentCipher), "123")
	assert.Equal(t, "SP", rec.State)

	got, err := v.FindDecryptedByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, d.DocumentID, got.DocumentID)
	assert.Equal(t, d.ContractNumber, got.ContractNumber)
}

func TestSaveEncrypted_SealFailureWritesNothing(t *testing.T) {
	db, mock := newSQLMock(t)

	repo := debtors.NewMemoryRepository()
	v := newVault(t, db, repo, failingCodec{FieldCodec: testCodec(t, 1)})

	_, err := v.SaveEncrypted(context.Background(), sampleDebtor(1))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Maria")

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction must be opened")
}

func TestSaveEncrypted_PutErrorRollsBack(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := dbx.Wrap("put debtor", errors.New("disk full"))
	v := newVault(t, db, &failingRepo{err: boom}, testCodec(t, 1))

	_, err := v.SaveEncrypted(context.Background(), sampleDebtor(1))
	require.Error(t, err)

	var pe *dbx.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEncrypted_Postgres(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO debtors")).
		WithArgs(testID(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "Banco X", "SP",
			"Onix", "notificado", "C-1", "ABC1D23", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v := NewEncryptedRepository(db, repomanager.NewPostgresRepositoryManager(), testCodec(t, 1), logging.Nop{})

	d := sampleDebtor(1)
	d.ID = testID(1)
	id, err := v.SaveEncrypted(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, testID(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEncrypted_RejectsMalformedID(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := debtors.NewMemoryRepository()
	v := newVault(t, db, repo, testCodec(t, 1))

	d := sampleDebtor(1)
	d.ID = "d-1"
	_, err := v.SaveEncrypted(context.Background(), d)
	require.ErrorIs(t, err, ErrInvalidID)

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction must be opened")
}

func TestFindDecryptedByID_NotFound(t *testing.T) {
	v := newVault(t, nil, debtors.NewMemoryRepository(), testCodec(t, 1))

	_, err := v.FindDecryptedByID(context.Background(), testID(9))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, cryptox.ErrDecryption)
}

func TestFindDecryptedByID_MalformedIDIsNotFound(t *testing.T) {
	v := newVault(t, nil, &failingRepo{err: errors.New("storage must not be queried")}, testCodec(t, 1))

	for _, id := range []string{"missing", "", "d-1", "00000000-0000-4000-8000"} {
		_, err := v.FindDecryptedByID(context.Background(), id)
		assert.ErrorIs(t, err, common.ErrorNotFound, id)
	}
}

func TestFindDecryptedByID_WrongKey(t *testing.T) {
	repo := debtors.NewMemoryRepository()
	ids := seed(t, repo, testCodec(t, 1), 1)

	v := newVault(t, nil, repo, testCodec(t, 2))
	_, err := v.FindDecryptedByID(context.Background(), ids[0])
	require.ErrorIs(t, err, cryptox.ErrDecryption)
	assert.NotErrorIs(t, err, common.ErrorNotFound)

	var de *cryptox.DecryptionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ids[0], de.RecordID)
	assert.Equal(t, "name", de.Field)
	assert.NotContains(t, err.Error(), "Maria")
}

func TestFindDecryptedByID_StorageError(t *testing.T) {
	boom := dbx.Wrap("get debtor", errors.New("connection reset"))
	v := newVault(t, nil, &failingRepo{err: boom}, testCodec(t, 1))

	_, err := v.FindDecryptedByID(context.Background(), testID(1))
	var pe *dbx.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestFindAllDecrypted_SkipsCorrupted(t *testing.T) {
	const n = 5
	codec := testCodec(t, 1)
	repo := debtors.NewMemoryRepository()
	ids := seed(t, repo, codec, n)
	corrupt(t, repo, ids[2])

	v := newVault(t, nil, repo, codec)
	before := testutil.ToFloat64(decryptFailuresTotal.WithLabelValues("batch"))
	out, tally, err := v.FindAllDecrypted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(decryptFailuresTotal.WithLabelValues("batch")))

	assert.Len(t, out, n-1)
	require.NotNil(t, tally)
	assert.Equal(t, 1, tally.Count)
	assert.Equal(t, []string{ids[2]}, tally.IDs)
	for _, d := range out {
		assert.NotEqual(t, ids[2], d.ID)
		assert.Contains(t, d.Name, "Maria")
	}
}

func TestFindAllDecrypted_StorageError(t *testing.T) {
	v := newVault(t, nil, &failingRepo{err: errors.New("down")}, testCodec(t, 1))
	_, _, err := v.FindAllDecrypted(context.Background())
	assert.Error(t, err)
}

func TestSearch_ByDocumentUsesBlindIndex(t *testing.T) {
	codec := testCodec(t, 1)
	repo := debtors.NewMemoryRepository()
	seed(t, repo, codec, 3)
	v := newVault(t, nil, repo, codec)

	set := filters.SearchFilterSet{DocumentID: filters.Str("12345678901")}
	valid, err := filters.Validate(set, filters.ProfileSearch)
	require.NoError(t, err)

	out, tally, err := v.Search(context.Background(), valid)
	require.NoError(t, err)
	assert.Zero(t, tally.Count)
	require.Len(t, out, 1)
	assert.Equal(t, "123.456.789-01", out[0].DocumentID)
}

func TestSearch_Filters(t *testing.T) {
	codec := testCodec(t, 1)
	repo := debtors.NewMemoryRepository()
	ids := seed(t, repo, codec, 5)
	v := newVault(t, nil, repo, codec)

	valid, err := filters.Validate(filters.SearchFilterSet{
		DateStart: filters.Date(2024, 1, 2),
		DateEnd:   filters.Date(2024, 1, 3),
		Creditor:  filters.Str("banco"),
		State:     filters.Str("sp"),
	}, filters.ProfileDirect)
	require.NoError(t, err)

	out, _, err := v.Search(context.Background(), valid)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, ids[2], out[0].ID)
	assert.Equal(t, ids[1], out[1].ID)
}

func TestSearch_RejectsZeroValidated(t *testing.T) {
	v := newVault(t, nil, debtors.NewMemoryRepository(), testCodec(t, 1))
	_, _, err := v.Search(context.Background(), filters.Validated{})
	assert.ErrorIs(t, err, filters.ErrValidation)
}

func TestFindManyDecrypted(t *testing.T) {
	codec := testCodec(t, 1)
	repo := debtors.NewMemoryRepository()
	ids := seed(t, repo, codec, 3)
	corrupt(t, repo, ids[0])
	v := newVault(t, nil, repo, codec)

	out, tally, err := v.FindManyDecrypted(context.Background(), []string{ids[0], ids[1], testID(7), "not-a-uuid"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ids[1], out[0].ID)
	assert.Equal(t, 1, tally.Count)

	out, tally, err = v.FindManyDecrypted(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, tally.Count)
}

func TestScopeKey(t *testing.T) {
	v1 := newVault(t, nil, debtors.NewMemoryRepository(), testCodec(t, 1))
	v2 := newVault(t, nil, debtors.NewMemoryRepository(), testCodec(t, 2))

	a, err := filters.Validate(filters.SearchFilterSet{DocumentID: filters.Str("123.456.789-01")}, filters.ProfileSearch)
	require.NoError(t, err)
	b, err := filters.Validate(filters.SearchFilterSet{DocumentID: filters.Str("12345678901")}, filters.ProfileSearch)
	require.NoError(t, err)

	assert.Equal(t, v1.ScopeKey(a), v1.ScopeKey(b))
	assert.NotContains(t, v1.ScopeKey(a), "12345678901")
	assert.NotEqual(t, v1.ScopeKey(a), v2.ScopeKey(a), "scope depends on the index key")
}
