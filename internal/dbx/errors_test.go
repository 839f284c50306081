package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"deadline", context.DeadlineExceeded, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection class", &pgconn.PgError{Code: "08006"}, true},
		{"wrapped pg", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "57P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap("put", tt.err)
			var pe *PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "put", pe.Op)
			assert.Equal(t, tt.transient, pe.Transient)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWrap_NilAndIdempotent(t *testing.T) {
	assert.NoError(t, Wrap("x", nil))

	first := Wrap("inner", driver.ErrBadConn)
	second := Wrap("outer", first)
	assert.Same(t, first, second)
}

func TestPersistenceError_Message(t *testing.T) {
	err := Wrap("get", errors.New("db down"))
	assert.Equal(t, "db error: get: db down", err.Error())
	assert.False(t, IsTransient(errors.New("not wrapped")))
}
