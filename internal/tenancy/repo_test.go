package tenancy_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// null is a SQL NULL of the given type, decoded the way pgx decodes it.
type null uint32

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	types := pgtype.NewMap()
	for i, d := range dest {
		if oid, ok := r.values[i].(null); ok {
			if err := types.Scan(uint32(oid), pgtype.TextFormatCode, nil, d); err != nil {
				return err
			}
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type rowQuerier struct {
	row  fakeRow
	args []any
}

func (q *rowQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestLoadCompanyWithNullableColumnsUnset(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	q := &rowQuerier{row: fakeRow{values: []any{
		id, "Acme", "active", null(pgtype.TextOID), null(pgtype.TextOID), null(pgtype.TimestamptzOID), created, created,
	}}}

	rec, err := tenancy.LoadCompany(context.Background(), q, id)
	require.NoError(t, err)
	assert.Equal(t, []any{id}, q.args)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, tenancy.CompanyActive, rec.Status)
	assert.Empty(t, rec.PlanID)
	assert.Empty(t, rec.SuspendedReason)
	assert.Nil(t, rec.SuspendedAt)
}

func TestLoadCompanySuspendedWithPlan(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	q := &rowQuerier{row: fakeRow{values: []any{
		id, "Globex", "suspended",
		pgtype.Text{String: "enterprise", Valid: true},
		pgtype.Text{String: "unpaid invoice", Valid: true},
		pgtype.Timestamptz{Time: at, Valid: true},
		at, at,
	}}}

	rec, err := tenancy.LoadCompany(context.Background(), q, id)
	require.NoError(t, err)
	assert.True(t, rec.Suspended())
	assert.Equal(t, "enterprise", rec.PlanID)
	assert.Equal(t, "unpaid invoice", rec.SuspendedReason)
	require.NotNil(t, rec.SuspendedAt)
	assert.Equal(t, at, *rec.SuspendedAt)
}

func TestLoadCompanyMissing(t *testing.T) {
	q := &rowQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := tenancy.LoadCompany(context.Background(), q, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
