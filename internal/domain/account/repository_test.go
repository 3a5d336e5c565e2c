package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func balanceRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "nom", "description", "label", "solde_anterieur",
		"created_at", "updated_at",
		"nombre_operations", "total_debits", "total_credits",
	})
}

func TestRepository_GetAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT c.id, c.nom`).
		WillReturnRows(balanceRows().
			AddRow("c1", "04003501208", "", "", 100.0, now, now, int64(3), 50.0, 200.0).
			AddRow("c2", "99988877766", "", "", 0.0, now, now, int64(0), 0.0, 0.0))

	repo := NewRepository(mock, testLogger())
	comptes, err := repo.GetAll(context.Background())

	require.NoError(t, err)
	require.Len(t, comptes, 2)

	first := comptes[0]
	assert.Equal(t, "04003501208", first.Nom)
	assert.Equal(t, int64(3), first.NombreOperations)
	assert.Equal(t, 150.0, first.SoldeOperations)
	assert.Equal(t, 250.0, first.SoldeTotal)

	second := comptes[1]
	assert.Equal(t, 0.0, second.SoldeOperations)
	assert.Equal(t, 0.0, second.SoldeTotal)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT c.id, c.nom`).
		WithArgs("missing").
		WillReturnRows(balanceRows())

	repo := NewRepository(mock, testLogger())
	compte, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, compte)
}

func TestRepository_GetByNom(t *testing.T) {
	t.Run("existing account", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now()
		mock.ExpectQuery(`SELECT id, nom, description`).
			WithArgs("04003501208").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "nom", "description", "label", "solde_anterieur", "created_at", "updated_at",
			}).AddRow("c1", "04003501208", "desc", "", 0.0, now, now))

		repo := NewRepository(mock, testLogger())
		compte, err := repo.GetByNom(context.Background(), "04003501208")

		require.NoError(t, err)
		require.NotNil(t, compte)
		assert.Equal(t, "c1", compte.ID)
	})

	t.Run("unknown name is nil without error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, nom, description`).
			WithArgs("000").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "nom", "description", "label", "solde_anterieur", "created_at", "updated_at",
			}))

		repo := NewRepository(mock, testLogger())
		compte, err := repo.GetByNom(context.Background(), "000")

		require.NoError(t, err)
		assert.Nil(t, compte)
	})
}

func TestRepository_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE comptes`).
		WithArgs("nouveau nom", "", "", 0.0, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock, testLogger())
	found, err := repo.Update(context.Background(), "missing", "nouveau nom", "", "", 0)

	require.NoError(t, err)
	assert.False(t, found)
}
