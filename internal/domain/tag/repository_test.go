package tag

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

func TestRepository_GetAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, cle, valeur, created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "cle", "valeur", "created_at"}).
			AddRow("id-1", "courses", "CARREFOUR,LECLERC", now).
			AddRow("id-2", "transport", "SNCF", now))

	repo := NewRepository(mock, testLogger())
	tags, err := repo.GetAll(context.Background())

	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "courses", tags[0].Cle)
	assert.Equal(t, "SNCF", tags[1].Valeur)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, cle, valeur, created_at`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "cle", "valeur", "created_at"}))

	repo := NewRepository(mock, testLogger())
	tag, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, tag)
}

func TestRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO tags`).
		WithArgs("courses", "CARREFOUR").
		WillReturnRows(pgxmock.NewRows([]string{"id", "cle", "valeur", "created_at"}).
			AddRow("id-1", "courses", "CARREFOUR", now))

	repo := NewRepository(mock, testLogger())
	created, err := repo.Create(context.Background(), "courses", "CARREFOUR")

	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	t.Run("existing rule", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM tags`).
			WithArgs("id-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewRepository(mock, testLogger())
		found, err := repo.Delete(context.Background(), "id-1")

		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("unknown rule", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM tags`).
			WithArgs("missing").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewRepository(mock, testLogger())
		found, err := repo.Delete(context.Background(), "missing")

		require.NoError(t, err)
		assert.False(t, found)
	})
}
