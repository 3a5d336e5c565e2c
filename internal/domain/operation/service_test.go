package operation

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djoulzy/compta/internal/domain/account"
	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/internal/web"
)

type stubAccounts struct {
	compte *account.CompteWithBalance
}

func (s *stubAccounts) GetByID(_ context.Context, _ string) (*account.CompteWithBalance, error) {
	return s.compte, nil
}

type stubTags struct {
	rules []tag.Tag
}

func (s *stubTags) GetAll(_ context.Context) ([]tag.Tag, error) {
	return s.rules, nil
}

func validInput() CreateInput {
	return CreateInput{
		CompteID:      "compte-1",
		DateOperation: "15/01/2024",
		Libelle:       "CARREFOUR PARIS",
		Montant:       25.90,
		DebitCredit:   "D",
	}
}

func TestService_Create_Validation(t *testing.T) {
	accounts := &stubAccounts{compte: &account.CompteWithBalance{
		Compte: account.Compte{ID: "compte-1", Nom: "04003501208"},
	}}
	svc := NewService(nil, accounts, &stubTags{}, testLogger())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing account", func(in *CreateInput) { in.CompteID = "" }},
		{"missing date", func(in *CreateInput) { in.DateOperation = "" }},
		{"missing label", func(in *CreateInput) { in.Libelle = " " }},
		{"zero amount", func(in *CreateInput) { in.Montant = 0 }},
		{"negative amount", func(in *CreateInput) { in.Montant = -5 }},
		{"bad direction", func(in *CreateInput) { in.DebitCredit = "X" }},
		{"bad operation date", func(in *CreateInput) { in.DateOperation = "hier" }},
		{"bad value date", func(in *CreateInput) { in.DateValeur = "demain" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Create(ctx, in)

			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, web.From(err).Status)
		})
	}
}

func TestService_Create_UnknownAccount(t *testing.T) {
	svc := NewService(nil, &stubAccounts{compte: nil}, &stubTags{}, testLogger())

	_, err := svc.Create(context.Background(), validInput())

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, web.From(err).Status)
	assert.Equal(t, "Compte non trouvé", web.From(err).Message)
}

func TestService_Create_InsertsWithTags(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO operations`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow("op-1", time.Now()))

	accounts := &stubAccounts{compte: &account.CompteWithBalance{
		Compte: account.Compte{ID: "compte-1", Nom: "04003501208"},
	}}
	tags := &stubTags{rules: []tag.Tag{{Cle: "courses", Valeur: "CARREFOUR"}}}

	svc := NewService(NewRepository(mock, testLogger()), accounts, tags, testLogger())
	created, err := svc.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "op-1", created.ID)
	assert.Equal(t, "2024-01-15", created.DateOperation)
	assert.Equal(t, "04003501208", created.CompteNom)
	require.Len(t, created.Tags, 1)
	assert.Equal(t, "courses", created.Tags[0].Cle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
