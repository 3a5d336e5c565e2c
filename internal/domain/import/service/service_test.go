package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djoulzy/compta/internal/domain/account"
	importrepo "github.com/Djoulzy/compta/internal/domain/import/repository"
	"github.com/Djoulzy/compta/internal/domain/operation"
	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/pkg/storage"
)

const modernHeader = "Date de comptabilisation;Libelle simplifie;Libelle operation;Reference;Informations complementaires;Type operation;Categorie;Sous categorie;Debit;Credit;Date operation;Date de valeur;Pointage operation"

const legacyHeader = "Fichier,Compte,Date opération,Date valeur,Libellé,Montant,Débit/Crédit,CB"

type fakeImports struct {
	byHash     map[string]*importrepo.Import
	created    []*importrepo.Import
	lastStatut string
	lastOps    int
	lastErrs   int
	createErr  error

	// raceWinner is returned by FindByHash after the first lookup, to
	// simulate a concurrent import of the same bytes.
	raceWinner *importrepo.Import
	findCalls  int
}

func newFakeImports() *fakeImports {
	return &fakeImports{byHash: make(map[string]*importrepo.Import)}
}

func (f *fakeImports) Create(_ context.Context, nomFichier, nomFichierOriginal string, taille int64, hash string) (*importrepo.Import, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	imp := &importrepo.Import{
		ID:                 fmt.Sprintf("import-%d", len(f.created)+1),
		NomFichier:         nomFichier,
		NomFichierOriginal: nomFichierOriginal,
		TailleFichier:      taille,
		HashFichier:        hash,
		Statut:             importrepo.StatusInProgress,
	}
	f.byHash[hash] = imp
	f.created = append(f.created, imp)
	return imp, nil
}

func (f *fakeImports) FindByHash(_ context.Context, hash string) (*importrepo.Import, error) {
	f.findCalls++
	if f.raceWinner != nil && f.findCalls > 1 {
		return f.raceWinner, nil
	}
	return f.byHash[hash], nil
}

func (f *fakeImports) UpdateStats(_ context.Context, id, statut string, ops, errs int) error {
	f.lastStatut = statut
	f.lastOps = ops
	f.lastErrs = errs
	return nil
}

type fakeAccounts struct {
	byNom   map[string]*account.Compte
	created []string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byNom: make(map[string]*account.Compte)}
}

func (f *fakeAccounts) GetByNom(_ context.Context, nom string) (*account.Compte, error) {
	return f.byNom[nom], nil
}

func (f *fakeAccounts) Create(_ context.Context, nom, description, label string, solde float64) (*account.Compte, error) {
	c := &account.Compte{
		ID:          fmt.Sprintf("compte-%d", len(f.byNom)+1),
		Nom:         nom,
		Description: description,
	}
	f.byNom[nom] = c
	f.created = append(f.created, nom)
	return c, nil
}

type fakeOperations struct {
	inserted      []*operation.Operation
	failOnLibelle string
}

func (f *fakeOperations) Create(_ context.Context, o *operation.Operation) (*operation.Operation, error) {
	if f.failOnLibelle != "" && o.Libelle == f.failOnLibelle {
		return nil, fmt.Errorf("insert rejected")
	}
	f.inserted = append(f.inserted, o)
	return o, nil
}

type fakeTags struct {
	rules []tag.Tag
}

func (f *fakeTags) GetAll(_ context.Context) ([]tag.Tag, error) {
	return f.rules, nil
}

type fakeStorage struct {
	saved   []string
	removed []string
}

func (f *fakeStorage) Save(_ context.Context, originalName string, r io.Reader) (*storage.StoredFile, error) {
	size, _ := io.Copy(io.Discard, r)
	name := fmt.Sprintf("stored-%d.csv", len(f.saved)+1)
	f.saved = append(f.saved, name)
	return &storage.StoredFile{Name: name, Size: size}, nil
}

func (f *fakeStorage) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStorage) Remove(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type pipelineFixture struct {
	pipeline   *Pipeline
	imports    *fakeImports
	accounts   *fakeAccounts
	operations *fakeOperations
	tags       *fakeTags
	storage    *fakeStorage
}

func newFixture() *pipelineFixture {
	f := &pipelineFixture{
		imports:    newFakeImports(),
		accounts:   newFakeAccounts(),
		operations: &fakeOperations{},
		tags:       &fakeTags{},
		storage:    &fakeStorage{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.pipeline = NewPipeline(f.imports, f.accounts, f.operations, f.tags, f.storage, nil, logger)
	return f
}

func modernFile(rows ...string) []byte {
	return []byte(modernHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func legacyFile(rows ...string) []byte {
	return []byte(legacyHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("imports a modern card statement", func(t *testing.T) {
		f := newFixture()
		f.tags.rules = []tag.Tag{{Cle: "courses", Valeur: "CARREFOUR,LECLERC"}}

		data := modernFile(
			"15/01/2024;CARREFOUR;CARREFOUR PARIS 15;REF1;PAIEMENT CB;CARTE;;;-25,90;0,00;15/01/2024;16/01/2024;",
			"31/01/2024;SALAIRE;VIREMENT SALAIRE;;;VIREMENT;;;0,00;1500,00;31/01/2024;;",
		)

		stats, err := f.pipeline.Run(ctx, "carte_6106_04003501208_20240115.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 2, stats.Inserted)
		assert.Empty(t, stats.Errors)
		assert.Equal(t, []string{"04003501208"}, stats.NouveauxComptes)
		assert.Equal(t, []string{"04003501208"}, stats.ComptesConcernes)

		require.Len(t, f.accounts.created, 1)
		assert.Equal(t, "04003501208", f.accounts.created[0])
		assert.Contains(t, f.accounts.byNom["04003501208"].Description,
			"Créé automatiquement lors de l'import - carte_6106_04003501208_20240115.csv")

		require.Len(t, f.operations.inserted, 2)
		first := f.operations.inserted[0]
		assert.True(t, first.CB)
		assert.Equal(t, "carte_6106_04003501208_20240115.csv", first.Fichier)
		assert.Equal(t, "2024-01-15", first.DateOperation)
		assert.Equal(t, "D", first.DebitCredit)
		require.Len(t, first.Tags, 1)
		assert.Equal(t, "courses", first.Tags[0].Cle)

		second := f.operations.inserted[1]
		assert.Equal(t, "C", second.DebitCredit)
		assert.Empty(t, second.Tags)

		assert.Equal(t, importrepo.StatusCompleted, f.imports.lastStatut)
		assert.Equal(t, 2, f.imports.lastOps)
		assert.Equal(t, 0, f.imports.lastErrs)
	})

	t.Run("imports a legacy consolidated file", func(t *testing.T) {
		f := newFixture()

		data := legacyFile(
			"releve.csv,04003501208,2024-01-15,2024-01-16,CARREFOUR PARIS,25.90,Débit,oui",
			"releve.csv,99988877766,2024-01-20,,VIREMENT,100.00,Crédit,non",
		)

		stats, err := f.pipeline.Run(ctx, "export_consolide.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 2, stats.Inserted)
		assert.Equal(t, []string{"04003501208", "99988877766"}, stats.NouveauxComptes)
		assert.Equal(t, []string{"04003501208", "99988877766"}, stats.ComptesConcernes)

		require.Len(t, f.operations.inserted, 2)
		assert.Equal(t, "releve.csv", f.operations.inserted[0].Fichier)
		assert.True(t, f.operations.inserted[0].CB)
		assert.False(t, f.operations.inserted[1].CB)
	})

	t.Run("rejects a non-CSV extension", func(t *testing.T) {
		f := newFixture()

		_, err := f.pipeline.Run(ctx, "releve.xlsx", []byte("data"))

		assert.ErrorIs(t, err, ErrNotCSV)
		assert.Empty(t, f.storage.saved)
	})

	t.Run("rejects an empty file", func(t *testing.T) {
		f := newFixture()

		_, err := f.pipeline.Run(ctx, "releve.csv", nil)

		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("rejects a file whose bytes were already imported", func(t *testing.T) {
		f := newFixture()
		data := legacyFile("releve.csv,123,2024-01-15,,X,1.00,D,")

		_, err := f.pipeline.Run(ctx, "premier.csv", data)
		require.NoError(t, err)

		_, err = f.pipeline.Run(ctx, "deuxieme.csv", data)

		var dup *DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "import-1", dup.Existing.ID)
		assert.Len(t, f.storage.saved, 1)
	})

	t.Run("maps a create race to the duplicate error", func(t *testing.T) {
		f := newFixture()
		data := legacyFile("releve.csv,123,2024-01-15,,X,1.00,D,")

		f.imports.createErr = importrepo.ErrDuplicateHash
		f.imports.raceWinner = &importrepo.Import{ID: "import-42"}

		_, err := f.pipeline.Run(ctx, "course.csv", data)

		var dup *DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "import-42", dup.Existing.ID)
		assert.Equal(t, f.storage.saved, f.storage.removed)
	})

	t.Run("fails the import on an unknown header", func(t *testing.T) {
		f := newFixture()

		_, err := f.pipeline.Run(ctx, "releve.csv", []byte("Date,Montant\n01/01/2024,10\n"))

		require.Error(t, err)
		assert.Equal(t, importrepo.StatusFailed, f.imports.lastStatut)
		assert.Equal(t, f.storage.saved, f.storage.removed)
	})

	t.Run("keeps going after a row error", func(t *testing.T) {
		f := newFixture()

		data := legacyFile(
			"releve.csv,123,2024-01-15,,OK,1.00,D,",
			"releve.csv,123,pas une date,,KO,1.00,D,",
			"releve.csv,123,2024-01-16,,OK AUSSI,2.00,C,",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Inserted)
		require.Len(t, stats.Errors, 1)
		assert.Contains(t, stats.Errors[0], "Ligne 3")
		assert.Equal(t, importrepo.StatusCompleted, f.imports.lastStatut)
	})

	t.Run("short rows are reported but not counted", func(t *testing.T) {
		f := newFixture()

		data := legacyFile(
			"releve.csv,123,2024-01-15,,OK,1.00,D,",
			"a,b,c",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.Inserted)
		require.Len(t, stats.Errors, 1)
		assert.Contains(t, stats.Errors[0], "Nombre de colonnes insuffisant")
	})

	t.Run("fails when every row errors", func(t *testing.T) {
		f := newFixture()

		data := legacyFile(
			"releve.csv,123,pas une date,,KO,1.00,D,",
			"releve.csv,123,2024-01-15,,KO,pas un montant,D,",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Inserted)
		assert.Len(t, stats.Errors, 2)
		assert.Equal(t, importrepo.StatusFailed, f.imports.lastStatut)
	})

	t.Run("modern rows error when the filename has no account number", func(t *testing.T) {
		f := newFixture()

		data := modernFile(
			"15/01/2024;;ACHAT;;;;;;-10,00;;15/01/2024;;",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Inserted)
		require.Len(t, stats.Errors, 1)
		assert.Contains(t, stats.Errors[0], "Impossible d'extraire le numéro de compte du nom de fichier")
		assert.Equal(t, importrepo.StatusFailed, f.imports.lastStatut)
	})

	t.Run("an insert failure counts as a row error", func(t *testing.T) {
		f := newFixture()
		f.operations.failOnLibelle = "REJET"

		data := legacyFile(
			"releve.csv,123,2024-01-15,,OK,1.00,D,",
			"releve.csv,123,2024-01-16,,REJET,2.00,D,",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.Inserted)
		require.Len(t, stats.Errors, 1)
		assert.Contains(t, stats.Errors[0], "Erreur lors de l'insertion")
	})

	t.Run("reuses an existing account without creating it again", func(t *testing.T) {
		f := newFixture()
		f.accounts.byNom["123"] = &account.Compte{ID: "compte-existant", Nom: "123"}

		data := legacyFile(
			"releve.csv,123,2024-01-15,,A,1.00,D,",
			"releve.csv,123,2024-01-16,,B,2.00,C,",
		)

		stats, err := f.pipeline.Run(ctx, "releve.csv", data)

		require.NoError(t, err)
		assert.Empty(t, stats.NouveauxComptes)
		assert.Equal(t, []string{"123"}, stats.ComptesConcernes)
		assert.Empty(t, f.accounts.created)
		assert.Equal(t, "compte-existant", f.operations.inserted[0].CompteID)
	})
}
