// Package service runs the CSV import pipeline: validation, duplicate
// detection, file storage, dialect detection and the per-row insert loop.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Djoulzy/compta/internal/domain/account"
	"github.com/Djoulzy/compta/internal/domain/import/dialect"
	"github.com/Djoulzy/compta/internal/domain/import/parser"
	importrepo "github.com/Djoulzy/compta/internal/domain/import/repository"
	"github.com/Djoulzy/compta/internal/domain/operation"
	"github.com/Djoulzy/compta/internal/domain/tag"
	"github.com/Djoulzy/compta/pkg/metrics"
	"github.com/Djoulzy/compta/pkg/storage"
)

var tracer = otel.Tracer("compta/import")

// ErrEmptyFile rejects zero-byte uploads
var ErrEmptyFile = errors.New("uploaded file is empty")

// ErrNotCSV rejects uploads without a .csv extension
var ErrNotCSV = errors.New("uploaded file is not a CSV")

// DuplicateError reports that the same file bytes were already imported
type DuplicateError struct {
	Existing *importrepo.Import
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("file already imported as %s", e.Existing.ID)
}

// Stats summarizes one import run. Total counts the data rows that were
// attempted; structurally rejected rows are reported in Errors but not
// counted. NouveauxComptes and ComptesConcernes list account numbers so
// clients can enumerate them, in first-seen order.
type Stats struct {
	ImportID         string   `json:"import_id"`
	Total            int      `json:"total"`
	Inserted         int      `json:"inserted"`
	Errors           []string `json:"errors"`
	NouveauxComptes  []string `json:"nouveaux_comptes"`
	ComptesConcernes []string `json:"comptes_concernes"`
}

// ImportStore is the import record access the pipeline needs
type ImportStore interface {
	Create(ctx context.Context, nomFichier, nomFichierOriginal string, tailleFichier int64, hashFichier string) (*importrepo.Import, error)
	FindByHash(ctx context.Context, hash string) (*importrepo.Import, error)
	UpdateStats(ctx context.Context, id, statut string, nombreOperations, nombreErreurs int) error
}

// AccountStore resolves and auto-creates accounts during an import
type AccountStore interface {
	GetByNom(ctx context.Context, nom string) (*account.Compte, error)
	Create(ctx context.Context, nom, description, label string, soldeAnterieur float64) (*account.Compte, error)
}

// OperationStore inserts the parsed rows
type OperationStore interface {
	Create(ctx context.Context, o *operation.Operation) (*operation.Operation, error)
}

// TagStore provides the rule set applied to imported rows
type TagStore interface {
	GetAll(ctx context.Context) ([]tag.Tag, error)
}

// Pipeline is the import service
type Pipeline struct {
	imports    ImportStore
	accounts   AccountStore
	operations OperationStore
	tags       TagStore
	files      storage.Storage
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewPipeline creates an import pipeline
func NewPipeline(imports ImportStore, accounts AccountStore, operations OperationStore, tags TagStore, files storage.Storage, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		imports:    imports,
		accounts:   accounts,
		operations: operations,
		tags:       tags,
		files:      files,
		metrics:    m,
		logger:     logger,
	}
}

// Run imports one uploaded statement file
func (p *Pipeline) Run(ctx context.Context, originalName string, data []byte) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "import.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("fichier", originalName),
		attribute.Int("taille", len(data)),
	)

	if strings.ToLower(filepath.Ext(originalName)) != ".csv" {
		return nil, ErrNotCSV
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	digest := sha256.Sum256(data)
	hash := hex.EncodeToString(digest[:])

	existing, err := p.imports.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.countDuplicate()
		return nil, &DuplicateError{Existing: existing}
	}

	stored, err := p.files.Save(ctx, originalName, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	imp, err := p.imports.Create(ctx, stored.Name, originalName, stored.Size, hash)
	if errors.Is(err, importrepo.ErrDuplicateHash) {
		// Lost the race against a concurrent upload of the same bytes.
		p.countDuplicate()
		p.removeStored(ctx, stored.Name)
		winner, findErr := p.imports.FindByHash(ctx, hash)
		if findErr == nil && winner != nil {
			return nil, &DuplicateError{Existing: winner}
		}
		return nil, err
	}
	if err != nil {
		p.removeStored(ctx, stored.Name)
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.ImportsStarted.Inc()
	}

	stats, err := p.processRows(ctx, imp.ID, originalName, data)
	if err != nil {
		// The import record exists but its rows cannot be processed.
		if updateErr := p.imports.UpdateStats(ctx, imp.ID, importrepo.StatusFailed, 0, 0); updateErr != nil {
			p.logger.Error("failed to mark import as failed",
				slog.String("import_id", imp.ID), slog.Any("error", updateErr))
		}
		p.removeStored(ctx, stored.Name)
		p.countFinished(false)
		return nil, err
	}

	statut := importrepo.StatusCompleted
	if stats.Inserted == 0 && len(stats.Errors) > 0 {
		statut = importrepo.StatusFailed
	}
	if err := p.imports.UpdateStats(ctx, imp.ID, statut, stats.Inserted, len(stats.Errors)); err != nil {
		return nil, err
	}
	p.countFinished(statut == importrepo.StatusCompleted)

	span.SetAttributes(
		attribute.String("statut", statut),
		attribute.Int("inserted", stats.Inserted),
		attribute.Int("errors", len(stats.Errors)),
	)

	p.logger.Info("import finished",
		slog.String("import_id", imp.ID),
		slog.String("statut", statut),
		slog.Int("total", stats.Total),
		slog.Int("inserted", stats.Inserted),
		slog.Int("errors", len(stats.Errors)))

	return stats, nil
}

// removeStored drops a stored upload that no longer has a usable import
// record; best effort.
func (p *Pipeline) removeStored(ctx context.Context, name string) {
	if err := p.files.Remove(ctx, name); err != nil {
		p.logger.Warn("failed to remove stored upload",
			slog.String("fichier", name), slog.Any("error", err))
	}
}

func (p *Pipeline) countDuplicate() {
	if p.metrics != nil {
		p.metrics.ImportsDuplicate.Inc()
	}
}

func (p *Pipeline) countFinished(completed bool) {
	if p.metrics == nil {
		return
	}
	if completed {
		p.metrics.ImportsCompleted.Inc()
	} else {
		p.metrics.ImportsFailed.Inc()
	}
}

// processRows detects the layout and runs the row loop
func (p *Pipeline) processRows(ctx context.Context, importID, originalName string, data []byte) (*Stats, error) {
	buf := bytes.NewReader(data)
	headerLine, err := readLine(buf)
	if err != nil {
		return nil, dialect.ErrUnknownFormat
	}

	d, err := dialect.Detect(headerLine)
	if err != nil {
		return nil, err
	}

	// The modern layout names neither account nor card status per row;
	// both come from the filename.
	fileInfo, fileInfoErr := parser.ClassifyFilename(originalName)

	rules, err := p.tags.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ImportID:         importID,
		Errors:           make([]string, 0),
		NouveauxComptes:  make([]string, 0),
		ComptesConcernes: make([]string, 0),
	}
	comptes := make(map[string]*account.Compte)
	concernes := make(map[string]struct{})

	reader := dialect.NewReader(buf, d)

	for lineNum := 2; ; lineNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Structural rejections stay out of the total, like short rows.
			p.addRowError(stats, fmt.Sprintf("Ligne %d: Ligne CSV illisible", lineNum))
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		row, rowErr := parser.ParseRow(d, record, lineNum)
		if rowErr != nil {
			if rowErr.Kind != parser.KindColumnCount {
				stats.Total++
			}
			p.addRowError(stats, rowErr.Error())
			continue
		}
		stats.Total++

		numero := row.CompteNumero
		cb := false
		if row.CB != nil {
			cb = *row.CB
		}
		fichier := row.Fichier

		if d.Kind == dialect.KindModern {
			if fileInfoErr != nil {
				p.addRowError(stats, fmt.Sprintf("Ligne %d: Impossible d'extraire le numéro de compte du nom de fichier", lineNum))
				continue
			}
			numero = fileInfo.CompteNumero
			cb = fileInfo.CB
			fichier = filepath.Base(originalName)
		} else if numero == "" {
			p.addRowError(stats, fmt.Sprintf("Ligne %d: Numéro de compte manquant", lineNum))
			continue
		}

		compte, err := p.resolveAccount(ctx, comptes, numero, originalName, stats)
		if err != nil {
			p.addRowError(stats, fmt.Sprintf("Ligne %d: Erreur lors de la résolution du compte: %v", lineNum, err))
			continue
		}
		if _, seen := concernes[numero]; !seen {
			concernes[numero] = struct{}{}
			stats.ComptesConcernes = append(stats.ComptesConcernes, numero)
		}

		op := &operation.Operation{
			Fichier:                     fichier,
			ImportID:                    &importID,
			CompteID:                    compte.ID,
			DateOperation:               row.DateOperation,
			DateValeur:                  row.DateValeur,
			Libelle:                     row.Libelle,
			Montant:                     row.Montant,
			DebitCredit:                 row.DebitCredit,
			CB:                          cb,
			Tags:                        tag.Apply(rules, row.Libelle, row.InformationsComplementaires),
			Reference:                   row.Reference,
			InformationsComplementaires: row.InformationsComplementaires,
			TypeOperation:               row.TypeOperation,
		}

		if _, err := p.operations.Create(ctx, op); err != nil {
			p.addRowError(stats, fmt.Sprintf("Ligne %d: Erreur lors de l'insertion: %v", lineNum, err))
			continue
		}

		stats.Inserted++
		if p.metrics != nil {
			p.metrics.RowsInserted.Inc()
		}
	}

	return stats, nil
}

func (p *Pipeline) addRowError(stats *Stats, message string) {
	stats.Errors = append(stats.Errors, message)
	if p.metrics != nil {
		p.metrics.RowErrors.Inc()
	}
}

// resolveAccount finds an account by number, creating it on first sight
func (p *Pipeline) resolveAccount(ctx context.Context, cache map[string]*account.Compte, numero, originalName string, stats *Stats) (*account.Compte, error) {
	if compte, ok := cache[numero]; ok {
		return compte, nil
	}

	compte, err := p.accounts.GetByNom(ctx, numero)
	if err != nil {
		return nil, err
	}
	if compte == nil {
		description := "Créé automatiquement lors de l'import - " + originalName
		compte, err = p.accounts.Create(ctx, numero, description, "", 0)
		if err != nil {
			return nil, err
		}
		stats.NouveauxComptes = append(stats.NouveauxComptes, numero)
		p.logger.Info("account auto-created",
			slog.String("nom", numero), slog.String("fichier", originalName))
	}

	cache[numero] = compte
	return compte, nil
}

// readLine reads up to the first newline, leaving the reader positioned
// on the next line.
func readLine(r *bytes.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if b == '\n' {
			break
		}
		sb.WriteByte(b)
	}

	return strings.TrimRight(sb.String(), "\r"), nil
}
