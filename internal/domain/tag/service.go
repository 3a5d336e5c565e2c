package tag

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Djoulzy/compta/pkg/metrics"
)

var tracer = otel.Tracer("compta/tag")

// RetagTarget is the slice of an operation the sweep needs to recompute
// its tags.
type RetagTarget struct {
	ID                          string
	Libelle                     string
	InformationsComplementaires string
}

// OperationStore is the operation access the reclassification sweep
// needs. Implemented by the operation repository.
type OperationStore interface {
	ListForRetag(ctx context.Context) ([]RetagTarget, error)
	UpdateTags(ctx context.Context, operationID string, tags []AppliedTag) (bool, error)
}

// Service coordinates rule changes with the reclassification sweep that
// keeps operation tag snapshots in line with the current rule set.
type Service struct {
	repo       *Repository
	operations OperationStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates a tag service
func NewService(repo *Repository, operations OperationStore, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, operations: operations, metrics: m, logger: logger}
}

// GetAll returns every rule ordered by key
func (s *Service) GetAll(ctx context.Context) ([]Tag, error) {
	return s.repo.GetAll(ctx)
}

// GetByID returns a single rule, or nil when it does not exist
func (s *Service) GetByID(ctx context.Context, id string) (*Tag, error) {
	return s.repo.GetByID(ctx, id)
}

// Create inserts a rule and reclassifies every operation
func (s *Service) Create(ctx context.Context, cle, valeur string) (*Tag, error) {
	created, err := s.repo.Create(ctx, cle, valeur)
	if err != nil {
		return nil, err
	}

	if err := s.ReclassifyAll(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// Update rewrites a rule and reclassifies every operation
func (s *Service) Update(ctx context.Context, id, cle, valeur string) (bool, error) {
	found, err := s.repo.Update(ctx, id, cle, valeur)
	if err != nil || !found {
		return found, err
	}

	if err := s.ReclassifyAll(ctx); err != nil {
		return true, err
	}

	return true, nil
}

// Delete removes a rule and reclassifies every operation
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	found, err := s.repo.Delete(ctx, id)
	if err != nil || !found {
		return found, err
	}

	if err := s.ReclassifyAll(ctx); err != nil {
		return true, err
	}

	return true, nil
}

// ReclassifyAll recomputes the tag snapshot of every operation against
// the current rule set. Runs after every rule change and on the nightly
// schedule.
func (s *Service) ReclassifyAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "tags.reclassify")
	defer span.End()

	rules, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	targets, err := s.operations.ListForRetag(ctx)
	if err != nil {
		return err
	}

	retagged := 0
	for _, target := range targets {
		tags := Apply(rules, target.Libelle, target.InformationsComplementaires)
		if _, err := s.operations.UpdateTags(ctx, target.ID, tags); err != nil {
			return fmt.Errorf("failed to retag operation %s: %w", target.ID, err)
		}
		retagged++
	}

	span.SetAttributes(
		attribute.Int("rules", len(rules)),
		attribute.Int("operations", retagged),
	)

	if s.metrics != nil {
		s.metrics.ReclassificationRuns.Inc()
		s.metrics.OperationsRetagged.Add(float64(retagged))
	}

	s.logger.Info("reclassification sweep finished",
		slog.Int("rules", len(rules)),
		slog.Int("operations", retagged))

	return nil
}
