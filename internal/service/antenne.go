package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/konitys/antennes-api/internal/errs"
	"github.com/konitys/antennes-api/internal/lib/events"
	"github.com/konitys/antennes-api/internal/model"
	"github.com/konitys/antennes-api/internal/repository"
	"github.com/konitys/antennes-api/internal/sqlerr"
)

// MsgAntenneNotFound is returned for unknown and soft-deleted ids alike.
const MsgAntenneNotFound = "Antenne non trouvée"

// AntenneStore is the persistence contract of AntenneService.
type AntenneStore interface {
	FindAll(ctx context.Context, filters model.Filters, page model.Pagination) ([]model.Antenne, int64, error)
	FindByID(ctx context.Context, id int64) (*model.Antenne, error)
	Create(ctx context.Context, in model.NewAntenne) (*model.Antenne, error)
	Update(ctx context.Context, id int64, patch model.AntennePatch) (*model.Antenne, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	FindByCity(ctx context.Context, ville string) ([]model.Antenne, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// EventPublisher publishes change notifications. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) bool
}

// AntennePage is one page of FindAll results.
type AntennePage struct {
	Data       []model.Antenne
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
}

type AntenneService struct {
	store  AntenneStore
	events EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

func NewAntenneService(store AntenneStore, publisher EventPublisher, logger *zerolog.Logger) *AntenneService {
	return &AntenneService{
		store:  store,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AntenneService) List(ctx context.Context, filters model.Filters, page model.Pagination) (*AntennePage, error) {
	page = page.Normalize()

	antennes, total, err := s.store.FindAll(ctx, filters, page)
	if err != nil {
		return nil, s.mapError(err, "list antennes")
	}

	if antennes == nil {
		antennes = []model.Antenne{}
	}

	return &AntennePage{
		Data:       antennes,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: page.TotalPages(total),
	}, nil
}

func (s *AntenneService) Get(ctx context.Context, id int64) (*model.Antenne, error) {
	antenne, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "get antenne")
	}
	if antenne == nil {
		return nil, notFound()
	}
	return antenne, nil
}

// Create inserts the antenne and announces it with antenne.created.
func (s *AntenneService) Create(ctx context.Context, in model.NewAntenne) (*model.Antenne, error) {
	antenne, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, s.mapError(err, "create antenne")
	}

	s.publish(ctx, events.RoutingKeyCreated, events.NewCreatedPayload(*antenne, s.now()))
	return antenne, nil
}

// Update applies patch and emits antenne.updated, followed by
// antenne.deactivated when the patch sets etat to inactif.
func (s *AntenneService) Update(ctx context.Context, id int64, patch model.AntennePatch) (*model.Antenne, error) {
	antenne, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, s.mapError(err, "update antenne")
	}
	if antenne == nil {
		return nil, notFound()
	}

	now := s.now()
	s.publish(ctx, events.RoutingKeyUpdated, events.NewUpdatedPayload(*antenne, now))

	if etat, ok := patch.Etat(); ok && etat == model.EtatInactif {
		s.publish(ctx, events.RoutingKeyDeactivated, events.NewLifecyclePayload(id, now))
	}

	return antenne, nil
}

// Delete soft-deletes the antenne and emits antenne.deleted.
func (s *AntenneService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.store.SoftDelete(ctx, id)
	if err != nil {
		return s.mapError(err, "delete antenne")
	}
	if !deleted {
		return notFound()
	}

	s.publish(ctx, events.RoutingKeyDeleted, events.NewLifecyclePayload(id, s.now()))
	return nil
}

func (s *AntenneService) ListByCity(ctx context.Context, ville string) ([]model.Antenne, error) {
	antennes, err := s.store.FindByCity(ctx, ville)
	if err != nil {
		return nil, s.mapError(err, "list antennes by ville")
	}
	if antennes == nil {
		antennes = []model.Antenne{}
	}
	return antennes, nil
}

func (s *AntenneService) Stats(ctx context.Context) (model.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return model.Stats{}, s.mapError(err, "antenne stats")
	}
	return stats, nil
}

func (s *AntenneService) publish(ctx context.Context, routingKey string, payload any) {
	// The mutation is already committed; a lost event is logged by the publisher.
	if !s.events.Publish(ctx, routingKey, payload) {
		s.logger.Warn().Str("routing_key", routingKey).Msg("antenne event not delivered")
	}
}

// mapError turns repository errors into HTTP errors. Validation failures keep
// their per-field detail; store failures go through sqlerr so constraint
// violations surface as 400s.
func (s *AntenneService) mapError(err error, op string) error {
	var validationErr *repository.ValidationError
	if errors.As(err, &validationErr) {
		fields := make([]errs.FieldError, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fields = append(fields, errs.FieldError{Field: f.Field, Error: f.Message})
		}
		return errs.NewBadRequestError("Validation failed", true, nil, fields, nil)
	}

	s.logger.Error().Err(err).Str("operation", op).Msg("antenne store failure")
	return sqlerr.HandleError(err)
}

func notFound() error {
	return errs.NewNotFoundError(MsgAntenneNotFound, true, nil)
}
