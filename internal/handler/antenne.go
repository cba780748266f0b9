package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/konitys/antennes-api/internal/model"
	"github.com/konitys/antennes-api/internal/server"
	"github.com/konitys/antennes-api/internal/service"
	"github.com/konitys/antennes-api/internal/validation"
)

const (
	msgCreated = "Antenne créée avec succès"
	msgUpdated = "Antenne mise à jour avec succès"
	msgDeleted = "Antenne supprimée avec succès"
)

// AntenneService is the business contract behind the antenne routes.
type AntenneService interface {
	List(ctx context.Context, filters model.Filters, page model.Pagination) (*service.AntennePage, error)
	Get(ctx context.Context, id int64) (*model.Antenne, error)
	Create(ctx context.Context, in model.NewAntenne) (*model.Antenne, error)
	Update(ctx context.Context, id int64, patch model.AntennePatch) (*model.Antenne, error)
	Delete(ctx context.Context, id int64) error
	ListByCity(ctx context.Context, ville string) ([]model.Antenne, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// DataResponse is the success envelope.
type DataResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

func ok[T any](data T, message string) *DataResponse[T] {
	return &DataResponse[T]{Success: true, Data: data, Message: message}
}

// MessageResponse is the success envelope of operations without data.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type ListResponse struct {
	Success    bool            `json:"success"`
	Data       []model.Antenne `json:"data"`
	Pagination PaginationMeta  `json:"pagination"`
}

// ListAntennesRequest carries the query string of GET /api/antennes.
//
// antenne_principale is tri-state: only "true" and "false" filter. has_iban
// filters only when "true".
type ListAntennesRequest struct {
	Key               string `query:"key"`
	Etat              string `query:"etat"`
	Ville             string `query:"ville"`
	TypeProfilID      string `query:"type_profil_id" validate:"omitempty,number"`
	AntennePrincipale string `query:"antenne_principale"`
	HasIBAN           string `query:"has_iban"`
	Page              int    `query:"page" validate:"min=0"`
	Limit             int    `query:"limit" validate:"min=0,max=100"`
}

func (r *ListAntennesRequest) Validate() error {
	return validation.Struct(r)
}

func (r *ListAntennesRequest) Filters() model.Filters {
	f := model.Filters{
		Key:     r.Key,
		Etat:    r.Etat,
		Ville:   r.Ville,
		HasIBAN: r.HasIBAN == "true",
	}

	if id, err := strconv.ParseInt(r.TypeProfilID, 10, 64); err == nil {
		f.TypeProfilID = &id
	}

	switch r.AntennePrincipale {
	case "true":
		principale := true
		f.AntennePrincipale = &principale
	case "false":
		principale := false
		f.AntennePrincipale = &principale
	}

	return f
}

type StatsRequest struct{}

func (r *StatsRequest) Validate() error { return nil }

type AntenneIDRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *AntenneIDRequest) Validate() error {
	return validation.Struct(r)
}

type CityRequest struct {
	Ville string `param:"ville" validate:"required"`
}

func (r *CityRequest) Validate() error {
	return validation.Struct(r)
}

type CreateAntenneRequest struct {
	model.NewAntenne
}

func (r *CreateAntenneRequest) Validate() error {
	return validation.Struct(r)
}

// UpdateAntenneRequest keeps the raw body as a patch so that absent keys and
// explicit nulls stay distinguishable. A missing body is an empty patch.
type UpdateAntenneRequest struct {
	ID    int64 `param:"id" validate:"gt=0"`
	Patch model.AntennePatch

	nullBody bool
}

func (r *UpdateAntenneRequest) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.nullBody = true
		return nil
	}
	return json.Unmarshal(data, &r.Patch)
}

func (r *UpdateAntenneRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.nullBody {
		return validation.CustomValidationErrors{{Field: "body", Message: "must be a JSON object"}}
	}
	if r.Patch == nil {
		r.Patch = model.AntennePatch{}
	}
	return nil
}

type AntenneHandler struct {
	Handler
	antennes AntenneService
}

func NewAntenneHandler(s *server.Server, antennes AntenneService) *AntenneHandler {
	return &AntenneHandler{
		Handler:  NewHandler(s),
		antennes: antennes,
	}
}

func (h *AntenneHandler) List(c echo.Context, req *ListAntennesRequest) (*ListResponse, error) {
	page, err := h.antennes.List(c.Request().Context(), req.Filters(), model.Pagination{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return nil, err
	}

	return &ListResponse{
		Success: true,
		Data:    page.Data,
		Pagination: PaginationMeta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	}, nil
}

func (h *AntenneHandler) Stats(c echo.Context, _ *StatsRequest) (*DataResponse[model.Stats], error) {
	stats, err := h.antennes.Stats(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return ok(stats, ""), nil
}

func (h *AntenneHandler) ListByCity(c echo.Context, req *CityRequest) (*DataResponse[[]model.Antenne], error) {
	antennes, err := h.antennes.ListByCity(c.Request().Context(), req.Ville)
	if err != nil {
		return nil, err
	}
	return ok(antennes, ""), nil
}

func (h *AntenneHandler) Get(c echo.Context, req *AntenneIDRequest) (*DataResponse[*model.Antenne], error) {
	antenne, err := h.antennes.Get(c.Request().Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return ok(antenne, ""), nil
}

func (h *AntenneHandler) Create(c echo.Context, req *CreateAntenneRequest) (*DataResponse[*model.Antenne], error) {
	antenne, err := h.antennes.Create(c.Request().Context(), req.NewAntenne)
	if err != nil {
		return nil, err
	}
	return ok(antenne, msgCreated), nil
}

func (h *AntenneHandler) Update(c echo.Context, req *UpdateAntenneRequest) (*DataResponse[*model.Antenne], error) {
	antenne, err := h.antennes.Update(c.Request().Context(), req.ID, req.Patch)
	if err != nil {
		return nil, err
	}
	return ok(antenne, msgUpdated), nil
}

func (h *AntenneHandler) Delete(c echo.Context, req *AntenneIDRequest) (*MessageResponse, error) {
	if err := h.antennes.Delete(c.Request().Context(), req.ID); err != nil {
		return nil, err
	}
	return &MessageResponse{Success: true, Message: msgDeleted}, nil
}

