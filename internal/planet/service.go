// Package planet implements the CRUD and filtering operations over the
// planets table.
package planet

import (
	"time"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
	"github.com/exo-discovery/backend/pkg/astro"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type Service struct {
	store *storage.Store
}

func NewService(store *storage.Store) *Service {
	return &Service{store: store}
}

// ListItem is the compact planet view returned by list endpoints.
type ListItem struct {
	ID              uint                `json:"id"`
	RowID           int64               `json:"rowid"`
	RA              float64             `json:"ra"`
	Dec             float64             `json:"dec"`
	R               float64             `json:"r"`
	Disposition     string              `json:"disposition"`
	AIProbability   *float64            `json:"ai_probability"`
	PredictionLabel *string             `json:"prediction_label"`
	Coordinates3D   astro.Coordinates3D `json:"coordinates_3d"`
}

// Detail is the full planet view including the feature map.
type Detail struct {
	ID              uint                `json:"id"`
	RowID           int64               `json:"rowid"`
	RA              float64             `json:"ra"`
	Dec             float64             `json:"dec"`
	R               float64             `json:"r"`
	Disposition     string              `json:"disposition"`
	AIProbability   *float64            `json:"ai_probability"`
	PredictionLabel *string             `json:"prediction_label"`
	Confidence      *string             `json:"confidence"`
	ModelVersion    *string             `json:"model_version"`
	Features        models.FeatureMap   `json:"features"`
	Coordinates3D   astro.Coordinates3D `json:"coordinates_3d"`
	CreatedAt       string              `json:"created_at,omitempty"`
	UpdatedAt       string              `json:"updated_at,omitempty"`
}

// CreateRequest is the payload for POST /planets.
type CreateRequest struct {
	RowID           int64              `json:"rowid"`
	RA              float64            `json:"ra"`
	Dec             float64            `json:"dec"`
	R               float64            `json:"r"`
	Disposition     string             `json:"disposition"`
	Features        map[string]float64 `json:"features"`
	AIProbability   *float64           `json:"ai_probability"`
	PredictionLabel *string            `json:"prediction_label"`
	Confidence      *string            `json:"confidence"`
	ModelVersion    *string            `json:"model_version"`
}

func (r *CreateRequest) validate() error {
	if r.RA < 0 || r.RA > 360 {
		return apierr.Validationf("ra must be within 0-360, got %v", r.RA)
	}
	if r.Dec < -90 || r.Dec > 90 {
		return apierr.Validationf("dec must be within -90-90, got %v", r.Dec)
	}
	if !models.ValidDisposition(r.Disposition) {
		return apierr.Validationf("unknown disposition %q", r.Disposition)
	}
	if r.AIProbability != nil && (*r.AIProbability < 0 || *r.AIProbability > 1) {
		return apierr.Validationf("ai_probability must be within 0-1, got %v", *r.AIProbability)
	}
	return nil
}

// FilterRequest is the payload for POST /planets/filter.
type FilterRequest struct {
	MinProbability *float64 `json:"min_probability"`
	MaxProbability *float64 `json:"max_probability"`
	Disposition    []string `json:"disposition"`
	MinRA          *float64 `json:"min_ra"`
	MaxRA          *float64 `json:"max_ra"`
	MinDec         *float64 `json:"min_dec"`
	MaxDec         *float64 `json:"max_dec"`
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
}

func (r *FilterRequest) validate() error {
	if r.MinProbability != nil && (*r.MinProbability < 0 || *r.MinProbability > 1) {
		return apierr.Validationf("min_probability must be within 0-1")
	}
	if r.MaxProbability != nil && (*r.MaxProbability < 0 || *r.MaxProbability > 1) {
		return apierr.Validationf("max_probability must be within 0-1")
	}
	if r.MinProbability != nil && r.MaxProbability != nil && *r.MaxProbability < *r.MinProbability {
		return apierr.Validationf("max_probability must be >= min_probability")
	}
	for _, d := range r.Disposition {
		if !models.ValidDisposition(d) {
			return apierr.Validationf("unknown disposition %q", d)
		}
	}
	if r.Page < 1 {
		return apierr.Validationf("page must be >= 1")
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		return apierr.Validationf("page_size must be within 1-%d", MaxPageSize)
	}
	return nil
}

// List returns one page of planets plus the total count.
func (s *Service) List(page, pageSize int) ([]ListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	planets, total, err := s.store.ListPlanets((page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]ListItem, len(planets))
	for i := range planets {
		items[i] = toListItem(&planets[i])
	}
	return items, total, nil
}

func (s *Service) Get(id uint) (*models.Planet, error) {
	return s.store.GetPlanet(id)
}

func (s *Service) GetDetail(id uint) (*Detail, error) {
	planet, err := s.store.GetPlanet(id)
	if err != nil {
		return nil, err
	}
	detail := toDetail(planet)
	return &detail, nil
}

func (s *Service) Create(req *CreateRequest) (*Detail, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	planet := &models.Planet{
		RowID:           req.RowID,
		RA:              req.RA,
		Dec:             req.Dec,
		R:               req.R,
		Disposition:     req.Disposition,
		AIProbability:   req.AIProbability,
		PredictionLabel: req.PredictionLabel,
		Confidence:      req.Confidence,
		ModelVersion:    req.ModelVersion,
		Features:        req.Features,
	}
	if planet.Features == nil {
		planet.Features = models.FeatureMap{}
	}

	if err := s.store.CreatePlanet(planet); err != nil {
		return nil, err
	}

	detail := toDetail(planet)
	return &detail, nil
}

// Filter applies the range and set filters with pagination.
func (s *Service) Filter(req *FilterRequest) ([]ListItem, int64, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = DefaultPageSize
	}
	if err := req.validate(); err != nil {
		return nil, 0, err
	}

	planets, total, err := s.store.FilterPlanets(storage.PlanetFilter{
		MinProbability: req.MinProbability,
		MaxProbability: req.MaxProbability,
		Dispositions:   req.Disposition,
		MinRA:          req.MinRA,
		MaxRA:          req.MaxRA,
		MinDec:         req.MinDec,
		MaxDec:         req.MaxDec,
		Offset:         (req.Page - 1) * req.PageSize,
		Limit:          req.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]ListItem, len(planets))
	for i := range planets {
		items[i] = toListItem(&planets[i])
	}
	return items, total, nil
}

// RecordPrediction writes prediction fields for the planet's first
// prediction; later calls leave the stored values alone.
func (s *Service) RecordPrediction(id uint, probability float64, label, confidence, modelVersion string) (*models.Planet, error) {
	planet, err := s.store.GetPlanet(id)
	if err != nil {
		return nil, err
	}
	if planet.AIProbability != nil {
		return planet, nil
	}
	return s.store.UpdatePlanetPrediction(id, probability, label, confidence, modelVersion)
}

func toListItem(p *models.Planet) ListItem {
	return ListItem{
		ID:              p.ID,
		RowID:           p.RowID,
		RA:              p.RA,
		Dec:             p.Dec,
		R:               p.R,
		Disposition:     p.Disposition,
		AIProbability:   p.AIProbability,
		PredictionLabel: p.PredictionLabel,
		Coordinates3D:   astro.RADecToXYZ(p.RA, p.Dec, p.R),
	}
}

func toDetail(p *models.Planet) Detail {
	detail := Detail{
		ID:              p.ID,
		RowID:           p.RowID,
		RA:              p.RA,
		Dec:             p.Dec,
		R:               p.R,
		Disposition:     p.Disposition,
		AIProbability:   p.AIProbability,
		PredictionLabel: p.PredictionLabel,
		Confidence:      p.Confidence,
		ModelVersion:    p.ModelVersion,
		Features:        p.Features,
		Coordinates3D:   astro.RADecToXYZ(p.RA, p.Dec, p.R),
	}
	if !p.CreatedAt.IsZero() {
		detail.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		detail.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return detail
}
