// Package prediction orchestrates the model wrapper, planet persistence,
// prediction audit records and the optional response cache.
package prediction

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/metrics"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/planet"
	"github.com/exo-discovery/backend/internal/reward"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
	"github.com/exo-discovery/backend/pkg/logger"
)

// MaxBatchSize caps POST /predict/batch.
const MaxBatchSize = 100

// Cache is the subset of the redis client the service needs; nil disables
// caching.
type Cache interface {
	GetPrediction(ctx context.Context, planetID uint, detailed bool, out any) (bool, error)
	SetPrediction(ctx context.Context, planetID uint, detailed bool, response any) error
}

type Service struct {
	store     *storage.Store
	planets   *planet.Service
	predictor *ml.Predictor
	cache     Cache
}

func NewService(store *storage.Store, planets *planet.Service, predictor *ml.Predictor, cache Cache) *Service {
	return &Service{
		store:     store,
		planets:   planets,
		predictor: predictor,
		cache:     cache,
	}
}

// Response is the detailed prediction payload.
type Response struct {
	PlanetID     uint    `json:"planet_id"`
	RowID        int64   `json:"rowid"`
	Probability  float64 `json:"probability"`
	Prediction   string  `json:"prediction"`
	Confidence   string  `json:"confidence"`
	ModelVersion string  `json:"model_version"`

	FeatureContributions []ml.FeatureContribution `json:"feature_contributions,omitempty"`
	TopCorrelations      map[string]float64       `json:"top_correlations,omitempty"`
}

// SimpleResponse is the beginner-mode payload.
type SimpleResponse struct {
	PlanetID        uint    `json:"planet_id"`
	RowID           int64   `json:"rowid"`
	Probability     float64 `json:"probability"`
	IsConfirmed     bool    `json:"is_confirmed"`
	ConfidenceLevel string  `json:"confidence_level"`
}

// BatchRequest is the payload for POST /predict/batch.
type BatchRequest struct {
	PlanetIDs      []uint `json:"planet_ids"`
	IncludeDetails bool   `json:"include_details"`
}

func (r *BatchRequest) Validate() error {
	if len(r.PlanetIDs) == 0 {
		return apierr.Validationf("planet_ids must not be empty")
	}
	if len(r.PlanetIDs) > MaxBatchSize {
		return apierr.Validationf("planet_ids must not exceed %d entries", MaxBatchSize)
	}
	return nil
}

// BatchResponse summarizes a batch prediction run.
type BatchResponse struct {
	Predictions    []Response `json:"predictions"`
	TotalProcessed int        `json:"total_processed"`
	ModelVersion   string     `json:"model_version"`
}

// RewardResponse is the gamification payload for GET /reward/:id.
type RewardResponse struct {
	PlanetID      uint    `json:"planet_id"`
	PlanetName    string  `json:"planet_name"`
	Probability   float64 `json:"probability"`
	RewardGranted bool    `json:"reward_granted"`
	PointsEarned  int     `json:"points_earned"`
	Message       string  `json:"message"`
	UpgradeLevel  *int    `json:"upgrade_level"`
}

// Predict runs the model for one planet. The planet's prediction fields are
// written on the first call only; cached responses skip inference entirely.
func (s *Service) Predict(ctx context.Context, planetID uint, includeDetails bool) (*Response, error) {
	start := time.Now()

	p, err := s.planets.Get(planetID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached Response
		hit, cacheErr := s.cache.GetPrediction(ctx, planetID, includeDetails, &cached)
		if cacheErr != nil {
			logger.Warn("Prediction cache read failed", zap.Error(cacheErr))
		} else if hit {
			metrics.CacheHits.WithLabelValues("prediction").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("prediction").Inc()
	}

	result, err := s.predictor.Predict(p.Features, includeDetails)
	if err != nil {
		metrics.PredictionTotal.WithLabelValues("none", "error").Inc()
		return nil, err
	}

	if _, err := s.planets.RecordPrediction(
		p.ID, result.Probability, result.Prediction, result.Confidence, result.ModelVersion,
	); err != nil {
		return nil, err
	}

	latency := time.Since(start)
	s.audit(p, result, latency)

	mode := "simple"
	if includeDetails {
		mode = "detailed"
	}
	metrics.PredictionDuration.WithLabelValues(mode).Observe(latency.Seconds())
	metrics.PredictionTotal.WithLabelValues(result.Prediction, "ok").Inc()
	metrics.PredictionProbability.Observe(result.Probability)

	response := &Response{
		PlanetID:             p.ID,
		RowID:                p.RowID,
		Probability:          result.Probability,
		Prediction:           result.Prediction,
		Confidence:           result.Confidence,
		ModelVersion:         result.ModelVersion,
		FeatureContributions: result.FeatureContributions,
		TopCorrelations:      result.TopCorrelations,
	}

	if s.cache != nil {
		if err := s.cache.SetPrediction(ctx, planetID, includeDetails, response); err != nil {
			logger.Warn("Prediction cache write failed", zap.Error(err))
		}
	}

	return response, nil
}

// PredictSimple is the beginner-mode prediction.
func (s *Service) PredictSimple(ctx context.Context, planetID uint) (*SimpleResponse, error) {
	response, err := s.Predict(ctx, planetID, false)
	if err != nil {
		return nil, err
	}

	return &SimpleResponse{
		PlanetID:        response.PlanetID,
		RowID:           response.RowID,
		Probability:     response.Probability,
		IsConfirmed:     response.Prediction == ml.LabelConfirmed,
		ConfidenceLevel: response.Confidence,
	}, nil
}

// ProgressFunc receives per-item batch progress; response is nil for items
// that were skipped.
type ProgressFunc func(index, total int, planetID uint, response *Response)

// BatchPredict predicts every requested planet, skipping missing planets and
// failed predictions, and reports how many succeeded.
func (s *Service) BatchPredict(ctx context.Context, req *BatchRequest, onProgress ProgressFunc) (*BatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	predictions := make([]Response, 0, len(req.PlanetIDs))
	modelVersion := ""

	for i, planetID := range req.PlanetIDs {
		response, err := s.Predict(ctx, planetID, req.IncludeDetails)
		if err != nil {
			logger.Warn("Batch prediction item skipped",
				zap.Uint("planet_id", planetID),
				zap.Error(err),
			)
			if onProgress != nil {
				onProgress(i, len(req.PlanetIDs), planetID, nil)
			}
			continue
		}
		predictions = append(predictions, *response)
		modelVersion = response.ModelVersion
		if onProgress != nil {
			onProgress(i, len(req.PlanetIDs), planetID, response)
		}
	}

	return &BatchResponse{
		Predictions:    predictions,
		TotalProcessed: len(predictions),
		ModelVersion:   modelVersion,
	}, nil
}

// Reward computes the gamification outcome for a planet, predicting first
// when no probability has been stored yet.
func (s *Service) Reward(ctx context.Context, planetID uint) (*RewardResponse, error) {
	p, err := s.planets.Get(planetID)
	if err != nil {
		return nil, err
	}

	var probability float64
	var label string

	if p.AIProbability != nil {
		probability = *p.AIProbability
		if p.PredictionLabel != nil {
			label = *p.PredictionLabel
		}
	} else {
		response, err := s.Predict(ctx, planetID, false)
		if err != nil {
			return nil, err
		}
		probability = response.Probability
		label = response.Prediction
	}

	outcome := reward.Calculate(label, probability, p.RowID)

	response := &RewardResponse{
		PlanetID:      p.ID,
		PlanetName:    planetName(p.RowID),
		Probability:   probability,
		RewardGranted: outcome.Granted,
		PointsEarned:  outcome.Points,
		Message:       outcome.Message,
	}
	if outcome.UpgradeLevel > 0 {
		level := outcome.UpgradeLevel
		response.UpgradeLevel = &level
	}
	return response, nil
}

// History returns the most recent prediction audit records.
func (s *Service) History(limit int) ([]models.PredictionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.RecentPredictionRecords(limit)
}

func (s *Service) audit(p *models.Planet, result *ml.Result, latency time.Duration) {
	record := &models.PredictionRecord{
		ID:           uuid.NewString(),
		PlanetID:     p.ID,
		RowID:        p.RowID,
		Probability:  result.Probability,
		Label:        result.Prediction,
		Confidence:   result.Confidence,
		ModelVersion: result.ModelVersion,
		LatencyMS:    latency.Milliseconds(),
	}
	if err := s.store.InsertPredictionRecord(record); err != nil {
		logger.Warn("Failed to write prediction record", zap.Error(err))
	}
}

func planetName(rowID int64) string {
	return "rowid_" + strconv.FormatInt(rowID, 10)
}
