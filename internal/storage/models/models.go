package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Disposition values carried over from the NASA dataset.
const (
	DispositionConfirmed     = "CONFIRMED"
	DispositionFalsePositive = "FALSE POSITIVE"
	DispositionCandidate     = "CANDIDATE"
)

func ValidDisposition(d string) bool {
	switch d {
	case DispositionConfirmed, DispositionFalsePositive, DispositionCandidate:
		return true
	}
	return false
}

// FeatureMap stores the per-planet feature vector as a JSON column.
type FeatureMap map[string]float64

func (m FeatureMap) Value() (driver.Value, error) {
	if m == nil {
		m = FeatureMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling feature map: %w", err)
	}
	return string(data), nil
}

func (m *FeatureMap) Scan(value any) error {
	if value == nil {
		*m = FeatureMap{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported feature map column type %T", value)
	}

	return json.Unmarshal(data, m)
}

// Planet is a single exoplanet candidate row from the NASA dataset plus the
// AI prediction fields written by the first prediction call.
type Planet struct {
	ID    uint  `gorm:"primaryKey"`
	RowID int64 `gorm:"uniqueIndex;not null"`

	RA  float64 `gorm:"index;not null"`
	Dec float64 `gorm:"index;not null"`
	R   float64 `gorm:"not null"`

	Disposition string `gorm:"type:varchar(20);index;not null"`

	AIProbability   *float64 `gorm:"column:ai_probability;index"`
	PredictionLabel *string  `gorm:"type:varchar(50)"`
	Confidence      *string  `gorm:"type:varchar(20)"`
	ModelVersion    *string  `gorm:"type:varchar(50);index"`

	Features FeatureMap `gorm:"type:text;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JSONMap stores model hyperparameter configuration as JSON.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return string(data), nil
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported config column type %T", value)
	}

	return json.Unmarshal(data, m)
}

// ModelVersion tracks a trained classifier version with its hyperparameter
// configuration, evaluation metrics and lineage.
type ModelVersion struct {
	ID            uint    `gorm:"primaryKey"`
	Version       string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description   string  `gorm:"type:varchar(500)"`
	ParentVersion *string `gorm:"type:varchar(50);index"`

	Config JSONMap `gorm:"type:text;not null"`

	F1Score   *float64
	Precision *float64
	Recall    *float64
	Accuracy  *float64
	AUCROC    *float64

	IsActive bool `gorm:"index"`

	TrainedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PredictionRecord is an audit row written for every successful prediction.
type PredictionRecord struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	PlanetID     uint   `gorm:"index"`
	RowID        int64
	Probability  float64
	Label        string `gorm:"type:varchar(50)"`
	Confidence   string `gorm:"type:varchar(20)"`
	ModelVersion string `gorm:"type:varchar(50)"`
	CacheHit     bool
	LatencyMS    int64
	CreatedAt    time.Time `gorm:"index"`
}
