package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/exo-discovery/backend/internal/storage/models"
	"github.com/exo-discovery/backend/pkg/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store wraps the GORM database handle and owns all persistence operations.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	logger.Info("Database opened", zap.String("path", path))

	return &Store{db: db}, nil
}

var memDBCounter atomic.Int64

// OpenInMemory opens a throwaway in-memory database, used by tests. Each
// call gets its own database so tests stay isolated.
func OpenInMemory() (*Store, error) {
	name := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.Planet{},
		&models.ModelVersion{},
		&models.PredictionRecord{},
	)
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("Database schema migrated")
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- planets ---

func (s *Store) CreatePlanet(planet *models.Planet) error {
	var count int64
	if err := s.db.Model(&models.Planet{}).Where("row_id = ?", planet.RowID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking rowid uniqueness: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("planet rowid=%d: %w", planet.RowID, ErrDuplicate)
	}

	if err := s.db.Create(planet).Error; err != nil {
		return fmt.Errorf("creating planet: %w", err)
	}
	return nil
}

func (s *Store) BulkInsertPlanets(planets []models.Planet) error {
	if len(planets) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(planets, 100).Error; err != nil {
		return fmt.Errorf("bulk inserting planets: %w", err)
	}
	return nil
}

func (s *Store) GetPlanet(id uint) (*models.Planet, error) {
	var planet models.Planet
	if err := s.db.First(&planet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("planet id=%d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting planet id=%d: %w", id, err)
	}
	return &planet, nil
}

func (s *Store) GetPlanetByRowID(rowID int64) (*models.Planet, error) {
	var planet models.Planet
	if err := s.db.Where("row_id = ?", rowID).First(&planet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("planet rowid=%d: %w", rowID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting planet rowid=%d: %w", rowID, err)
	}
	return &planet, nil
}

func (s *Store) ListPlanets(offset, limit int) ([]models.Planet, int64, error) {
	var total int64
	if err := s.db.Model(&models.Planet{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting planets: %w", err)
	}

	var planets []models.Planet
	if err := s.db.Order("id").Offset(offset).Limit(limit).Find(&planets).Error; err != nil {
		return nil, 0, fmt.Errorf("listing planets: %w", err)
	}
	return planets, total, nil
}

// PlanetFilter holds the optional range and set filters for planet queries.
type PlanetFilter struct {
	MinProbability *float64
	MaxProbability *float64
	Dispositions   []string
	MinRA          *float64
	MaxRA          *float64
	MinDec         *float64
	MaxDec         *float64
	Offset         int
	Limit          int
}

func (s *Store) FilterPlanets(filter PlanetFilter) ([]models.Planet, int64, error) {
	query := s.db.Model(&models.Planet{})

	if filter.MinProbability != nil {
		query = query.Where("ai_probability >= ?", *filter.MinProbability)
	}
	if filter.MaxProbability != nil {
		query = query.Where("ai_probability <= ?", *filter.MaxProbability)
	}
	if len(filter.Dispositions) > 0 {
		query = query.Where("disposition IN ?", filter.Dispositions)
	}
	if filter.MinRA != nil {
		query = query.Where("ra >= ?", *filter.MinRA)
	}
	if filter.MaxRA != nil {
		query = query.Where("ra <= ?", *filter.MaxRA)
	}
	if filter.MinDec != nil {
		query = query.Where("dec >= ?", *filter.MinDec)
	}
	if filter.MaxDec != nil {
		query = query.Where("dec <= ?", *filter.MaxDec)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting filtered planets: %w", err)
	}

	var planets []models.Planet
	if err := query.Order("id").Offset(filter.Offset).Limit(filter.Limit).Find(&planets).Error; err != nil {
		return nil, 0, fmt.Errorf("filtering planets: %w", err)
	}
	return planets, total, nil
}

// UpdatePlanetPrediction writes the AI prediction fields for a planet.
func (s *Store) UpdatePlanetPrediction(id uint, probability float64, label, confidence, modelVersion string) (*models.Planet, error) {
	planet, err := s.GetPlanet(id)
	if err != nil {
		return nil, err
	}

	planet.AIProbability = &probability
	planet.PredictionLabel = &label
	planet.Confidence = &confidence
	planet.ModelVersion = &modelVersion

	if err := s.db.Save(planet).Error; err != nil {
		return nil, fmt.Errorf("updating planet prediction: %w", err)
	}
	return planet, nil
}

func (s *Store) CountPlanets() (int64, error) {
	var count int64
	if err := s.db.Model(&models.Planet{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting planets: %w", err)
	}
	return count, nil
}

// DeleteAllPlanets clears the planets table, used by forced re-seeding.
func (s *Store) DeleteAllPlanets() error {
	if err := s.db.Where("1 = 1").Delete(&models.Planet{}).Error; err != nil {
		return fmt.Errorf("deleting planets: %w", err)
	}
	return nil
}

// --- model versions ---

func (s *Store) CreateModelVersion(mv *models.ModelVersion) error {
	var count int64
	if err := s.db.Model(&models.ModelVersion{}).Where("version = ?", mv.Version).Count(&count).Error; err != nil {
		return fmt.Errorf("checking version uniqueness: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("model version %s: %w", mv.Version, ErrDuplicate)
	}

	if err := s.db.Create(mv).Error; err != nil {
		return fmt.Errorf("creating model version: %w", err)
	}
	return nil
}

func (s *Store) GetModelVersion(version string) (*models.ModelVersion, error) {
	var mv models.ModelVersion
	if err := s.db.Where("version = ?", version).First(&mv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("model version %s: %w", version, ErrNotFound)
		}
		return nil, fmt.Errorf("getting model version %s: %w", version, err)
	}
	return &mv, nil
}

func (s *Store) GetActiveModelVersion() (*models.ModelVersion, error) {
	var mv models.ModelVersion
	if err := s.db.Where("is_active = ?", true).First(&mv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active model version: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("getting active model version: %w", err)
	}
	return &mv, nil
}

func (s *Store) ListModelVersions() ([]models.ModelVersion, error) {
	var versions []models.ModelVersion
	if err := s.db.Order("created_at DESC").Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("listing model versions: %w", err)
	}
	return versions, nil
}

func (s *Store) SaveModelVersion(mv *models.ModelVersion) error {
	if err := s.db.Save(mv).Error; err != nil {
		return fmt.Errorf("saving model version: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllModelVersions() error {
	if err := s.db.Where("1 = 1").Delete(&models.ModelVersion{}).Error; err != nil {
		return fmt.Errorf("deleting model versions: %w", err)
	}
	return nil
}

// --- prediction records ---

func (s *Store) InsertPredictionRecord(rec *models.PredictionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("inserting prediction record: %w", err)
	}
	return nil
}

func (s *Store) RecentPredictionRecords(limit int) ([]models.PredictionRecord, error) {
	var records []models.PredictionRecord
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing prediction records: %w", err)
	}
	return records, nil
}
