package handlers

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/metrics"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/modelver"
	"github.com/exo-discovery/backend/internal/preprocess"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/pkg/logger"
)

type UploadHandler struct {
	store     *storage.Store
	versions  *modelver.Service
	predictor *ml.Predictor
}

func NewUploadHandler(store *storage.Store, versions *modelver.Service, predictor *ml.Predictor) *UploadHandler {
	return &UploadHandler{store: store, versions: versions, predictor: predictor}
}

// uploadResponse is the body returned by POST /upload/csv.
type uploadResponse struct {
	Filename     string              `json:"filename"`
	Summary      *preprocess.Summary `json:"summary"`
	Retrained    bool                `json:"retrained"`
	ModelVersion string              `json:"model_version,omitempty"`
}

// UploadCSV handles POST /upload/csv: clean the uploaded dataset and
// optionally retrain a new model version from it.
func (h *UploadHandler) UploadCSV(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apierr.Validationf("multipart field 'file' is required")
	}

	strategy := c.FormValue("handle_missing", preprocess.StrategyMedian)
	nStd := formFloat(c, "n_std", 3.0)
	removeOutliers := formBool(c, "remove_outliers", true)
	standardize := formBool(c, "standardize", true)
	autoRetrain := formBool(c, "auto_retrain", false)
	newVersion := c.FormValue("new_model_version")

	if nStd <= 0 {
		return apierr.Validationf("n_std must be positive, got %g", nStd)
	}
	if autoRetrain && newVersion == "" {
		return apierr.Validationf("new_model_version is required when auto_retrain is set")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	frame, err := preprocess.ReadCSV(file)
	if err != nil {
		metrics.CSVRowsProcessed.WithLabelValues("upload_csv", "error").Inc()
		return apierr.Validationf("invalid CSV file: %v", err)
	}

	totalRecords := frame.NumRows()
	nf := frame.Numeric()

	filled, err := preprocess.HandleMissingValues(nf, strategy)
	if err != nil {
		return err
	}

	totalFilled := 0
	for _, n := range filled {
		totalFilled += n
	}

	outliersRemoved := 0
	if removeOutliers {
		outliersRemoved = preprocess.RemoveOutliers(nf, nStd)
	}
	if standardize {
		preprocess.Standardize(nf)
	}

	summary := &preprocess.Summary{
		TotalRecords:        totalRecords,
		ValidRecords:        nf.NumRows(),
		InvalidRecords:      totalRecords - nf.NumRows(),
		OutliersRemoved:     outliersRemoved,
		MissingValuesFilled: totalFilled,
		MissingPerColumn:    filled,
		FeatureCount:        len(nf.Columns),
	}

	metrics.CSVRowsProcessed.WithLabelValues("upload_csv", "success").Add(float64(nf.NumRows()))

	resp := &uploadResponse{
		Filename: fileHeader.Filename,
		Summary:  summary,
	}

	if autoRetrain {
		active, err := h.store.GetActiveModelVersion()
		if err != nil {
			return err
		}
		detail, err := h.versions.Retrain(&modelver.RetrainRequest{
			BaseVersion: active.Version,
			NewVersion:  newVersion,
			Description: "Retrained on uploaded dataset " + fileHeader.Filename,
		})
		if err != nil {
			return err
		}
		resp.Retrained = true
		resp.ModelVersion = detail.Version
	}

	logger.Info("CSV upload processed",
		zap.String("filename", fileHeader.Filename),
		zap.Int("valid_records", summary.ValidRecords),
		zap.Int("outliers_removed", summary.OutliersRemoved),
		zap.Bool("retrained", resp.Retrained),
	)

	return okMessage(c, "Dataset processed", resp)
}

// IdentifyPlanets handles POST /upload/identify-planets: run the model over
// every CSV row and return the file with prediction columns appended. Rows
// the model cannot score get empty cells.
func (h *UploadHandler) IdentifyPlanets(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apierr.Validationf("multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	frame, err := preprocess.ReadCSV(file)
	if err != nil {
		metrics.CSVRowsProcessed.WithLabelValues("identify_planets", "error").Inc()
		return apierr.Validationf("invalid CSV file: %v", err)
	}

	if !h.predictor.Ready() {
		return ml.ErrModelUnavailable
	}

	rows := frame.NumRows()
	predictions := make([]string, rows)
	probabilities := make([]string, rows)
	confidences := make([]string, rows)

	failed := 0
	for i := 0; i < rows; i++ {
		result, err := h.predictor.Predict(frame.FeatureRow(i), false)
		if err != nil {
			failed++
			continue
		}
		predictions[i] = result.Prediction
		probabilities[i] = strconv.FormatFloat(result.Probability, 'f', 4, 64)
		confidences[i] = result.Confidence
	}

	err = frame.AppendColumns(
		[]string{"ai_prediction", "ai_probability", "ai_confidence"},
		[][]string{predictions, probabilities, confidences},
	)
	if err != nil {
		return err
	}

	metrics.CSVRowsProcessed.WithLabelValues("identify_planets", "success").Add(float64(rows - failed))
	if failed > 0 {
		metrics.CSVRowsProcessed.WithLabelValues("identify_planets", "skipped").Add(float64(failed))
	}

	logger.Info("Identify-planets upload processed",
		zap.String("filename", fileHeader.Filename),
		zap.Int("rows", rows),
		zap.Int("failed", failed),
	)

	var buf bytes.Buffer
	if err := frame.Write(&buf); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="identified_planets.csv"`)
	c.Set("X-Rows-Processed", strconv.Itoa(rows-failed))
	c.Set("X-Rows-Failed", strconv.Itoa(failed))
	return c.Send(buf.Bytes())
}

func formFloat(c *fiber.Ctx, key string, def float64) float64 {
	raw := c.FormValue(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func formBool(c *fiber.Ctx, key string, def bool) bool {
	raw := c.FormValue(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
