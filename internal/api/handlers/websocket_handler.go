package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/prediction"
	"github.com/exo-discovery/backend/pkg/logger"
)

type WebSocketHandler struct {
	predictions *prediction.Service
}

func NewWebSocketHandler(predictions *prediction.Service) *WebSocketHandler {
	return &WebSocketHandler{predictions: predictions}
}

// HandleConnection serves /ws/predict: each batch_predict message streams a
// progress frame per planet followed by a complete frame.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			PlanetIDs      []uint `json:"planet_ids"`
			IncludeDetails bool   `json:"include_details"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Type != "batch_predict" {
			h.sendError(c, "unsupported message type: "+msg.Type)
			continue
		}

		err := h.streamBatch(c, msg.PlanetIDs, msg.IncludeDetails)
		if err != nil {
			logger.Error("Failed to stream batch prediction", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) streamBatch(c *websocket.Conn, planetIDs []uint, includeDetails bool) error {
	ctx := context.Background()

	req := &prediction.BatchRequest{
		PlanetIDs:      planetIDs,
		IncludeDetails: includeDetails,
	}

	var writeErr error
	onProgress := func(index, total int, planetID uint, response *prediction.Response) {
		if writeErr != nil {
			return
		}
		frame := map[string]interface{}{
			"type":      "progress",
			"completed": index + 1,
			"total":     total,
			"planet_id": planetID,
		}
		if response == nil {
			frame["skipped"] = true
		} else {
			frame["probability"] = response.Probability
			frame["prediction"] = response.Prediction
		}
		writeErr = c.WriteJSON(frame)
	}

	resp, err := h.predictions.BatchPredict(ctx, req, onProgress)
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	return c.WriteJSON(map[string]interface{}{
		"type":            "complete",
		"total_processed": resp.TotalProcessed,
		"total_requested": len(planetIDs),
		"model_version":   resp.ModelVersion,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
