package pumps

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// Messages a pump controller may send.
type incomingMessage struct {
	Type string `json:"type"` // command_response | sensor_data | heartbeat
}

type commandResponse struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"` // executed | failed
	Detail    string `json:"detail"`
}

type sensorData struct {
	SoilMoisture *float64  `json:"soil_moisture"`
	Luminosity   *float64  `json:"luminosity"`
	Humidity     *float64  `json:"humidity"`
	Temperature  *float64  `json:"temperature"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Handler upgrades pump connections and processes what pumps report back.
type Handler struct {
	logger   *slog.Logger
	manager  *Manager
	commands store.CommandStore
	logs     store.SensorLogStore
	metrics  *metrics.OpsMetrics
	upgrader websocket.Upgrader
}

// NewHandler wires a websocket handler to manager and the stores pumps report to.
func NewHandler(logger *slog.Logger, manager *Manager, commands store.CommandStore, logs store.SensorLogStore, m *metrics.OpsMetrics) *Handler {
	return &Handler{
		logger:   logger.With("component", "pumps"),
		manager:  manager,
		commands: commands,
		logs:     logs,
		metrics:  m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/pumps?plant_id=<id>.
func (h *Handler) Serve(c *gin.Context) {
	plantID := c.Query("plant_id")
	if plantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing plant_id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "plant_id", plantID, "error", err)
		return
	}

	h.manager.Register(plantID, conn)
	h.logger.Info("pump connected", "plant_id", plantID)
	defer func() {
		h.manager.Unregister(plantID, conn)
		h.logger.Info("pump disconnected", "plant_id", plantID)
	}()

	ctx := c.Request.Context()
	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("pump read error", "plant_id", plantID, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.handleMessage(ctx, plantID, message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, plantID string, message []byte) {
	var base incomingMessage
	if err := json.Unmarshal(message, &base); err != nil {
		h.logger.Warn("invalid json from pump", "plant_id", plantID, "error", err)
		return
	}
	if h.metrics != nil {
		h.metrics.PumpMessagesTotal.WithLabelValues("in", base.Type).Inc()
	}

	switch base.Type {
	case "command_response":
		var resp commandResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			h.logger.Warn("invalid command_response", "plant_id", plantID, "error", err)
			return
		}
		h.handleResponse(ctx, plantID, &resp)

	case "sensor_data":
		var data sensorData
		if err := json.Unmarshal(message, &data); err != nil {
			h.logger.Warn("invalid sensor_data", "plant_id", plantID, "error", err)
			return
		}
		_, err := h.logs.Append(ctx, plantID, store.Entry{
			Reading: watering.Reading{
				SoilMoisture: data.SoilMoisture,
				Luminosity:   data.Luminosity,
				Humidity:     data.Humidity,
				Temperature:  data.Temperature,
			},
			ObservedAt: data.ObservedAt,
		})
		if errors.Is(err, store.ErrStaleEntry) {
			h.logger.Debug("stale pump reading dropped", "plant_id", plantID, "observed_at", data.ObservedAt)
		} else if err != nil {
			h.logger.Warn("failed to store pump reading", "plant_id", plantID, "error", err)
		}

	case "heartbeat":

	default:
		h.logger.Debug("unknown pump message", "plant_id", plantID, "type", base.Type)
	}
}

// handleResponse settles a command of the connected plant. A waiting
// dispatcher records the outcome itself; an answer arriving after it gave up
// is recorded here, including the watering it reports.
func (h *Handler) handleResponse(ctx context.Context, plantID string, resp *commandResponse) {
	logger := h.logger.With("plant_id", plantID, "command_id", resp.CommandID)

	cmd, err := h.commands.GetCommand(ctx, resp.CommandID)
	if err != nil {
		logger.Warn("response for unknown command", "error", err)
		return
	}
	if cmd.PlantID != plantID {
		logger.Warn("response for a command of another plant ignored", "command_plant_id", cmd.PlantID)
		return
	}

	executed := resp.Status == string(store.CommandExecuted)
	if h.manager.Resolve(plantID, resp.CommandID, Result{Executed: executed, Detail: resp.Detail}) {
		logger.Debug("pump answered command", "executed", executed)
		return
	}

	status := store.CommandFailed
	logID := ""
	if executed {
		status = store.CommandExecuted
		if cmd.LogID == "" {
			logID, err = h.logs.Append(ctx, plantID, store.Entry{WasWatered: true})
			if err != nil {
				logger.Error("failed to record late watering", "error", err)
				return
			}
		}
	}
	if err := h.commands.UpdateCommand(ctx, resp.CommandID, status, resp.Detail, logID); err != nil {
		logger.Warn("failed to record command response", "error", err)
		return
	}
	logger.Info("pump reported command", "status", status, "log_id", logID)
}
