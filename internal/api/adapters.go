package api

import (
	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/model"
	"github.com/pocketsage/pocketsage/internal/websocket"
)

// HubObserver forwards lifecycle and transfer events to websocket clients.
type HubObserver struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

var _ model.Observer = (*HubObserver)(nil)

// NewHubObserver creates an observer that broadcasts through hub.
func NewHubObserver(hub *websocket.Hub, logger zerolog.Logger) *HubObserver {
	return &HubObserver{
		hub:    hub,
		logger: logger.With().Str("component", "hub-observer").Logger(),
	}
}

// OnStatusChanged implements model.Observer.
func (o *HubObserver) OnStatusChanged(state model.State) {
	o.broadcast("model:status", map[string]interface{}{"state": state})
}

// OnProgress implements model.Observer.
func (o *HubObserver) OnProgress(snap model.Snapshot) {
	o.broadcast("model:progress", snap)
}

// OnSuccess implements model.Observer.
func (o *HubObserver) OnSuccess(path string) {
	o.broadcast("model:success", map[string]interface{}{"path": path})
}

// OnError implements model.Observer.
func (o *HubObserver) OnError(message string) {
	o.broadcast("model:error", map[string]interface{}{"error": message})
}

// OnCancelled implements model.Observer.
func (o *HubObserver) OnCancelled() {
	o.broadcast("model:cancelled", map[string]interface{}{})
}

func (o *HubObserver) broadcast(msgType string, payload interface{}) {
	if err := o.hub.Broadcast(msgType, payload); err != nil {
		o.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to broadcast event")
	}
}
