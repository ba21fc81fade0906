package event

import (
	"golang.org/x/exp/slog"

	"go-crash/internal/ws/handler"
)

// Publisher is the outbound event surface of the engine. Implementations must
// never block the caller: lifecycle transitions and ticks run on timing paths.
type Publisher interface {
	TriggerEvent(channel, event string, data map[string]interface{}) error
	TriggerPrivate(userUUID, event string, data map[string]interface{}) error
}

type HubEvent struct {
	log *slog.Logger
	hub *handler.Hub
}

func NewHubEvent(log *slog.Logger, hub *handler.Hub) *HubEvent {
	return &HubEvent{
		log: log,
		hub: hub,
	}
}

func (p *HubEvent) TriggerEvent(channel, event string, data map[string]interface{}) error {
	select {
	case p.hub.Broadcast <- handler.Message{Channel: channel, Event: event, Data: data}:
	default:
		p.log.Warn("event dropped, hub backlog full", slog.String("event", event))
	}

	return nil
}

func (p *HubEvent) TriggerPrivate(userUUID, event string, data map[string]interface{}) error {
	select {
	case p.hub.Private <- handler.PrivateMessage{UserUUID: userUUID, Event: event, Data: data}:
	default:
		p.log.Warn("private event dropped, hub backlog full", slog.String("event", event))
	}

	return nil
}
