package deviceauth

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a device lifecycle event.
type EventType string

const (
	// EventConfirmed fires when a pending device is approved by its owner.
	EventConfirmed EventType = "device.confirmed"
	// EventRevoked fires when an owner revokes an approved device.
	EventRevoked EventType = "device.revoked"
)

// Event describes a device lifecycle change for interested subscribers.
type Event struct {
	Type      EventType `json:"type"`
	OwnerID   uuid.UUID `json:"ownerId"`
	DeviceID  uuid.UUID `json:"deviceId"`
	Name      string    `json:"deviceName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers device lifecycle events. Delivery is best-effort;
// publishers must never block a state transition.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
