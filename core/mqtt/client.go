// Package mqtt defines the broker-facing contract of the simulator: the
// topics it publishes telemetry on and the order commands it accepts.
package mqtt

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a message. Clients map kinds to QoS levels.
type Kind string

const (
	KindEvent    Kind = "event"
	KindSnapshot Kind = "snapshot"
	KindVehicle  Kind = "vehicle"
	KindAck      Kind = "ack"
	KindCommand  Kind = "command"
)

// Client publishes payloads to a broker.
type Client interface {
	Publish(topic string, kind Kind, retained bool, payload []byte) error
}

// Topics builds the topic names under a common prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return "agv"
	}
	return p
}

// Event is the topic of one event type.
func (t Topics) Event(name string) string { return fmt.Sprintf("%s/events/%s", t.prefix(), name) }

// Snapshot is the topic of the fleet snapshot.
func (t Topics) Snapshot() string { return t.prefix() + "/fleet/snapshot" }

// Vehicle is the retained status topic of one vehicle.
func (t Topics) Vehicle(id string) string { return fmt.Sprintf("%s/vehicles/%s/status", t.prefix(), id) }

// Orders is the topic manual order commands are received on.
func (t Topics) Orders() string { return t.prefix() + "/commands/orders" }

// Ack is the topic order command results are published on.
func (t Topics) Ack() string { return t.prefix() + "/commands/ack" }

// Presence is the retained online/offline topic of the simulator. It also
// carries the broker-side last will.
func (t Topics) Presence() string { return t.prefix() + "/simulator/presence" }

// Presence payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Message is the envelope of every published event.
type Message struct {
	ID      string    `json:"id"`
	RunID   string    `json:"run_id"`
	Name    string    `json:"name"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// OrderCommand requests a manual order.
type OrderCommand struct {
	CommandID    string   `json:"command_id"`
	Pickup       string   `json:"pickup"`
	Dropoff      string   `json:"dropoff"`
	Priority     string   `json:"priority"`
	SlackSeconds *float64 `json:"slack_seconds,omitempty"`
}

// OrderAck reports the outcome of an OrderCommand.
type OrderAck struct {
	CommandID string `json:"command_id"`
	OrderID   string `json:"order_id,omitempty"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}
