package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kilianp07/agv/core/events"
	coremqtt "github.com/kilianp07/agv/core/mqtt"
	"github.com/kilianp07/agv/core/status"
	"github.com/kilianp07/agv/infra/logger"
)

type outgoing struct {
	topic    string
	kind     coremqtt.Kind
	retained bool
	payload  []byte
}

// Publisher forwards events and snapshots to the broker from its own
// goroutine, so a slow broker never stalls the simulation. Messages that do
// not fit in the queue are dropped and counted.
type Publisher struct {
	client  coremqtt.Client
	topics  coremqtt.Topics
	runID   string
	queue   chan outgoing
	log     logger.Logger
	dropped atomic.Uint64
}

// NewPublisher creates a publisher with a queue of size messages.
func NewPublisher(client coremqtt.Client, topics coremqtt.Topics, runID string, size int) *Publisher {
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		client: client,
		topics: topics,
		runID:  runID,
		queue:  make(chan outgoing, size),
		log:    logger.New("mqtt_publisher"),
	}
}

// Run publishes queued messages until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.queue:
			if err := p.client.Publish(m.topic, m.kind, m.retained, m.payload); err != nil {
				p.log.Errorf("publish %s: %v", m.topic, err)
			}
		}
	}
}

// Dropped returns how many messages were discarded on a full queue.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Observe queues the events of a tick.
func (p *Publisher) Observe(_ status.Snapshot, evs []events.Event) {
	for _, ev := range evs {
		msg := coremqtt.Message{ID: uuid.NewString(), RunID: p.runID, Name: ev.Name(), At: ev.OccurredAt(), Payload: ev}
		p.enqueue(p.topics.Event(ev.Name()), coremqtt.KindEvent, false, msg)
	}
}

// PublishSnapshot queues the fleet snapshot and the retained status of
// every vehicle.
func (p *Publisher) PublishSnapshot(snap status.Snapshot) {
	p.enqueue(p.topics.Snapshot(), coremqtt.KindSnapshot, false, snap)
	for _, v := range snap.Vehicles {
		p.enqueue(p.topics.Vehicle(v.ID), coremqtt.KindVehicle, true, v)
	}
}

// PublishAck queues the result of an order command.
func (p *Publisher) PublishAck(ack coremqtt.OrderAck) {
	p.enqueue(p.topics.Ack(), coremqtt.KindAck, false, ack)
}

func (p *Publisher) enqueue(topic string, kind coremqtt.Kind, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Errorf("encode %s: %v", topic, err)
		return
	}
	select {
	case p.queue <- outgoing{topic: topic, kind: kind, retained: retained, payload: payload}:
	default:
		if p.dropped.Add(1) == 1 {
			p.log.Warnf("publish queue full, dropping messages")
		}
	}
}

// Published is a message captured by MockClient.
type Published struct {
	Topic    string
	Kind     coremqtt.Kind
	Retained bool
	Payload  []byte
}

// MockClient records published messages. It is used in tests and when the
// broker is disabled in dry runs.
type MockClient struct {
	mu       sync.Mutex
	Messages []Published
	Fail     error
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient { return &MockClient{} }

// Publish records the message or returns the configured failure.
func (m *MockClient) Publish(topic string, kind coremqtt.Kind, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Messages = append(m.Messages, Published{Topic: topic, Kind: kind, Retained: retained, Payload: payload})
	return nil
}

// Topics returns the topics published so far, in order.
func (m *MockClient) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Messages))
	for i, msg := range m.Messages {
		out[i] = msg.Topic
	}
	return out
}
