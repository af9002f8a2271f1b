package metrics

import (
	"context"

	"github.com/kilianp07/agv/core/events"
	coremetrics "github.com/kilianp07/agv/core/metrics"
	"github.com/kilianp07/agv/internal/eventbus"
	"github.com/kilianp07/agv/infra/logger"
)

// StartEventCollector subscribes to the event bus and records events on
// sinks implementing EventRecorder. It stops when the context is canceled
// or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.EventRecorder)
	if !ok {
		return
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				batch := []events.Event{ev}
				for drained := false; !drained; {
					select {
					case more, ok := <-sub:
						if !ok {
							drained = true
							break
						}
						batch = append(batch, more)
					default:
						drained = true
					}
				}
				if err := rec.RecordEvents(batch); err != nil {
					log.Errorf("record %d events: %v", len(batch), err)
				}
			}
		}
	}()
}
