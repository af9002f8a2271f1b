package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/agv/core/model"
	coremqtt "github.com/kilianp07/agv/core/mqtt"
	"github.com/kilianp07/agv/core/sim"
)

// SubmitFunc submits a manual order to the simulation.
type SubmitFunc func(ctx context.Context, req sim.OrderRequest) (model.OrderRecord, error)

// NewOrderHandler turns order commands into manual orders and acknowledges
// each one on the ack topic.
func NewOrderHandler(ctx context.Context, submit SubmitFunc, pub *Publisher, timeout time.Duration) OrderHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(cmd coremqtt.OrderCommand) {
		req := sim.OrderRequest{Pickup: cmd.Pickup, Dropoff: cmd.Dropoff, Priority: cmd.Priority}
		if cmd.SlackSeconds != nil {
			d := time.Duration(*cmd.SlackSeconds * float64(time.Second))
			req.Slack = &d
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		rec, err := submit(cctx, req)
		ack := coremqtt.OrderAck{CommandID: cmd.CommandID, OrderID: rec.ID, Accepted: err == nil}
		if err != nil {
			ack.Error = err.Error()
		}
		pub.PublishAck(ack)
	}
}
