package mqtt

import "testing"

func TestTopics(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{Topics{}.Event("order_created"), "agv/events/order_created"},
		{Topics{Prefix: "/plant/"}.Snapshot(), "plant/fleet/snapshot"},
		{Topics{Prefix: "plant"}.Vehicle("AGV-01"), "plant/vehicles/AGV-01/status"},
		{Topics{Prefix: "plant"}.Orders(), "plant/commands/orders"},
		{Topics{Prefix: "plant"}.Ack(), "plant/commands/ack"},
		{Topics{}.Presence(), "agv/simulator/presence"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("topic %q, want %q", c.got, c.want)
		}
	}
}
