package metrics

import "github.com/kilianp07/agv/core/factory"

var sinkRegistry = factory.NewRegistry[Sink]("metrics sink")

// RegisterSink adds a sink factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink builds the configured sinks. No sink yields a NopSink and several
// are combined into a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	sinks, err := sinkRegistry.CreateAll(cfgs)
	if err != nil {
		return nil, err
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
