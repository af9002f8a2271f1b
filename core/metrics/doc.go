// Package metrics defines the sinks that receive simulation telemetry. A
// Sink records the periodic fleet snapshot; sinks that also implement
// EventRecorder receive the events of every tick. Several sinks can be
// combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
