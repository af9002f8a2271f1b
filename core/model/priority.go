package model

import (
	"fmt"
	"strings"
)

// Priority ranks orders by urgency. Higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityUrgent
	PriorityEmergency
)

// Priorities lists every level from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent, PriorityEmergency}

// String returns the upper-case name of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	case PriorityEmergency:
		return "EMERGENCY"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the declared levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityEmergency
}

// ParsePriority converts a level name, case-insensitively, into a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
