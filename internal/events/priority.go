package events

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Priority is an ordered importance level. Higher values compare greater;
// ordering is used by policy's min-priority gates (spec.md §4.2).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// DefaultPriority is the priority assigned by Builder when none is set.
const DefaultPriority = PriorityNormal

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (p Priority) MarshalYAML() (any, error) {
	return p.String(), nil
}

func (p *Priority) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority parses one of "low", "normal", "high", "critical".
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("invalid priority %q", s)
	}
}
