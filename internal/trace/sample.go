package trace

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
)

// Sample is the immutable record of an ended transaction handed to a harvest
type Sample struct {
	ID         string
	Name       string
	Start      time.Time
	Duration   time.Duration
	Attributes map[string]string
	Root       *Node
}

// Sample snapshots an ended transaction
func (t *Transaction) Sample() (Sample, error) {
	if t.state != StateEnded {
		return Sample{}, agenterr.Usage("sample_transaction", agenterr.ErrNotEnded)
	}
	return Sample{
		ID:         t.id,
		Name:       t.name,
		Start:      t.root.start,
		Duration:   t.root.Duration(),
		Attributes: t.Attributes(),
		Root:       t.root,
	}, nil
}

// Payload encodes the sample in the collector's transaction trace layout:
//
//	[start_ms, duration_ms, name, id, attributes, segment]
//
// where segment is [start_offset_ms, end_offset_ms, name, params, [children...]].
func (s Sample) Payload() []any {
	return []any{
		s.Start.UnixMilli(),
		s.Duration.Milliseconds(),
		s.Name,
		s.ID,
		s.Attributes,
		encodeSegment(s.Root, s.Start),
	}
}

func encodeSegment(n *Node, base time.Time) []any {
	children := make([]any, 0, len(n.children))
	for _, child := range n.children {
		children = append(children, encodeSegment(child, base))
	}
	return []any{
		n.start.Sub(base).Milliseconds(),
		n.end.Sub(base).Milliseconds(),
		n.name,
		map[string]any{"exclusive_duration_millis": n.ExclusiveDuration().Milliseconds()},
		children,
	}
}
