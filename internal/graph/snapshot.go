package graph

import (
	"encoding/json"
	"fmt"

	"github.com/papapumpkin/pulsar/internal/project"
)

// SnapshotSchema versions the snapshot wire shape. Bump it whenever
// Project, Edge, or the payload layout changes; decoders treat any other
// schema as unreadable.
const SnapshotSchema = 1

// Snapshot is the serialized form of a graph, used by the on-disk cache.
// Projects and edges keep their construction order so a decoded graph
// reproduces the original listings and traversal order exactly.
type Snapshot struct {
	Schema   int                `json:"schema"`
	Projects []*project.Project `json:"projects"`
	Edges    []Edge             `json:"edges,omitempty"`
	Known    []string           `json:"known,omitempty"`
}

// Snapshot captures the handle's current graph.
func (h *Handle) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := &Snapshot{
		Schema:   SnapshotSchema,
		Projects: h.g.Projects(),
		Known:    h.g.knownIDs(),
	}
	for _, id := range h.g.IDs() {
		s.Edges = append(s.Edges, h.g.adjacency[id]...)
	}
	return s
}

// Encode renders the snapshot as JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding graph snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses snapshot bytes. Undecodable payloads and unknown
// schemas are errors; the cache treats either as a miss.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding graph snapshot: %w", err)
	}
	if s.Schema != SnapshotSchema {
		return nil, fmt.Errorf("graph snapshot schema %d, want %d", s.Schema, SnapshotSchema)
	}
	return &s, nil
}

// FromSnapshot rebuilds a handle from a decoded snapshot.
func FromSnapshot(s *Snapshot) (*Handle, error) {
	g := New()
	for _, p := range s.Projects {
		if err := g.AddProject(p); err != nil {
			return nil, fmt.Errorf("restoring graph snapshot: %w", err)
		}
	}
	g.MarkKnown(s.Known...)
	for _, e := range s.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("restoring graph snapshot: %w", err)
		}
	}
	return NewHandle(g), nil
}
