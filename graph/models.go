// Package graph exports provenance traces as node/link documents for
// force-directed viewers. Objects and processes both become nodes.
package graph

import (
	"time"
)

// Graph represents the complete graph structure for visualization
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Links []Link `json:"links" yaml:"links"`
	Meta  Meta   `json:"meta" yaml:"meta"`
}

// Node is an object or a process in the graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"` // collection name, or "process"
	Label    string         `json:"label" yaml:"label"`
	Group    int            `json:"group,omitempty" yaml:"group,omitempty"` // from the type definition
	Root     bool           `json:"root,omitempty" yaml:"root,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Link represents a relationship between nodes
type Link struct {
	Source string  `json:"source" yaml:"source"` // Node ID
	Target string  `json:"target" yaml:"target"` // Node ID
	Type   string  `json:"type" yaml:"type"`     // RelationProduced or RelationInputOf
	Weight float64 `json:"value" yaml:"value"`   // D3 uses "value"
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Meta contains metadata about the graph
type Meta struct {
	GeneratedAt       time.Time              `json:"generated_at" yaml:"generated_at"`
	Stats             Stats                  `json:"stats" yaml:"stats"`
	Config            map[string]string      `json:"config" yaml:"config"`
	NodeTypes         []NodeTypeInfo         `json:"node_types" yaml:"node_types"`
	RelationshipTypes []RelationshipTypeInfo `json:"relationship_types" yaml:"relationship_types"`
}

// NodeTypeInfo describes a node type present in the graph.
type NodeTypeInfo struct {
	Type  string `json:"type" yaml:"type"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Count int    `json:"count,omitempty" yaml:"count,omitempty"`
}

// RelationshipTypeInfo describes a relationship type with physics and visual configuration
type RelationshipTypeInfo struct {
	Type         string   `json:"type" yaml:"type"`
	Label        string   `json:"label" yaml:"label"`
	Color        string   `json:"color,omitempty" yaml:"color,omitempty"`
	LinkDistance *float64 `json:"link_distance,omitempty" yaml:"link_distance,omitempty"` // nil = viewer default
	LinkStrength *float64 `json:"link_strength,omitempty" yaml:"link_strength,omitempty"`
	Count        int      `json:"count,omitempty" yaml:"count,omitempty"`
}

// Stats provides graph statistics
type Stats struct {
	TotalNodes int `json:"total_nodes,omitempty" yaml:"total_nodes,omitempty"`
	TotalEdges int `json:"total_edges,omitempty" yaml:"total_edges,omitempty"`
	Processes  int `json:"processes,omitempty" yaml:"processes,omitempty"`
}
