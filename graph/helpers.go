package graph

import (
	"strings"

	"github.com/teranos/lineage/token"
)

// normalizeNodeID creates a safe, lowercase node ID for graph visualization.
// Example: "sdt_reads:Reads0000001" becomes "sdt_reads_reads0000001"
func normalizeNodeID(id string) string {
	normalized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, id)
	return strings.ToLower(normalized)
}

// ObjectNodeID is the node ID of an object.
func ObjectNodeID(t token.Token) string {
	return normalizeNodeID(t.String())
}

// ProcessNodeID is the node ID of a process.
func ProcessNodeID(processID string) string {
	return normalizeNodeID(NodeTypeProcess + ":" + processID)
}
