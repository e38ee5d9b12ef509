package graph

import "sort"

// TypeDefinition holds display metadata for a node type.
type TypeDefinition struct {
	DisplayColor string
	DisplayLabel string
	Group        int
}

// DefaultTypeDefinitions covers the collections provenance traces usually
// pass through.
var DefaultTypeDefinitions = map[string]TypeDefinition{
	NodeTypeProcess: {DisplayColor: "#7f8c8d", DisplayLabel: "Process", Group: 1},
	"sdt_sample":    {DisplayColor: "#27ae60", DisplayLabel: "Sample", Group: 2},
	"sdt_reads":     {DisplayColor: "#2980b9", DisplayLabel: "Reads", Group: 3},
	"sdt_assembly":  {DisplayColor: "#8e44ad", DisplayLabel: "Assembly", Group: 4},
	"sdt_genome":    {DisplayColor: "#c0392b", DisplayLabel: "Genome", Group: 5},
	"sdt_strain":    {DisplayColor: "#d35400", DisplayLabel: "Strain", Group: 6},
}

// collectNodeTypeInfo counts nodes per type, most common first and ties by
// type name.
func collectNodeTypeInfo(nodes []Node, defs map[string]TypeDefinition) []NodeTypeInfo {
	typeCounts := make(map[string]int)
	for _, node := range nodes {
		typeCounts[node.Type]++
	}

	nodeTypes := make([]NodeTypeInfo, 0, len(typeCounts))
	for nodeType, count := range typeCounts {
		info := NodeTypeInfo{Type: nodeType, Label: nodeType, Color: defaultUntypedColor, Count: count}
		if def, ok := defs[nodeType]; ok {
			info.Color = def.DisplayColor
			info.Label = def.DisplayLabel
		}
		nodeTypes = append(nodeTypes, info)
	}

	sort.Slice(nodeTypes, func(i, j int) bool {
		if nodeTypes[i].Count != nodeTypes[j].Count {
			return nodeTypes[i].Count > nodeTypes[j].Count
		}
		return nodeTypes[i].Type < nodeTypes[j].Type
	})
	return nodeTypes
}
