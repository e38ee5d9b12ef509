package graph

import "sort"

// RelationshipDefinition holds physics and display metadata for a relationship type.
type RelationshipDefinition struct {
	DisplayLabel string
	Color        string
	LinkDistance *float64 // nil = viewer default
	LinkStrength *float64
}

func float(f float64) *float64 { return &f }

// DefaultRelationshipDefinitions keeps inputs close to the process that
// consumed them.
var DefaultRelationshipDefinitions = map[string]RelationshipDefinition{
	RelationProduced: {DisplayLabel: "Produced", LinkDistance: float(60)},
	RelationInputOf:  {DisplayLabel: "Input of", LinkDistance: float(40), LinkStrength: float(0.8)},
}

// collectRelationshipTypeInfo counts links per type, most common first.
func collectRelationshipTypeInfo(links []Link, defs map[string]RelationshipDefinition) []RelationshipTypeInfo {
	typeCounts := make(map[string]int)
	for _, link := range links {
		typeCounts[link.Type]++
	}

	relationshipTypes := make([]RelationshipTypeInfo, 0, len(typeCounts))
	for linkType, count := range typeCounts {
		info := RelationshipTypeInfo{Type: linkType, Label: linkType, Count: count}
		if def, ok := defs[linkType]; ok {
			info.Label = def.DisplayLabel
			info.Color = def.Color
			info.LinkDistance = def.LinkDistance
			info.LinkStrength = def.LinkStrength
		}
		relationshipTypes = append(relationshipTypes, info)
	}

	sort.Slice(relationshipTypes, func(i, j int) bool {
		if relationshipTypes[i].Count != relationshipTypes[j].Count {
			return relationshipTypes[i].Count > relationshipTypes[j].Count
		}
		return relationshipTypes[i].Type < relationshipTypes[j].Type
	})
	return relationshipTypes
}
