package graph

const (
	defaultLinkWeight   = 1.0 // Initial weight for new links
	linkWeightIncrement = 0.5 // Weight increase when the tree repeats an edge

	// Default color for collections without a type definition
	defaultUntypedColor = "rgba(149, 165, 166, 0.3)"

	// NodeTypeProcess is the Type of process nodes.
	NodeTypeProcess = "process"

	// Relationship types
	RelationProduced = "produced" // process -> output object
	RelationInputOf  = "input_of" // input object -> process
)
