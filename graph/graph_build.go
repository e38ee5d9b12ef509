package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// FromTrace flattens a trace tree into nodes and links. Every object and
// process appears once; an edge the tree repeats gains weight. Output is
// sorted by ID so the same trace always renders the same document.
func (b *Builder) FromTrace(trace *walker.Trace) (*Graph, error) {
	if trace == nil || trace.Root == nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "empty trace")
	}

	root := trace.Root.Token
	graph := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		Meta: Meta{
			GeneratedAt: b.now().UTC(),
			Config: map[string]string{
				"root":        root.String(),
				"direction":   string(trace.Direction),
				"description": fmt.Sprintf("%s provenance of %s", trace.Direction, root),
			},
		},
	}

	nodeMap := make(map[string]*Node)
	linkMap := make(map[string]*Link)

	addObject := func(t token.Token) string {
		id := ObjectNodeID(t)
		if _, exists := nodeMap[id]; !exists {
			nodeMap[id] = &Node{
				ID:    id,
				Type:  t.Collection,
				Label: b.label(t),
				Group: b.types[t.Collection].Group,
				Root:  t == root,
				Metadata: map[string]any{
					"token":      t.String(),
					"collection": t.Collection,
					"object_id":  t.ID,
				},
			}
		}
		return id
	}
	addProcess := func(p *provenance.ProcessRecord) string {
		id := ProcessNodeID(p.ID)
		if _, exists := nodeMap[id]; !exists {
			nodeMap[id] = &Node{
				ID:       id,
				Type:     NodeTypeProcess,
				Label:    processLabel(p),
				Group:    b.types[NodeTypeProcess].Group,
				Metadata: processMetadata(p),
			}
			graph.Meta.Stats.Processes++
		}
		return id
	}
	addLink := func(source, target, relation string) {
		linkID := source + "|" + relation + "|" + target
		if link, exists := linkMap[linkID]; exists {
			link.Weight += linkWeightIncrement
			return
		}
		linkMap[linkID] = &Link{
			Source: source,
			Target: target,
			Type:   relation,
			Weight: defaultLinkWeight,
			Label:  b.relationships[relation].DisplayLabel,
		}
	}

	trace.Walk(func(node *walker.TraceNode, _ int) {
		objID := addObject(node.Token)
		for _, step := range node.Steps {
			procID := addProcess(step.Process)
			if trace.Direction == walker.DirectionDown {
				addLink(objID, procID, RelationInputOf)
				for _, child := range step.Children {
					addLink(procID, addObject(child.Token), RelationProduced)
				}
				continue
			}
			addLink(procID, objID, RelationProduced)
			for _, child := range step.Children {
				addLink(addObject(child.Token), procID, RelationInputOf)
			}
		}
	})

	nodeIDs := make([]string, 0, len(nodeMap))
	for id := range nodeMap {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	for _, id := range nodeIDs {
		graph.Nodes = append(graph.Nodes, *nodeMap[id])
	}

	linkIDs := make([]string, 0, len(linkMap))
	for id := range linkMap {
		linkIDs = append(linkIDs, id)
	}
	sort.Strings(linkIDs)
	for _, id := range linkIDs {
		graph.Links = append(graph.Links, *linkMap[id])
	}

	graph.Meta.Stats.TotalNodes = len(graph.Nodes)
	graph.Meta.Stats.TotalEdges = len(graph.Links)
	graph.Meta.NodeTypes = collectNodeTypeInfo(graph.Nodes, b.types)
	graph.Meta.RelationshipTypes = collectRelationshipTypeInfo(graph.Links, b.relationships)

	b.logger.Debugw("Built graph",
		logger.FieldToken, root.String(),
		"nodes", graph.Meta.Stats.TotalNodes,
		logger.FieldEdges, graph.Meta.Stats.TotalEdges)
	return graph, nil
}

func processLabel(p *provenance.ProcessRecord) string {
	if p.Name == "" {
		return p.ID
	}
	return p.Name + " (" + p.ID + ")"
}

func processMetadata(p *provenance.ProcessRecord) map[string]any {
	meta := map[string]any{"process_id": p.ID}
	if p.Name != "" {
		meta["name"] = p.Name
	}
	if p.PerformedBy != "" {
		meta["performed_by"] = p.PerformedBy
	}
	if len(p.Protocols) > 0 {
		meta["protocols"] = strings.Join(p.Protocols, ", ")
	}
	if p.CompletedAt != "" {
		meta["completed_at"] = p.CompletedAt
	}
	return meta
}
