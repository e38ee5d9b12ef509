package graph

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

func tok(s string) token.Token {
	t, err := token.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func toks(ss ...string) []token.Token {
	out := make([]token.Token, len(ss))
	for i, s := range ss {
		out[i] = tok(s)
	}
	return out
}

// G <- P1(R1, A1); A1 <- P2(R1); R1 <- P0(S)
func diamondTrace(t *testing.T, start string, dir walker.Direction) *walker.Trace {
	t.Helper()
	ix := provenance.Build([]provenance.ProcessRecord{
		{ID: "P0", Name: "Sequencing", Inputs: toks("sdt_sample:S"), Outputs: toks("sdt_reads:R1"), Protocols: []string{"Illumina", "QC"}},
		{ID: "P1", Name: "Annotation", Inputs: toks("sdt_reads:R1", "sdt_assembly:A1"), Outputs: toks("sdt_genome:G")},
		{ID: "P2", Name: "Assembly", Inputs: toks("sdt_reads:R1"), Outputs: toks("sdt_assembly:A1")},
	})
	trace, err := walker.New(ix).Trace(tok(start), dir)
	require.NoError(t, err)
	return trace
}

func nodeIDs(g *Graph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestFromTrace_Upstream(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return now }), WithLogger(zaptest.NewLogger(t).Sugar()))

	g, err := b.FromTrace(diamondTrace(t, "sdt_genome:G", walker.DirectionUp))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"process_p0", "process_p1", "process_p2",
		"sdt_assembly_a1", "sdt_genome_g", "sdt_reads_r1", "sdt_sample_s",
	}, nodeIDs(g))

	type edge struct {
		source, target, kind string
		weight               float64
	}
	var got []edge
	for _, l := range g.Links {
		got = append(got, edge{l.Source, l.Target, l.Type, l.Weight})
	}
	assert.ElementsMatch(t, []edge{
		{"process_p1", "sdt_genome_g", RelationProduced, 1},
		{"sdt_reads_r1", "process_p1", RelationInputOf, 1},
		{"sdt_assembly_a1", "process_p1", RelationInputOf, 1},
		{"process_p0", "sdt_reads_r1", RelationProduced, 1.5},
		{"sdt_sample_s", "process_p0", RelationInputOf, 1},
		{"process_p2", "sdt_assembly_a1", RelationProduced, 1},
		{"sdt_reads_r1", "process_p2", RelationInputOf, 1},
	}, got)

	assert.Equal(t, Stats{TotalNodes: 7, TotalEdges: 7, Processes: 3}, g.Meta.Stats)
	assert.Equal(t, now, g.Meta.GeneratedAt)
	assert.Equal(t, "sdt_genome:G", g.Meta.Config["root"])
	assert.Equal(t, "up", g.Meta.Config["direction"])

	require.NotEmpty(t, g.Meta.NodeTypes)
	assert.Equal(t, NodeTypeInfo{Type: NodeTypeProcess, Label: "Process", Color: "#7f8c8d", Count: 3}, g.Meta.NodeTypes[0])
	assert.Equal(t, "sdt_assembly", g.Meta.NodeTypes[1].Type, "ties sort by type")

	require.Len(t, g.Meta.RelationshipTypes, 2)
	assert.Equal(t, RelationInputOf, g.Meta.RelationshipTypes[0].Type)
	assert.Equal(t, 4, g.Meta.RelationshipTypes[0].Count)
	assert.Equal(t, 3, g.Meta.RelationshipTypes[1].Count)
}

func TestFromTrace_NodeDetails(t *testing.T) {
	b := NewBuilder(WithLabeler(func(t token.Token) string { return "name of " + t.ID }))

	g, err := b.FromTrace(diamondTrace(t, "sdt_genome:G", walker.DirectionUp))
	require.NoError(t, err)

	byID := make(map[string]Node)
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	root := byID["sdt_genome_g"]
	assert.True(t, root.Root)
	assert.Equal(t, "name of G", root.Label)
	assert.Equal(t, DefaultTypeDefinitions["sdt_genome"].Group, root.Group)
	assert.Equal(t, "sdt_genome:G", root.Metadata["token"])
	assert.False(t, byID["sdt_reads_r1"].Root)

	p0 := byID["process_p0"]
	assert.Equal(t, NodeTypeProcess, p0.Type)
	assert.Equal(t, "Sequencing (P0)", p0.Label)
	assert.Equal(t, "Illumina, QC", p0.Metadata["protocols"])
	assert.NotContains(t, p0.Metadata, "performed_by")
}

func TestFromTrace_Downstream(t *testing.T) {
	g, err := NewBuilder().FromTrace(diamondTrace(t, "sdt_reads:R1", walker.DirectionDown))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"process_p1", "process_p2",
		"sdt_assembly_a1", "sdt_genome_g", "sdt_reads_r1",
	}, nodeIDs(g))

	for _, l := range g.Links {
		if l.Type == RelationInputOf {
			assert.Contains(t, []string{"sdt_reads_r1", "sdt_assembly_a1"}, l.Source)
		} else {
			assert.Contains(t, []string{"process_p1", "process_p2"}, l.Source)
		}
	}
}

func TestFromTrace_Deterministic(t *testing.T) {
	clock := WithClock(func() time.Time { return time.Unix(0, 0) })
	first, err := NewBuilder(clock).FromTrace(diamondTrace(t, "sdt_genome:G", walker.DirectionUp))
	require.NoError(t, err)
	second, err := NewBuilder(clock).FromTrace(diamondTrace(t, "sdt_genome:G", walker.DirectionUp))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Contains(t, string(a), `"value":1.5`)
}

func TestFromTrace_LoneObject(t *testing.T) {
	ix := provenance.Build(nil)
	trace, err := walker.New(ix).Trace(tok("sdt_reads:R9"), walker.DirectionUp)
	require.NoError(t, err)

	g, err := NewBuilder().FromTrace(trace)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Links)
	assert.True(t, g.Nodes[0].Root)
}

func TestFromTrace_Empty(t *testing.T) {
	_, err := NewBuilder().FromTrace(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNormalizeNodeID(t *testing.T) {
	assert.Equal(t, "sdt_reads_reads0000001", normalizeNodeID("sdt_reads:Reads0000001"))
	assert.Equal(t, "a_b-c", normalizeNodeID("A@b-c"))
	assert.Equal(t, "process_p1", ProcessNodeID("P1"))
}
