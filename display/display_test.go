package display

import (
	"bytes"
	"os"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/selector"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

func TestMain(m *testing.M) {
	pterm.DisableColor()
	os.Exit(m.Run())
}

func tok(s string) token.Token {
	t, err := token.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// G <- P1(R1, A1); A1 <- P2(R1); R1 <- P0(S)
func diamondIndex() *provenance.Index {
	return provenance.Build([]provenance.ProcessRecord{
		{ID: "P0", Name: "Sequencing", PerformedBy: "Lab", Inputs: []token.Token{tok("sdt_sample:S")}, Outputs: []token.Token{tok("sdt_reads:R1")}},
		{ID: "P1", Name: "Annotation", Inputs: []token.Token{tok("sdt_reads:R1"), tok("sdt_assembly:A1")}, Outputs: []token.Token{tok("sdt_genome:G")}},
		{ID: "P2", Name: "Assembly", Protocols: []string{"SPAdes"}, Inputs: []token.Token{tok("sdt_reads:R1")}, Outputs: []token.Token{tok("sdt_assembly:A1")}},
	})
}

func TestRenderTrace_Upstream(t *testing.T) {
	trace, err := walker.New(diamondIndex()).Trace(tok("sdt_genome:G"), walker.DirectionUp)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTrace(&buf, trace, func(t token.Token) string { return t.ID + "  (" + t.String() + ")" }))
	out := buf.String()

	assert.Contains(t, out, "G  (sdt_genome:G)")
	assert.Contains(t, out, "Process: Annotation | Person: - | Protocol: - | Date: - | ID: P1")
	assert.Contains(t, out, "Process: Sequencing | Person: Lab")
	assert.Contains(t, out, "Protocol: SPAdes")
	assert.Contains(t, out, "(no upstream process)")
	assert.Contains(t, out, "P0 (already traversed)")
	assert.Contains(t, out, "3 process(es) traversed")
}

func TestRenderTrace_Downstream(t *testing.T) {
	trace, err := walker.New(diamondIndex()).Trace(tok("sdt_reads:R1"), walker.DirectionDown)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTrace(&buf, trace, nil))
	out := buf.String()

	assert.Contains(t, out, "sdt_reads:R1")
	assert.Contains(t, out, "[1 of 2] Process: Annotation")
	assert.Contains(t, out, "[2 of 2] Process: Assembly")
	assert.Contains(t, out, "(no downstream process)")
}

func TestRenderTrace_NoProcesses(t *testing.T) {
	trace, err := walker.New(provenance.Build(nil)).Trace(tok("sdt_reads:X"), walker.DirectionUp)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTrace(&buf, trace, nil))
	assert.Contains(t, buf.String(), "(no upstream process)")
	assert.Contains(t, buf.String(), "0 process(es) traversed")

	assert.Error(t, RenderTrace(&buf, nil, nil))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("", FormatText, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("YAML", FormatText, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml", FormatText, FormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Contains(t, errors.FlattenHints(err), "text, json")
}

func TestFormatFromCommand(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
		cmd.Flags().String("format", "", "")
		cmd.Flags().Bool("json", false, "")
		return cmd
	}

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--format", "yaml"}))
	f, err := FormatFromCommand(cmd, FormatText, FormatJSON, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--format", "yaml", "--json"}))
	f, err = FormatFromCommand(cmd, FormatText, FormatJSON, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatFromCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)
}

type sample struct {
	Token token.Token `json:"token"`
	Name  string      `json:"name"`
	Flag  string      `json:"flag"`
	Depth int         `json:"depth"`
}

func TestWrite_Encodings(t *testing.T) {
	v := sample{Token: tok("sdt_reads:R1"), Name: "reads one", Flag: "true", Depth: 2}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, v))
	assert.JSONEq(t, `{"token":"sdt_reads:R1","name":"reads one","flag":"true","depth":2}`, buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatYAML, v))
	out := buf.String()
	assert.Contains(t, out, "sdt_reads:R1")
	assert.Contains(t, out, "name: reads one")
	assert.Contains(t, out, `flag: "true"`, "strings that look like booleans stay quoted")
	assert.Contains(t, out, "depth: 2")
	assert.NotContains(t, out, "{", "block style")

	buf.Reset()
	require.NoError(t, Write(&buf, FormatTOML, map[string]any{"remote": map[string]any{"database": "enigma_coral"}}))
	assert.Contains(t, buf.String(), "[remote]")
	assert.Contains(t, buf.String(), "database = 'enigma_coral'")

	assert.Error(t, Write(&buf, FormatText, v))
}

func TestRenderArtifacts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderArtifacts(&buf, nil))
	assert.Contains(t, buf.String(), "No matching artifacts")

	buf.Reset()
	selected := []selector.Selected{
		{
			Candidate: walker.Candidate{
				Token: tok("sdt_reads:R1"),
				Depth: 3,
				Artifact: walker.Artifact{
					Name: "S1_R1.fastq.gz",
					Link: "https://genomcs.lbl.gov/S1_R1.fastq.gz",
					Tags: map[string]string{"read_type": "paired", "sequencing_technology": "Illumina"},
				},
			},
			Group: "S1",
			Mate:  "R1",
		},
	}
	require.NoError(t, RenderArtifacts(&buf, selected))
	out := buf.String()
	for _, want := range []string{"Token", "sdt_reads:R1", "S1_R1.fastq.gz", "R1", "read_type=paired sequencing_technology=Illumina"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderProcesses(t *testing.T) {
	inputs := make([]token.Token, 7)
	for i := range inputs {
		inputs[i] = token.New("sdt_reads", string(rune('A'+i)))
	}
	var buf bytes.Buffer
	RenderProcesses(&buf, "All processes for G", []*provenance.ProcessRecord{{ID: "P9", Inputs: inputs}})
	out := buf.String()

	assert.Contains(t, out, "All processes for G")
	assert.Contains(t, out, "Total processes: 1")
	assert.Contains(t, out, "Inputs (7):")
	assert.Contains(t, out, "- sdt_reads:E")
	assert.NotContains(t, out, "sdt_reads:F")
	assert.Contains(t, out, "... and 2 more")

	buf.Reset()
	RenderProcesses(&buf, "none", nil)
	assert.Contains(t, buf.String(), "No processes found")
}
