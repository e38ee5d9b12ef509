package display

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/selector"
)

// RenderTable draws rows under a header row.
func RenderTable(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	fprintf(w, "%s\n", out)
	return nil
}

// RenderArtifacts lists selected artifacts, one row each, pairs adjacent.
func RenderArtifacts(w io.Writer, selected []selector.Selected) error {
	if len(selected) == 0 {
		fprintf(w, "%s\n", pterm.Gray("No matching artifacts"))
		return nil
	}
	rows := make([][]string, 0, len(selected))
	for _, s := range selected {
		rows = append(rows, []string{
			s.Token.String(),
			orDash(s.Artifact.Name),
			orDash(s.Group),
			orDash(s.Mate),
			strconv.Itoa(s.Depth),
			orDash(tags(s.Artifact.Tags)),
			orDash(s.Artifact.Link),
		})
	}
	return RenderTable(w, []string{"Token", "Name", "Group", "Mate", "Depth", "Tags", "Link"}, rows)
}

func tags(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}

// maxListedInputs bounds how many inputs RenderProcesses prints per process.
const maxListedInputs = 5

// RenderProcesses describes each process with its first inputs.
func RenderProcesses(w io.Writer, title string, procs []*provenance.ProcessRecord) {
	fprintf(w, "%s\n", pterm.Bold.Sprint(title))
	if len(procs) == 0 {
		fprintf(w, "  %s\n", pterm.Gray("No processes found"))
		return
	}
	fprintf(w, "  Total processes: %d\n", len(procs))
	for i, p := range procs {
		fprintf(w, "  Process %d:\n", i+1)
		fprintf(w, "    ID: %s\n", p.ID)
		fprintf(w, "    Process Term: %s\n", orDash(p.Name))
		fprintf(w, "    Person: %s\n", orDash(p.PerformedBy))
		fprintf(w, "    Protocol: %s\n", orDash(strings.Join(p.Protocols, ", ")))
		fprintf(w, "    Date End: %s\n", orDash(p.CompletedAt))
		fprintf(w, "    Inputs (%d):\n", len(p.Inputs))
		for j, in := range p.Inputs {
			if j == maxListedInputs {
				fprintf(w, "      ... and %d more\n", len(p.Inputs)-maxListedInputs)
				break
			}
			fprintf(w, "      - %s\n", in)
		}
	}
}
