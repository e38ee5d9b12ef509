package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// Labeler renders an object for display.
type Labeler func(token.Token) string

// RenderTrace draws a trace as an indented tree: objects, then the
// processes that produced (up) or consumed (down) them, then their inputs
// or outputs.
func RenderTrace(w io.Writer, trace *walker.Trace, label Labeler) error {
	if trace == nil || trace.Root == nil {
		return errors.Wrap(errors.ErrInvalidRequest, "empty trace")
	}
	if label == nil {
		label = token.Token.String
	}

	fprintf(w, "%s\n", pterm.Bold.Sprint(label(trace.Root.Token)))
	root := pterm.TreeNode{Children: stepNodes(trace.Root, trace.Direction, label)}
	if len(root.Children) == 0 {
		fprintf(w, "  %s\n", pterm.Gray(noProcess(trace.Direction)))
		fprintf(w, "%d process(es) traversed\n", trace.Traversed)
		return nil
	}

	out, err := pterm.DefaultTree.WithRoot(root).Srender()
	if err != nil {
		return errors.Wrap(err, "render trace")
	}
	fprintf(w, "%s", out)
	if !strings.HasSuffix(out, "\n") {
		fprintf(w, "\n")
	}
	fprintf(w, "%d process(es) traversed\n", trace.Traversed)
	return nil
}

func stepNodes(node *walker.TraceNode, dir walker.Direction, label Labeler) []pterm.TreeNode {
	var out []pterm.TreeNode
	for _, step := range node.Steps {
		prefix := ""
		if step.Of > 1 {
			prefix = fmt.Sprintf("[%d of %d] ", step.Position, step.Of)
		}
		if step.AlreadyTraversed {
			out = append(out, pterm.TreeNode{
				Text: prefix + pterm.Gray(step.Process.ID+" (already traversed)"),
			})
			continue
		}

		tn := pterm.TreeNode{Text: prefix + ProcessSummary(step.Process)}
		for _, child := range step.Children {
			text := label(child.Token)
			if len(child.Steps) == 0 {
				text += "  " + pterm.Gray("<-- "+noProcess(dir))
			}
			tn.Children = append(tn.Children, pterm.TreeNode{
				Text:     text,
				Children: stepNodes(child, dir, label),
			})
		}
		if len(step.Children) == 0 {
			tn.Children = append(tn.Children, pterm.TreeNode{Text: pterm.Gray("(no inputs)")})
		}
		out = append(out, tn)
	}
	return out
}

func noProcess(dir walker.Direction) string {
	if dir == walker.DirectionDown {
		return "(no downstream process)"
	}
	return "(no upstream process)"
}

// ProcessSummary is the one-line description of a process.
func ProcessSummary(p *provenance.ProcessRecord) string {
	return fmt.Sprintf("Process: %s | Person: %s | Protocol: %s | Date: %s | ID: %s",
		pterm.LightCyan(orDash(p.Name)),
		orDash(p.PerformedBy),
		orDash(strings.Join(p.Protocols, ", ")),
		orDash(p.CompletedAt),
		p.ID)
}
