// Package display renders lineage results for terminals and machines.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/teranos/lineage/errors"
)

// Format is an output encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatGraph Format = "graph" // node/link JSON of a trace
)

// ParseFormat validates s against allowed. An empty s selects text.
func ParseFormat(s string, allowed ...Format) (Format, error) {
	if s == "" {
		s = string(FormatText)
	}
	f := Format(strings.ToLower(s))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", errors.WithHintf(
		errors.Wrapf(errors.ErrInvalidRequest, "unknown format %q", s),
		"use one of: %s", strings.Join(names, ", "))
}

// FormatFromCommand reads --format, letting an explicit or global --json
// flag force JSON.
func FormatFromCommand(cmd *cobra.Command, allowed ...Format) (Format, error) {
	if cmd == nil {
		return FormatText, nil
	}
	if cmd.Flags().Lookup("json") != nil {
		if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
			return FormatJSON, nil
		}
	}
	s, _ := cmd.Flags().GetString("format")
	return ParseFormat(s, allowed...)
}

// Write encodes v to w. Text output is the caller's job.
func Write(w io.Writer, f Format, v any) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON, FormatGraph:
		data, err = MarshalJSON(v, false)
	case FormatYAML:
		data, err = MarshalYAML(v)
	case FormatTOML:
		data, err = toml.Marshal(v)
		err = errors.Wrap(err, "failed to marshal TOML")
	default:
		return errors.Wrapf(errors.ErrInvalidRequest, "format %q is not a data encoding", f)
	}
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "write output")
}

// orDash substitutes "-" for empty values in text output.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
