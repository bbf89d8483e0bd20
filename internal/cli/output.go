package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// render writes v in the requested format. Table output is delegated to
// table, which receives an aligned writer that is flushed afterwards.
func render(w io.Writer, format string, v any, table func(w io.Writer)) error {
	switch format {
	case "", outputTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseTime accepts RFC 3339 timestamps or local dates and times.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)", s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func marker(fired []string) string {
	if len(fired) == 0 {
		return "-"
	}
	out := fired[0]
	for _, f := range fired[1:] {
		out += "," + f
	}
	return out
}
