package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Show the effective threshold table",
	Long: `Show the duration thresholds in effect. With clock.debug enabled the
day-scale thresholds are compressed into seconds for manual testing.`,
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)
	clockCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

// clockView is the printable form of the clock configuration.
type clockView struct {
	Debug      bool              `json:"debug" yaml:"debug"`
	Now        string            `json:"now" yaml:"now"`
	Thresholds map[string]string `json:"thresholds" yaml:"thresholds"`
}

func newClockView(c *clock.System) clockView {
	table := c.Table()
	view := clockView{
		Debug:      c.Debug(),
		Now:        c.Now().Format("2006-01-02T15:04:05Z07:00"),
		Thresholds: make(map[string]string, len(table)),
	}
	for label, d := range table {
		view.Thresholds[string(label)] = d.String()
	}
	return view
}

func runClock(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	clk, err := cfg.NewClock()
	if err != nil {
		return err
	}

	view := newClockView(clk)
	return render(os.Stdout, format, view, func(w io.Writer) { clockTable(w, view) })
}

func clockTable(w io.Writer, v clockView) {
	mode := "real"
	if v.Debug {
		mode = "debug"
	}
	fmt.Fprintf(w, "MODE\t%s\n", mode)
	fmt.Fprintf(w, "NOW\t%s\n\n", v.Now)
	fmt.Fprintf(w, "LABEL\tDURATION\n")
	for _, label := range clock.Labels() {
		fmt.Fprintf(w, "%s\t%s\n", label, v.Thresholds[string(label)])
	}
}
