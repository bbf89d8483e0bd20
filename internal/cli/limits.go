package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Inspect period spending limits",
}

var limitsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spend against the daily, weekly and monthly limits",
	RunE:  runLimitsStatus,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.AddCommand(limitsStatusCmd)
	limitsStatusCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

func runLimitsStatus(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	statuses, err := a.engine.LimitStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("limit status: %w", err)
	}

	if len(statuses) == 0 && (format == "" || format == outputTable) {
		fmt.Println("No limits configured. Set limits.daily, limits.weekly or limits.monthly.")
		return nil
	}
	return render(os.Stdout, format, statuses, func(w io.Writer) { limitTable(w, statuses) })
}

var (
	eighty  = decimal.NewFromInt(80)
	ninety  = decimal.NewFromInt(90)
	hundred = decimal.NewFromInt(100)
)

func limitTable(w io.Writer, statuses []engine.LimitStatus) {
	fmt.Fprintf(w, "PERIOD\tKEY\tLIMIT\tSPENT\tREMAINING\tUSAGE\tFIRED\n")
	for _, s := range statuses {
		remaining := s.Limit.Sub(s.Spent)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		pct := s.Fraction.Shift(2)

		status := ""
		switch {
		case pct.GreaterThanOrEqual(hundred):
			status = " [EXCEEDED]"
		case pct.GreaterThanOrEqual(ninety):
			status = " [CRITICAL]"
		case pct.GreaterThanOrEqual(eighty):
			status = " [WARNING]"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s%%%s\t%s\n",
			s.Period, s.Key, s.Limit.StringFixed(2), s.Spent.StringFixed(2),
			remaining.StringFixed(2), pct.StringFixed(1), status, marker(s.Fired),
		)
	}
}
