package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Record activity or show the inactivity reminder state",
}

var activityRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record user activity, starting a new inactivity episode",
	RunE:  runActivityRecord,
}

var activityStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show time since last activity and which reminders were sent",
	RunE:  runActivityStatus,
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityRecordCmd, activityStatusCmd)

	activityRecordCmd.Flags().String("at", "", "When the activity happened (default: now)")
	activityStatusCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

func runActivityRecord(cmd *cobra.Command, _ []string) error {
	rawAt, _ := cmd.Flags().GetString("at")

	var at time.Time
	if rawAt != "" {
		parsed, err := parseTime(rawAt, time.Local)
		if err != nil {
			return err
		}
		at = parsed
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if at.IsZero() {
		at = a.clock.Now()
	}
	if err := a.engine.RecordActivity(cmd.Context(), at); err != nil {
		return err
	}
	fmt.Printf("Activity recorded at %s\n", formatTime(at))
	return nil
}

func runActivityStatus(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.engine.InactivityStatus(cmd.Context())
	if err != nil {
		return err
	}
	return render(os.Stdout, format, status, func(w io.Writer) { inactivityTable(w, status) })
}

func inactivityTable(w io.Writer, s engine.InactivityStatus) {
	last := "never"
	if s.LastActivity != nil {
		last = formatTime(*s.LastActivity)
	}
	fmt.Fprintf(w, "LAST ACTIVITY\tELAPSED\tFIRST REMINDER\tSECOND REMINDER\n")
	fmt.Fprintf(w, "%s\t%s\t%s (%s)\t%s (%s)\n",
		last, s.Elapsed.Truncate(time.Second),
		s.Threshold24h, sentLabel(s.Sent24h),
		s.Threshold48h, sentLabel(s.Sent48h),
	)
}

func sentLabel(sent bool) string {
	if sent {
		return "sent"
	}
	return "pending"
}
