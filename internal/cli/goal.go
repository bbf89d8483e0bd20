package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage spending goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a goal and evaluate it against spend so far",
	RunE:  runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show goals with their live progress",
	RunE:  runGoalList,
}

var goalCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark an active goal completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalTransition("completed", (*engine.Engine).CompleteGoal),
}

var goalCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an active goal",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalTransition("cancelled", (*engine.Engine).CancelGoal),
}

var goalDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a goal and its alert history",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalTransition("deleted", (*engine.Engine).DeleteGoal),
}

func init() {
	rootCmd.AddCommand(goalCmd)
	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalCompleteCmd, goalCancelCmd, goalDeleteCmd)

	goalAddCmd.Flags().StringP("name", "n", "", "Goal name")
	goalAddCmd.Flags().StringP("category", "c", "", "Category the goal tracks")
	goalAddCmd.Flags().StringP("target", "t", "", "Target amount")
	goalAddCmd.Flags().String("start", "", "Window start (default: now)")
	goalAddCmd.Flags().StringP("deadline", "d", "", "Deadline (YYYY-MM-DD or RFC 3339)")
	goalAddCmd.Flags().String("note", "", "Free-form note")
	_ = goalAddCmd.MarkFlagRequired("name")
	_ = goalAddCmd.MarkFlagRequired("category")
	_ = goalAddCmd.MarkFlagRequired("target")
	_ = goalAddCmd.MarkFlagRequired("deadline")

	goalListCmd.Flags().StringP("state", "s", "", "Filter by state (active, completed, cancelled, failed)")
	goalListCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

func runGoalAdd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	category, _ := cmd.Flags().GetString("category")
	rawTarget, _ := cmd.Flags().GetString("target")
	rawStart, _ := cmd.Flags().GetString("start")
	rawDeadline, _ := cmd.Flags().GetString("deadline")
	note, _ := cmd.Flags().GetString("note")

	target, err := decimal.NewFromString(rawTarget)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", rawTarget, err)
	}
	deadline, err := parseTime(rawDeadline, time.Local)
	if err != nil {
		return err
	}
	var start time.Time
	if rawStart != "" {
		if start, err = parseTime(rawStart, time.Local); err != nil {
			return err
		}
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	goal := &model.Goal{
		Name:         name,
		CategoryID:   category,
		TargetAmount: target,
		StartAt:      start,
		Deadline:     deadline,
		Note:         note,
	}
	dispatched, err := a.engine.OnGoalCreated(cmd.Context(), goal)
	if err != nil {
		return err
	}

	fmt.Printf("Goal created:\n")
	fmt.Printf("  ID:        %s\n", goal.ID)
	fmt.Printf("  Name:      %s\n", goal.Name)
	fmt.Printf("  Category:  %s\n", goal.CategoryID)
	fmt.Printf("  Target:    %s\n", goal.TargetAmount.StringFixed(2))
	fmt.Printf("  Window:    %s to %s\n", formatTime(goal.StartAt), formatTime(goal.Deadline))
	if dispatched > 0 {
		fmt.Printf("  Alerts:    %d sent\n", dispatched)
	}
	return nil
}

func runGoalList(cmd *cobra.Command, _ []string) error {
	rawState, _ := cmd.Flags().GetString("state")
	format, _ := cmd.Flags().GetString("output")

	var state model.GoalState
	if rawState != "" {
		parsed, err := model.ParseGoalState(rawState)
		if err != nil {
			return err
		}
		state = parsed
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.engine.Goals(cmd.Context(), state)
	if err != nil {
		return err
	}

	if len(reports) == 0 && (format == "" || format == outputTable) {
		fmt.Println("No goals found. Use 'sg goal add' to create one.")
		return nil
	}
	return render(os.Stdout, format, reports, func(w io.Writer) { goalTable(w, reports) })
}

func goalTable(w io.Writer, reports []engine.GoalReport) {
	fmt.Fprintf(w, "ID\tNAME\tCATEGORY\tSTATE\tSPENT\tTARGET\tPROGRESS\tDAYS LEFT\tFIRED\n")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d%%\t%d\t%s\n",
			r.Goal.ID, r.Goal.Name, r.Goal.CategoryID, r.Goal.State,
			r.Aggregate.StringFixed(2), r.Goal.TargetAmount.StringFixed(2),
			r.Percent(), r.RemainingDays, marker(r.Fired),
		)
	}
}

// runGoalTransition builds the RunE for commands that act on one goal id.
func runGoalTransition(verb string, action func(*engine.Engine, context.Context, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := action(a.engine, cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Goal %s %s\n", args[0], verb)
		return nil
	}
}
