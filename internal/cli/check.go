package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one pass of the limit, goal and inactivity checks",
	RunE:  runCheck,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Complete or fail goals whose deadline has passed",
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(checkCmd, resolveCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Tick(cmd.Context())
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	fmt.Printf("Check complete:\n")
	fmt.Printf("  Limit alerts:  %d\n", res.Limits)
	fmt.Printf("  Goal alerts:   %d\n", res.Goals)
	if res.Inactivity != "" {
		fmt.Printf("  Inactivity:    %s\n", res.Inactivity)
	}
	return nil
}

func runResolve(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Resolve(cmd.Context())
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if len(res.Completed) == 0 && len(res.Failed) == 0 {
		fmt.Println("No goals due.")
		return nil
	}
	for _, s := range res.Failed {
		fmt.Printf("  FAILED     %s  %s (%d%%)\n", s.Goal.ID, s.Goal.Name, s.Percent())
	}
	for _, s := range res.Completed {
		fmt.Printf("  COMPLETED  %s  %s (%d%%)\n", s.Goal.ID, s.Goal.Name, s.Percent())
	}
	return nil
}
