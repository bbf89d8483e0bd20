package cli

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var spendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Record a transaction and check thresholds",
	Long: `Record an expense or income for a category. Expenses re-evaluate the
period limits and the goals of the category straight away.`,
	RunE: runSpend,
}

func init() {
	rootCmd.AddCommand(spendCmd)
	spendCmd.Flags().StringP("category", "c", "", "Category of the transaction")
	spendCmd.Flags().StringP("amount", "a", "", "Amount (positive decimal)")
	spendCmd.Flags().Bool("income", false, "Record income instead of an expense")
	spendCmd.Flags().String("at", "", "When it happened (default: now)")
	spendCmd.Flags().String("note", "", "Free-form note")
	_ = spendCmd.MarkFlagRequired("category")
	_ = spendCmd.MarkFlagRequired("amount")
}

func runSpend(cmd *cobra.Command, _ []string) error {
	category, _ := cmd.Flags().GetString("category")
	rawAmount, _ := cmd.Flags().GetString("amount")
	income, _ := cmd.Flags().GetBool("income")
	rawAt, _ := cmd.Flags().GetString("at")
	note, _ := cmd.Flags().GetString("note")

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}
	var at time.Time
	if rawAt != "" {
		if at, err = parseTime(rawAt, time.Local); err != nil {
			return err
		}
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	txn := &model.Transaction{
		CategoryID: category,
		Amount:     amount,
		Kind:       model.KindExpense,
		Note:       note,
		OccurredAt: at,
	}
	if income {
		txn.Kind = model.KindIncome
	}

	res, err := a.engine.OnTransaction(cmd.Context(), txn)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded transaction:\n")
	fmt.Printf("  ID:        %s\n", txn.ID)
	fmt.Printf("  Category:  %s\n", txn.CategoryID)
	fmt.Printf("  Kind:      %s\n", txn.Kind)
	fmt.Printf("  Amount:    %s\n", txn.Amount.StringFixed(2))
	fmt.Printf("  At:        %s\n", formatTime(txn.OccurredAt))
	fmt.Printf("  Alerts:    %d limit, %d goal\n", res.Limits, res.Goals)
	return nil
}
