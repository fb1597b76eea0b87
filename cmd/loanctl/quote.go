package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/segyhp/loan-ledger/pkg/amortization"
)

func newQuoteCmd() *cobra.Command {
	var flags termFlags

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a loan without opening it",
		Example: `  # 45,000 vehicle, 5,000 down, 7.25% over five years
  loanctl quote --principal 45000 --down 5000 --rate 7.25 --term 60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, down, rate, err := flags.parse()
			if err != nil {
				return err
			}

			q := amortization.NewQuote(principal, down, rate, flags.term)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Financed amount: %s\n", q.FinancedAmount.StringFixed(2))
			fmt.Fprintf(out, "Monthly payment: %s\n", q.MonthlyPayment.StringFixed(2))
			fmt.Fprintf(out, "Total payments:  %s\n", q.TotalPayments.StringFixed(2))
			fmt.Fprintf(out, "Total interest:  %s\n", q.TotalInterest.StringFixed(2))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var flags termFlags
	var start string

	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Print the amortization table for a set of terms",
		Example: `  loanctl schedule --principal 20000 --rate 5 --term 36 --start 2024-01-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, down, rate, err := flags.parse()
			if err != nil {
				return err
			}

			startDate := time.Now().UTC()
			if start != "" {
				if startDate, err = time.Parse("2006-01-02", start); err != nil {
					return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
				}
			}

			entries := amortization.Schedule(principal.Sub(down), rate, flags.term, startDate)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "#\tDue\tPayment\tInterest\tPrincipal\tBalance\t")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
					e.Period,
					e.DueDate.Format("2006-01-02"),
					e.Payment.StringFixed(2),
					e.Interest.StringFixed(2),
					e.Principal.StringFixed(2),
					e.RemainingBalance.StringFixed(2),
				)
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&start, "start", "", "Start date (format: YYYY-MM-DD, default: today)")
	return cmd
}
