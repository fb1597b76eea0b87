package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loanctl",
		Short: "Operator tools for the loan ledger",
		Long: `loanctl prices loans and checks stored ledgers.

quote and schedule only run the amortization calculator. verify reads the
configured database (DATABASE_DRIVER, DATABASE_URL) and replays every loan's
history against its stored balance.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newQuoteCmd(), newScheduleCmd(), newVerifyCmd())
	return root
}

// termFlags are shared by quote and schedule.
type termFlags struct {
	principal string
	down      string
	rate      string
	term      int
}

func (f *termFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.principal, "principal", "", "Purchase price (required)")
	cmd.Flags().StringVar(&f.down, "down", "0", "Down payment")
	cmd.Flags().StringVar(&f.rate, "rate", "0", "Annual interest rate in percent")
	cmd.Flags().IntVar(&f.term, "term", 60, "Term in months")
	_ = cmd.MarkFlagRequired("principal")
}

func (f *termFlags) parse() (principal, down, rate decimal.Decimal, err error) {
	if principal, err = decimal.NewFromString(f.principal); err != nil {
		return principal, down, rate, fmt.Errorf("invalid --principal: %w", err)
	}
	if down, err = decimal.NewFromString(f.down); err != nil {
		return principal, down, rate, fmt.Errorf("invalid --down: %w", err)
	}
	if rate, err = decimal.NewFromString(f.rate); err != nil {
		return principal, down, rate, fmt.Errorf("invalid --rate: %w", err)
	}

	switch {
	case !principal.IsPositive():
		err = fmt.Errorf("--principal must be positive")
	case down.IsNegative() || down.GreaterThanOrEqual(principal):
		err = fmt.Errorf("--down must be at least 0 and less than --principal")
	case rate.IsNegative():
		err = fmt.Errorf("--rate must not be negative")
	case f.term <= 0:
		err = fmt.Errorf("--term must be positive")
	}
	return principal, down, rate, err
}
