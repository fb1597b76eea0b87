package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/logger"
	"github.com/segyhp/loan-ledger/internal/repository"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay every stored loan and report inconsistencies",
		Long: `Loads all loans from the configured database and checks that each loan's
history replays to its stored balance, that sequence numbers are contiguous and
that payment portions add up.

Required environment variables:
  DATABASE_DRIVER - postgres or sqlite3
  DATABASE_URL    - connection string`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("verify needs a database, DATABASE_DRIVER is memory")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			return runVerify(ctx, cmd, repository.NewLoanRepository(db))
		},
	}
}

func runVerify(ctx context.Context, cmd *cobra.Command, repo repository.LoanRepository) error {
	log := logger.WithComponent("verify")

	loans, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load loans: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, loan := range loans {
		if err := ledger.Verify(loan); err != nil {
			failed++
			log.Warn().Err(err).Str("loan_id", loan.ID.String()).Msg("loan failed verification")
			fmt.Fprintf(out, "FAIL %s: %v\n", loan.ID, err)
		}
	}

	fmt.Fprintf(out, "%d loans checked, %d inconsistent\n", len(loans), failed)
	if failed > 0 {
		return fmt.Errorf("%d loans failed verification", failed)
	}
	return nil
}
