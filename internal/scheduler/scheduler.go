package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// LoanStore is the part of the loan service the sweep drives. TransitionIf
// must evaluate the decision under the loan's write lock.
type LoanStore interface {
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	TransitionIf(ctx context.Context, loanID uuid.UUID, decide ledger.StatusDecision) (*domain.Loan, bool, error)
}

// SweepResult counts the transitions made by one sweep
type SweepResult struct {
	Overdue   int
	Recovered int
	Defaulted int
	Failed    int
}

type Scheduler struct {
	store     LoanStore
	threshold int
	cron      *cron.Cron
	log       zerolog.Logger
	now       func() time.Time
}

// New returns a scheduler that marks loans overdue, current again or in
// default. threshold is the number of whole months past due before default.
func New(store LoanStore, threshold int, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:     store,
		threshold: threshold,
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		log:       log,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

// Start registers the sweep on spec and starts the cron runner
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		s.log.Info().Msg("running loan status sweep")

		result, err := s.Sweep(ctx, s.now())
		if err != nil {
			s.log.Error().Err(err).Msg("loan status sweep failed")
			return
		}

		s.log.Info().
			Int("overdue", result.Overdue).
			Int("recovered", result.Recovered).
			Int("defaulted", result.Defaulted).
			Int("failed", result.Failed).
			Msg("loan status sweep finished")
	})
	if err != nil {
		return fmt.Errorf("schedule status sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for a running sweep to return
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Sweep applies the delinquency rules to every loan as of now. The list only
// selects candidates; each rule is evaluated against the loan as committed at
// the moment it is applied. A failed transition is logged and counted; the
// sweep carries on.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	loans, err := s.store.ListLoans(ctx)
	if err != nil {
		return result, err
	}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if loan.Status.IsTerminal() {
			continue
		}

		updated, changed, err := s.store.TransitionIf(ctx, loan.ID, delinquency(now))
		if err != nil {
			s.logFailure(err, loan, "delinquency")
			result.Failed++
			continue
		}
		if changed {
			if updated.Status == domain.LoanStatusCurrent {
				result.Recovered++
				continue
			}
			result.Overdue++
		}

		_, changed, err = s.store.TransitionIf(ctx, loan.ID, s.defaulting(now))
		if err != nil {
			s.logFailure(err, loan, "default")
			result.Failed++
			continue
		}
		if changed {
			result.Defaulted++
		}
	}

	return result, nil
}

// delinquency marks pending and current loans overdue once their due date has
// passed and restores overdue loans that were brought up to date.
func delinquency(now time.Time) ledger.StatusDecision {
	return func(loan *domain.Loan) (domain.LoanStatus, bool) {
		pastDue := utils.IsDateOverdue(loan.NextPaymentDate, now)
		switch loan.Status {
		case domain.LoanStatusPending, domain.LoanStatusCurrent:
			return domain.LoanStatusOverdue, pastDue
		case domain.LoanStatusOverdue:
			return domain.LoanStatusCurrent, !pastDue
		}
		return loan.Status, false
	}
}

func (s *Scheduler) defaulting(now time.Time) ledger.StatusDecision {
	return func(loan *domain.Loan) (domain.LoanStatus, bool) {
		late := utils.MonthsPastDue(loan.NextPaymentDate, now) > s.threshold
		return domain.LoanStatusDefault, loan.Status == domain.LoanStatusOverdue && late
	}
}

func (s *Scheduler) logFailure(err error, loan *domain.Loan, rule string) {
	s.log.Warn().Err(err).
		Str("loan_id", loan.ID.String()).
		Str("status", string(loan.Status)).
		Str("rule", rule).
		Msg("status transition failed")
}
