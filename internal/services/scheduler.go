package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/virtualwallet/backend/internal/clock"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/observability"
	"go.uber.org/zap"
)

// DueRuleStore is the recurring rule storage used by the scheduler.
type DueRuleStore interface {
	DueRules(ctx context.Context, now time.Time) ([]models.DueRule, error)
	RescheduleTx(ctx context.Context, tx *sql.Tx, rule models.RecurringRule, next time.Time) error
}

// TemplateExecutor creates a transaction from a template and runs within in
// the same database transaction.
type TemplateExecutor interface {
	CreateFromTemplate(ctx context.Context, tmpl models.TransactionTemplate, within func(*sql.Tx) error) (int64, error)
}

// CycleReport summarizes one scheduler pass.
type CycleReport struct {
	ID       string
	Due      int
	Executed int
	Failed   int
}

// RecurringScheduler re-executes due recurring rules on a fixed period.
//
// A rule whose execution fails keeps its next_exec_date and is retried on the
// next cycle. A rule that succeeds moves to execution time + one interval, so
// delays in the scheduler shift the schedule forward.
type RecurringScheduler struct {
	store    DueRuleStore
	ledger   TemplateExecutor
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewRecurringScheduler(store DueRuleStore, ledger TemplateExecutor, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *RecurringScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RecurringScheduler{
		store:    store,
		ledger:   ledger,
		interval: interval,
		metrics:  metrics,
		logger:   logger.Named("recurring"),
		now:      time.Now,
	}
}

// Run processes due rules immediately and then once per interval until ctx
// is cancelled. A cycle in progress finishes its current rule before Run returns.
func (s *RecurringScheduler) Run(ctx context.Context) error {
	s.logger.Info("recurring scheduler started", zap.Duration("interval", s.interval))

	s.ProcessDue(ctx)
	for range clock.TickWithCtx(ctx, s.interval) {
		s.ProcessDue(ctx)
	}

	s.logger.Info("recurring scheduler stopped")
	return ctx.Err()
}

// ProcessDue runs one cycle. Failures are isolated per rule.
func (s *RecurringScheduler) ProcessDue(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.NewString()}
	log := s.logger.With(zap.String("cycle_id", report.ID))
	defer s.metrics.IncrSchedulerCycle()

	rules, err := s.store.DueRules(ctx, s.now())
	if err != nil {
		log.Error("failed to read due recurring rules", zap.Error(err))
		return report
	}
	report.Due = len(rules)
	if len(rules) == 0 {
		log.Debug("no due recurring rules")
		return report
	}

	for _, due := range rules {
		if ctx.Err() != nil {
			log.Info("cycle interrupted by shutdown", zap.Int("remaining", report.Due-report.Executed-report.Failed))
			break
		}

		ruleLog := log.With(
			zap.Int64("rule_id", due.Rule.ID),
			zap.Int64("sender_id", due.Template.SenderID),
			zap.Int64("receiver_id", due.Template.ReceiverID),
		)

		var (
			pc     panics.Catcher
			txID   int64
			next   time.Time
			runErr error
		)
		pc.Try(func() {
			txID, next, runErr = s.execute(ctx, due)
		})
		if r := pc.Recovered(); r != nil {
			runErr = r.AsError()
		}

		if runErr != nil {
			report.Failed++
			s.metrics.IncrRecurringRun("failed")
			ruleLog.Warn("recurring execution failed, will retry next cycle", zap.Error(runErr))
			continue
		}

		report.Executed++
		s.metrics.IncrRecurringRun("ok")
		ruleLog.Info("recurring transaction executed",
			zap.Int64("transaction_id", txID),
			zap.Time("next_exec_date", next),
		)
	}

	log.Info("recurring cycle complete",
		zap.Int("due", report.Due),
		zap.Int("executed", report.Executed),
		zap.Int("failed", report.Failed),
	)
	return report
}

func (s *RecurringScheduler) execute(ctx context.Context, due models.DueRule) (int64, time.Time, error) {
	// reject a broken rule before any money moves
	if _, err := NextExecution(s.now(), due.Rule.Interval, due.Rule.IntervalType); err != nil {
		return 0, time.Time{}, err
	}

	var next time.Time
	txID, err := s.ledger.CreateFromTemplate(ctx, due.Template, func(tx *sql.Tx) error {
		var err error
		next, err = NextExecution(s.now(), due.Rule.Interval, due.Rule.IntervalType)
		if err != nil {
			return err
		}
		return s.store.RescheduleTx(ctx, tx, due.Rule, next)
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return txID, next, nil
}

// NextExecution returns from + interval units of intervalType.
func NextExecution(from time.Time, interval int, intervalType models.IntervalType) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, &ErrValidation{Field: "interval", Message: fmt.Sprintf("must be positive, got %d", interval)}
	}
	unit, err := intervalType.Unit()
	if err != nil {
		return time.Time{}, &ErrValidation{Field: "interval_type", Message: err.Error()}
	}
	if intervalType == models.IntervalDays {
		// calendar days keep the wall-clock time across DST changes
		return from.AddDate(0, 0, interval), nil
	}
	return from.Add(time.Duration(interval) * unit), nil
}
