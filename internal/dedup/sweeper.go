package dedup

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
)

// defaultHardPurgeDays is the age in days, counted from insertion, past
// which the hard sweep removes a row regardless of expiresAt. NewSweeper
// falls back to it when dedup.hardPurgeDays is not positive.
const defaultHardPurgeDays = 15

// Sweeper runs the ledger's two daily-midnight purges on a cron schedule.
type Sweeper struct {
	ledger        *Ledger
	hardPurgeDays int
	cron          *cron.Cron
}

// NewSweeper builds a Sweeper over ledger. hardPurgeDays <= 0 falls back to
// the spec default of 15.
func NewSweeper(ledger *Ledger, hardPurgeDays int) *Sweeper {
	if hardPurgeDays <= 0 {
		hardPurgeDays = defaultHardPurgeDays
	}
	return &Sweeper{
		ledger:        ledger,
		hardPurgeDays: hardPurgeDays,
		cron:          cron.New(),
	}
}

// Start schedules both sweeps at midnight and begins running them. It
// returns an error only if the cron expressions fail to parse, which
// would indicate a programming error, not a runtime condition.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("0 0 * * *", func() { s.runExpiredSweep(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 * * *", func() { s.runHardSweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight sweep to
// finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) runExpiredSweep(ctx context.Context) {
	if err := s.ledger.PurgeExpired(ctx); err != nil {
		logger.L().ErrorContext(ctx, "dedup: expired sweep failed", "error", err)
	}
}

func (s *Sweeper) runHardSweep(ctx context.Context) {
	if err := s.ledger.PurgeOlderThan(ctx, s.hardPurgeDays); err != nil {
		logger.L().ErrorContext(ctx, "dedup: hard-purge sweep failed", "error", err)
	}
}
