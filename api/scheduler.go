/*
scheduler.go - Automated ledger job scheduler

PURPOSE:
  Periodically runs the two recurring ledger jobs over the active roster:
  - Monthly accrual of the paid-leave quota
  - Annual carry-over reset, fired in January for the new year

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Both jobs are idempotent (accrual keyed per month, reset keyed per
    year), so running every tick is safe
  - The annual reset is gated to January: firing it mid-year on first
    deployment would forfeit balance employees still expect to use

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewLedgerScheduler(ledger, directory, clock)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerAccrual / TriggerAnnualReset (manual runs)
  - ledger/service.go: AccrueMonthly, ResetAnnual
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/org"
)

// LedgerScheduler handles automated accrual and annual reset.
type LedgerScheduler struct {
	Ledger        *ledger.Service
	Directory     org.Directory
	Clock         calendar.Clock
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLedgerScheduler creates a new scheduler.
func NewLedgerScheduler(led *ledger.Service, directory org.Directory, clock calendar.Clock) *LedgerScheduler {
	return &LedgerScheduler{
		Ledger:        led,
		Directory:     directory,
		Clock:         clock,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ls *LedgerScheduler) Start() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if !ls.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ls.ticker = time.NewTicker(ls.CheckInterval)
	ls.wg.Add(1)

	go ls.run()

	log.Printf("[Scheduler] Started with check interval: %v", ls.CheckInterval)
}

// Stop stops the scheduler.
func (ls *LedgerScheduler) Stop() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ticker != nil {
		ls.ticker.Stop()
		close(ls.stop)
		ls.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ls *LedgerScheduler) run() {
	defer ls.wg.Done()

	// Run immediately on start
	ls.checkAndProcess()

	for {
		select {
		case <-ls.ticker.C:
			ls.checkAndProcess()
		case <-ls.stop:
			return
		}
	}
}

func (ls *LedgerScheduler) checkAndProcess() {
	ctx := context.Background()
	now := ls.Clock.Now()

	log.Printf("[Scheduler] Checking ledger jobs at %v", now)

	employees, err := ls.Directory.ActiveEmployees(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing employees: %v", err)
		return
	}

	accrued := 0
	reset := 0

	for _, id := range employees {
		before, err := ls.Ledger.GetOrCreate(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Error loading balance for %s: %v", id, err)
			continue
		}

		after, err := ls.Ledger.AccrueMonthly(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Error accruing for %s: %v", id, err)
			continue
		}
		if !after.Paid.Equal(before.Paid) {
			accrued++
		}

		if now.Month() != time.January {
			continue
		}
		after, err = ls.Ledger.ResetAnnual(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Error resetting for %s: %v", id, err)
			continue
		}
		if after.LastResetAt != nil && after.LastResetAt.Year() == now.Year() &&
			(before.LastResetAt == nil || before.LastResetAt.Year() != now.Year()) {
			reset++
		}
	}

	if accrued > 0 || reset > 0 {
		log.Printf("[Scheduler] Completed: %d accrued, %d reset", accrued, reset)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ls *LedgerScheduler) RunNow() {
	ls.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ls *LedgerScheduler) GetNextRunTime() time.Time {
	return ls.Clock.Now().Add(ls.CheckInterval)
}
