/*
scheduler.go - Periodic ledger audit

PURPOSE:
  Every member's stored balance must equal the sum of their transactions.
  The booking and top-up paths keep both in one unit of work, so drift
  should never happen; the auditor proves it on a schedule and makes any
  drift visible (log line + gauge) instead of letting it hide.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reconciles each member in its own read transaction
  - Never corrects anything: drift is reported, not repaired
  - Publishes the last run's summary for the admin API

CONFIGURATION:
  - CheckInterval: How often to audit (default: 15 minutes)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewLedgerAuditor(handler)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - court/ledger.go: Reconcile
  - handlers.go: Reconcile endpoint (single member, on demand)
*/
package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/warp/court-engine/court"
)

// AuditReport summarizes one audit run.
type AuditReport struct {
	StartedAt time.Time              `json:"startedAt"`
	Members   int                    `json:"members"`
	Drifted   []court.Reconciliation `json:"drifted,omitempty"`
	Errors    int                    `json:"errors"`
}

// LedgerAuditor periodically reconciles every member's balance.
type LedgerAuditor struct {
	Store         court.Store
	Ledger        *court.Ledger
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.Mutex
	last   *AuditReport
}

// NewLedgerAuditor creates an auditor sharing the handler's store, ledger and metrics.
func NewLedgerAuditor(h *Handler) *LedgerAuditor {
	return &LedgerAuditor{
		Store:         h.Store,
		Ledger:        h.Ledger,
		Metrics:       h.Metrics,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the auditor.
func (a *LedgerAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		log.Println("[Auditor] Disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)

	go a.run()

	log.Printf("[Auditor] Started with check interval: %v", a.CheckInterval)
}

// Stop stops the auditor and waits for a running audit to finish.
func (a *LedgerAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker != nil {
		a.ticker.Stop()
		close(a.stop)
		a.wg.Wait()
		a.ticker = nil
		log.Println("[Auditor] Stopped")
	}
}

func (a *LedgerAuditor) run() {
	defer a.wg.Done()

	// Run immediately on start
	a.RunNow(context.Background())

	for {
		select {
		case <-a.ticker.C:
			a.RunNow(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunNow audits every member once and returns the report.
func (a *LedgerAuditor) RunNow(ctx context.Context) AuditReport {
	report := AuditReport{StartedAt: time.Now().UTC()}

	members, err := a.Store.ListMembers(ctx)
	if err != nil {
		log.Printf("[Auditor] Error listing members: %v", err)
		a.Metrics.AuditRuns.WithLabelValues("error").Inc()
		report.Errors++
		a.setLast(report)
		return report
	}

	a.Metrics.LedgerDrift.Reset()
	for _, m := range members {
		rec, err := a.Ledger.Reconcile(ctx, m.ID)
		if err != nil {
			log.Printf("[Auditor] Error reconciling member %s: %v", m.ID, err)
			report.Errors++
			continue
		}
		report.Members++
		if !rec.Consistent() {
			log.Printf("[Auditor] DRIFT member %s: balance=%s log=%s drift=%s",
				m.ID, rec.Balance, rec.LogTotal, rec.Drift())
			a.Metrics.LedgerDrift.WithLabelValues(m.ID.String()).Set(float64(rec.Drift()))
			report.Drifted = append(report.Drifted, rec)
		}
	}

	result := "consistent"
	switch {
	case report.Errors > 0:
		result = "error"
	case len(report.Drifted) > 0:
		result = "drift"
	}
	a.Metrics.AuditRuns.WithLabelValues(result).Inc()

	if len(report.Drifted) > 0 || report.Errors > 0 {
		log.Printf("[Auditor] Completed: %d members, %d drifted, %d errors",
			report.Members, len(report.Drifted), report.Errors)
	}
	a.setLast(report)
	return report
}

// Last returns the most recent report, if any.
func (a *LedgerAuditor) Last() (AuditReport, bool) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if a.last == nil {
		return AuditReport{}, false
	}
	return *a.last, true
}

func (a *LedgerAuditor) setLast(r AuditReport) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	a.last = &r
}

// =============================================================================
// HANDLERS
// =============================================================================

// LastAudit returns the latest audit report, or 204 before the first run.
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "auditor not configured", nil)
		return
	}
	report, ok := h.Auditor.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RunAudit audits the ledger immediately.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusNotFound, "auditor not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Auditor.RunNow(r.Context()))
}
