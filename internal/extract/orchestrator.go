package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/provider"
	"github.com/Archbaer/cupcake-mononoke/internal/snapshot"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// TimeseriesFetcher retrieves raw payloads for the Alpha Vantage domains.
// The orchestrator rewinds the credential pool once per run.
type TimeseriesFetcher interface {
	Fetch(ctx context.Context, target domain.Target) ([]byte, error)
	ResetPool()
}

// CompanyFetcher retrieves the two company payloads for one ticker.
type CompanyFetcher interface {
	FetchCompany(ctx context.Context, symbol string) (financials, info []byte, err error)
}

// TargetResult records the outcome of one target within a run.
type TargetResult struct {
	Target domain.Target
	Kind   string
	Err    error
}

// Summary enumerates the run's outcomes. It is advisory: failed targets are
// reported, never retried within the same run.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Succeeded []TargetResult
	Failed    []TargetResult
	Skipped   []TargetResult
}

// Ok reports whether every attempted target succeeded.
func (s *Summary) Ok() bool { return len(s.Failed) == 0 }

// Total returns the number of targets the run was asked to process.
func (s *Summary) Total() int {
	return len(s.Succeeded) + len(s.Failed) + len(s.Skipped)
}

// Orchestrator walks the configured targets, fetches each one and publishes
// raw snapshots. The two providers run independently so a cooldown on one
// never stalls the other; a single target's failure never aborts the batch.
type Orchestrator struct {
	alpha TimeseriesFetcher
	yahoo CompanyFetcher
	store *snapshot.Store
	now   func() time.Time
	log   *logger.Log

	mu sync.Mutex
}

func New(alpha TimeseriesFetcher, yahoo CompanyFetcher, store *snapshot.Store) *Orchestrator {
	return &Orchestrator{
		alpha: alpha,
		yahoo: yahoo,
		store: store,
		now:   time.Now,
		log:   logger.GetLogger(),
	}
}

// WithClock overrides the snapshot timestamp source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run processes every target once and returns the run summary. Cancellation
// is honored between targets, never mid-request; targets not yet started
// when the context dies are recorded as skipped.
func (o *Orchestrator) Run(ctx context.Context, targets []domain.Target) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString(), Started: o.now()}
	log := o.log.WithComponent("extract").WithFields(logger.Fields{"run_id": summary.RunID})

	var timeseries, companies []domain.Target
	for _, t := range targets {
		if t.Domain == domain.Company {
			companies = append(companies, t)
		} else {
			timeseries = append(timeseries, t)
		}
	}

	log.WithFields(logger.Fields{
		"timeseries_targets": len(timeseries),
		"company_targets":    len(companies),
	}).Info("starting extraction run")

	if o.alpha != nil {
		// rotation state never carries over from a previous batch
		o.alpha.ResetPool()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.runTimeseries(ctx, timeseries, summary, log)
	}()
	go func() {
		defer wg.Done()
		o.runCompanies(ctx, companies, summary, log)
	}()
	wg.Wait()

	summary.Finished = o.now()
	log.WithFields(logger.Fields{
		"succeeded": len(summary.Succeeded),
		"failed":    len(summary.Failed),
		"skipped":   len(summary.Skipped),
	}).Info("extraction run finished")

	return summary, ctx.Err()
}

func (o *Orchestrator) runTimeseries(ctx context.Context, targets []domain.Target, summary *Summary, log *logger.Entry) {
	for _, t := range targets {
		if ctx.Err() != nil {
			o.record(&summary.Skipped, TargetResult{Target: t, Kind: "cancelled"})
			continue
		}
		if o.alpha == nil {
			o.fail(summary, log, t, fmt.Errorf("no timeseries client configured"))
			continue
		}

		body, err := o.alpha.Fetch(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				o.record(&summary.Skipped, TargetResult{Target: t, Kind: "cancelled"})
				continue
			}
			o.fail(summary, log, t, err)
			continue
		}
		if _, err := o.store.Write(t.Domain, t.Key(), o.now(), body); err != nil {
			o.fail(summary, log, t, err)
			continue
		}

		logger.RecordFlowMessage(t.Domain.Dir(), len(body))
		log.WithFields(logger.Fields{
			"domain": string(t.Domain),
			"target": t.Key(),
			"bytes":  len(body),
		}).Info("target extracted")
		o.record(&summary.Succeeded, TargetResult{Target: t})
	}
}

func (o *Orchestrator) runCompanies(ctx context.Context, targets []domain.Target, summary *Summary, log *logger.Entry) {
	for _, t := range targets {
		if ctx.Err() != nil {
			o.record(&summary.Skipped, TargetResult{Target: t, Kind: "cancelled"})
			continue
		}
		if o.yahoo == nil {
			o.fail(summary, log, t, fmt.Errorf("no company client configured"))
			continue
		}

		financials, info, err := o.yahoo.FetchCompany(ctx, t.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				o.record(&summary.Skipped, TargetResult{Target: t, Kind: "cancelled"})
				continue
			}
			o.fail(summary, log, t, err)
			continue
		}

		at := o.now()
		if _, err := o.store.Write(t.Domain, t.Symbol+"_financials", at, financials); err != nil {
			o.fail(summary, log, t, err)
			continue
		}
		if _, err := o.store.Write(t.Domain, t.Symbol+"_info", at, info); err != nil {
			o.fail(summary, log, t, err)
			continue
		}

		logger.RecordFlowMessage(t.Domain.Dir(), len(financials)+len(info))
		log.WithFields(logger.Fields{
			"domain": string(t.Domain),
			"target": t.Key(),
			"bytes":  len(financials) + len(info),
		}).Info("target extracted")
		o.record(&summary.Succeeded, TargetResult{Target: t})
	}
}

func (o *Orchestrator) fail(summary *Summary, log *logger.Entry, t domain.Target, err error) {
	kind := provider.Kind(err)
	log.WithError(err).WithFields(logger.Fields{
		"domain": string(t.Domain),
		"target": t.Key(),
		"kind":   kind,
	}).Error("target failed")
	o.record(&summary.Failed, TargetResult{Target: t, Kind: kind, Err: err})
}

func (o *Orchestrator) record(list *[]TargetResult, r TargetResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*list = append(*list, r)
}
