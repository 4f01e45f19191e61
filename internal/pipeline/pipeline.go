package pipeline

import (
	"context"
	"fmt"
	"sort"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/alphavantage"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/extract"
	"github.com/Archbaer/cupcake-mononoke/internal/merge"
	"github.com/Archbaer/cupcake-mononoke/internal/normalize"
	"github.com/Archbaer/cupcake-mononoke/internal/snapshot"
	"github.com/Archbaer/cupcake-mononoke/internal/warehouse"
	"github.com/Archbaer/cupcake-mononoke/internal/yahoofinance"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// Pipeline wires one batch end to end: extract every configured target into
// raw snapshots, normalize the freshest snapshot per target, merge the rows
// into the accumulated per-domain datasets and, when enabled, mirror the
// merged tables into the warehouse.
type Pipeline struct {
	cfg   *appconfig.Config
	orch  *extract.Orchestrator
	store *snapshot.Store
	wh    *warehouse.Writer
	log   *logger.Log
}

// New builds the production pipeline from configuration. Provider clients
// are only constructed for providers that actually have targets.
func New(cfg *appconfig.Config) (*Pipeline, error) {
	store := snapshot.NewStore(cfg.Storage.RawRoot)

	var alpha extract.TimeseriesFetcher
	if cfg.Targets.HasAlphaVantage() {
		alpha = alphavantage.NewClient(cfg)
	}
	var yahoo extract.CompanyFetcher
	if cfg.Targets.HasYahooFinance() {
		yahoo = yahoofinance.NewClient(cfg)
	}

	p := &Pipeline{
		cfg:   cfg,
		orch:  extract.New(alpha, yahoo, store),
		store: store,
		log:   logger.GetLogger(),
	}

	if cfg.Storage.Warehouse.Enabled {
		w, err := warehouse.NewWriter(cfg)
		if err != nil {
			return nil, fmt.Errorf("building warehouse writer: %w", err)
		}
		p.wh = w
	}
	return p, nil
}

// DomainReport summarizes the normalize and merge pass for one domain.
type DomainReport struct {
	Domain    domain.Domain
	Snapshots int         // latest snapshots considered
	Rejected  int         // snapshots the normalizer refused
	Dropped   int         // observations dropped inside accepted snapshots
	Changed   merge.Stats // rows the merge added or replaced
	TableRows int         // rows persisted after the merge
	Published int         // warehouse files written
	Err       error       // domain-fatal failure, nil when the tables were rewritten
}

// Report is the outcome of one batch run: the extraction summary plus one
// entry per domain that had snapshots to process.
type Report struct {
	Summary *extract.Summary
	Domains []DomainReport
}

// Ok reports whether every target and every domain pass succeeded.
func (r *Report) Ok() bool {
	if r.Summary != nil && !r.Summary.Ok() {
		return false
	}
	for _, d := range r.Domains {
		if d.Err != nil || d.Rejected > 0 {
			return false
		}
	}
	return true
}

// Run executes one batch. Extraction failures never stop processing: every
// domain with raw snapshots on disk is normalized and merged, so a partially
// failed extraction still lands everything it captured, and snapshots from
// earlier runs are folded in even when their target has since been dropped
// from configuration.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	targets := Targets(p.cfg.Targets)
	log := p.log.WithComponent("pipeline")

	summary, err := p.orch.Run(ctx, targets)
	report := &Report{Summary: summary}
	if err != nil {
		return report, err
	}

	for _, d := range domain.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dr := p.processDomain(ctx, d)
		if dr == nil {
			continue
		}
		report.Domains = append(report.Domains, *dr)
	}

	changed := 0
	failedDomains := 0
	for _, dr := range report.Domains {
		changed += dr.Changed.Total()
		if dr.Err != nil {
			failedDomains++
		}
	}
	log.WithFields(logger.Fields{
		"run_id":         summary.RunID,
		"targets":        summary.Total(),
		"failed_targets": len(summary.Failed),
		"domains":        len(report.Domains),
		"failed_domains": failedDomains,
		"rows_changed":   changed,
	}).Info("batch run finished")

	return report, nil
}

// processDomain normalizes the freshest snapshot of every target in the
// domain and merges the result into the persisted dataset. Snapshots the
// normalizer rejects are logged and skipped; only a dataset load or rewrite
// failure aborts the domain. Domains without snapshots return nil.
func (p *Pipeline) processDomain(ctx context.Context, d domain.Domain) *DomainReport {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"domain": string(d)})

	latest, err := p.store.Latest(d)
	if err != nil {
		log.WithError(err).Error("failed to list snapshots")
		return &DomainReport{Domain: d, Err: err}
	}
	if len(latest) == 0 {
		return nil
	}

	keys := make([]string, 0, len(latest))
	for key := range latest {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dr := &DomainReport{Domain: d, Snapshots: len(keys)}
	res := &normalize.Result{}
	for _, key := range keys {
		payload, err := p.store.Read(latest[key])
		if err != nil {
			dr.Rejected++
			log.WithError(err).WithFields(logger.Fields{"target": key}).Error("failed to read snapshot")
			continue
		}
		rec, err := normalize.Records(d, key, payload)
		if err != nil {
			dr.Rejected++
			log.WithError(err).WithFields(logger.Fields{"target": key}).Error("snapshot failed normalization")
			continue
		}
		res.Add(rec)
	}
	dr.Dropped = res.Dropped
	logger.AddRecordsNormalized(res.Count())

	merged, stats, err := merge.Apply(p.cfg.Storage.ProcessedRoot, d, res)
	if err != nil {
		dr.Err = err
		log.WithError(err).Error("merge failed")
		return dr
	}
	dr.Changed = stats
	dr.TableRows = merged.Size()
	logger.AddRecordsMerged(stats.Total())

	log.WithFields(logger.Fields{
		"snapshots":    dr.Snapshots,
		"rejected":     dr.Rejected,
		"dropped":      dr.Dropped,
		"rows_changed": stats.Total(),
		"table_rows":   dr.TableRows,
	}).Info("domain merged")

	if p.wh != nil {
		n, err := p.wh.Publish(ctx, merged)
		dr.Published = n
		if err != nil {
			// the CSV datasets are already rewritten; only the mirror is stale
			dr.Err = fmt.Errorf("warehouse publish: %w", err)
			log.WithError(err).Error("warehouse publish failed")
		}
	}
	return dr
}
