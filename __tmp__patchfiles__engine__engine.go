// Package engine drives the log tailers and parsers into the cache store,
// maintains in-memory realtime counters and event rings, and runs the
// enrichment scheduler (spec.md §4.6, §4.7). Ported from
// original_source/app.py's App class.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/constants"
	"github.com/sshwatch/sshwatch/importer"
	"github.com/sshwatch/sshwatch/model"
	"github.com/sshwatch/sshwatch/parser"
	"github.com/sshwatch/sshwatch/tailer"
	"github.com/sshwatch/sshwatch/util"
	"github.com/sshwatch/sshwatch/whois"
)

// Engine is the single owner of the cache store, realtime counters, and
// event rings (spec.md §5 shared resources).
type Engine struct {
	cfg   config.Config
	store *cache.Store
	log   zerolog.Logger

	authTailer *tailer.TailFile
	f2bTailer  *tailer.TailFile
	historian  *importer.HistoryImporter
	whois      *whois.BulkClient

	asnLimiter *rate.Limiter
	runID      string

	mu           sync.Mutex
	globalRing   []model.Event
	perIPRing    map[string][]model.Event
	realtime     map[string]map[string]int64
	pendingBans  map[string]struct{} // jail poller's previously-known banned set
	lastPollTick time.Time
	asnCursor    string
}

// New constructs an Engine over an already-open cache.Store.
func New(cfg config.Config, store *cache.Store, log zerolog.Logger, authT, f2bT *tailer.TailFile, historian *importer.HistoryImporter, bulk *whois.BulkClient) *Engine {
	return &Engine{
		cfg:         cfg,
		store:       store,
		log:         log,
		authTailer:  authT,
		f2bTailer:   f2bT,
		historian:   historian,
		whois:       bulk,
		asnLimiter:  rate.NewLimiter(rate.Every(secondsToDuration(cfg.ASNRefreshInterval)), 1),
		runID:       uuid.NewString(),
		perIPRing:   make(map[string][]model.Event),
		realtime:    make(map[string]map[string]int64),
		pendingBans: make(map[string]struct{}),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Start runs the startup sequence (spec.md §4.6): open schema (already done
// by the caller via cache.Open), historical import, realtime bootstrap,
// initial subnet refresh.
func (e *Engine) Start(ctx context.Context) error {
	e.logSys(constants.KindInfo, "", fmt.Sprintf("sshwatch starting (run %s)", e.runID))

	if e.cfg.ImportOnStart && e.historian != nil {
		if err := e.runImportIfNeeded(ctx); err != nil {
			e.logSys(constants.KindErr, "", fmt.Sprintf("historical import failed: %v", err))
		}
	}

	if e.cfg.BootstrapFromCache > 0 {
		if err := e.bootstrapRealtime(); err != nil {
			e.logSys(constants.KindErr, "", fmt.Sprintf("bootstrap failed: %v", err))
		}
	}

	if err := e.store.RefreshSubnetUniqueCounts(); err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("initial subnet refresh failed: %v", err))
	}
	if err := e.store.ForceCommit(); err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("initial commit failed: %v", err))
	}

	return nil
}

// runImportIfNeeded fingerprints the external database, skips the import if
// unchanged, else imports and commits in chunks (spec.md §4.6 step 2). The
// import itself runs inside an errgroup, following the worker pattern
// activecm-rita's database/writer.go uses for its batched commit goroutines;
// ImportAggregates takes no context, so ctx cancellation does not stop it.
func (e *Engine) runImportIfNeeded(ctx context.Context) error {
	fp, err := importer.ComputeFingerprint(e.cfg.F2BSqlite)
	if err != nil {
		return err
	}

	prevMtime, hasMtime, err := e.store.GetImportState("source_mtime")
	if err != nil {
		return err
	}
	prevSize, hasSize, err := e.store.GetImportState("source_size")
	if err != nil {
		return err
	}
	if hasMtime && hasSize && prevMtime == fmt.Sprintf("%d", fp.ModTime) && prevSize == fmt.Sprintf("%d", fp.Size) {
		e.logSys(constants.KindInfo, "", "historical import skipped: source unchanged")
		return nil
	}

	var aggregates map[string]model.ImportedBan
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var importErr error
		aggregates, importErr = e.historian.ImportAggregates()
		return importErr
	})
	if err := g.Wait(); err != nil {
		return err
	}

	now := util.NowTS()
	count := 0
	for _, agg := range aggregates {
		subnet, err := util.Subnet(agg.IP, e.cfg.SubnetPrefix)
		if err != nil {
			continue // malformed/non-IPv4 rows are silently dropped (spec.md §7)
		}
		if err := e.store.UpsertImportedBips(agg, now, subnet, e.cfg.SubnetPrefix); err != nil {
			return err
		}
		count++
		if count%constants.ImportChunkSize == 0 {
			if err := e.store.ForceCommit(); err != nil {
				return err
			}
		}
	}
	if err := e.store.ForceCommit(); err != nil {
		return err
	}

	if err := e.store.SetImportState("source_mtime", fmt.Sprintf("%d", fp.ModTime)); err != nil {
		return err
	}
	if err := e.store.SetImportState("source_size", fmt.Sprintf("%d", fp.Size)); err != nil {
		return err
	}
	if err := e.store.SetImportState("imported_at_ts", fmt.Sprintf("%d", now)); err != nil {
		return err
	}
	if err := e.store.SetImportState("imported_row_count", fmt.Sprintf("%d", count)); err != nil {
		return err
	}
	if err := e.store.ForceCommit(); err != nil {
		return err
	}

	e.logSys(constants.KindInfo, "", fmt.Sprintf("historical import applied: %d rows", count))
	return nil
}

func (e *Engine) bootstrapRealtime() error {
	ips, err := e.store.ListRealtimeSeedIPs(e.cfg.BootstrapFromCache)
	if err != nil {
		return err
	}
	e.mu.Lock()
	for _, ip := range ips {
		if _, ok := e.realtime[ip]; !ok {
			e.realtime[ip] = make(map[string]int64, len(constants.RealtimeKinds))
		}
	}
	e.mu.Unlock()
	e.logSys(constants.KindInfo, "", fmt.Sprintf("bootstrapped %d realtime entries from cache", len(ips)))
	return nil
}

// Tick runs one steady-state iteration of the loop (spec.md §4.6): ingest,
// poll, refresh ASN, maybe commit. Order is fixed per spec.md §5.
func (e *Engine) Tick(ctx context.Context) {
	e.processLogTails()

	if e.cfg.PollBans && e.cfg.Jail != "" {
		if err := e.pollFail2banBans(ctx); err != nil {
			e.logSys(constants.KindErr, "", fmt.Sprintf("jail poll failed: %v", err))
		}
	}

	e.RefreshASN()

	if err := e.store.MaybeCommit(); err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("commit failed: %v", err))
	}
}

// Run drives Tick on an interval until ctx is cancelled, flushing any
// pending commit on exit (spec.md §5 cancellation).
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := e.store.ForceCommit(); err != nil {
				return err
			}
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

func (e *Engine) processLogTails() {
	e.drainTailer(e.authTailer, constants.SrcAuth)
	e.drainTailer(e.f2bTailer, constants.SrcF2B)
}

func (e *Engine) drainTailer(t *tailer.TailFile, src string) {
	if t == nil {
		return
	}
	lines, err := t.ReadAvailable(0)
	if err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("%s tailer error: %v", src, err))
		return
	}
	for _, line := range lines {
		switch src {
		case constants.SrcAuth:
			if ev, ok := parser.ParseSSHLine(line); ok {
				if ev.Kind == constants.KindOK && !e.cfg.ShowOK {
					continue
				}
				e.handleEvent(src, ev.Kind, ev.IP, "")
			}
		case constants.SrcF2B:
			if ev, ok := parser.ParseJailLine(line); ok {
				e.handleEvent(src, ev.Kind, ev.IP, ev.Jail)
			}
		}
	}
}

// ObserveEvent is the engine's single public ingestion entrypoint, used by
// tests and any caller that needs to inject a synthetic event outside the
// normal tailer/poller paths.
func (e *Engine) ObserveEvent(src, kind, ip, jail string) {
	e.handleEvent(src, kind, ip, jail)
}

// handleEvent applies one observed event to the realtime counters, event
// rings, and cache store (spec.md §4.6 _handle_event). Cache errors are
// logged as sys/ERR and never propagate (spec.md §7 propagation policy).
func (e *Engine) handleEvent(src, kind, ip, jail string) {
	ts := util.NowTS()

	e.mu.