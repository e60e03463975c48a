package engine

import (
	"fmt"

	"github.com/sshwatch/sshwatch/constants"
	"github.com/sshwatch/sshwatch/util"
	"github.com/sshwatch/sshwatch/whois"
)

// RefreshASN runs one enrichment-scheduler step (spec.md §4.7). Pacing is
// rate-limited via e.asnLimiter rather than a manually-tracked timestamp, an
// adaptation of cache.Store's commit-interval token bucket to the same
// "no more often than every N seconds" shape. All failures are logged as
// sys/ERR and swallowed, matching refresh_asn's error handling in
// original_source/app.py — enrichment is best-effort and never fatal.
func (e *Engine) RefreshASN() (asked, written int) {
	if !e.cfg.ASNEnable {
		return 0, 0
	}
	if !e.asnLimiter.Allow() {
		return 0, 0
	}

	minFetchedTS := util.NowTS() - e.cfg.ASNCacheTTL

	need, err := e.store.ListIPsNeedingASNRefresh(e.asnCursor, e.cfg.ASNBatch, minFetchedTS)
	if err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("asn cache scan failed: %v", err))
		return 0, 0
	}
	if len(need) == 0 && e.asnCursor != "" {
		// wraparound: the cursor has run past the tail of the address
		// space, reset to the beginning and retry once (spec.md §4.7 step 2)
		e.asnCursor = ""
		need, err = e.store.ListIPsNeedingASNRefresh(e.asnCursor, e.cfg.ASNBatch, minFetchedTS)
		if err != nil {
			e.logSys(constants.KindErr, "", fmt.Sprintf("asn cache scan failed: %v", err))
			return 0, 0
		}
	}
	if len(need) == 0 {
		return 0, 0
	}

	// advance the cursor before the lookup so a C4 failure does not stall
	// the walk: those IPs are retried on a later wraparound (spec.md §4.7 step 5)
	e.asnCursor = need[len(need)-1]

	// a dial/write failure yields no results, but a read failure partway
	// through the bulk response (deadline hit, connection reset) can still
	// carry entries parsed before the error; persist whatever came back
	// instead of discarding a partially-successful round.
	infos, lookupErr := e.whois.Lookup(need, e.cfg.CymruHost, whois.Timeout(e.cfg.ASNTimeout))
	if lookupErr != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("asn lookup failed: %v", lookupErr))
	}
	if len(infos) == 0 {
		return len(need), 0
	}

	asked, written, err = e.store.UpsertASNInfo(infos)
	if err != nil {
		e.logSys(constants.KindErr, "", fmt.Sprintf("asn sqlite write failed: %v", err))
		return len(need), 0
	}
	if asked > 0 && written > 0 {
		e.logSys(constants.KindInfo, "", fmt.Sprintf("asn refresh: asked=%d got=%d", asked, written))
	}
	return asked, written
}
