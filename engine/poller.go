package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sshwatch/sshwatch/constants"
)

// pollFail2banBans invokes `fail2ban-client status <jail>` under a hard
// timeout, diffs the reported banned-IP set against what was last observed,
// and synthesizes poll/BAN and poll/UNBAN events for the difference.
// Ported from original_source/app.py's poll_fail2ban_bans, which exists to
// catch bans/unbans issued by actions outside the tailed logs (e.g. a
// manual `fail2ban-client set <jail> banip`).
func (e *Engine) pollFail2banBans(ctx context.Context) error {
	now := time.Now()
	if !e.lastPollTick.IsZero() && now.Sub(e.lastPollTick) < secondsToDuration(e.cfg.PollInterval) {
		return nil
	}
	e.lastPollTick = now

	cctx, cancel := context.WithTimeout(ctx, constants.PollHardTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, constants.JailController, "status", e.cfg.Jail)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("error running %s status %s: %w", constants.JailController, e.cfg.Jail, err)
	}

	banned := make(map[string]struct{})
	for _, line := range strings.Split(stdout.String(), "\n") {
		idx := strings.Index(line, "Banned IP list:")
		if idx < 0 {
			continue
		}
		for _, ip := range strings.Fields(line[idx+len("Banned IP list:"):]) {
			banned[ip] = struct{}{}
		}
	}

	var added, removed []string
	for ip := range banned {
		if _, ok := e.pendingBans[ip]; !ok {
			added = append(added, ip)
		}
	}
	for ip := range e.pendingBans {
		if _, ok := banned[ip]; !ok {
			removed = append(removed, ip)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	sort.Strings(added)
	sort.Strings(removed)
	for _, ip := range added {
		e.handleEvent(constants.SrcPoll, constants.KindBan, ip, e.cfg.Jail)
	}
	for _, ip := range removed {
		e.handleEvent(constants.SrcPoll, constants.KindUnban, ip, e.cfg.Jail)
	}
	e.pendingBans = banned
	return nil
}
