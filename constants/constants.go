// Package constants holds the small enumerations shared across sshwatch.
package constants

import "time"

// JailController is the fail2ban-client binary invoked by the optional jail
// poller (SPEC_FULL.md §12).
const JailController = "fail2ban-client"

// PollHardTimeout bounds a single fail2ban-client invocation (spec.md §5).
const PollHardTimeout = 3 * time.Second

// Event sources, as written to model.Event.Src.
const (
	SrcAuth = "auth"
	SrcF2B  = "f2b"
	SrcPoll = "poll"
	SrcSys  = "sys"
)

// Event kinds, as written to model.Event.Kind and RealtimeRow.Counters keys.
const (
	KindFail  = "FAIL"
	KindOK    = "OK"
	KindBan   = "BAN"
	KindUnban = "UNBAN"
	KindInfo  = "INFO"
	KindErr   = "ERR"
)

// RealtimeKinds is the fixed set of kinds tracked in the in-memory realtime
// counters (§3 RealtimeCounters).
var RealtimeKinds = [...]string{KindFail, KindOK, KindBan, KindUnban}

// Ring buffer caps (§3).
const (
	GlobalEventRingCap = 2000
	PerIPEventRingCap  = 50
)

// AllowedSubnetPrefixes is the validated set for config.SubnetPrefix (§6).
var AllowedSubnetPrefixes = [...]int{8, 16, 24, 32}

// ImportChunkSize is the commit chunk size used during historical import (§4.6 step 2).
const ImportChunkSize = 2000
