package parser_test

import (
	"testing"

	"github.com/sshwatch/sshwatch/constants"
	"github.com/sshwatch/sshwatch/parser"
	"github.com/stretchr/testify/assert"
)

func TestParseSSHLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want parser.SSHEvent
		ok   bool
	}{
		{
			name: "S1 failed password",
			line: "Jan 29 12:34:56 host sshd[1]: Failed password for root from 203.0.113.5 port 22 ssh2",
			want: parser.SSHEvent{IP: "203.0.113.5", Kind: constants.KindFail},
			ok:   true,
		},
		{
			name: "invalid user",
			line: "Jan 29 12:34:56 host sshd[1]: Invalid user admin from 198.51.100.9 port 22",
			want: parser.SSHEvent{IP: "198.51.100.9", Kind: constants.KindFail},
			ok:   true,
		},
		{
			name: "authentication failure",
			line: "Jan 29 12:34:56 host sshd[1]: pam_unix(sshd:auth): authentication failure; rhost=192.0.2.5",
			want: parser.SSHEvent{IP: "192.0.2.5", Kind: constants.KindFail},
			ok:   true,
		},
		{
			name: "accepted password",
			line: "Jan 29 12:34:56 host sshd[1]: Accepted password for bob from 192.0.2.9 port 22 ssh2",
			want: parser.SSHEvent{IP: "192.0.2.9", Kind: constants.KindOK},
			ok:   true,
		},
		{
			name: "accepted publickey",
			line: "Jan 29 12:34:56 host sshd[1]: Accepted publickey for bob from 192.0.2.9 port 22 ssh2",
			want: parser.SSHEvent{IP: "192.0.2.9", Kind: constants.KindOK},
			ok:   true,
		},
		{
			name: "invalid ipv4 rejected",
			line: "Jan 29 12:34:56 host sshd[1]: Failed password for root from 999.1.1.1 port 22 ssh2",
			ok:   false,
		},
		{
			name: "unrelated line",
			line: "Jan 29 12:34:56 host systemd[1]: Starting daily cleanup",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parser.ParseSSHLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseJailLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want parser.JailEvent
		ok   bool
	}{
		{
			name: "S2 ban",
			line: "2026-01-29 12:34:56,789 fail2ban.actions [1]: NOTICE [sshd] Ban 198.51.100.7",
			want: parser.JailEvent{IP: "198.51.100.7", Kind: constants.KindBan, Jail: "sshd"},
			ok:   true,
		},
		{
			name: "S2 unban",
			line: "2026-01-29 12:40:00,000 fail2ban.actions [1]: NOTICE [sshd] Unban 198.51.100.7",
			want: parser.JailEvent{IP: "198.51.100.7", Kind: constants.KindUnban, Jail: "sshd"},
			ok:   true,
		},
		{
			name: "no jail bracket",
			line: "fail2ban.actions: NOTICE Ban 203.0.113.9",
			want: parser.JailEvent{IP: "203.0.113.9", Kind: constants.KindBan, Jail: ""},
			ok:   true,
		},
		{
			name: "invalid ip rejected",
			line: "fail2ban.actions [1]: NOTICE [sshd] Ban 999.1.1.1",
			ok:   false,
		},
		{
			name: "unrelated",
			line: "fail2ban.server [1]: INFO Starting",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parser.ParseJailLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// TestRoundTrip covers invariant 7: parsing an accepted line twice yields
// the same tuple.
func TestRoundTrip(t *testing.T) {
	line := "Jan 29 12:34:56 host sshd[1]: Failed password for root from 203.0.113.5 port 22 ssh2"
	first, ok1 := parser.ParseSSHLine(line)
	second, ok2 := parser.ParseSSHLine(line)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}


