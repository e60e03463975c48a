package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/cmd"
)

func newApp() *cli.App {
	return &cli.App{Name: "sshwatch", Commands: cmd.Commands()}
}

func TestCommandsRegistersWatchViewValidate(t *testing.T) {
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name] = true
	}
	require.True(t, names["watch"])
	require.True(t, names["view"])
	require.True(t, names["validate-config"])
}

func TestValidateConfigCommandAcceptsWellFormedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sshwatch.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{
		auth_log: /var/log/auth.log
		f2b_log: /var/log/fail2ban.log
		cache_path: ./cache.db
		subnet_prefix: 24
		poll_interval: 2.0
		asn_refresh_interval: 10.0
		asn_cache_ttl: 86400
		asn_batch: 20
		asn_timeout: 4.0
		cymru_host: whois.cymru.com
		top_subnets: 10
		commit_interval: 0.8
	}`), 0o644))

	app := newApp()
	err := app.Run([]string{"sshwatch", "validate-config", "--config", path})
	require.NoError(t, err)
}

func TestValidateConfigCommandRejectsMissingFile(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"sshwatch", "validate-config", "--config", filepath.Join(t.TempDir(), "nope.hjson")})
	require.Error(t, err)
}

func TestValidateConfigCommandRejectsExtraArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sshwatch.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{auth_log: /x, f2b_log: /y, cache_path: /z, subnet_prefix: 24, poll_interval: 2.0, asn_refresh_interval: 10.0, asn_cache_ttl: 86400, asn_batch: 20, asn_timeout: 4.0, cymru_host: whois.cymru.com, top_subnets: 10, commit_interval: 0.8}`), 0o644))

	app := newApp()
	err := app.Run([]string{"sshwatch", "validate-config", "--config", path, "unexpected"})
	require.ErrorIs(t, err, cmd.ErrTooManyArguments)
}
