package config_test

import (
	"testing"

	"github.com/sshwatch/sshwatch/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, 24, cfg.SubnetPrefix)
	assert.Equal(t, "whois.cymru.com", cfg.CymruHost)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/etc/sshwatch.hjson", []byte(`{
		auth_log: /var/log/auth.log
		f2b_log: /var/log/fail2ban.log
		cache_path: /var/lib/sshwatch/cache.db
		subnet_prefix: 16
	}`), 0644))

	cfg, err := config.LoadConfig(afs, "/etc/sshwatch.hjson")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.SubnetPrefix)
	// untouched fields keep their defaults
	assert.Equal(t, 100, cfg.BootstrapFromCache)
	assert.True(t, cfg.ImportOnStart)
}

func TestLoadConfigRejectsBadSubnetPrefix(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/etc/sshwatch.hjson", []byte(`{
		auth_log: /var/log/auth.log
		f2b_log: /var/log/fail2ban.log
		cache_path: /var/lib/sshwatch/cache.db
		subnet_prefix: 20
	}`), 0644))

	_, err := config.LoadConfig(afs, "/etc/sshwatch.hjson")
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	_, err := config.LoadConfig(afs, "/does/not/exist.hjson")
	require.Error(t, err)
}
