package util_test

import (
	"testing"

	"github.com/sshwatch/sshwatch/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubnet(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		prefix  int
		want    string
		wantErr bool
	}{
		{"slash24", "203.0.113.5", 24, "203.0.113.0/24", false},
		{"slash8", "203.0.113.5", 8, "203.0.0.0/8", false},
		{"slash32", "203.0.113.5", 32, "203.0.113.5/32", false},
		{"slash16", "198.51.100.7", 16, "198.51.0.0/16", false},
		{"invalid ip", "999.1.1.1", 24, "", true},
		{"ipv6 rejected", "::1", 24, "", true},
		{"bad prefix", "203.0.113.5", 40, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := util.Subnet(tt.ip, tt.prefix)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidIPv4(t *testing.T) {
	assert.True(t, util.IsValidIPv4("203.0.113.5"))
	assert.False(t, util.IsValidIPv4("999.1.1.1"))
	assert.False(t, util.IsValidIPv4("not-an-ip"))
	assert.False(t, util.IsValidIPv4("::1"))
}
