package whois_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/sshwatch/sshwatch/whois"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeCymru starts a one-shot TCP server that reads the bulk request,
// asserts its shape, and writes back a canned response body.
func startFakeCymru(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if scanner.Text() == "end" {
				break
			}
		}
		conn.Write([]byte(response))
	}()

	return ln.Addr().String()
}

func TestLookupEmptyInputShortCircuits(t *testing.T) {
	c := &whois.BulkClient{Dial: func(network, addr string, timeout time.Duration) (net.Conn, error) {
		t.Fatal("Dial should not be called for empty input")
		return nil, nil
	}}
	results, err := c.Lookup(nil, "whois.cymru.com", time.Second)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLookupVerboseResponse(t *testing.T) {
	addr := startFakeCymru(t, "AS      | IP               | BGP Prefix          | CC | Registry | Allocated  | AS Name\n"+
		"64500   | 192.0.2.9        | 192.0.2.0/24        | US | arin     | 2010-01-01 | EXAMPLE-AS, US\n")

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	_ = port

	c := whois.NewBulkClient()
	c.Dial = func(network, _ string, timeout time.Duration) (net.Conn, error) {
		return net.DialTimeout(network, addr, timeout)
	}

	results, err := c.Lookup([]string{"192.0.2.9"}, host, time.Second)
	require.NoError(t, err)
	require.Contains(t, results, "192.0.2.9")
	info := results["192.0.2.9"]
	assert.Equal(t, "64500", info.ASN)
	assert.Equal(t, "US", info.CC)
	assert.Equal(t, "EXAMPLE-AS, US", info.AsName)
}

func TestLookupNonVerboseResponse(t *testing.T) {
	addr := startFakeCymru(t, "64500   | 192.0.2.9        | US | arin     | 2010-01-01 | EXAMPLE-AS, US\n")

	host, _, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	c := whois.NewBulkClient()
	c.Dial = func(network, _ string, timeout time.Duration) (net.Conn, error) {
		return net.DialTimeout(network, addr, timeout)
	}

	results, err := c.Lookup([]string{"192.0.2.9"}, host, time.Second)
	require.NoError(t, err)
	info := results["192.0.2.9"]
	assert.Equal(t, "64500", info.ASN)
	assert.Equal(t, "US", info.CC)
	assert.Equal(t, "EXAMPLE-AS, US", info.AsName)
}

func TestLookupDialFailure(t *testing.T) {
	c := &whois.BulkClient{Dial: func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, assertErr{}
	}}
	results, err := c.Lookup([]string{"192.0.2.9"}, "whois.cymru.com", time.Second)
	require.Error(t, err)
	assert.Empty(t, results)
}

type assertErr struct{}

func (assertErr) Error() string { return "dial failed" }

