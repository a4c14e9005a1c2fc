package reach

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	ips   map[string][]net.IP
	calls int
}

func (r *fakeResolver) LookupIP(_ context.Context, network, host string) ([]net.IP, error) {
	r.calls++
	if network != "ip4" {
		return nil, errors.New("unexpected network " + network)
	}
	ips, ok := r.ips[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func TestIsLocal_Literals(t *testing.T) {
	c := &Classifier{Resolver: &fakeResolver{}}
	ctx := context.Background()

	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.255.255.254", true},
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.0.1", true},
		{"192.168.255.255", true},
		{"8.8.8.8", false},
		{"172.15.255.255", false},
		{"172.32.0.0", false},
		{"192.169.0.1", false},
		{"11.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := c.IsLocal(ctx, tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsLocal_URLsAndPorts(t *testing.T) {
	c := &Classifier{Resolver: &fakeResolver{}}
	ctx := context.Background()

	for _, host := range []string{"http://localhost:9000/", "https://192.168.1.20/tests", "10.1.1.1:8080"} {
		got, err := c.IsLocal(ctx, host)
		require.NoError(t, err, host)
		assert.True(t, got, host)
	}
}

func TestIsLocal_ResolvesNames(t *testing.T) {
	resolver := &fakeResolver{ips: map[string][]net.IP{
		"devbox.lan":  {net.ParseIP("192.168.3.4"), net.ParseIP("8.8.4.4")},
		"example.com": {net.ParseIP("93.184.216.34")},
	}}
	c := &Classifier{Resolver: resolver}
	ctx := context.Background()

	local, err := c.IsLocal(ctx, "devbox.lan")
	require.NoError(t, err)
	assert.True(t, local, "first address decides")

	local, err = c.IsLocal(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, local)

	assert.Equal(t, 2, resolver.calls)
}

func TestIsLocal_ResolutionFailure(t *testing.T) {
	c := &Classifier{Resolver: &fakeResolver{}}

	local, err := c.IsLocal(context.Background(), "missing.invalid")
	require.Error(t, err)
	assert.False(t, local)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "missing.invalid", resErr.Host)

	var dnsErr *net.DNSError
	assert.ErrorAs(t, err, &dnsErr)
}

func TestIsLocal_NoIPv4Address(t *testing.T) {
	c := &Classifier{Resolver: &fakeResolver{ips: map[string][]net.IP{"v6only.test": {}}}}

	_, err := c.IsLocal(context.Background(), "v6only.test")
	var resErr *ResolutionError
	assert.ErrorAs(t, err, &resErr)
}
