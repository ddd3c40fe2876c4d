package kasa

import (
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPort_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithPort(9999)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.port)

	err = WithPort(1)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.port)

	err = WithPort(65535)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 65535, cfg.port)
}

func TestWithPort_Invalid(t *testing.T) {
	cfg := defaultConfig()

	err := WithPort(0)(cfg)
	assert.Error(t, err)

	err = WithPort(-1)(cfg)
	assert.Error(t, err)

	err = WithPort(65536)(cfg)
	assert.Error(t, err)
}

func TestWithConnectTimeout_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithConnectTimeout(10 * time.Second)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.connectTimeout)
}

func TestWithConnectTimeout_Invalid(t *testing.T) {
	cfg := defaultConfig()

	err := WithConnectTimeout(0)(cfg)
	assert.Error(t, err)

	err = WithConnectTimeout(-1 * time.Second)(cfg)
	assert.Error(t, err)
}

func TestWithRequestTimeout_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithRequestTimeout(5 * time.Second)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.requestTimeout)
}

func TestWithRequestTimeout_Invalid(t *testing.T) {
	cfg := defaultConfig()

	err := WithRequestTimeout(0)(cfg)
	assert.Error(t, err)

	err = WithRequestTimeout(-1 * time.Second)(cfg)
	assert.Error(t, err)
}

func TestWithLogger(t *testing.T) {
	cfg := defaultConfig()

	logger := testr.New(t)
	err := WithLogger(logger)(cfg)
	require.NoError(t, err)
	assert.Equal(t, logger, cfg.logger)
}

func TestWithResolverAndDialer(t *testing.T) {
	cfg := defaultConfig()

	r := &net.Resolver{PreferGo: true}
	require.NoError(t, WithResolver(r)(cfg))
	assert.Same(t, r, cfg.resolver)

	d := &net.Dialer{Timeout: time.Second}
	require.NoError(t, WithDialer(d)(cfg))
	assert.Same(t, d, cfg.dialer)

	assert.Error(t, WithResolver(nil)(cfg))
	assert.Error(t, WithDialer(nil)(cfg))
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 9999, cfg.port)
	assert.Equal(t, 5*time.Second, cfg.connectTimeout)
	assert.Equal(t, 2*time.Second, cfg.requestTimeout)
	assert.Equal(t, logr.Discard(), cfg.logger)
	assert.Equal(t, net.DefaultResolver, cfg.resolver)
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient(WithPort(0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid option")
}
