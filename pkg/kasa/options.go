package kasa

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-logr/logr"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// Resolver looks up the IP addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	port           int
	connectTimeout time.Duration
	requestTimeout time.Duration
	logger         logr.Logger
	resolver       Resolver
	dialer         Dialer
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		port:           DefaultPort,
		connectTimeout: 5 * time.Second,
		requestTimeout: 2 * time.Second,
		logger:         logr.Discard(),
		resolver:       net.DefaultResolver,
		dialer:         &net.Dialer{},
	}
}

// WithPort sets the TCP port used for addresses that carry no port.
// Default is 9999.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithConnectTimeout sets the timeout for resolving and connecting.
// Default is 5 seconds.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithRequestTimeout sets the deadline for sending a command and reading
// the full response. Default is 2 seconds.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithLogger sets the sink for diagnostics. Protocol traffic is logged at
// V(1), swallowed failures as errors.
// By default, no logging is performed.
func WithLogger(logger logr.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

// WithResolver replaces the host name resolver.
func WithResolver(r Resolver) ClientOption {
	return func(c *clientConfig) error {
		if r == nil {
			return errors.New("resolver must not be nil")
		}
		c.resolver = r
		return nil
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *clientConfig) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		c.dialer = d
		return nil
	}
}
