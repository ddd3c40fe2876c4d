package kasa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Client talks to smart plugs and power strips. It holds no connection and
// no device state; every call queries the device live. A Client is safe for
// concurrent use. Concurrent commands to the same device are not ordered.
type Client struct {
	port           int
	connectTimeout time.Duration
	requestTimeout time.Duration
	logger         logr.Logger
	resolver       Resolver
	dialer         Dialer
}

// NewClient creates a new client.
// Options can be provided to configure the client behavior.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return &Client{
		port:           cfg.port,
		connectTimeout: cfg.connectTimeout,
		requestTimeout: cfg.requestTimeout,
		logger:         cfg.logger,
		resolver:       cfg.resolver,
		dialer:         cfg.dialer,
	}, nil
}

// Send marshals cmd, exchanges it with the device and decodes the reply.
// A reply that is not a JSON object wraps ErrShapeMismatch.
func (c *Client) Send(ctx context.Context, address string, cmd Command) (*Response, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	raw, err := c.Exchange(ctx, address, payload)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w: result=%s", ErrShapeMismatch, err, raw)
	}
	return &resp, nil
}

// SysInfo queries the device's system info.
func (c *Client) SysInfo(ctx context.Context, address string) (*SystemInfo, error) {
	resp, err := c.Send(ctx, address, GetSysinfoCommand())
	if err != nil {
		return nil, err
	}

	if resp.System == nil || resp.System.GetSysinfo == nil {
		return nil, fmt.Errorf("%w: expecting system.get_sysinfo", ErrShapeMismatch)
	}
	info := resp.System.GetSysinfo
	if err := info.Err(); err != nil {
		return nil, fmt.Errorf("get_sysinfo: %w", err)
	}
	return info, nil
}

// PlugState reports whether the relay of plug is on.
//
// Any failure (unreachable device, unexpected reply, unknown child) reads
// as false and is logged; false therefore means "off or unknown".
func (c *Client) PlugState(ctx context.Context, address string, plug int) bool {
	info, err := c.SysInfo(ctx, address)
	if err != nil {
		c.logger.Error(err, "failed to get system info", "address", address, "plug", plug)
		return false
	}

	on, err := info.PlugState(plug)
	if err != nil {
		c.logger.Error(err, "failed to read plug state", "address", address, "plug", plug)
		return false
	}

	c.logger.V(1).Info("plug state", "address", address, "plug", plug, "on", on)
	return on
}

// SetPlugState switches the relay of plug.
//
// For plug > 0 the child id is resolved from system info first; when that
// fails nothing is sent. Failures are logged and returned; no retries are
// made.
func (c *Client) SetPlugState(ctx context.Context, address string, plug int, state RelayState) error {
	cmd := SetRelayStateCommand(state)

	if plug > 0 {
		id, err := c.childID(ctx, address, plug)
		if err != nil {
			c.logger.Error(err, "failed to resolve child outlet", "address", address, "plug", plug)
			return err
		}
		cmd = cmd.ForChild(id)
	}

	resp, err := c.Send(ctx, address, cmd)
	if err != nil {
		c.logger.Error(err, "failed to set relay state", "address", address, "plug", plug, "state", state)
		return err
	}

	if resp.System != nil && resp.System.SetRelayState != nil {
		if err := resp.System.SetRelayState.Err(); err != nil {
			err = fmt.Errorf("set_relay_state: %w", err)
			c.logger.Error(err, "device rejected relay state", "address", address, "plug", plug, "state", state)
			return err
		}
	}

	c.logger.V(1).Info("relay state set", "address", address, "plug", plug, "state", state)
	return nil
}

// TurnOn switches the relay of plug on.
func (c *Client) TurnOn(ctx context.Context, address string, plug int) error {
	return c.SetPlugState(ctx, address, plug, RelayOn)
}

// TurnOff switches the relay of plug off.
func (c *Client) TurnOff(ctx context.Context, address string, plug int) error {
	return c.SetPlugState(ctx, address, plug, RelayOff)
}

func (c *Client) childID(ctx context.Context, address string, plug int) (string, error) {
	info, err := c.SysInfo(ctx, address)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChildLookup, err)
	}
	return info.ChildID(plug)
}
