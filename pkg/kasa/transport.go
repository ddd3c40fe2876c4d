package kasa

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Exchange sends one raw JSON payload to the device at address and returns
// the decoded JSON reply. Every call uses its own TCP connection, which is
// closed before Exchange returns.
//
// The address may carry a port ("host:port"); otherwise the client's port
// is used. Errors wrap one of ErrResolution, ErrConnection, ErrSend,
// ErrTimeout, ErrMalformedLength or ErrResponseTooLarge.
func (c *Client) Exchange(ctx context.Context, address string, payload []byte) ([]byte, error) {
	host, port := c.splitAddress(address)

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	ip, err := c.resolve(dialCtx, host)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(ip.String(), port)
	conn, err := c.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, addr, err)
	}
	defer conn.Close()

	// Unblocks the read below when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(c.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, addr, err)
	}

	if _, err := conn.Write(MarshalFrame(payload)); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSend, addr, err)
	}
	c.logger.V(1).Info("request sent", "addr", addr, "payload", string(payload))

	resp, err := ReadFrame(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request canceled: %w", ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, addr, err)
		}
		if errors.Is(err, ErrMalformedLength) || errors.Is(err, ErrResponseTooLarge) {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		return nil, fmt.Errorf("%w: %s: receive: %w", ErrConnection, addr, err)
	}
	c.logger.V(1).Info("response received", "addr", addr, "payload", string(resp))

	return resp, nil
}

// resolve returns the first IPv4 address of host, or the first address of
// any family when host has no IPv4 address.
func (c *Client) resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrResolution)
	}
	ips, err := c.resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolution, host)
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func (c *Client) splitAddress(address string) (host, port string) {
	if h, p, err := net.SplitHostPort(address); err == nil {
		return h, p
	}
	return address, strconv.Itoa(c.port)
}
