// Package kasa provides a client for TP-Link Kasa style smart plugs and
// power strips using the local TCP command channel.
//
// # Basic Usage
//
//	ctx := context.Background()
//	client, err := kasa.NewClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	on := client.PlugState(ctx, "192.168.1.20", 0)
//	if !on {
//	    _ = client.TurnOn(ctx, "192.168.1.20", 0)
//	}
//
// # Plug Index
//
// Every call takes a plug index. Index 0 addresses the relay of a single
// outlet device. Index N >= 1 addresses the Nth child outlet of a power
// strip; the child id is looked up from the device's system info before the
// command is sent.
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := kasa.NewClient(
//	    kasa.WithConnectTimeout(10*time.Second),
//	    kasa.WithRequestTimeout(5*time.Second),
//	    kasa.WithLogger(logger),
//	)
//
// # Protocol
//
// Each exchange opens a fresh TCP connection to port 9999, writes one
// length-prefixed frame whose JSON payload is obfuscated with an autokey XOR
// cipher (initial key 171), reads one response frame and closes the
// connection. The protocol has no authentication and no TLS.
// For security, isolate smart plugs on a dedicated VLAN.
package kasa
