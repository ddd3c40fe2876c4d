package kasatest

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/zberg/go-kasaplug/pkg/kasa"
)

// Child is the initial state of one outlet of a fake power strip.
type Child struct {
	ID    string
	Alias string
	On    bool
}

// Device simulates the relay state of a plug or power strip.
type Device struct {
	*Server

	stateMu  sync.Mutex
	strip    bool
	relay    bool
	children []Child
}

// NewPlug starts a fake single relay plug.
func NewPlug(on bool) *Device {
	d := &Device{relay: on}
	d.Server = NewServer(d.reply)
	return d
}

// NewStrip starts a fake power strip with the given children.
func NewStrip(children ...Child) *Device {
	d := &Device{strip: true, children: append([]Child(nil), children...)}
	d.Server = NewServer(d.reply)
	return d
}

// On reports the simulated relay state of plug (0 for the plug itself,
// N for the Nth child of a strip).
func (d *Device) On(plug int) bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if plug == 0 {
		return d.relay
	}
	return d.children[plug-1].On
}

func (d *Device) reply(req Request) []byte {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	sys := req.Command.System
	var result any
	switch {
	case sys.GetSysinfo != nil:
		result = map[string]any{"system": map[string]any{"get_sysinfo": d.sysinfo()}}
	case sys.SetRelayState != nil:
		d.setRelay(req.Command.Context, sys.SetRelayState.State == kasa.RelayOn)
		result = map[string]any{"system": map[string]any{"set_relay_state": map[string]any{"err_code": 0}}}
	default:
		return errorReply(errUnknownCommand)
	}

	b, _ := json.Marshal(result)
	return b
}

func (d *Device) sysinfo() map[string]any {
	info := map[string]any{
		"err_code": 0,
		"sw_ver":   "1.0.0 Build 000000 Rel.000000",
		"mac":      "50:C7:BF:00:00:00",
		"deviceId": "8006FAKEDEVICE",
	}
	if !d.strip {
		info["model"] = "HS100(US)"
		info["alias"] = "fake plug"
		info["relay_state"] = boolInt(d.relay)
		return info
	}

	children := make([]map[string]any, 0, len(d.children))
	for _, c := range d.children {
		children = append(children, map[string]any{
			"id":    c.ID,
			"alias": c.Alias,
			"state": boolInt(c.On),
		})
	}
	info["model"] = "HS300(US)"
	info["alias"] = "fake strip"
	info["child_num"] = len(d.children)
	info["children"] = children
	return info
}

func (d *Device) setRelay(ctx *kasa.CommandContext, on bool) {
	if !d.strip {
		d.relay = on
		return
	}
	for i := range d.children {
		if ctx == nil || slices.Contains(ctx.ChildIDs, d.children[i].ID) {
			d.children[i].On = on
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
