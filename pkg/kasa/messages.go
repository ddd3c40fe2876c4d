package kasa

import (
	"fmt"
)

// RelayState is the on/off state of a relay as carried on the wire.
type RelayState int

const (
	RelayOff RelayState = 0
	RelayOn  RelayState = 1
)

func (s RelayState) String() string {
	if s == RelayOff {
		return "off"
	}
	return "on"
}

// Command is an outgoing request document.
type Command struct {
	Context *CommandContext `json:"context,omitempty"`
	System  SystemCommand   `json:"system"`
}

// CommandContext scopes a command to child outlets of a power strip.
type CommandContext struct {
	ChildIDs []string `json:"child_ids"`
}

// SystemCommand holds the methods of the "system" module. Exactly one is set.
type SystemCommand struct {
	GetSysinfo    *struct{}      `json:"get_sysinfo,omitempty"`
	SetRelayState *SetRelayState `json:"set_relay_state,omitempty"`
}

// SetRelayState is the argument of the set_relay_state method.
type SetRelayState struct {
	State RelayState `json:"state"`
}

// GetSysinfoCommand returns {"system":{"get_sysinfo":{}}}.
func GetSysinfoCommand() Command {
	return Command{System: SystemCommand{GetSysinfo: &struct{}{}}}
}

// SetRelayStateCommand returns {"system":{"set_relay_state":{"state":N}}}.
func SetRelayStateCommand(state RelayState) Command {
	return Command{System: SystemCommand{SetRelayState: &SetRelayState{State: state}}}
}

// ForChild returns a copy of cmd scoped to the child outlet with the given id.
func (cmd Command) ForChild(id string) Command {
	cmd.Context = &CommandContext{ChildIDs: []string{id}}
	return cmd
}

// Response is an incoming reply document.
type Response struct {
	System *SystemResponse `json:"system"`
}

// SystemResponse holds the per-method results of the "system" module.
type SystemResponse struct {
	GetSysinfo    *SystemInfo `json:"get_sysinfo"`
	SetRelayState *Result     `json:"set_relay_state"`
}

// Result is the status every method reply carries.
type Result struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg,omitempty"`
}

// Err returns ErrDevice wrapped with the code and message, or nil.
func (r Result) Err() error {
	if r.ErrCode == 0 {
		return nil
	}
	if r.ErrMsg != "" {
		return fmt.Errorf("%w: code %d: %s", ErrDevice, r.ErrCode, r.ErrMsg)
	}
	return fmt.Errorf("%w: code %d", ErrDevice, r.ErrCode)
}

// SystemInfo is the device's self description.
//
// Single relay devices report RelayState. Power strips report Children
// instead. Which one to read depends on the plug index being addressed, not
// on which field happens to be present.
type SystemInfo struct {
	Result
	Alias           string      `json:"alias,omitempty"`
	Model           string      `json:"model,omitempty"`
	DeviceID        string      `json:"deviceId,omitempty"`
	MAC             string      `json:"mac,omitempty"`
	SoftwareVersion string      `json:"sw_ver,omitempty"`
	RelayState      *int        `json:"relay_state,omitempty"`
	ChildNum        int         `json:"child_num,omitempty"`
	Children        []ChildInfo `json:"children,omitempty"`
}

// ChildInfo describes one outlet of a power strip.
type ChildInfo struct {
	ID    string `json:"id"`
	State *int   `json:"state"`
	Alias string `json:"alias,omitempty"`
}

// PlugState reads the relay state for plug from the system info.
// Plug 0 reads relay_state, plug N reads children[N-1].state.
func (s *SystemInfo) PlugState(plug int) (bool, error) {
	if plug > 0 {
		child, err := s.child(plug)
		if err != nil {
			return false, err
		}
		if child.State == nil {
			return false, fmt.Errorf("%w: expecting state for child index %d", ErrShapeMismatch, plug-1)
		}
		return *child.State != 0, nil
	}

	if s.RelayState == nil {
		return false, fmt.Errorf("%w: expecting relay_state", ErrShapeMismatch)
	}
	return *s.RelayState != 0, nil
}

// ChildID returns the id of the child outlet at the 1-based plug index.
func (s *SystemInfo) ChildID(plug int) (string, error) {
	child, err := s.child(plug)
	if err != nil {
		return "", err
	}
	if child.ID == "" {
		return "", fmt.Errorf("%w: expecting id for child index %d", ErrChildLookup, plug-1)
	}
	return child.ID, nil
}

func (s *SystemInfo) child(plug int) (*ChildInfo, error) {
	if plug < 1 || plug > len(s.Children) {
		return nil, fmt.Errorf("%w: no child at index %d (device has %d)", ErrChildLookup, plug-1, len(s.Children))
	}
	return &s.Children[plug-1], nil
}
