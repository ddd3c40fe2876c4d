package psu

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// Switch is the relay control the registry drives. *kasa.Client
// implements it.
type Switch interface {
	PlugState(ctx context.Context, address string, plug int) bool
	TurnOn(ctx context.Context, address string, plug int) error
	TurnOff(ctx context.Context, address string, plug int) error
}

// PowerController is the surface a host needs for a PSU on/off/status
// control.
type PowerController interface {
	TurnSystemOn(ctx context.Context)
	TurnSystemOff(ctx context.Context)
	SystemState(ctx context.Context) bool
}

// OutletController adds the same triad per named outlet.
type OutletController interface {
	PowerController
	Outlets() []OutletConfig
	TurnOutletOn(ctx context.Context, name string) error
	TurnOutletOff(ctx context.Context, name string) error
	OutletState(ctx context.Context, name string) bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the diagnostics sink. By default nothing is logged.
func WithLogger(logger logr.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry holds the outlet configuration and fans system level commands
// out to the enabled outlets.
type Registry struct {
	sw     Switch
	logger logr.Logger

	mu      sync.RWMutex
	outlets []OutletConfig // outlets[0] is main; never mutated once stored
}

var _ OutletController = (*Registry)(nil)

// New creates a registry over sw.
func New(sw Switch, cfg Config, opts ...Option) (*Registry, error) {
	r := &Registry{sw: sw, logger: logr.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the outlet set. Calls already running keep the set they
// started with; later calls only see cfg.
func (r *Registry) Reload(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	outlets := cfg.outlets()

	r.mu.Lock()
	r.outlets = outlets
	r.mu.Unlock()

	r.logger.V(1).Info("outlets loaded", "count", len(outlets))
	for _, o := range outlets {
		r.logger.V(1).Info("outlet", "name", o.Name, "address", o.Address, "plug", o.Plug, "enabled", o.Enabled)
	}
	return nil
}

// Outlets returns a copy of the configured outlets, main first.
func (r *Registry) Outlets() []OutletConfig {
	return append([]OutletConfig(nil), r.snapshot()...)
}

func (r *Registry) snapshot() []OutletConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outlets
}

func (r *Registry) lookup(name string) (OutletConfig, error) {
	for _, o := range r.snapshot() {
		if o.Name == name {
			if !o.Enabled {
				return o, fmt.Errorf("%w: %s", ErrOutletDisabled, name)
			}
			return o, nil
		}
	}
	return OutletConfig{}, fmt.Errorf("%w: %s", ErrUnknownOutlet, name)
}

// TurnSystemOn switches main and then every enabled outlet on.
// A failing outlet is logged and does not stop the others.
func (r *Registry) TurnSystemOn(ctx context.Context) {
	r.logger.V(1).Info("switching PSU on")
	r.fanOut(ctx, true)
}

// TurnSystemOff switches main and then every enabled outlet off.
func (r *Registry) TurnSystemOff(ctx context.Context) {
	r.logger.V(1).Info("switching PSU off")
	r.fanOut(ctx, false)
}

// SystemState reports the state of the main outlet only.
func (r *Registry) SystemState(ctx context.Context) bool {
	return r.state(ctx, r.snapshot()[0])
}

// TurnOutletOn switches one enabled outlet on.
func (r *Registry) TurnOutletOn(ctx context.Context, name string) error {
	o, err := r.lookup(name)
	if err != nil {
		return err
	}
	return r.set(ctx, o, true)
}

// TurnOutletOff switches one enabled outlet off.
func (r *Registry) TurnOutletOff(ctx context.Context, name string) error {
	o, err := r.lookup(name)
	if err != nil {
		return err
	}
	return r.set(ctx, o, false)
}

// OutletState reports the state of one outlet; disabled and unknown outlets
// read as off.
func (r *Registry) OutletState(ctx context.Context, name string) bool {
	o, err := r.lookup(name)
	if err != nil {
		r.logger.V(1).Info("outlet state unavailable", "outlet", name, "reason", err.Error())
		return false
	}
	return r.state(ctx, o)
}

func (r *Registry) fanOut(ctx context.Context, on bool) {
	for _, o := range r.snapshot() {
		if !o.Enabled {
			continue
		}
		// Errors are already logged by set.
		_ = r.set(ctx, o, on)
	}
}

func (r *Registry) set(ctx context.Context, o OutletConfig, on bool) error {
	var err error
	if on {
		err = r.sw.TurnOn(ctx, o.Address, o.Plug)
	} else {
		err = r.sw.TurnOff(ctx, o.Address, o.Plug)
	}
	if err != nil {
		r.logger.Error(err, "failed to switch outlet", "outlet", o.Name, "on", on)
		return err
	}
	r.logger.V(1).Info("outlet switched", "outlet", o.Name, "on", on)
	return nil
}

func (r *Registry) state(ctx context.Context, o OutletConfig) bool {
	on := r.sw.PlugState(ctx, o.Address, o.Plug)
	r.logger.V(1).Info("outlet state", "outlet", o.Name, "on", on)
	return on
}
