package psu

import (
	"errors"
	"fmt"
)

// MainOutlet is the name of the outlet that powers the system itself.
const MainOutlet = "main"

var (
	ErrUnknownOutlet  = errors.New("unknown outlet")
	ErrOutletDisabled = errors.New("outlet disabled")
	ErrInvalidConfig  = errors.New("invalid outlet configuration")
)

// OutletConfig binds a logical outlet to a relay.
// Plug 0 is the relay of a single outlet device at Address, plug N the Nth
// child outlet of a power strip.
type OutletConfig struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Plug    int    `json:"plug"`
	Enabled bool   `json:"enabled"`
}

// Config is the full set of outlets. Outlets are switched in slice order
// after Main.
type Config struct {
	Main    OutletConfig
	Outlets []OutletConfig
}

// Validate checks names and plug indexes.
func (c Config) Validate() error {
	seen := map[string]bool{MainOutlet: true}
	if c.Main.Plug < 0 {
		return fmt.Errorf("%w: %s: plug must not be negative", ErrInvalidConfig, MainOutlet)
	}
	for i, o := range c.Outlets {
		if o.Name == "" {
			return fmt.Errorf("%w: outlet %d has no name", ErrInvalidConfig, i)
		}
		if seen[o.Name] {
			return fmt.Errorf("%w: duplicate outlet name %q", ErrInvalidConfig, o.Name)
		}
		seen[o.Name] = true
		if o.Plug < 0 {
			return fmt.Errorf("%w: %s: plug must not be negative", ErrInvalidConfig, o.Name)
		}
	}
	return nil
}

// outlets flattens c into switching order. Main is always named MainOutlet
// and always enabled.
func (c Config) outlets() []OutletConfig {
	main := c.Main
	main.Name = MainOutlet
	main.Enabled = true

	out := make([]OutletConfig, 0, 1+len(c.Outlets))
	out = append(out, main)
	return append(out, c.Outlets...)
}
