package psu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-kasaplug/pkg/kasa"
	"github.com/zberg/go-kasaplug/pkg/kasa/kasatest"
)

// recordingSwitch records calls and fails for addresses listed in fail.
type recordingSwitch struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	on    map[string]bool
}

func (s *recordingSwitch) record(call, address string, plug int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("%s %s/%d", call, address, plug))
	if s.fail[address] {
		return errors.New("unreachable")
	}
	return nil
}

func (s *recordingSwitch) PlugState(_ context.Context, address string, plug int) bool {
	_ = s.record("state", address, plug)
	return s.on[address]
}

func (s *recordingSwitch) TurnOn(_ context.Context, address string, plug int) error {
	return s.record("on", address, plug)
}

func (s *recordingSwitch) TurnOff(_ context.Context, address string, plug int) error {
	return s.record("off", address, plug)
}

func testConfig() Config {
	return Config{
		Main: OutletConfig{Address: "10.0.0.1"},
		Outlets: []OutletConfig{
			{Name: "light", Address: "10.0.0.2", Plug: 2, Enabled: true},
			{Name: "accessory", Address: "10.0.0.2", Plug: 3, Enabled: false},
			{Name: "fan", Address: "10.0.0.3", Enabled: true},
		},
	}
}

func newRegistry(t *testing.T, sw Switch, cfg Config) *Registry {
	t.Helper()
	r, err := New(sw, cfg, WithLogger(testr.New(t)))
	require.NoError(t, err)
	return r
}

func TestTurnSystemOn_Order(t *testing.T) {
	sw := &recordingSwitch{}
	r := newRegistry(t, sw, testConfig())

	r.TurnSystemOn(context.Background())

	assert.Equal(t, []string{"on 10.0.0.1/0", "on 10.0.0.2/2", "on 10.0.0.3/0"}, sw.calls)
}

func TestTurnSystemOff_ContinuesPastFailures(t *testing.T) {
	sw := &recordingSwitch{fail: map[string]bool{"10.0.0.1": true, "10.0.0.2": true}}
	r := newRegistry(t, sw, testConfig())

	r.TurnSystemOff(context.Background())

	assert.Equal(t, []string{"off 10.0.0.1/0", "off 10.0.0.2/2", "off 10.0.0.3/0"}, sw.calls)
}

func TestTurnSystemOn_FanOutIndependence(t *testing.T) {
	main := kasatest.NewPlug(false)
	defer main.Close()
	strip := kasatest.NewStrip(kasatest.Child{ID: "A"}, kasatest.Child{ID: "B"})
	defer strip.Close()

	client, err := kasa.NewClient(kasa.WithLogger(testr.New(t)))
	require.NoError(t, err)

	r := newRegistry(t, client, Config{
		Main: OutletConfig{Address: main.Addr},
		Outlets: []OutletConfig{
			{Name: "broken", Address: kasatest.ClosedAddr(), Enabled: true},
			{Name: "light", Address: strip.Addr, Plug: 2, Enabled: true},
		},
	})

	r.TurnSystemOn(context.Background())

	assert.Len(t, main.SetRelayStateRequests(), 1)
	assert.True(t, main.On(0))
	assert.True(t, strip.On(2))
	assert.False(t, strip.On(1))

	assert.True(t, r.SystemState(context.Background()))
	assert.True(t, r.OutletState(context.Background(), "light"))
	assert.False(t, r.OutletState(context.Background(), "broken"))
}

func TestSystemState_MainOnly(t *testing.T) {
	sw := &recordingSwitch{on: map[string]bool{"10.0.0.1": true}}
	r := newRegistry(t, sw, testConfig())

	assert.True(t, r.SystemState(context.Background()))
	assert.Equal(t, []string{"state 10.0.0.1/0"}, sw.calls)
}

func TestOutletState(t *testing.T) {
	sw := &recordingSwitch{on: map[string]bool{"10.0.0.2": true}}
	r := newRegistry(t, sw, testConfig())

	assert.True(t, r.OutletState(context.Background(), "light"))
	assert.False(t, r.OutletState(context.Background(), "accessory"), "disabled outlet")
	assert.False(t, r.OutletState(context.Background(), "nope"), "unknown outlet")

	assert.Equal(t, []string{"state 10.0.0.2/2"}, sw.calls)
}

func TestTurnOutlet(t *testing.T) {
	sw := &recordingSwitch{}
	r := newRegistry(t, sw, testConfig())

	require.NoError(t, r.TurnOutletOn(context.Background(), "light"))
	require.NoError(t, r.TurnOutletOff(context.Background(), "main"))

	assert.ErrorIs(t, r.TurnOutletOn(context.Background(), "accessory"), ErrOutletDisabled)
	assert.ErrorIs(t, r.TurnOutletOff(context.Background(), "nope"), ErrUnknownOutlet)

	assert.Equal(t, []string{"on 10.0.0.2/2", "off 10.0.0.1/0"}, sw.calls)
}

func TestReload(t *testing.T) {
	sw := &recordingSwitch{}
	r := newRegistry(t, sw, testConfig())

	cfg := testConfig()
	cfg.Main.Address = "10.0.0.9"
	cfg.Outlets = cfg.Outlets[:1]
	require.NoError(t, r.Reload(cfg))

	r.TurnSystemOn(context.Background())
	assert.Equal(t, []string{"on 10.0.0.9/0", "on 10.0.0.2/2"}, sw.calls)

	bad := testConfig()
	bad.Outlets = append(bad.Outlets, OutletConfig{Name: "light"})
	assert.ErrorIs(t, r.Reload(bad), ErrInvalidConfig)
	assert.Len(t, r.Outlets(), 2, "failed reload keeps the previous set")
}

func TestOutlets(t *testing.T) {
	r := newRegistry(t, &recordingSwitch{}, Config{
		Main: OutletConfig{Name: "ignored", Address: "10.0.0.1", Plug: 1},
	})

	outlets := r.Outlets()
	require.Len(t, outlets, 1)
	assert.Equal(t, OutletConfig{Name: MainOutlet, Address: "10.0.0.1", Plug: 1, Enabled: true}, outlets[0])

	outlets[0].Address = "changed"
	assert.Equal(t, "10.0.0.1", r.Outlets()[0].Address)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative main plug", Config{Main: OutletConfig{Plug: -1}}},
		{"empty name", Config{Outlets: []OutletConfig{{Address: "x"}}}},
		{"duplicate name", Config{Outlets: []OutletConfig{{Name: "a"}, {Name: "a"}}}},
		{"shadows main", Config{Outlets: []OutletConfig{{Name: MainOutlet}}}},
		{"negative plug", Config{Outlets: []OutletConfig{{Name: "a", Plug: -2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, testConfig().Validate())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&recordingSwitch{}, Config{Main: OutletConfig{Plug: -1}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
