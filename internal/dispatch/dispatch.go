// Package dispatch maps inbound commands to outbound responses using the
// host's current zone and config state.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/rs/zerolog"
)

var (
	ErrHandlerNil     = errors.New("dispatch: handler is nil")
	ErrNoHandler      = errors.New("dispatch: no handler for command")
	ErrZoneOutOfRange = errors.New("dispatch: zone out of range")
	ErrBadParams      = errors.New("dispatch: unexpected params")
)

// StateSource exposes the host-owned zone list and config. Zones are
// addressed 1..N by position; 0 means all zones.
type StateSource interface {
	Zones() []protocol.ZoneStatus
	Config() protocol.Config
}

// Handler produces the response for one inbound command.
type Handler func(params any) (protocol.Command, error)

// Dispatcher holds the handler table. Handle never fails: any problem is
// answered with NAK.
type Dispatcher struct {
	state    StateSource
	mu       sync.RWMutex
	handlers map[protocol.CommandCode]Handler
	log      zerolog.Logger
}

// New returns a Dispatcher with the built-in request handlers registered.
func New(state StateSource) *Dispatcher {
	d := &Dispatcher{
		state:    state,
		handlers: make(map[protocol.CommandCode]Handler),
		log:      logging.Component("dispatch"),
	}
	d.handlers[protocol.CmdPing] = d.handlePing
	d.handlers[protocol.CmdRequestZoneStatus] = d.handleRequestZoneStatus
	d.handlers[protocol.CmdRequestZoneConfig] = d.handleRequestZoneConfig
	d.handlers[protocol.CmdRequestConfig] = d.handleRequestConfig
	return d
}

// Register adds or replaces the handler for code.
func (d *Dispatcher) Register(code protocol.CommandCode, h Handler) error {
	if h == nil {
		return ErrHandlerNil
	}
	if !code.Known() {
		return fmt.Errorf("%w: %s", protocol.ErrUnknownCommand, code)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[code] = h
	return nil
}

// Codes lists the commands with a registered handler, ascending.
func (d *Dispatcher) Codes() []protocol.CommandCode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]protocol.CommandCode, 0, len(d.handlers))
	for code := range d.handlers {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handle runs the handler for cmd. A missing handler, a handler error or a
// handler panic is logged and answered with NAK.
func (d *Dispatcher) Handle(cmd protocol.Command) (resp protocol.Command) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Code]
	d.mu.RUnlock()
	if !ok {
		d.log.Error().Stringer("command", cmd.Code).Err(ErrNoHandler).Msg("unhandled command")
		return nak()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Stringer("command", cmd.Code).Interface("panic", r).Msg("handler panicked")
			resp = nak()
		}
	}()

	out, err := h(cmd.Params)
	if err != nil {
		d.log.Error().Stringer("command", cmd.Code).Err(err).Msg("handler failed")
		return nak()
	}
	return out
}

func nak() protocol.Command {
	return protocol.Command{Code: protocol.CmdNAK}
}

func (d *Dispatcher) handlePing(any) (protocol.Command, error) {
	return protocol.Command{Code: protocol.CmdPong}, nil
}

func (d *Dispatcher) handleRequestZoneStatus(params any) (protocol.Command, error) {
	zones, err := selectZones(d.state.Zones(), params)
	if err != nil {
		return protocol.Command{}, err
	}
	return protocol.Command{Code: protocol.CmdZoneStatus, Params: zones}, nil
}

func (d *Dispatcher) handleRequestZoneConfig(params any) (protocol.Command, error) {
	zones, err := selectZones(d.state.Zones(), params)
	if err != nil {
		return protocol.Command{}, err
	}
	out := make([]protocol.ZoneConfig, 0, len(zones))
	for _, z := range zones {
		out = append(out, z.ZoneConfig)
	}
	return protocol.Command{Code: protocol.CmdZoneConfig, Params: out}, nil
}

func (d *Dispatcher) handleRequestConfig(any) (protocol.Command, error) {
	return protocol.Command{Code: protocol.CmdConfig, Params: d.state.Config()}, nil
}

// selectZones applies the addressing rule: 0 selects all zones, 1..N the
// zone at that position, anything else is out of range.
func selectZones(zones []protocol.ZoneStatus, params any) ([]protocol.ZoneStatus, error) {
	id, ok := params.(protocol.ZoneID)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrBadParams, params)
	}
	switch {
	case id == protocol.AllZones:
		return zones, nil
	case id > 0 && int(id) <= len(zones):
		return []protocol.ZoneStatus{zones[id-1]}, nil
	default:
		return nil, fmt.Errorf("%w: %d of %d", ErrZoneOutOfRange, id, len(zones))
	}
}
