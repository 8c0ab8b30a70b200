// Package service runs the parkbeam host: it owns the zone store, the
// serial transport and the optional admin listener.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/parkbeam/internal/config"
	"github.com/danmuck/parkbeam/internal/dispatch"
	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/observability"
	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/serial"
	"github.com/danmuck/parkbeam/internal/transport"
	"github.com/danmuck/parkbeam/internal/zones"
	"github.com/rs/zerolog"
)

var (
	ErrNotRunning = errors.New("service: transport not running")
	ErrBadParams  = errors.New("service: unexpected command params")
)

const shutdownTimeout = 5 * time.Second

// ChannelOpener opens the physical link. The default opens the serial port.
type ChannelOpener func(serial.Config) (transport.Channel, error)

type Option func(*Service)

func WithChannelOpener(open ChannelOpener) Option {
	return func(s *Service) { s.open = open }
}

func openSerial(cfg serial.Config) (transport.Channel, error) {
	p, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type Service struct {
	cfg        config.Config
	log        zerolog.Logger
	store      *zones.Store
	tracker    *zones.Tracker
	dispatcher *dispatch.Dispatcher
	open       ChannelOpener

	transport atomic.Pointer[transport.Transport]
	ready     atomic.Bool
	reload    chan struct{}
}

func New(cfg config.Config, opts ...Option) *Service {
	store := zones.NewStore(cfg.Detector)
	s := &Service{
		cfg:        cfg,
		log:        logging.Component("service"),
		store:      store,
		tracker:    zones.NewTracker(store),
		dispatcher: dispatch.New(store),
		open:       openSerial,
		reload:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext bootstraps and serves until ctx is done. Failing to load the
// zone file or open the channel is returned immediately.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(); err != nil {
		return err
	}

	ch, err := s.open(s.cfg.Serial)
	if err != nil {
		return fmt.Errorf("open channel %s: %w", s.cfg.Serial.Device, err)
	}
	tr, err := transport.New(ch, s.dispatcher, s.cfg.Transport())
	if err != nil {
		ch.Close()
		return err
	}
	if err := tr.Start(ctx); err != nil {
		tr.Close()
		return err
	}
	s.transport.Store(tr)
	s.ready.Store(true)
	s.log.Info().
		Stringer("serial", s.cfg.Serial).
		Int("zones", s.store.Len()).
		Str("admin", s.cfg.Admin.Listen).
		Msg("parkbeam ready")

	defer func() {
		s.ready.Store(false)
		s.transport.Store(nil)
		if err := tr.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close channel")
		}
	}()
	return s.serve(ctx)
}

func (s *Service) bootstrap() error {
	observability.RegisterMetrics()
	if s.cfg.Log.Level != "" {
		logging.SetLevel(s.cfg.Log.Level)
	}
	if err := s.store.SetConfig(s.cfg.Detector); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}
	if err := s.loadZones(); err != nil {
		return err
	}

	handlers := map[protocol.CommandCode]dispatch.Handler{
		protocol.CmdRestart:    s.handleRestart,
		protocol.CmdConfig:     s.handleConfig,
		protocol.CmdZoneConfig: s.handleZoneConfig,
	}
	for code, h := range handlers {
		if err := s.dispatcher.Register(code, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.Admin.Listen); addr != "" {
		srv, ln, err := s.listenAdmin(addr)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				adminErr <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutdown")
			return nil
		case err := <-adminErr:
			return fmt.Errorf("admin listener: %w", err)
		case <-s.reload:
			if err := s.ReloadZones(); err != nil {
				s.log.Error().Err(err).Msg("zone reload failed, keeping previous zones")
			}
		}
	}
}

func (s *Service) listenAdmin(addr string) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("admin listen %s: %w", addr, err)
	}
	router := observability.NewAdminRouter(s, logging.Component("admin"), s.cfg.Admin.CorsOrigins)
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin listening")
	return srv, ln, nil
}

// loadZones reads the configured zone file into the store. A missing file
// starts the service with no zones.
func (s *Service) loadZones() error {
	path := strings.TrimSpace(s.cfg.Zones.File)
	if path == "" {
		return s.store.SetZones(nil)
	}
	list, err := zones.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Str("file", path).Msg("zone file missing, starting with no zones")
		return s.store.SetZones(nil)
	}
	if err != nil {
		return err
	}
	if err := s.store.SetZones(list); err != nil {
		return fmt.Errorf("zones %s: %w", path, err)
	}
	s.log.Info().Str("file", path).Int("zones", len(list)).Msg("zones loaded")
	return nil
}

// ReloadZones rereads the zone file and resets occupancy debouncing.
func (s *Service) ReloadZones() error {
	if err := s.loadZones(); err != nil {
		return err
	}
	s.tracker.Reset()
	return nil
}

// NotifyZoneChange records a zone state and, when notifications are
// enabled, pushes it to the peer as an unsolicited ZoneStatus.
func (s *Service) NotifyZoneChange(z protocol.ZoneStatus) error {
	updated, changed, err := s.store.UpdateStatus(z.ZoneID, z.Status, z.Count)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.publish(updated)
}

// ObserveDetections feeds one detector frame through the occupancy tracker
// and publishes every zone that flipped.
func (s *Service) ObserveDetections(dets []zones.Detection, fps float64) ([]protocol.ZoneStatus, error) {
	changed, err := s.tracker.Observe(dets, fps)
	if err != nil {
		return changed, err
	}
	var errs []error
	for _, z := range changed {
		if err := s.publish(z); err != nil {
			errs = append(errs, err)
		}
	}
	return changed, errors.Join(errs...)
}

func (s *Service) publish(z protocol.ZoneStatus) error {
	observability.RecordZoneChange(z.ZoneID, z.Status.String())
	s.log.Info().Int("zone", z.ZoneID).Stringer("status", z.Status).Int("count", z.Count).Msg("zone changed")

	if !s.store.Config().Notifications {
		return nil
	}
	tr := s.transport.Load()
	if tr == nil {
		return ErrNotRunning
	}
	status := protocol.ZoneStatus{ZoneConfig: protocol.ZoneConfig{ZoneID: z.ZoneID}, Status: z.Status, Count: z.Count}
	return tr.SendCommand(protocol.CmdZoneStatus, []protocol.ZoneStatus{status}, 0)
}

func (s *Service) Zones() []protocol.ZoneStatus { return s.store.Zones() }
func (s *Service) Config() protocol.Config      { return s.store.Config() }
func (s *Service) Ready() bool                  { return s.ready.Load() }

// Store exposes the shared state, mainly for tests and embedding.
func (s *Service) Store() *zones.Store { return s.store }

// handleRestart acknowledges first; the reload runs on the service loop
// after the ACK has been written.
func (s *Service) handleRestart(any) (protocol.Command, error) {
	select {
	case s.reload <- struct{}{}:
	default:
	}
	return protocol.Command{Code: protocol.CmdACK}, nil
}

func (s *Service) handleConfig(params any) (protocol.Command, error) {
	cfg, ok := params.(protocol.Config)
	if !ok {
		return protocol.Command{}, fmt.Errorf("%w: %T", ErrBadParams, params)
	}
	if err := s.store.SetConfig(cfg); err != nil {
		return protocol.Command{}, err
	}
	s.log.Info().Stringer("config", cfg).Msg("detector config updated by peer")
	return protocol.Command{Code: protocol.CmdACK}, nil
}

// handleZoneConfig replaces the zone list and persists it to the zone file
// before touching the store, so a failed write leaves both unchanged.
func (s *Service) handleZoneConfig(params any) (protocol.Command, error) {
	list, ok := params.([]protocol.ZoneConfig)
	if !ok {
		return protocol.Command{}, fmt.Errorf("%w: %T", ErrBadParams, params)
	}
	if err := protocol.ValidateZones(list); err != nil {
		return protocol.Command{}, err
	}
	if path := strings.TrimSpace(s.cfg.Zones.File); path != "" {
		if err := zones.SaveFile(path, list); err != nil {
			return protocol.Command{}, err
		}
	}
	if err := s.store.SetZones(list); err != nil {
		return protocol.Command{}, err
	}
	s.tracker.Reset()
	s.log.Info().Int("zones", len(list)).Msg("zones replaced by peer")
	return protocol.Command{Code: protocol.CmdACK}, nil
}
