package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/observability"
	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrNilChannel     = errors.New("transport: channel is nil")
	ErrNilHandler     = errors.New("transport: handler is nil")
	ErrAlreadyRunning = errors.New("transport: receive loop already running")
	ErrShortWrite     = errors.New("transport: short write")
)

// Channel is the physical link. Read must return immediately with whatever
// bytes are available, (0, nil) when there are none.
type Channel interface {
	io.ReadWriteCloser
}

// Handler answers one decoded inbound command. dispatch.Dispatcher
// satisfies it.
type Handler interface {
	Handle(protocol.Command) protocol.Command
}

// Transport serializes the receive loop and host notifications over one
// channel. Every read, decode, dispatch, encode and write happens under mu,
// so frames never interleave on the wire.
type Transport struct {
	ch      Channel
	handler Handler
	cfg     Config
	log     zerolog.Logger

	mu        sync.Mutex
	decoder   *frame.Decoder
	assembler *frame.Assembler
	readBuf   []byte

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ch Channel, handler Handler, cfg Config) (*Transport, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg = cfg.WithDefaults()
	t := &Transport{
		ch:      ch,
		handler: handler,
		cfg:     cfg,
		log:     logging.Component("transport").With().Str("port", cfg.Label).Logger(),
		readBuf: make([]byte, cfg.ReadBufferSize),
	}
	t.decoder = frame.NewDecoder(
		frame.WithTimeout(cfg.MultiFrameTimeout),
		frame.WithDiscardHook(func(buffered int) {
			t.log.Debug().Int("buffered", buffered).Msg("dropped stale partial frame")
			observability.RecordFrameError(cfg.Label, observability.ReasonStale)
		}),
	)
	t.assembler = frame.NewAssembler(
		frame.WithAssemblerTimeout(cfg.MultiFrameTimeout),
		frame.WithStaleHook(func(buffered int) {
			t.log.Debug().Int("buffered", buffered).Msg("dropped stale frame sequence")
			observability.RecordFrameError(cfg.Label, observability.ReasonStale)
		}),
	)
	return t, nil
}

// SendCommand encodes and writes one command. It is the entry point the
// host uses for unsolicited notifications.
func (t *Transport) SendCommand(code protocol.CommandCode, params any, index uint8) error {
	return t.Send(protocol.Command{Code: code, Params: params}, index)
}

func (t *Transport) Send(cmd protocol.Command, index uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendLocked(cmd, index)
}

// HandleCommand dispatches an already decoded command and writes the
// response under the same lock as SendCommand.
func (t *Transport) HandleCommand(cmd protocol.Command, index uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handleLocked(cmd, index)
}

// Poll reads whatever bytes are available and processes them. It returns
// the number of bytes read.
func (t *Transport) Poll() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.ch.Read(t.readBuf)
	if n > 0 {
		t.receiveLocked(t.readBuf[:n])
	}
	if err != nil {
		return n, fmt.Errorf("transport: read %s: %w", t.cfg.Label, err)
	}
	return n, nil
}

// Run drives the receive loop until ctx is done. Read errors back off and
// retry; nothing else stops the loop.
func (t *Transport) Run(ctx context.Context) error {
	backoff := newReadBackoff(t.cfg.Backoff)
	idle := time.NewTimer(t.cfg.PollInterval)
	defer idle.Stop()

	t.log.Info().Dur("poll_interval", t.cfg.PollInterval).Msg("receive loop started")
	defer t.log.Info().Msg("receive loop stopped")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := t.Poll()
		var wait time.Duration
		switch {
		case err != nil:
			observability.RecordFrameError(t.cfg.Label, observability.ReasonRead)
			wait = backoff.next()
			t.log.Warn().Err(err).Dur("retry_in", wait).Msg("channel read failed")
		case n == 0:
			backoff.reset()
			wait = t.cfg.PollInterval
		default:
			backoff.reset()
			continue
		}

		idle.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
		}
	}
}

// Start runs the receive loop on its own goroutine.
func (t *Transport) Start(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.done != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	go func() {
		defer close(done)
		_ = t.Run(ctx)
	}()
	return nil
}

// Stop cancels the receive loop and waits for it to exit.
func (t *Transport) Stop() {
	t.runMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the loop and closes the channel.
func (t *Transport) Close() error {
	t.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch.Close()
}

func (t *Transport) receiveLocked(chunk []byte) {
	f, ok, err := t.decoder.Decode(chunk)
	if err != nil {
		reason := observability.ReasonHeader
		if errors.Is(err, frame.ErrChecksum) {
			reason = observability.ReasonChecksum
		}
		observability.RecordFrameError(t.cfg.Label, reason)
		t.log.Warn().Err(err).Int("chunk", len(chunk)).Msg("dropped inbound frame")
		return
	}
	if !ok {
		return
	}
	observability.RecordFrameReceived(t.cfg.Label)

	payload, complete, err := t.assembler.Push(f)
	if err != nil {
		reason := observability.ReasonSequence
		if errors.Is(err, frame.ErrMessageTooLarge) {
			reason = observability.ReasonOversize
		}
		observability.RecordFrameError(t.cfg.Label, reason)
		t.log.Warn().Err(err).Uint8("index", f.Header.Index).Msg("dropped frame sequence")
		return
	}
	if !complete {
		return
	}

	cmd, err := protocol.Decode(payload)
	if err != nil {
		observability.RecordFrameError(t.cfg.Label, observability.ReasonDecode)
		t.log.Warn().Err(err).Uint8("index", f.Header.Index).Msg("undecodable command")
		if err := t.sendLocked(protocol.Command{Code: protocol.CmdNAK}, f.Header.Index); err != nil {
			t.log.Error().Err(err).Msg("send nak failed")
		}
		return
	}
	t.log.Debug().Stringer("command", cmd).Uint8("index", f.Header.Index).Msg("rx")

	if err := t.handleLocked(cmd, f.Header.Index); err != nil {
		t.log.Error().Err(err).Stringer("command", cmd.Code).Msg("reply failed")
	}
}

func (t *Transport) handleLocked(cmd protocol.Command, index uint8) error {
	start := time.Now()
	resp := t.handler.Handle(cmd)
	err := t.sendLocked(resp, index)
	observability.RecordDispatch(t.cfg.Label, cmd.Code.String(), resp.Code.String(), time.Since(start))
	return err
}

func (t *Transport) sendLocked(cmd protocol.Command, index uint8) error {
	payload, err := protocol.Encode(cmd)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", cmd.Code, err)
	}

	frames := frame.Split(payload, index, t.cfg.MaxFramePayload)
	out := make([]byte, 0, len(payload)+len(frames)*(frame.HeaderLen+frame.CRCLen))
	for _, f := range frames {
		f.Header.Version = t.cfg.Version
		b, err := frame.Encode(f.Header, f.Payload)
		if err != nil {
			return fmt.Errorf("transport: frame %s: %w", cmd.Code, err)
		}
		out = append(out, b...)
	}

	if err := writeFull(t.ch, out); err != nil {
		return fmt.Errorf("transport: write %s: %w", t.cfg.Label, err)
	}
	t.log.Debug().Stringer("command", cmd).Uint8("index", index).Int("bytes", len(out)).Msg("tx")
	observability.RecordFrameSent(t.cfg.Label, cmd.Code.String())
	return nil
}

func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
