package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voxrelay/voxrelay-backend/internal/audio"
	"github.com/voxrelay/voxrelay-backend/internal/config"
	"github.com/voxrelay/voxrelay-backend/internal/models"
	"github.com/voxrelay/voxrelay-backend/internal/realtime"
	"github.com/voxrelay/voxrelay-backend/internal/session"
	"github.com/voxrelay/voxrelay-backend/internal/telephony"
)

// State is the coordinator lifecycle phase.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateDraining
	StateClosed
)

// TelephonyChannel is the live audio leg of the phone call.
type TelephonyChannel interface {
	ReadFrame() (*telephony.Frame, error)
	WriteAudio(audio []byte) error
	WriteMark(name string) error
	Clear() error
	Close() error
}

// Coordinator pumps audio between the telephony and speech channels for one
// session, tracks whose turn it is to speak, and issues the barge-in
// interrupt when the human talks over the agent. It exclusively owns both
// connections for the session's lifetime.
type Coordinator struct {
	sessionID string
	store     session.Store
	phone     TelephonyChannel
	dialer    realtime.Dialer
	cfg       config.CallConfig
	logger    *logrus.Entry

	// hangup terminates the telephony call when the speech channel dies
	// mid-stream. Optional.
	hangup func(callSID string)

	inTranslate  *audio.Translator
	outTranslate *audio.Translator

	state      atomic.Int32
	aiSpeaking atomic.Bool
	// pendingMarks counts turn-end marks written to the telephony side but
	// not yet echoed back; draining waits for them within the grace period.
	pendingMarks atomic.Int64
	callSID      string

	ai        realtime.Channel
	closePhone sync.Once
	closeAI    sync.Once
}

func NewCoordinator(sessionID string, store session.Store, phone TelephonyChannel, dialer realtime.Dialer, cfg config.CallConfig, logger *logrus.Logger) *Coordinator {
	// Both transports speak g711_ulaw in the default configuration, so these
	// translators pass frames through untouched.
	in, _ := audio.NewTranslator(audio.FormatULaw, audio.FormatULaw)
	out, _ := audio.NewTranslator(audio.FormatULaw, audio.FormatULaw)

	return &Coordinator{
		sessionID:    sessionID,
		store:        store,
		phone:        phone,
		dialer:       dialer,
		cfg:          cfg,
		logger:       logger.WithField("session_id", sessionID),
		inTranslate:  in,
		outTranslate: out,
	}
}

// SetHangup installs the telephony hangup callback.
func (c *Coordinator) SetHangup(fn func(callSID string)) {
	c.hangup = fn
}

// State returns the current lifecycle phase.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Run drives the session from connection to teardown. It returns after the
// session has been marked COMPLETED or FAILED; the caller triggers the
// completion pipeline exactly once afterwards.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxDuration)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.fail(err)
		return err
	}

	err := c.stream(ctx)

	c.state.Store(int32(StateClosed))
	if err != nil {
		c.fail(err)
		return err
	}

	if serr := c.store.MarkStatus(c.sessionID, models.StatusCompleted); serr != nil && !errors.Is(serr, session.ErrNotFound) {
		c.logger.WithError(serr).Warn("Failed to mark session completed")
	}
	c.logger.Info("Session closed")
	return nil
}

// connect waits for the telephony start frame, then establishes and
// configures the speech channel within the bounded connect timeout.
func (c *Coordinator) connect(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	if err := c.awaitStart(); err != nil {
		return err
	}

	sess, err := c.store.Get(c.sessionID)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	ai, err := c.dialer.Dial(dialCtx)
	if err != nil {
		return err
	}
	c.ai = ai

	if err := ai.Configure(sess.Persona, sess.Voice); err != nil {
		c.shutAI()
		return fmt.Errorf("%w: %v", realtime.ErrUpstreamUnavailable, err)
	}

	if err := c.store.MarkStatus(c.sessionID, models.StatusActive); err != nil {
		c.shutAI()
		return fmt.Errorf("activate session: %w", err)
	}

	c.logger.Info("Both channels established, streaming")
	return nil
}

// awaitStart consumes telephony frames until the start frame arrives so the
// stream identifier is known before any outbound write.
func (c *Coordinator) awaitStart() error {
	for {
		frame, err := c.phone.ReadFrame()
		if err != nil {
			return fmt.Errorf("telephony channel: %w", err)
		}
		if frame.Kind == telephony.FrameStop {
			return fmt.Errorf("telephony channel: call ended before media start")
		}
		if frame.Kind == telephony.FrameStart {
			c.callSID = frame.CallSID
			if frame.CallSID != "" {
				if err := c.store.SetCallSID(c.sessionID, frame.CallSID); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

// stream runs the two directional pumps until either side terminates, then
// drains. A nil return means the telephony side hung up normally.
func (c *Coordinator) stream(ctx context.Context) error {
	c.state.Store(int32(StateStreaming))

	// Force both blocking reads to unblock on cancellation or session
	// timeout.
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.shutPhone()
			c.shutAI()
		case <-watchdogDone:
		}
	}()
	defer close(watchdogDone)

	inboundErr := make(chan error, 1)
	outboundErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		inboundErr <- c.pumpInbound()
	}()
	go func() {
		defer wg.Done()
		outboundErr <- c.pumpOutbound()
	}()

	var err error
	var phoneEnded bool
	select {
	case err = <-inboundErr:
		phoneEnded = err == nil
	case err = <-outboundErr:
		if err != nil && c.hangup != nil && c.callSID != "" {
			c.hangup(c.callSID)
		}
	}

	c.drain(phoneEnded)
	wg.Wait()

	if ctx.Err() != nil && err == nil {
		err = fmt.Errorf("session deadline exceeded")
	}
	return err
}

// drain stops accepting inbound audio, gives already-issued outbound audio a
// bounded grace period to flush, then closes the speech channel.
func (c *Coordinator) drain(flush bool) {
	c.state.Store(int32(StateDraining))

	if flush && c.pendingMarks.Load() > 0 {
		deadline := time.Now().Add(c.cfg.DrainGrace)
		for c.pendingMarks.Load() > 0 && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}
	}

	c.shutAI()
	c.shutPhone()
}

// pumpInbound forwards caller audio to the speech channel. Frame order is
// preserved 1:1; each frame is translated and forwarded immediately. A nil
// return means the telephony side signaled termination.
func (c *Coordinator) pumpInbound() error {
	for {
		frame, err := c.phone.ReadFrame()
		if err != nil {
			// The provider closes the socket on hangup, sometimes without a
			// stop frame. Either way the call is over, but the two cases are
			// logged distinctly so a transport fault stays visible.
			if c.State() < StateDraining {
				c.logger.WithError(err).Info("Telephony channel closed without stop frame")
			}
			return nil
		}

		switch frame.Kind {
		case telephony.FrameMedia:
			payload := c.inTranslate.Translate(frame.Audio)
			if err := c.withRetry(func() error { return c.ai.AppendAudio(payload) }); err != nil {
				return fmt.Errorf("speech channel append: %w", err)
			}
		case telephony.FrameMark:
			if c.pendingMarks.Load() > 0 {
				c.pendingMarks.Add(-1)
			}
		case telephony.FrameStop:
			c.logger.Debug("Telephony stop frame received")
			return nil
		}
	}
}

// pumpOutbound forwards agent audio and transcript events from the speech
// channel. It is the single reader of speech events, so transcript turns are
// appended in the channel's own turn order regardless of arrival jitter
// elsewhere.
func (c *Coordinator) pumpOutbound() error {
	for {
		event, err := c.ai.ReadEvent()
		if err != nil {
			if c.State() >= StateDraining {
				return nil
			}
			return fmt.Errorf("speech channel: %w", err)
		}

		switch event.Kind {
		case realtime.EventAudioDelta:
			// Turn start: the agent is audible from the first delta on.
			c.aiSpeaking.Store(true)
			payload := c.outTranslate.Translate(event.Audio)
			if err := c.withRetry(func() error { return c.phone.WriteAudio(payload) }); err != nil {
				return fmt.Errorf("telephony write: %w", err)
			}

		case realtime.EventSpeechStarted:
			c.handleBargeIn()

		case realtime.EventTurnDone:
			// Turn boundary: flips the speaking flag before any further
			// speech-start signal can be misread as a barge-in.
			if c.aiSpeaking.CompareAndSwap(true, false) {
				c.pendingMarks.Add(1)
				if err := c.phone.WriteMark("turn-end"); err != nil {
					c.logger.WithError(err).Debug("Turn mark write failed")
					c.pendingMarks.Add(-1)
				}
			}

		case realtime.EventUserTranscript:
			c.appendTurn(models.RoleHuman, event.Text)

		case realtime.EventAgentTranscript:
			c.appendTurn(models.RoleAgent, event.Text)

		case realtime.EventError:
			c.logger.WithField("detail", event.Text).Warn("Speech channel reported error")
		}
	}
}

// handleBargeIn interrupts the agent when the human starts speaking over it.
// The CompareAndSwap guarantees exactly one interrupt and one clear per
// agent turn, and the flag flips before any further agent audio can be
// forwarded.
func (c *Coordinator) handleBargeIn() {
	if !c.aiSpeaking.CompareAndSwap(true, false) {
		return
	}

	c.logger.Debug("Barge-in: interrupting agent speech")

	if err := c.ai.Interrupt(); err != nil {
		c.logger.WithError(err).Warn("Barge-in interrupt failed")
	}
	if err := c.phone.Clear(); err != nil {
		c.logger.WithError(err).Warn("Playback clear failed")
	}
}

func (c *Coordinator) appendTurn(role models.Role, text string) {
	if text == "" {
		return
	}
	if err := c.store.AppendTurn(c.sessionID, role, text); err != nil {
		c.logger.WithError(err).WithField("role", role).Warn("Transcript append failed")
	}
}

// withRetry retries transient send failures a small bounded number of times.
func (c *Coordinator) withRetry(fn func() error) error {
	attempts := c.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if c.State() >= StateDraining {
			return err
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}

// fail marks the session FAILED and tears down whatever is still open. The
// completion pipeline still runs with the partial transcript.
func (c *Coordinator) fail(cause error) {
	c.state.Store(int32(StateClosed))
	c.logger.WithError(cause).Error("Session failed")

	if err := c.store.MarkStatus(c.sessionID, models.StatusFailed); err != nil && !errors.Is(err, session.ErrNotFound) {
		c.logger.WithError(err).Warn("Failed to mark session failed")
	}
	c.shutAI()
	c.shutPhone()
}

func (c *Coordinator) shutPhone() {
	c.closePhone.Do(func() {
		_ = c.phone.Close()
	})
}

func (c *Coordinator) shutAI() {
	c.closeAI.Do(func() {
		if c.ai != nil {
			_ = c.ai.Close()
		}
	})
}
