package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
	"github.com/ParkKunsu/MaLangEE-sub000/core/events"
	"github.com/ParkKunsu/MaLangEE-sub000/core/transport"
)

const (
	defaultResponseWaitTimeout = 8000 * time.Millisecond
	defaultErrorClearDelay     = 5000 * time.Millisecond
)

// Session drives one full-duplex conversation: microphone frames up the
// socket, synthesized speech and transcripts down, turn-taking in between.
type Session struct {
	mode     transport.Mode
	names    messageNames
	altNames messageNames
	endpoint transport.Endpoint

	tokenProvider TokenProvider
	greeting      string

	transport transportClient
	scheduler *PlaybackScheduler
	// mic is the capture facade used to normalize device behavior.
	mic        *microphone
	translator Translator

	audioInput   AudioInput
	audioOutput  AudioOutput
	playbackOpts []PlaybackOption

	responseWaitTimeout time.Duration
	errorClearDelay     time.Duration

	mu                 sync.Mutex
	state              ConversationState
	aiMessageFinalized bool
	responseWaitTimer  *time.Timer
	errorClearTimer    *time.Timer
	baseContext        context.Context

	unsubscribeState func()
	closeOnce        sync.Once

	callbacks sessionCallbacks
	emitEvent eventEmitter
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		mode:                transport.ModeConversation,
		responseWaitTimeout: defaultResponseWaitTimeout,
		errorClearDelay:     defaultErrorClearDelay,
		baseContext:         context.Background(),
		emitEvent:           noopEventEmitter,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.names = namesForMode(s.mode)
	if s.mode == transport.ModeScenario {
		s.altNames = namesForMode(transport.ModeConversation)
	} else {
		s.altNames = namesForMode(transport.ModeScenario)
	}
	s.endpoint.Mode = s.mode
	s.emitEvent = newCallbackEventEmitter(s.callbacks)

	output := s.audioOutput
	if output == nil {
		output = nopAudioOutput{}
	}
	s.scheduler = NewPlaybackScheduler(output, append(
		[]PlaybackOption{WithSpeakingChangedCallback(s.handleAISpeakingChanged)},
		s.playbackOpts...,
	)...)

	s.mic = newMicrophone(s.audioInput, s.handleCaptureFrame, s.handleCaptureError)

	if s.transport == nil {
		s.transport = transport.New(s.socketURL,
			transport.WithOnMessage(s.handleMessage),
			transport.WithOnOpen(s.handleOpen),
			transport.WithOnClosed(s.handleClosed),
			transport.WithOnError(s.handleTransportError),
		)
	}
	s.unsubscribeState = s.transport.OnStateChange(s.handleConnectionStateChanged)

	s.state = ConversationState{ConnectionState: string(transport.StateDisconnected)}

	return s
}

// socketURL refreshes credentials through the token provider right before
// each dial so reconnects never reuse a stale token.
func (s *Session) socketURL() (string, error) {
	s.mu.Lock()
	if s.tokenProvider != nil {
		token, sessionID := s.tokenProvider()
		s.endpoint.Token = token
		if sessionID != "" {
			s.endpoint.SessionID = sessionID
		}
	}
	endpoint := s.endpoint
	s.mu.Unlock()

	return endpoint.SocketURL()
}

// Connect opens the socket and starts the conversation. The context
// cancels the dial only; the session keeps running until Disconnect.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "conversation.Connect")
	defer span.End()

	s.mu.Lock()
	s.baseContext = context.WithoutCancel(ctx)
	s.cancelTimersLocked()
	connectionState := s.transport.State()
	s.state = ConversationState{
		ConnectionState: string(connectionState),
		IsConnected:     connectionState.Connected(),
		IsMuted:         s.scheduler.IsMuted(),
	}
	s.mu.Unlock()

	if err := s.transport.Connect(ctx); err != nil {
		err = fmt.Errorf("failed to connect session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Disconnect ends the session deliberately. In conversation mode the
// terminal envelope is flushed first so the server can send its report.
func (s *Session) Disconnect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "conversation.Disconnect")
	defer span.End()

	s.mu.Lock()
	s.cancelTimersLocked()
	s.mu.Unlock()

	if err := s.mic.Stop(); err != nil {
		logger.Warn("failed to stop microphone on disconnect", "error", err.Error())
	}
	s.scheduler.Flush()

	var final any
	if s.mode == transport.ModeConversation {
		final = disconnectOutEnvelope{Type: "disconnect"}
	}

	if err := s.transport.Disconnect(ctx, final); err != nil {
		err = fmt.Errorf("failed to disconnect session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.updateState(func(state *ConversationState) {
		state.IsRecording = false
		state.IsUserSpeaking = false
		state.IsAISpeaking = false
	})
	return nil
}

// SendText submits a typed user turn. It is dropped with a log when the
// handshake has not completed yet.
func (s *Session) SendText(text string) error {
	if text == "" {
		return nil
	}
	if !s.transport.State().Ready() {
		logger.Warn("dropping text message, session not ready", "state", string(s.transport.State()))
		return nil
	}
	if err := s.transport.Send(textOutEnvelope{Type: "text", Text: text}); err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	return nil
}

// StartRecording acquires the microphone mid-session, clearing whatever
// partial input the server may still hold from an earlier capture.
func (s *Session) StartRecording() error {
	if !s.mic.IsConfigured() {
		return ErrMicrophoneUnavailable
	}
	if s.transport.State().Ready() {
		s.sendEnvelope(inputAudioControlEnvelope{Type: "input_audio_clear"})
	}
	if err := s.mic.Start(s.sessionContext()); err != nil {
		return err
	}
	s.updateState(func(state *ConversationState) {
		state.IsRecording = true
	})
	return nil
}

// StopRecording releases the microphone and commits the buffered input so
// the server processes what was already said.
func (s *Session) StopRecording() error {
	if err := s.mic.Stop(); err != nil {
		return err
	}
	if s.transport.State().Ready() {
		s.sendEnvelope(inputAudioControlEnvelope{Type: "input_audio_commit"})
	}
	s.updateState(func(state *ConversationState) {
		state.IsRecording = false
	})
	return nil
}

// SetMuted ramps playback gain instead of cutting it so toggling is not
// audible as a click.
func (s *Session) SetMuted(muted bool) {
	s.scheduler.SetMuted(muted)
	s.updateState(func(state *ConversationState) {
		state.IsMuted = muted
	})
}

// State returns a deep copy refreshed with the live playback and capture
// flags. Mutating it never touches the session.
func (s *Session) State() ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsAISpeaking = s.scheduler.IsAISpeaking()
	s.state.IsRecording = s.mic.IsRecording()
	return s.state.snapshot()
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.Disconnect(s.sessionContext()); err != nil {
			logger.Warn("failed to disconnect on close", "error", err.Error())
		}
		if s.unsubscribeState != nil {
			s.unsubscribeState()
		}
		s.mic.Close()
	})
}

// sessionContext returns the lifetime context captured at Connect.
func (s *Session) sessionContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseContext
}

func (s *Session) handleOpen() {
	if !s.mic.IsConfigured() {
		return
	}
	if err := s.mic.Start(s.sessionContext()); err != nil {
		logger.Error("failed to start microphone", "error", err.Error())
		return
	}
	s.updateState(func(state *ConversationState) {
		state.IsRecording = true
	})
}

func (s *Session) handleClosed(manual bool) {
	if err := s.mic.Stop(); err != nil {
		logger.Warn("failed to stop microphone on close", "error", err.Error())
	}
	s.scheduler.Flush()

	s.mu.Lock()
	s.cancelResponseWaitLocked()
	s.mu.Unlock()

	s.updateState(func(state *ConversationState) {
		state.IsRecording = false
		state.IsUserSpeaking = false
		state.IsAISpeaking = false
	})
}

func (s *Session) handleConnectionStateChanged(to, from transport.ConnectionState) {
	s.updateState(func(state *ConversationState) {
		state.ConnectionState = string(to)
		state.IsConnected = to.Connected()
		state.IsReady = to.Ready()
	})
	s.emitEvent(events.NewConnectionStateChanged(string(to), string(from)))
}

func (s *Session) handleTransportError(terr *transport.Error) {
	s.surfaceError(string(terr.Code), terr.Message, terr.Code.Recoverable())
}

func (s *Session) handleCaptureFrame(frame []byte) {
	encoding := s.mic.EncodingInfo()
	envelope := inputAudioOutEnvelope{
		Type:       s.names.inputAudioAppend,
		Audio:      audio.EncodeBase64(frame),
		SampleRate: encoding.SampleRate,
	}
	if err := s.transport.Send(envelope); err != nil {
		logger.Warn("failed to send audio frame", "error", err.Error())
	}
}

// handleCaptureError reports device failures inline: the socket stays up
// and the conversation continues without the microphone.
func (s *Session) handleCaptureError(err error) {
	logger.Error("microphone capture failed", "error", err.Error())
	s.updateState(func(state *ConversationState) {
		state.IsRecording = false
		state.Error = &StateError{
			Code:        "MICROPHONE_UNAVAILABLE",
			Message:     err.Error(),
			Recoverable: false,
		}
	})
	s.emitEvent(events.NewErrorRaised("MICROPHONE_UNAVAILABLE", err.Error(), false))
}

func (s *Session) handleAISpeakingChanged(speaking bool) {
	s.updateState(func(state *ConversationState) {
		state.IsAISpeaking = speaking
	})
	if speaking {
		s.emitEvent(events.NewAssistantSpeechStarted())
	} else {
		s.emitEvent(events.NewAssistantSpeechEnded())
	}
}

// surfaceError records the error on the state. Recoverable errors clear
// themselves after a short delay so transient hiccups do not stick in the
// UI.
func (s *Session) surfaceError(code, message string, recoverable bool) {
	s.mu.Lock()
	if s.errorClearTimer != nil {
		s.errorClearTimer.Stop()
		s.errorClearTimer = nil
	}
	s.state.Error = &StateError{Code: code, Message: message, Recoverable: recoverable}
	if recoverable && s.errorClearDelay > 0 {
		surfaced := s.state.Error
		s.errorClearTimer = time.AfterFunc(s.errorClearDelay, func() {
			s.clearError(surfaced)
		})
	}
	snapshot := s.state.snapshot()
	s.mu.Unlock()

	s.notifyStateChanged(snapshot)
	s.emitEvent(events.NewErrorRaised(code, message, recoverable))
}

func (s *Session) clearError(surfaced *StateError) {
	s.mu.Lock()
	if s.state.Error != surfaced {
		s.mu.Unlock()
		return
	}
	s.state.Error = nil
	snapshot := s.state.snapshot()
	s.mu.Unlock()

	s.notifyStateChanged(snapshot)
}

func (s *Session) updateState(mutate func(*ConversationState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state.snapshot()
	s.mu.Unlock()

	s.notifyStateChanged(snapshot)
}

func (s *Session) notifyStateChanged(snapshot ConversationState) {
	if s.callbacks.onStateChanged != nil {
		s.callbacks.onStateChanged(snapshot)
	}
}

func (s *Session) cancelTimersLocked() {
	s.cancelResponseWaitLocked()
	if s.errorClearTimer != nil {
		s.errorClearTimer.Stop()
		s.errorClearTimer = nil
	}
}

func (s *Session) cancelResponseWaitLocked() {
	if s.responseWaitTimer != nil {
		s.responseWaitTimer.Stop()
		s.responseWaitTimer = nil
	}
}

type nopAudioOutput struct{}

func (nopAudioOutput) SendAudio([]byte) error { return nil }
func (nopAudioOutput) ClearBuffer()           {}
func (nopAudioOutput) SetVolume(float64)      {}
