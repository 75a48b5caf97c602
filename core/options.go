package conversation

import (
	"context"
	"time"

	"github.com/ParkKunsu/MaLangEE-sub000/core/events"
	"github.com/ParkKunsu/MaLangEE-sub000/core/transport"
)

// Translator is the optional collaborator invoked once per finalized AI
// utterance to produce the Korean rendering.
type Translator interface {
	Translate(ctx context.Context, english string) (korean string, err error)
}

// TokenProvider supplies the auth token and session id right before each
// dial. An empty token means a guest session.
type TokenProvider func() (token string, sessionID string)

// transportClient is the slice of the transport the session depends on.
type transportClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context, finalEnvelope any) error
	Send(envelope any) error
	MarkReady() bool
	State() transport.ConnectionState
	OnStateChange(listener func(to, from transport.ConnectionState)) (unsubscribe func())
}

type sessionCallbacks struct {
	onStateChanged func(ConversationState)
	onEvent        func(events.Event)
	onCompleted    func(*SessionReport)

	onAssistantMessage     func(string)
	onAssistantTranslation func(string)
	onUserTranscript       func(string)
	onUserSpeakingChanged  func(bool)
	onAISpeakingChanged    func(bool)
}

type SessionOption func(*Session)

func WithMode(mode transport.Mode) SessionOption {
	return func(s *Session) { s.mode = mode }
}

func WithEndpoint(endpoint transport.Endpoint) SessionOption {
	return func(s *Session) { s.endpoint = endpoint }
}

func WithTokenProvider(provider TokenProvider) SessionOption {
	return func(s *Session) { s.tokenProvider = provider }
}

func WithTransport(client transportClient) SessionOption {
	return func(s *Session) { s.transport = client }
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.audioInput = client }
}

func WithAudioOutput(output AudioOutput) SessionOption {
	return func(s *Session) { s.audioOutput = output }
}

func WithTranslator(translator Translator) SessionOption {
	return func(s *Session) { s.translator = translator }
}

// WithGreetingInstructions sets the instructions for the initial
// response.create that makes the AI speak first.
func WithGreetingInstructions(instructions string) SessionOption {
	return func(s *Session) { s.greeting = instructions }
}

func WithResponseWaitTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) { s.responseWaitTimeout = timeout }
}

func WithErrorClearDelay(delay time.Duration) SessionOption {
	return func(s *Session) { s.errorClearDelay = delay }
}

func WithPlaybackOptions(opts ...PlaybackOption) SessionOption {
	return func(s *Session) { s.playbackOpts = append(s.playbackOpts, opts...) }
}

func WithOnStateChanged(onStateChanged func(ConversationState)) SessionOption {
	return func(s *Session) { s.callbacks.onStateChanged = onStateChanged }
}

func WithOnEvent(onEvent func(events.Event)) SessionOption {
	return func(s *Session) { s.callbacks.onEvent = onEvent }
}

// WithOnCompleted registers the completion callback that receives the
// server's session report verbatim.
func WithOnCompleted(onCompleted func(*SessionReport)) SessionOption {
	return func(s *Session) { s.callbacks.onCompleted = onCompleted }
}

func WithOnAssistantMessage(onAssistantMessage func(string)) SessionOption {
	return func(s *Session) { s.callbacks.onAssistantMessage = onAssistantMessage }
}

func WithOnAssistantTranslation(onAssistantTranslation func(string)) SessionOption {
	return func(s *Session) { s.callbacks.onAssistantTranslation = onAssistantTranslation }
}

func WithOnUserTranscript(onUserTranscript func(string)) SessionOption {
	return func(s *Session) { s.callbacks.onUserTranscript = onUserTranscript }
}

func WithOnUserSpeakingChanged(onUserSpeakingChanged func(bool)) SessionOption {
	return func(s *Session) { s.callbacks.onUserSpeakingChanged = onUserSpeakingChanged }
}

func WithOnAISpeakingChanged(onAISpeakingChanged func(bool)) SessionOption {
	return func(s *Session) { s.callbacks.onAISpeakingChanged = onAISpeakingChanged }
}
