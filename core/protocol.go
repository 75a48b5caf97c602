package conversation

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/ParkKunsu/MaLangEE-sub000/core/transport"
)

// The two session modes speak one protocol shape with mode-conditioned
// message names. The router accepts either inbound spelling regardless of
// mode; outbound envelopes follow the table for the active mode.
type messageNames struct {
	ready            string
	audioDelta       string
	audioDone        string
	transcriptDelta  string
	transcriptDone   string
	userTranscript   string
	textDelta        string
	textDone         string
	inputAudioAppend string
}

func namesForMode(mode transport.Mode) messageNames {
	if mode == transport.ModeScenario {
		return messageNames{
			ready:            "ready",
			audioDelta:       "audio.delta",
			audioDone:        "audio.done",
			transcriptDelta:  "response.audio_transcript.delta",
			transcriptDone:   "transcript.done",
			userTranscript:   "input_audio.transcript",
			textDelta:        "response.text.delta",
			textDone:         "response.text.done",
			inputAudioAppend: "input_audio_chunk",
		}
	}
	return messageNames{
		ready:            "session.created",
		audioDelta:       "response.audio.delta",
		audioDone:        "response.audio.done",
		transcriptDelta:  "response.audio_transcript.delta",
		transcriptDone:   "response.audio_transcript.done",
		userTranscript:   "user.transcript",
		textDelta:        "response.text.delta",
		textDone:         "response.text.done",
		inputAudioAppend: "input_audio_buffer.append",
	}
}

type envelope struct {
	Type string `json:"type"`
}

type audioDeltaEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Audio      string `json:"audio,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

func (e audioDeltaEnvelope) payload() string {
	if e.Delta != "" {
		return e.Delta
	}
	return e.Audio
}

type transcriptEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

func (e transcriptEnvelope) payload() string {
	if e.Transcript != "" {
		return e.Transcript
	}
	if e.Text != "" {
		return e.Text
	}
	return e.Delta
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e errorEnvelope) payload() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// scenarioCompletedEnvelope tolerates both key spellings the server is known
// to emit: camelCase and snake_case. Neither is authoritative, so both stay.
type scenarioCompletedEnvelope struct {
	Type string `json:"type"`

	Place                    string `json:"place,omitempty"`
	ConversationPartner      string `json:"conversationPartner,omitempty"`
	ConversationPartnerSnake string `json:"conversation_partner,omitempty"`
	ConversationGoal         string `json:"conversationGoal,omitempty"`
	ConversationGoalSnake    string `json:"conversation_goal,omitempty"`
	SessionID                string `json:"sessionId,omitempty"`
	SessionIDSnake           string `json:"session_id,omitempty"`
}

func (e scenarioCompletedEnvelope) result() ScenarioResult {
	return ScenarioResult{
		Place:               e.Place,
		ConversationPartner: coalesce(e.ConversationPartner, e.ConversationPartnerSnake),
		ConversationGoal:    coalesce(e.ConversationGoal, e.ConversationGoalSnake),
		SessionID:           coalesce(e.SessionID, e.SessionIDSnake),
	}
}

func coalesce(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

type disconnectedEnvelope struct {
	Type   string         `json:"type"`
	Report *SessionReport `json:"report,omitempty"`

	// Some server builds flatten the report into the envelope itself.
	SessionReport
}

func (e disconnectedEnvelope) report() *SessionReport {
	if e.Report != nil {
		return e.Report
	}
	flat := e.SessionReport
	return &flat
}

type textOutEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type disconnectOutEnvelope struct {
	Type string `json:"type"`
}

type inputAudioOutEnvelope struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate"`
}

type inputAudioControlEnvelope struct {
	Type string `json:"type"`
}

// turnDetectionConfig carries the server-side VAD thresholds pushed right
// after the handshake so the AI can take the first turn.
type turnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

type sessionUpdateEnvelope struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	TurnDetection turnDetectionConfig `json:"turn_detection"`

	// ExtractionSchema tells the scenario-discovery backend what structured
	// result to extract from the conversation.
	ExtractionSchema json.RawMessage `json:"extraction_schema,omitempty"`
}

type responseCreateEnvelope struct {
	Type     string          `json:"type"`
	Response *responseConfig `json:"response,omitempty"`
}

type responseConfig struct {
	Instructions string `json:"instructions,omitempty"`
}

func defaultTurnDetection() turnDetectionConfig {
	return turnDetectionConfig{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMS:   300,
		SilenceDurationMS: 500,
	}
}

func newSessionUpdateEnvelope(mode transport.Mode) sessionUpdateEnvelope {
	update := sessionUpdateEnvelope{
		Type:    "session.update",
		Session: sessionConfig{TurnDetection: defaultTurnDetection()},
	}

	if mode == transport.ModeScenario {
		if schema, err := json.Marshal(jsonschema.Reflect(&ScenarioResult{})); err == nil {
			update.Session.ExtractionSchema = schema
		}
	}

	return update
}

func newResponseCreateEnvelope(instructions string) responseCreateEnvelope {
	create := responseCreateEnvelope{Type: "response.create"}
	if instructions != "" {
		create.Response = &responseConfig{Instructions: instructions}
	}
	return create
}
