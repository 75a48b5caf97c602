package conversation

import (
	"encoding/json"

	"github.com/jinzhu/copier"
)

// ScenarioResult is the structured extraction produced by a scenario-
// discovery session. Every field is optional: a partial result is valid.
type ScenarioResult struct {
	Place               string `json:"place,omitempty" jsonschema:"title=Place,description=Where the practiced conversation takes place"`
	ConversationPartner string `json:"conversationPartner,omitempty" jsonschema:"title=Conversation Partner,description=Who the learner is speaking with"`
	ConversationGoal    string `json:"conversationGoal,omitempty" jsonschema:"title=Conversation Goal,description=What the learner wants to achieve"`
	SessionID           string `json:"sessionId,omitempty"`
}

func (r ScenarioResult) IsZero() bool {
	return r == ScenarioResult{}
}

// SessionReport is the payload of the terminal `disconnected` message.
// Messages are kept as raw JSON so the report reaches the completion
// callback exactly as the server sent it.
type SessionReport struct {
	SessionID             string            `json:"session_id,omitempty"`
	StartedAt             string            `json:"started_at,omitempty"`
	EndedAt               string            `json:"ended_at,omitempty"`
	TotalDurationSec      float64           `json:"total_duration_sec,omitempty"`
	UserSpeechDurationSec float64           `json:"user_speech_duration_sec,omitempty"`
	Messages              []json.RawMessage `json:"messages,omitempty"`
}

type StateError struct {
	Code        string
	Message     string
	Recoverable bool
}

type SessionInfo struct {
	SessionID string
	Completed bool
}

// ConversationState is the observable snapshot owned by the core. It is
// mutated only by the session's router and transport handlers; collaborators
// read deep copies and can never alias internal state.
type ConversationState struct {
	ConnectionState string
	IsConnected     bool
	IsReady         bool

	// AIMessage accumulates the current utterance's transcript and is reset
	// only when a new utterance begins. AIMessageKR is its translation.
	AIMessage   string
	AIMessageKR string

	UserTranscript string

	IsAISpeaking   bool
	IsUserSpeaking bool
	IsRecording    bool
	IsMuted        bool

	Error     *StateError
	LastEvent string

	ScenarioResult *ScenarioResult
	SessionInfo    *SessionInfo
}

func (s ConversationState) snapshot() ConversationState {
	copied := ConversationState{}
	if err := copier.CopyWithOption(&copied, &s, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to snapshot conversation state", "error", err.Error())
		return s
	}
	return copied
}
