package events

const (
	KindConnectionStateChanged Kind = "connection.state_changed"

	KindUserSpeechStarted     Kind = "user_input.speech_started"
	KindUserSpeechEnded       Kind = "user_input.speech_ended"
	KindUserTranscriptUpdated Kind = "user_input.transcript_updated"

	KindAssistantSpeechStarted Kind = "assistant_speech.started"
	KindAssistantSpeechEnded   Kind = "assistant_speech.ended"

	KindAssistantMessageSegment     Kind = "assistant_message.segment"
	KindAssistantMessageFinal       Kind = "assistant_message.final"
	KindAssistantTranslationUpdated Kind = "assistant_message.translation_updated"

	KindScenarioCompleted Kind = "session.scenario_completed"
	KindSessionEnded      Kind = "session.ended"
	KindErrorRaised       Kind = "session.error"
)

type ConnectionStateChanged struct {
	Base
	To   string
	From string
}

func (e ConnectionStateChanged) String() string { return "Connection State Changed" }

func NewConnectionStateChanged(to, from string) ConnectionStateChanged {
	return ConnectionStateChanged{Base: NewBase(KindConnectionStateChanged), To: to, From: from}
}

type UserSpeechStarted struct{ Base }

func (e UserSpeechStarted) String() string { return "User Speech Started" }

func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

type UserSpeechEnded struct{ Base }

func (e UserSpeechEnded) String() string { return "User Speech Ended" }

func NewUserSpeechEnded() UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded)}
}

type UserTranscriptUpdated struct {
	Base
	Transcript string
}

func (e UserTranscriptUpdated) String() string { return "User Transcript Updated" }

func NewUserTranscriptUpdated(transcript string) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), Transcript: transcript}
}

type AssistantSpeechStarted struct{ Base }

func (e AssistantSpeechStarted) String() string { return "Assistant Speech Started" }

func NewAssistantSpeechStarted() AssistantSpeechStarted {
	return AssistantSpeechStarted{Base: NewBase(KindAssistantSpeechStarted)}
}

type AssistantSpeechEnded struct{ Base }

func (e AssistantSpeechEnded) String() string { return "Assistant Speech Ended" }

func NewAssistantSpeechEnded() AssistantSpeechEnded {
	return AssistantSpeechEnded{Base: NewBase(KindAssistantSpeechEnded)}
}

type AssistantMessageSegment struct {
	Base
	Segment string
}

func (e AssistantMessageSegment) String() string { return "Assistant Message Segment" }

func NewAssistantMessageSegment(segment string) AssistantMessageSegment {
	return AssistantMessageSegment{Base: NewBase(KindAssistantMessageSegment), Segment: segment}
}

type AssistantMessageFinal struct {
	Base
	Message string
}

func (e AssistantMessageFinal) String() string { return "Assistant Message Final" }

func NewAssistantMessageFinal(message string) AssistantMessageFinal {
	return AssistantMessageFinal{Base: NewBase(KindAssistantMessageFinal), Message: message}
}

type AssistantTranslationUpdated struct {
	Base
	Message     string
	Translation string
}

func (e AssistantTranslationUpdated) String() string { return "Assistant Translation Updated" }

func NewAssistantTranslationUpdated(message, translation string) AssistantTranslationUpdated {
	return AssistantTranslationUpdated{
		Base:        NewBase(KindAssistantTranslationUpdated),
		Message:     message,
		Translation: translation,
	}
}

type ScenarioCompleted struct {
	Base
	Place               string
	ConversationPartner string
	ConversationGoal    string
	SessionID           string
}

func (e ScenarioCompleted) String() string { return "Scenario Completed" }

func NewScenarioCompleted(place, partner, goal, sessionID string) ScenarioCompleted {
	return ScenarioCompleted{
		Base:                NewBase(KindScenarioCompleted),
		Place:               place,
		ConversationPartner: partner,
		ConversationGoal:    goal,
		SessionID:           sessionID,
	}
}

type SessionEnded struct {
	Base
	SessionID string
}

func (e SessionEnded) String() string { return "Session Ended" }

func NewSessionEnded(sessionID string) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), SessionID: sessionID}
}

type ErrorRaised struct {
	Base
	Code        string
	Message     string
	Recoverable bool
}

func (e ErrorRaised) String() string { return "Error Raised" }

func NewErrorRaised(code, message string, recoverable bool) ErrorRaised {
	return ErrorRaised{
		Base:        NewBase(KindErrorRaised),
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
	}
}
