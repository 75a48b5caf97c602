package conversation

import events "github.com/ParkKunsu/MaLangEE-sub000/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newCallbackEventEmitter fans a typed event out to the matching narrow
// callbacks and to the catch-all onEvent hook.
func newCallbackEventEmitter(callbacks sessionCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserSpeechStarted:
			if callbacks.onUserSpeakingChanged != nil {
				callbacks.onUserSpeakingChanged(true)
			}
		case events.UserSpeechEnded:
			if callbacks.onUserSpeakingChanged != nil {
				callbacks.onUserSpeakingChanged(false)
			}
		case events.UserTranscriptUpdated:
			if callbacks.onUserTranscript != nil {
				callbacks.onUserTranscript(typedEvent.Transcript)
			}
		case events.AssistantSpeechStarted:
			if callbacks.onAISpeakingChanged != nil {
				callbacks.onAISpeakingChanged(true)
			}
		case events.AssistantSpeechEnded:
			if callbacks.onAISpeakingChanged != nil {
				callbacks.onAISpeakingChanged(false)
			}
		case events.AssistantMessageFinal:
			if callbacks.onAssistantMessage != nil {
				callbacks.onAssistantMessage(typedEvent.Message)
			}
		case events.AssistantTranslationUpdated:
			if callbacks.onAssistantTranslation != nil {
				callbacks.onAssistantTranslation(typedEvent.Translation)
			}
		}

		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}
	}
}
