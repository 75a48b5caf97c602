package conversation

import (
	"encoding/json"
	"time"

	"github.com/ParkKunsu/MaLangEE-sub000/core/audio"
	"github.com/ParkKunsu/MaLangEE-sub000/core/events"
	"github.com/ParkKunsu/MaLangEE-sub000/core/transport"
)

// handleMessage routes one inbound envelope by its type. The router
// accepts both modes' spellings regardless of the active mode; one
// malformed message is logged and skipped, the next is processed normally.
func (s *Session) handleMessage(raw []byte) {
	var head envelope
	if err := json.Unmarshal(raw, &head); err != nil {
		logger.Warn("skipping malformed message", "error", err.Error())
		s.surfaceError(string(transport.ErrCodeMessageParseError),
			"failed to parse inbound message", true)
		return
	}
	if head.Type == "" {
		logger.Warn("skipping message without a type")
		return
	}

	s.mu.Lock()
	s.state.LastEvent = head.Type
	s.mu.Unlock()

	switch head.Type {
	case s.names.ready, s.altNames.ready:
		s.handleReady()
	case "speech.started":
		s.handleUserSpeechStarted()
	case "speech.stopped":
		s.handleUserSpeechStopped()
	case s.names.audioDelta, s.altNames.audioDelta:
		s.handleAudioDelta(raw)
	case s.names.audioDone, s.altNames.audioDone:
		// Playback end is decided by the scheduler's grace timer, not by
		// the server's done marker.
	case s.names.transcriptDelta, s.names.textDelta:
		s.handleTranscriptDelta(raw)
	case s.names.transcriptDone, s.altNames.transcriptDone, s.names.textDone:
		s.handleTranscriptDone(raw)
	case s.names.userTranscript, s.altNames.userTranscript:
		s.handleUserTranscript(raw)
	case "scenario.completed":
		s.handleScenarioCompleted(raw)
	case "disconnected":
		s.handleDisconnected(raw)
	case "error":
		s.handleServerError(raw)
	default:
		logger.Debug("ignoring unhandled message", "type", head.Type)
	}
}

// handleReady completes the handshake. In authenticated conversation mode
// the VAD config and an initial response.create go out immediately so the
// AI greets first without any client input; scenario mode pushes the
// extraction schema instead.
func (s *Session) handleReady() {
	if !s.transport.MarkReady() {
		logger.Warn("handshake message arrived outside CONNECTED state")
		return
	}

	s.mu.Lock()
	authenticated := s.endpoint.Token != ""
	s.mu.Unlock()

	if s.mode == transport.ModeScenario {
		s.sendEnvelope(newSessionUpdateEnvelope(s.mode))
		return
	}
	if !authenticated {
		return
	}
	s.sendEnvelope(newSessionUpdateEnvelope(s.mode))
	s.sendEnvelope(newResponseCreateEnvelope(s.greeting))
}

// handleUserSpeechStarted is the barge-in path: playback stops before
// anything else happens.
func (s *Session) handleUserSpeechStarted() {
	s.scheduler.Flush()
	s.cancelResponseWait()
	s.updateState(func(state *ConversationState) {
		state.IsUserSpeaking = true
		state.IsAISpeaking = false
	})
	s.emitEvent(events.NewUserSpeechStarted())
}

func (s *Session) handleUserSpeechStopped() {
	s.updateState(func(state *ConversationState) {
		state.IsUserSpeaking = false
	})
	s.armResponseWait()
	s.emitEvent(events.NewUserSpeechEnded())
}

func (s *Session) handleAudioDelta(raw []byte) {
	var delta audioDeltaEnvelope
	if err := json.Unmarshal(raw, &delta); err != nil {
		logger.Warn("skipping malformed audio delta", "error", err.Error())
		return
	}
	s.cancelResponseWait()

	sampleRate := delta.SampleRate
	if sampleRate == 0 {
		sampleRate = audio.DefaultPlaybackSampleRate
	}
	if err := s.scheduler.Enqueue(AudioChunk{Base64: delta.payload(), SampleRate: sampleRate}); err != nil {
		logger.Warn("skipping unplayable audio chunk", "error", err.Error())
	}
}

// handleTranscriptDelta appends a streamed fragment to the current AI
// utterance. The accumulator resets only when a new utterance begins
// after the previous one was finalized.
func (s *Session) handleTranscriptDelta(raw []byte) {
	var envelope transcriptEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed transcript delta", "error", err.Error())
		return
	}
	segment := envelope.payload()
	if segment == "" {
		return
	}
	s.cancelResponseWait()

	s.updateState(func(state *ConversationState) {
		if s.aiMessageFinalized {
			state.AIMessage = ""
			state.AIMessageKR = ""
			s.aiMessageFinalized = false
		}
		state.AIMessage += segment
	})
	s.emitEvent(events.NewAssistantMessageSegment(segment))
}

// handleTranscriptDone snapshot-replaces the accumulator: the final form
// is authoritative over whatever the deltas added up to. An empty final
// keeps the accumulated text.
func (s *Session) handleTranscriptDone(raw []byte) {
	var envelope transcriptEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed transcript", "error", err.Error())
		return
	}
	s.cancelResponseWait()

	var message string
	s.updateState(func(state *ConversationState) {
		if final := envelope.payload(); final != "" {
			state.AIMessage = final
		}
		s.aiMessageFinalized = true
		message = state.AIMessage
	})
	s.emitEvent(events.NewAssistantMessageFinal(message))
	s.translateUtterance(message)
}

func (s *Session) handleUserTranscript(raw []byte) {
	var envelope transcriptEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed user transcript", "error", err.Error())
		return
	}
	transcript := envelope.payload()
	s.updateState(func(state *ConversationState) {
		state.UserTranscript = transcript
	})
	s.emitEvent(events.NewUserTranscriptUpdated(transcript))
}

func (s *Session) handleScenarioCompleted(raw []byte) {
	var envelope scenarioCompletedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed scenario result", "error", err.Error())
		return
	}
	result := envelope.result()

	s.updateState(func(state *ConversationState) {
		state.ScenarioResult = &result
		state.SessionInfo = &SessionInfo{
			SessionID: coalesce(result.SessionID, s.endpoint.SessionID),
			Completed: true,
		}
	})
	s.emitEvent(events.NewScenarioCompleted(
		result.Place, result.ConversationPartner, result.ConversationGoal, result.SessionID))
}

// handleDisconnected delivers the server's terminal report to the
// completion callback exactly as received.
func (s *Session) handleDisconnected(raw []byte) {
	var envelope disconnectedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed session report", "error", err.Error())
		return
	}
	report := envelope.report()

	s.updateState(func(state *ConversationState) {
		state.SessionInfo = &SessionInfo{
			SessionID: coalesce(report.SessionID, s.endpoint.SessionID),
			Completed: true,
		}
	})
	s.emitEvent(events.NewSessionEnded(report.SessionID))
	if s.callbacks.onCompleted != nil {
		s.callbacks.onCompleted(report)
	}
}

func (s *Session) handleServerError(raw []byte) {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("skipping malformed error message", "error", err.Error())
		return
	}
	s.surfaceError("SERVER_ERROR", envelope.payload(), true)
}

// translateUtterance asks the collaborator for the Korean rendering of a
// finalized utterance. The result is discarded when a newer utterance has
// replaced the one it was requested for.
func (s *Session) translateUtterance(message string) {
	if s.translator == nil || message == "" {
		return
	}
	ctx := s.sessionContext()
	go func() {
		korean, err := s.translator.Translate(ctx, message)
		if err != nil {
			logger.Warn("failed to translate utterance", "error", err.Error())
			return
		}

		s.mu.Lock()
		if s.state.AIMessage != message {
			s.mu.Unlock()
			return
		}
		s.state.AIMessageKR = korean
		snapshot := s.state.snapshot()
		s.mu.Unlock()

		s.notifyStateChanged(snapshot)
		s.emitEvent(events.NewAssistantTranslationUpdated(message, korean))
	}()
}

func (s *Session) sendEnvelope(envelope any) {
	if err := s.transport.Send(envelope); err != nil {
		logger.Warn("failed to send envelope", "error", err.Error())
	}
}

func (s *Session) armResponseWait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelResponseWaitLocked()
	if s.responseWaitTimeout <= 0 {
		return
	}
	s.responseWaitTimer = time.AfterFunc(s.responseWaitTimeout, s.responseWaitExpired)
}

func (s *Session) cancelResponseWait() {
	s.mu.Lock()
	s.cancelResponseWaitLocked()
	s.mu.Unlock()
}

// responseWaitExpired fires when the server stays silent after the user
// finished speaking. The socket is left alone: the error is transient and
// clears itself.
func (s *Session) responseWaitExpired() {
	s.mu.Lock()
	s.responseWaitTimer = nil
	s.mu.Unlock()

	s.surfaceError(string(transport.ErrCodeTimeout), "no response received after user speech", true)
}
