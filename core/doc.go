// Package conversation implements the realtime voice-conversation core:
// a full-duplex websocket session that streams microphone audio up,
// schedules synthesized speech and transcript fragments coming down, and
// reconciles the two with a turn-taking model including barge-in
// interruption.
//
// The package is consumed through Session: collaborators call
// Connect/Disconnect/SendText/SetMuted and observe an immutable
// ConversationState snapshot plus typed events from the events package.
package conversation
