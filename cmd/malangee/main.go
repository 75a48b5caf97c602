package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	conversation "github.com/ParkKunsu/MaLangEE-sub000/core"
	"github.com/ParkKunsu/MaLangEE-sub000/core/audio/miniaudio"
	"github.com/ParkKunsu/MaLangEE-sub000/core/events"
	"github.com/ParkKunsu/MaLangEE-sub000/core/translate"
	"github.com/ParkKunsu/MaLangEE-sub000/core/transport"
)

func main() {
	modeFlag := flag.String("mode", "conversation", "session mode: conversation or scenario")
	sessionID := flag.String("session", "", "continuing-conversation session id")
	voice := flag.String("voice", "", "server voice name")
	noAudio := flag.Bool("no-audio", false, "run text-only, without audio devices")
	flag.Parse()

	mode := transport.ModeConversation
	if *modeFlag == "scenario" {
		mode = transport.ModeScenario
	}
	token := os.Getenv("MALANGEE_TOKEN")

	// The TUI consumes session activity as bubbletea messages; the channel
	// is buffered so callbacks never block the conversation loop.
	messages := make(chan tea.Msg, 64)
	notify := func(msg tea.Msg) {
		select {
		case messages <- msg:
		default:
		}
	}

	opts := []conversation.SessionOption{
		conversation.WithMode(mode),
		conversation.WithEndpoint(transport.Endpoint{
			SessionID: *sessionID,
			Token:     token,
			Voice:     *voice,
		}),
		conversation.WithGreetingInstructions("Greet the learner warmly in English and start the conversation."),
		conversation.WithOnStateChanged(func(state conversation.ConversationState) {
			notify(stateMsg(state))
		}),
		conversation.WithOnEvent(func(event events.Event) {
			notify(eventMsg{event})
		}),
		conversation.WithOnCompleted(func(report *conversation.SessionReport) {
			notify(completedMsg{report})
		}),
	}

	if token != "" {
		opts = append(opts, conversation.WithTranslator(translate.NewClient(translate.WithToken(token))))
	}

	if !*noAudio {
		audioClient, err := miniaudio.NewClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "audio unavailable, continuing text-only: %v\n", err)
		} else {
			defer audioClient.Close()
			opts = append(opts,
				conversation.WithAudioInput(audioClient),
				conversation.WithAudioOutput(audioClient),
			)
		}
	}

	session := conversation.NewSession(opts...)
	defer session.Close()

	if err := session.Connect(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(newModel(session, messages), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run UI: %v\n", err)
		os.Exit(1)
	}
}
