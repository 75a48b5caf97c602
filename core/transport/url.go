package transport

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	// ModeConversation is the general/continuing conversation session.
	ModeConversation Mode = "conversation"
	// ModeScenario is the scenario-discovery session.
	ModeScenario Mode = "scenario"
)

const (
	envWSBaseURL  = "MALANGEE_WS_BASE_URL"
	envAPIBaseURL = "MALANGEE_API_BASE_URL"
)

// Endpoint describes everything needed to build the socket URL for one
// session.
type Endpoint struct {
	Mode      Mode
	SessionID string
	// Token is empty for guest sessions.
	Token    string
	Voice    string
	ShowText bool

	// WSBaseURL, APIBaseURL and Origin are resolved in that order of
	// precedence; unset fields fall back to the MALANGEE_WS_BASE_URL and
	// MALANGEE_API_BASE_URL environment values.
	WSBaseURL  string
	APIBaseURL string
	Origin     string
}

func (e Endpoint) authenticated() bool {
	return e.Token != ""
}

func (e Endpoint) path() string {
	switch e.Mode {
	case ModeScenario:
		if e.authenticated() {
			return "/ws/scenario"
		}
		return "/ws/guest-scenario"
	default:
		if e.authenticated() {
			return "/chat/ws/chat/" + e.SessionID
		}
		return "/chat/ws/guest-chat/" + e.SessionID
	}
}

// SocketURL builds the full websocket URL for the endpoint.
func (e Endpoint) SocketURL() (string, error) {
	base, err := e.resolveBaseURL()
	if err != nil {
		return "", err
	}

	socketURL, err := url.Parse(strings.TrimRight(base, "/") + e.path())
	if err != nil {
		return "", fmt.Errorf("failed to parse socket url: %w", err)
	}

	query := socketURL.Query()
	if e.authenticated() {
		query.Set("token", e.Token)
	}
	if e.Mode != ModeScenario {
		if e.Voice != "" {
			query.Set("voice", e.Voice)
		}
		query.Set("show_text", strconv.FormatBool(e.ShowText))
	}
	socketURL.RawQuery = query.Encode()

	return socketURL.String(), nil
}

// resolveBaseURL picks the websocket base: explicit ws base, then the HTTP
// API base with its scheme upgraded, then the configured origin.
func (e Endpoint) resolveBaseURL() (string, error) {
	wsBase := e.WSBaseURL
	if wsBase == "" {
		wsBase, _ = os.LookupEnv(envWSBaseURL)
	}
	if wsBase != "" {
		return wsBase, nil
	}

	apiBase := e.APIBaseURL
	if apiBase == "" {
		apiBase, _ = os.LookupEnv(envAPIBaseURL)
	}
	if apiBase != "" {
		return upgradeScheme(apiBase)
	}

	if e.Origin != "" {
		return upgradeScheme(e.Origin)
	}

	return "", fmt.Errorf("no websocket base url configured")
}

func upgradeScheme(base string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url %q: %w", base, err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", parsed.Scheme)
	}

	return parsed.String(), nil
}
