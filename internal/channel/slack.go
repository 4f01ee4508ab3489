package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agentrouter/internal/agent"
	"agentrouter/internal/verify"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// historyWindow is how many recent turns are handed to the agent.
const historyWindow = 10

// Slack dispatches Slack Events API requests: the URL-verification
// handshake, event callbacks, and slash commands.
type Slack struct {
	settings Settings
	agent    agent.Agent
	sessions *agent.SessionManager
	limiter  *RateLimiter
	logger   *slog.Logger
	maxBody  int64
}

type slackEventKind int

const (
	slackURLVerification slackEventKind = iota + 1
	slackEventCallback
	slackSlashCommand
)

// slackEvent is the normalized result of decoding a Slack request body.
// Exactly one kind is set; missing fields stay empty, never nil.
type slackEvent struct {
	kind      slackEventKind
	challenge string
	text      string
	userID    string
	channelID string
	threadTS  string
	ts        string
}

func (s *Slack) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if !s.settings.SlackEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Slack integration is not enabled")
		return
	}
	writeStatusOK(rw)
}

func (s *Slack) handleEvents(rw http.ResponseWriter, r *http.Request) {
	// The gate runs before anything else so a disabled channel never leaks
	// configuration detail.
	if !s.settings.SlackEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Slack integration is not enabled")
		return
	}
	if !s.limiter.Allow(limiterKey(r)) {
		writeRateLimited(rw)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody))
	if err != nil {
		writeJSONError(rw, http.StatusBadRequest, "cannot read request body")
		return
	}
	defer r.Body.Close()

	secret := s.settings.SlackSigningSecret()
	if secret == "" {
		s.logger.Error("slack signing secret not configured")
		writeJSONError(rw, http.StatusInternalServerError, "Slack signing secret not configured")
		return
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if err := verify.SlackAt(secret, body, timestamp, signature, s.settings.SlackTolerance(), time.Now()); err != nil {
		s.logger.Warn("slack signature rejected", "reason", err)
		if errors.Is(err, verify.ErrTimestamp) {
			writeJSONError(rw, http.StatusBadRequest, "Request timestamp too old")
			return
		}
		writeJSONError(rw, http.StatusBadRequest, "Invalid request signature")
		return
	}

	ev, err := s.parseBody(r, body)
	if err != nil {
		s.logger.Warn("slack payload rejected", "err", err)
		writeJSONError(rw, http.StatusBadRequest, "malformed request payload")
		return
	}

	// URL verification terminates the pipeline: echo the challenge verbatim.
	if ev.kind == slackURLVerification {
		writeText(rw, http.StatusOK, ev.challenge)
		return
	}

	// Slack expects a 200 with some text once the request is authenticated.
	if ev.text == "" {
		writeText(rw, http.StatusOK, "Please provide a message.")
		return
	}

	session := slackSessionKey(ev.channelID, ev.threadTS, ev.ts)
	q := agent.Query{
		Message:   ev.text,
		UserID:    ev.userID,
		SessionID: session,
		History:   s.sessions.History(session, historyWindow),
		Extra: map[string]string{
			"channel":    "slack",
			"channel_id": ev.channelID,
			"thread_ts":  ev.threadTS,
		},
	}

	s.logger.Info("slack message received",
		"user", ev.userID,
		"channel", ev.channelID,
		"content_len", len(ev.text),
	)

	text, err := agent.Collect(r.Context(), s.agent, q)
	if err != nil {
		s.logger.Error("agent query failed", "channel", "slack", "err", err)
		writeText(rw, http.StatusOK, "Error: "+err.Error())
		return
	}

	s.sessions.Append(session, "user", ev.text)
	s.sessions.Append(session, "assistant", text)

	writeText(rw, http.StatusOK, text)
}

// parseBody decodes a Slack request body: JSON for event callbacks and the
// URL-verification handshake, URL-encoded form for slash commands. Duplicate
// form keys keep the first value.
func (s *Slack) parseBody(r *http.Request, body []byte) (*slackEvent, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return parseSlackJSON(body)
	}

	// Slash commands arrive URL-encoded; hand the body back to the request
	// so the form parser can consume it.
	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		return nil, fmt.Errorf("parse slash command: %w", err)
	}
	return &slackEvent{
		kind:      slackSlashCommand,
		text:      cmd.Text,
		userID:    cmd.UserID,
		channelID: cmd.ChannelID,
	}, nil
}

func parseSlackJSON(body []byte) (*slackEvent, error) {
	var probe struct {
		Type      string          `json:"type"`
		Challenge string          `json:"challenge"`
		Event     json.RawMessage `json:"event"`
		Text      *string         `json:"text"`
		UserID    string          `json:"user_id"`
		ChannelID string          `json:"channel_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("parse slack payload: %w", err)
	}

	switch {
	case probe.Type == string(slackevents.URLVerification):
		return &slackEvent{kind: slackURLVerification, challenge: probe.Challenge}, nil

	case len(probe.Event) > 0:
		return parseSlackCallback(body)

	default:
		// Slash-style JSON payload: top-level "text" with no wrapped event.
		ev := &slackEvent{kind: slackSlashCommand, userID: probe.UserID, channelID: probe.ChannelID}
		if probe.Text != nil {
			ev.text = *probe.Text
		}
		return ev, nil
	}
}

func parseSlackCallback(body []byte) (*slackEvent, error) {
	api, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("parse event callback: %w", err)
	}

	ev := &slackEvent{kind: slackEventCallback}
	switch inner := api.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		ev.text = inner.Text
		ev.userID = inner.User
		ev.channelID = inner.Channel
		ev.threadTS = inner.ThreadTimeStamp
		ev.ts = inner.TimeStamp
	case *slackevents.AppMentionEvent:
		ev.text = stripMention(inner.Text)
		ev.userID = inner.User
		ev.channelID = inner.Channel
		ev.threadTS = inner.ThreadTimeStamp
		ev.ts = inner.TimeStamp
	}
	return ev, nil
}

// slackSessionKey derives a deterministic conversation key for a Slack
// message: channel + "_" + thread_ts, falling back to ts, then to the bare
// channel id (slash commands carry no timestamp).
func slackSessionKey(channelID, threadTS, ts string) string {
	switch {
	case channelID == "":
		return ""
	case threadTS != "":
		return channelID + "_" + threadTS
	case ts != "":
		return channelID + "_" + ts
	default:
		return channelID
	}
}

// stripMention removes the leading <@UID> token from an app_mention text.
func stripMention(text string) string {
	if strings.HasPrefix(text, "<@") {
		if idx := strings.Index(text, ">"); idx >= 0 {
			return strings.TrimSpace(text[idx+1:])
		}
	}
	return strings.TrimSpace(text)
}
