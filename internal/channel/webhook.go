package channel

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"agentrouter/internal/agent"
)

// Webhook dispatches generic webhook requests. The endpoint is
// unauthenticated; callers that need auth put the router behind their own
// middleware.
type Webhook struct {
	settings Settings
	agent    agent.Agent
	sessions *agent.SessionManager
	limiter  *RateLimiter
	logger   *slog.Logger
	maxBody  int64
}

// webhookRequest is the JSON body accepted by the webhook endpoint.
type webhookRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// webhookResponse echoes the caller's session id, null when none was sent.
type webhookResponse struct {
	Response  string  `json:"response"`
	SessionID *string `json:"session_id"`
}

func (w *Webhook) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if !w.settings.WebhookEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Webhook endpoint is not enabled")
		return
	}
	writeStatusOK(rw)
}

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if !w.settings.WebhookEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Webhook endpoint is not enabled")
		return
	}
	if !w.limiter.Allow(limiterKey(r)) {
		writeRateLimited(rw)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, w.maxBody))
	if err != nil {
		writeJSONError(rw, http.StatusBadRequest, "cannot read request body")
		return
	}
	defer r.Body.Close()

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Message == "" {
		writeJSONError(rw, http.StatusBadRequest, "Message is required")
		return
	}

	w.logger.Info("webhook received",
		"user", req.UserID,
		"session", req.SessionID,
		"content_len", len(req.Message),
	)

	q := agent.Query{
		Message:   req.Message,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		History:   w.sessions.History(req.SessionID, historyWindow),
		Extra:     map[string]string{"channel": "webhook"},
	}
	text, err := agent.Collect(r.Context(), w.agent, q)
	if err != nil {
		w.logger.Error("agent query failed", "channel", "webhook", "err", err)
		writeJSONError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	w.sessions.Append(req.SessionID, "user", req.Message)
	w.sessions.Append(req.SessionID, "assistant", text)

	var sid *string
	if req.SessionID != "" {
		sid = &req.SessionID
	}
	writeJSON(rw, http.StatusOK, webhookResponse{Response: text, SessionID: sid})
}
