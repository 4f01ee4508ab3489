// Package channel adapts an agent to the HTTP endpoints of three delivery
// channels: Slack events, Discord interactions, and a generic webhook. Each
// dispatcher runs the same pipeline per request: enablement gate, signature
// verification, body parsing, message extraction, agent query, response
// translation.
package channel

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agentrouter/internal/agent"

	"github.com/google/uuid"
)

const defaultMaxBodySize = 1 << 20 // 1MB

// Settings reports channel enablement and secret material. It is checked at
// request time, so enablement can change without re-registering routes.
// *config.Config satisfies it.
type Settings interface {
	SlackEnabled() bool
	SlackSigningSecret() string
	SlackTolerance() time.Duration
	DiscordEnabled() bool
	DiscordPublicKey() string
	WebhookEnabled() bool
}

// RouterConfig configures the channel router.
type RouterConfig struct {
	Settings          Settings
	Agent             agent.Agent
	Sessions          *agent.SessionManager
	Prefix            string // mount prefix, default /agent
	RequestsPerMinute int    // 0 disables rate limiting
	MaxBodyBytes      int64
	Logger            *slog.Logger
}

// Router mounts the per-channel dispatchers. All routes are always
// registered; disabled channels answer 404 at request time.
type Router struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewRouter assembles the three channel dispatchers onto a mux.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Prefix == "" {
		cfg.Prefix = "/agent"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = agent.NewSessionManager(0, cfg.Logger)
	}
	limiter := NewRateLimiter(cfg.RequestsPerMinute)

	slack := &Slack{
		settings: cfg.Settings,
		agent:    cfg.Agent,
		sessions: cfg.Sessions,
		limiter:  limiter,
		logger:   cfg.Logger,
		maxBody:  cfg.MaxBodyBytes,
	}
	discord := &Discord{
		settings: cfg.Settings,
		agent:    cfg.Agent,
		limiter:  limiter,
		logger:   cfg.Logger,
		maxBody:  cfg.MaxBodyBytes,
	}
	webhook := &Webhook{
		settings: cfg.Settings,
		agent:    cfg.Agent,
		sessions: cfg.Sessions,
		limiter:  limiter,
		logger:   cfg.Logger,
		maxBody:  cfg.MaxBodyBytes,
	}

	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/slack/events", slack.handleEvents)
	mux.HandleFunc("GET "+prefix+"/slack", slack.handleStatus)
	mux.HandleFunc("POST "+prefix+"/discord/interactions", discord.handleInteractions)
	mux.HandleFunc("GET "+prefix+"/discord", discord.handleStatus)
	mux.HandleFunc("POST "+prefix+"/webhook", webhook.handleWebhook)
	mux.HandleFunc("GET "+prefix+"/webhook", webhook.handleStatus)

	return &Router{mux: mux, logger: cfg.Logger}
}

// Handler returns the router's HTTP handler with request logging applied.
func (rt *Router) Handler() http.Handler {
	return requestLog(rt.logger, rt.mux)
}

// requestLog tags each request with a fresh ID, echoed as X-Request-Id, and
// logs method, path, and peer. Secret material never reaches the log.
func requestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		rw.Header().Set("X-Request-Id", id)
		logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)
		next.ServeHTTP(rw, r)
	})
}
