package channel

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"agentrouter/internal/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// testSettings is a fixed-value Settings implementation.
type testSettings struct {
	slackEnabled   bool
	slackSecret    string
	discordEnabled bool
	discordKey     string
	webhookEnabled bool
}

func (s *testSettings) SlackEnabled() bool            { return s.slackEnabled }
func (s *testSettings) SlackSigningSecret() string    { return s.slackSecret }
func (s *testSettings) SlackTolerance() time.Duration { return 5 * time.Minute }
func (s *testSettings) DiscordEnabled() bool          { return s.discordEnabled }
func (s *testSettings) DiscordPublicKey() string      { return s.discordKey }
func (s *testSettings) WebhookEnabled() bool          { return s.webhookEnabled }

// testAgent replays fragments, then returns err. It records the last query.
type testAgent struct {
	fragments []agent.Fragment
	err       error
	lastQuery agent.Query
}

func (a *testAgent) StreamQuery(ctx context.Context, q agent.Query, out chan<- agent.Fragment) error {
	a.lastQuery = q
	for _, f := range a.fragments {
		select {
		case out <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return a.err
}

func textFragments(texts ...string) []agent.Fragment {
	var out []agent.Fragment
	for _, t := range texts {
		out = append(out, agent.Fragment{Text: t})
	}
	return out
}

func newTestHandler(settings Settings, a agent.Agent) http.Handler {
	return newTestHandlerLimited(settings, a, 0)
}

func newTestHandlerLimited(settings Settings, a agent.Agent, requestsPerMinute int) http.Handler {
	rt := NewRouter(RouterConfig{
		Settings:          settings,
		Agent:             a,
		RequestsPerMinute: requestsPerMinute,
		Logger:            testLogger(),
	})
	return rt.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// signSlackRequest adds a valid signature for body under secret.
func signSlackRequest(req *http.Request, secret string, body []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	signSlackRequestAt(req, secret, body, ts)
}

func signSlackRequestAt(req *http.Request, secret string, body []byte, ts string) {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + string(body)))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

// discordTestKeys generates a key pair and returns the hex public key.
func discordTestKeys(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(pub), priv
}

// signDiscordRequest adds a valid Ed25519 signature for body.
func signDiscordRequest(req *http.Request, priv ed25519.PrivateKey, body []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(priv, append([]byte(ts), body...))
	req.Header.Set("X-Signature-Timestamp", ts)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rr.Body.String(), err)
	}
	return m
}
