package agent

import (
	"log/slog"
	"sync"
)

const defaultMaxHistory = 50

// SessionManager keeps bounded in-memory conversation history per session
// key. Nothing is persisted: history lives for the life of the process.
type SessionManager struct {
	mu         sync.RWMutex
	history    map[string][]Message
	maxHistory int
	logger     *slog.Logger
}

// NewSessionManager creates a session manager keeping up to maxHistory turns
// per session. maxHistory <= 0 selects the default of 50.
func NewSessionManager(maxHistory int, logger *slog.Logger) *SessionManager {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		history:    make(map[string][]Message),
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Append records one conversation turn. An empty session key is ignored:
// requests without session identity carry no history.
func (sm *SessionManager) Append(sessionID, role, content string) {
	if sessionID == "" {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	msgs := append(sm.history[sessionID], Message{Role: role, Content: content})
	if len(msgs) > sm.maxHistory {
		msgs = msgs[len(msgs)-sm.maxHistory:]
	}
	sm.history[sessionID] = msgs
}

// History returns up to limit most recent turns, oldest first.
// limit <= 0 returns everything stored.
func (sm *SessionManager) History(sessionID string, limit int) []Message {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	msgs := sm.history[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear drops one session's history.
func (sm *SessionManager) Clear(sessionID string) {
	sm.mu.Lock()
	delete(sm.history, sessionID)
	sm.mu.Unlock()
}

// Reset drops all sessions.
func (sm *SessionManager) Reset() {
	sm.mu.Lock()
	sm.history = make(map[string][]Message)
	sm.mu.Unlock()
}
