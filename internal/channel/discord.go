package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"agentrouter/internal/agent"
	"agentrouter/internal/verify"

	"github.com/bwmarrin/discordgo"
)

// Discord dispatches Discord interaction requests: PING handshakes and
// application commands.
type Discord struct {
	settings Settings
	agent    agent.Agent
	limiter  *RateLimiter
	logger   *slog.Logger
	maxBody  int64
}

// discordInteraction is the normalized result of decoding an interaction
// body. message and userID are only set for application commands.
type discordInteraction struct {
	kind      discordgo.InteractionType
	message   string
	userID    string
	channelID string
}

// interactionResponse is the interaction response envelope Discord expects.
type interactionResponse struct {
	Type discordgo.InteractionResponseType `json:"type"`
	Data *interactionCallbackData          `json:"data,omitempty"`
}

type interactionCallbackData struct {
	Content string `json:"content"`
}

func (d *Discord) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if !d.settings.DiscordEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Discord integration is not enabled")
		return
	}
	writeStatusOK(rw)
}

func (d *Discord) handleInteractions(rw http.ResponseWriter, r *http.Request) {
	if !d.settings.DiscordEnabled() {
		writeJSONError(rw, http.StatusNotFound, "Discord integration is not enabled")
		return
	}
	if !d.limiter.Allow(limiterKey(r)) {
		writeRateLimited(rw)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, d.maxBody))
	if err != nil {
		writeJSONError(rw, http.StatusBadRequest, "cannot read request body")
		return
	}
	defer r.Body.Close()

	publicKey := d.settings.DiscordPublicKey()
	if publicKey == "" {
		d.logger.Error("discord public key not configured")
		writeJSONError(rw, http.StatusInternalServerError, "Discord public key not configured")
		return
	}

	signature := r.Header.Get("X-Signature-Ed25519")
	timestamp := r.Header.Get("X-Signature-Timestamp")
	if !verify.Discord(publicKey, signature, timestamp, body) {
		d.logger.Warn("discord signature rejected")
		writeJSONError(rw, http.StatusUnauthorized, "Invalid request signature")
		return
	}

	in, err := parseInteraction(body)
	if err != nil {
		d.logger.Warn("discord payload rejected", "err", err)
		writeJSONError(rw, http.StatusBadRequest, "malformed interaction payload")
		return
	}

	switch in.kind {
	case discordgo.InteractionPing:
		writeJSON(rw, http.StatusOK, interactionResponse{Type: discordgo.InteractionResponsePong})

	case discordgo.InteractionApplicationCommand:
		if in.message == "" {
			d.respondMessage(rw, "Please provide a message.")
			return
		}

		d.logger.Info("discord command received",
			"user", in.userID,
			"channel", in.channelID,
			"content_len", len(in.message),
		)

		q := agent.Query{
			Message: in.message,
			UserID:  in.userID,
			Extra: map[string]string{
				"channel":    "discord",
				"channel_id": in.channelID,
			},
		}
		text, err := agent.Collect(r.Context(), d.agent, q)
		if err != nil {
			d.logger.Error("agent query failed", "channel", "discord", "err", err)
			writeJSONError(rw, http.StatusInternalServerError, err.Error())
			return
		}
		d.respondMessage(rw, text)

	default:
		d.respondMessage(rw, "Unsupported interaction type")
	}
}

func (d *Discord) respondMessage(rw http.ResponseWriter, text string) {
	writeJSON(rw, http.StatusOK, interactionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &interactionCallbackData{Content: text},
	})
}

// parseInteraction decodes an interaction body. For application commands the
// message text is the first option's string value, or the command name when
// the interaction carries no options.
func parseInteraction(body []byte) (*discordInteraction, error) {
	var in struct {
		Type      discordgo.InteractionType                   `json:"type"`
		Data      discordgo.ApplicationCommandInteractionData `json:"data"`
		Member    *discordgo.Member                           `json:"member"`
		User      *discordgo.User                             `json:"user"`
		ChannelID string                                      `json:"channel_id"`
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse interaction: %w", err)
	}

	out := &discordInteraction{kind: in.Type, channelID: in.ChannelID}
	if in.Type != discordgo.InteractionApplicationCommand {
		return out, nil
	}

	if len(in.Data.Options) > 0 {
		// The options array can carry JSON nulls.
		if opt := in.Data.Options[0]; opt != nil {
			if s, ok := opt.Value.(string); ok {
				out.message = s
			}
		}
	}
	if out.message == "" {
		out.message = in.Data.Name
	}

	switch {
	case in.Member != nil && in.Member.User != nil:
		out.userID = in.Member.User.ID
	case in.User != nil:
		out.userID = in.User.ID
	}
	return out, nil
}
