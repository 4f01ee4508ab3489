package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// SlackTolerance is the default replay window for Slack request timestamps.
const SlackTolerance = 5 * time.Minute

var (
	// ErrMalformedTimestamp marks a timestamp header that is not a unix time.
	ErrMalformedTimestamp = errors.New("malformed request timestamp")
	// ErrTimestamp marks a timestamp outside the replay window.
	ErrTimestamp = errors.New("request timestamp outside tolerance")
	// ErrSignature marks an HMAC mismatch.
	ErrSignature = errors.New("signature mismatch")
)

// Slack reports whether a Slack request signature is valid under the default
// tolerance. Malformed input is a verification failure, never a panic.
func Slack(signingSecret string, body []byte, timestamp, signature string) bool {
	return SlackAt(signingSecret, body, timestamp, signature, SlackTolerance, time.Now()) == nil
}

// SlackCheck is Slack with the failure reason preserved, so callers can tell
// a stale timestamp apart from a bad signature.
func SlackCheck(signingSecret string, body []byte, timestamp, signature string) error {
	return SlackAt(signingSecret, body, timestamp, signature, SlackTolerance, time.Now())
}

// SlackAt verifies against an explicit tolerance and clock.
//
// The replay-window check runs before the HMAC compare: a request outside
// the window is rejected without touching the signing path. The canonical
// string is "v0:" + timestamp + ":" + body, signed with HMAC-SHA256 over the
// signing secret, hex-encoded, prefixed "v0=", and compared in constant time
// against the signature header. An empty body is valid input.
func SlackAt(signingSecret string, body []byte, timestamp, signature string, tolerance time.Duration, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedTimestamp
	}

	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(tolerance/time.Second) {
		return ErrTimestamp
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignature
	}
	return nil
}
