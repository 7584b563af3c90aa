package protocol

import (
	"errors"
	"strings"
)

// NickSentinel is the first frame a server sends on a new connection. The
// client answers it with its nickname as a bare frame.
const NickSentinel = "NICK"

// ErrHandshake wraps failures during the NICK exchange.
var ErrHandshake = errors.New("protocol: handshake failed")

// IsSentinel reports whether frame is the nickname request.
func IsSentinel(frame string) bool {
	return frame == NickSentinel
}

// FormatChat builds the chat body a client sends for text typed by nickname.
// The server relays it verbatim and never rewrites the prefix.
func FormatChat(nickname, text string) string {
	return nickname + ": " + text
}

// SplitChat splits a relayed chat body into its nickname prefix and text.
// ok is false when the body does not carry a "<nickname>: " prefix.
func SplitChat(body string) (nickname, text string, ok bool) {
	nickname, text, ok = strings.Cut(body, ": ")
	return nickname, text, ok
}
