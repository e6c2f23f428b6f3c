// Package auth provides bot token loading and redaction.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rickgao/gateway-cache/internal/model"
)

// ErrEmptyToken is returned when no token could be loaded.
var ErrEmptyToken = errors.New("bot token is empty")

// Token is a bot token. Its String method redacts it, so a Token can be
// passed to a logger without leaking the secret.
type Token string

// LoadToken resolves the token from an inline value or, when value is empty,
// from the file at path. Surrounding whitespace and a "Bot " prefix are removed.
func LoadToken(value, path string) (Token, error) {
	raw := value
	if raw == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		raw = string(data)
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "Bot ")
	if raw == "" {
		return "", ErrEmptyToken
	}
	return Token(raw), nil
}

// Secret returns the raw token for the identify and resume payloads.
func (t Token) Secret() string {
	return string(t)
}

// Header returns the Authorization header value for REST requests.
func (t Token) Header() string {
	return "Bot " + string(t)
}

// Redacted keeps the first segment, which only encodes the bot's user id.
func (t Token) Redacted() string {
	s := string(t)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i] + ".<redacted>"
	}
	return "<redacted>"
}

func (t Token) String() string {
	return t.Redacted()
}

// BotID decodes the bot's user id from the token's first segment.
func (t Token) BotID() (model.Snowflake, error) {
	first, _, ok := strings.Cut(string(t), ".")
	if !ok || first == "" {
		return "", fmt.Errorf("token has no id segment")
	}
	id, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(first, "="))
	if err != nil {
		return "", fmt.Errorf("decode token id: %w", err)
	}
	sf := model.Snowflake(id)
	if !sf.IsValid() {
		return "", fmt.Errorf("token id %q is not a snowflake", id)
	}
	return sf, nil
}
