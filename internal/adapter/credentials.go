package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Credentials are venue API keys. The zero value means no credentials.
type Credentials struct {
	Key    string
	Secret string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Key) != "" && strings.TrimSpace(c.Secret) != ""
}

// String hides the secret so credentials can be logged.
func (c Credentials) String() string {
	if c.Key == "" {
		return "Credentials{}"
	}
	key := c.Key
	if len(key) > 4 {
		key = key[:4] + "****"
	}
	return "Credentials{Key:" + key + "}"
}

// Sign returns the hex encoded HMAC-SHA256 of message.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
