package ops

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
)

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are logged, not returned.
func LoadEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		logs.Warnf("no .env loaded: %v", err)
	}
}

var credentialEnv = map[schema.Venue][2]string{
	schema.VenueHyperliquid:    {"HYPERLIQUID_API_KEY", "HYPERLIQUID_SECRET"},
	schema.VenueBinanceFutures: {"BINANCE_API_KEY", "BINANCE_SECRET"},
	schema.VenueIBKR:           {"IBKR_API_KEY", "IBKR_SECRET"},
}

// Credentials returns the venue key pair from the environment. ok is false
// when either half is missing.
func Credentials(venue schema.Venue) (adapter.Credentials, bool) {
	names, known := credentialEnv[venue]
	if !known {
		return adapter.Credentials{}, false
	}
	creds := adapter.Credentials{Key: os.Getenv(names[0]), Secret: os.Getenv(names[1])}
	return creds, creds.Valid()
}

// UniverseEnabled reports whether ENABLE_UNIVERSE is set to a true value.
func UniverseEnabled() bool {
	enabled, err := strconv.ParseBool(os.Getenv("ENABLE_UNIVERSE"))
	return err == nil && enabled
}

// TelegramTarget returns the bot token and chat ID for Telegram alerts.
func TelegramTarget() (token string, chatID int64, ok bool) {
	token = os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if token == "" || err != nil {
		return "", 0, false
	}
	return token, chatID, true
}
