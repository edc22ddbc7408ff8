package exception

import "errors"

// Error kinds. Wrap them with github.com/yanun0323/errors and test with errors.Is.
var (
	ErrIO                 = errors.New("io error")
	ErrSerialization      = errors.New("serialization error")
	ErrHTTP               = errors.New("http error")
	ErrWebSocket          = errors.New("websocket error")
	ErrAuthentication     = errors.New("authentication failed")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrVenue              = errors.New("venue error")
	ErrRiskCheck          = errors.New("risk check failed")
	ErrOrderRejected      = errors.New("order rejected")
	ErrPositionNotFound   = errors.New("position not found")
	ErrModel              = errors.New("model error")
	ErrFeature            = errors.New("feature computation error")
	ErrConfig             = errors.New("configuration error")
	ErrDatabase           = errors.New("database error")
	ErrChannelSend        = errors.New("channel send error")
	ErrTimeout            = errors.New("timeout")
	ErrInvalidData        = errors.New("invalid data")
	ErrNotFound           = errors.New("not found")
	ErrInternal           = errors.New("internal error")
)

var (
	retryable = []error{ErrHTTP, ErrWebSocket, ErrRateLimit, ErrTimeout}
	critical  = []error{ErrRiskCheck, ErrAuthentication, ErrInvalidCredentials}
)

// IsRetryable reports whether the operation that produced err may succeed on retry.
func IsRetryable(err error) bool {
	return isAny(err, retryable)
}

// IsCritical reports whether err must be escalated to an operator.
func IsCritical(err error) bool {
	return isAny(err, critical)
}

func isAny(err error, kinds []error) bool {
	if err == nil {
		return false
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
