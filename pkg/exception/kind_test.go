package exception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/errors"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc      string
		err       error
		retryable bool
		critical  bool
	}{
		{"nil", nil, false, false},
		{"http", errors.Wrap(ErrHTTP, "post /info"), true, false},
		{"websocket", errors.Wrap(ErrWebSocket, "dial"), true, false},
		{"rate limit", ErrRateLimit, true, false},
		{"timeout wrapped twice", errors.Wrap(errors.Wrap(ErrTimeout, "inference"), "predict"), true, false},
		{"risk", errors.Wrap(ErrRiskCheck, "kill switch"), false, true},
		{"auth", ErrAuthentication, false, true},
		{"credentials", errors.Wrap(ErrInvalidCredentials, "missing secret"), false, true},
		{"model", errors.Wrap(ErrModel, "load"), false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
			assert.Equal(t, tc.critical, IsCritical(tc.err))
		})
	}
}
