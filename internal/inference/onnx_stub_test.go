//go:build !onnx

package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hft/pkg/exception"
)

func TestNewRuntimeWithoutTag(t *testing.T) {
	factory, err := NewRuntime("")
	assert.Nil(t, factory)
	assert.ErrorIs(t, err, exception.ErrModel)
}
