//go:build !onnx

package inference

import (
	"github.com/yanun0323/errors"

	"hft/pkg/exception"
)

// NewRuntime fails in binaries built without the onnx tag; the pool then
// answers every category from the rules.
func NewRuntime(string) (BackendFactory, error) {
	return nil, errors.Wrap(exception.ErrModel, "binary built without onnx runtime, rebuild with -tags onnx")
}
