//go:build onnx

package inference

import (
	"context"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/pkg/exception"
)

// outputWidth is the [1, 2] model output: edge in bps, then confidence.
const outputWidth = 2

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// NewRuntime initializes onnxruntime from the shared library at lib (empty
// uses the platform default) and returns a factory opening one session per
// ensemble model.
func NewRuntime(lib string) (BackendFactory, error) {
	runtimeOnce.Do(func() {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	if runtimeErr != nil {
		return nil, errors.Wrap(exception.ErrModel, "init onnxruntime").With("lib", lib, "error", runtimeErr)
	}
	return openSessions, nil
}

type onnxBackend struct {
	sessions map[Kind]*ort.DynamicAdvancedSession
}

func openSessions(set ModelSet) (Backend, error) {
	b := &onnxBackend{sessions: make(map[Kind]*ort.DynamicAdvancedSession)}
	for _, kind := range set.Ensemble() {
		path := set.Paths[kind]
		inputs, outputs, err := ort.GetInputOutputInfo(path)
		if err != nil {
			_ = b.Close()
			return nil, errors.Wrap(exception.ErrModel, "inspect model").With("path", path, "error", err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			_ = b.Close()
			return nil, errors.Wrap(exception.ErrModel, "model has no input or output").With("path", path)
		}
		session, err := ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, []string{outputs[0].Name}, nil)
		if err != nil {
			_ = b.Close()
			return nil, errors.Wrap(exception.ErrModel, "open session").With("path", path, "error", err)
		}
		b.sessions[kind] = session
	}
	return b, nil
}

// Predict runs kind on a [1, len(features)] input. Sessions are safe for
// concurrent runs.
func (b *onnxBackend) Predict(ctx context.Context, kind Kind, features []float32) (float64, float64, error) {
	session, ok := b.sessions[kind]
	if !ok {
		return 0, 0, errors.Wrap(exception.ErrModel, "model not loaded").With("kind", kind)
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(features))), features)
	if err != nil {
		return 0, 0, errors.Wrap(exception.ErrModel, "input tensor").With("kind", kind, "error", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, outputWidth))
	if err != nil {
		return 0, 0, errors.Wrap(exception.ErrModel, "output tensor").With("kind", kind, "error", err)
	}
	defer output.Destroy()

	if err := session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return 0, 0, errors.Wrap(exception.ErrModel, "run model").With("kind", kind, "error", err)
	}
	data := output.GetData()
	return float64(data[0]), float64(data[1]), nil
}

func (b *onnxBackend) Close() error {
	for kind, session := range b.sessions {
		if err := session.Destroy(); err != nil {
			logs.Warnf("destroy %s session, err: %+v", kind, err)
		}
	}
	b.sessions = nil
	return nil
}
