package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/schema"
	"hft/pkg/exception"
)

// Kind names one model file of a set.
type Kind string

const (
	KindIDEC        Kind = "idec"
	KindTransformer Kind = "transformer"
	KindGBDT        Kind = "gbdt"
	KindEdge        Kind = "edge"
)

// Kinds lists every model file a set may hold, in hashing order.
var Kinds = []Kind{KindIDEC, KindTransformer, KindGBDT, KindEdge}

// Ensemble lists the models averaged by Pool.Predict.
var Ensemble = []Kind{KindIDEC, KindTransformer, KindGBDT}

const versionLen = 12

// ModelSet is the set of model files found for one asset category.
type ModelSet struct {
	Category schema.AssetCategory
	Dir      string
	Paths    map[Kind]string
	Version  string
}

// Has reports whether the model file of kind was found.
func (s ModelSet) Has(kind Kind) bool {
	_, ok := s.Paths[kind]
	return ok
}

// Ensemble returns the ensemble models present in the set.
func (s ModelSet) Ensemble() []Kind {
	kinds := make([]Kind, 0, len(Ensemble))
	for _, kind := range Ensemble {
		if s.Has(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Discover looks for <kind>.onnx files in dir. Missing files are logged and
// skipped; only unreadable files are errors.
func Discover(category schema.AssetCategory, dir string) (ModelSet, error) {
	set := ModelSet{
		Category: category,
		Dir:      dir,
		Paths:    make(map[Kind]string, len(Kinds)),
	}

	h := sha256.New()
	for _, kind := range Kinds {
		path := filepath.Join(dir, string(kind)+".onnx")
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			logs.Warnf("model %s not found for %s, rule-based fallback applies: %s", kind, category, path)
			continue
		}
		if err := hashFile(h, path); err != nil {
			return ModelSet{}, errors.Wrap(exception.ErrModel, "read model").With("path", path, "error", err)
		}
		set.Paths[kind] = path
	}

	if len(set.Paths) != 0 {
		set.Version = hex.EncodeToString(h.Sum(nil))[:versionLen]
	}
	return set, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
