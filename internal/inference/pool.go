package inference

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/obs"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// DefaultTimeout bounds one ensemble prediction.
const DefaultTimeout = 3 * time.Millisecond

// Backend runs one model of a loaded set. Outputs are the edge in bps and a
// confidence in [0, 1].
type Backend interface {
	Predict(ctx context.Context, kind Kind, features []float32) (edgeBps, confidence float64, err error)
}

// BackendFactory opens a runtime session over the files of a set.
type BackendFactory func(set ModelSet) (Backend, error)

type PoolConfig struct {
	Timeout time.Duration
	// Factory is nil when no inference runtime is linked in; every category
	// then answers from the rules.
	Factory BackendFactory
}

type loaded struct {
	set     ModelSet
	backend Backend
}

// Pool routes predictions to the loaded model set of a category and falls
// back to the rules when none is usable.
type Pool struct {
	timeout time.Duration
	factory BackendFactory
	metrics *obs.Metrics

	mu   sync.RWMutex
	sets map[schema.AssetCategory]loaded
}

func NewPool(cfg PoolConfig, metrics *obs.Metrics) *Pool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Pool{
		timeout: cfg.Timeout,
		factory: cfg.Factory,
		metrics: metrics,
		sets:    make(map[schema.AssetCategory]loaded),
	}
}

// Load installs set for its category. A set without ensemble models or a pool
// without a runtime leaves the category on the rules.
func (p *Pool) Load(set ModelSet) error {
	kinds := set.Ensemble()
	if len(kinds) == 0 {
		p.unload(set.Category)
		logs.Warnf("no ensemble models for %s in %s, using rule-based predictions", set.Category, set.Dir)
		return nil
	}
	if p.factory == nil {
		p.unload(set.Category)
		logs.Warnf("no inference runtime configured, %d models for %s ignored", len(kinds), set.Category)
		return nil
	}

	backend, err := p.factory(set)
	if err != nil {
		p.unload(set.Category)
		return errors.Wrap(exception.ErrModel, "open models").With("category", set.Category, "dir", set.Dir, "error", err)
	}

	p.mu.Lock()
	prev, ok := p.sets[set.Category]
	p.sets[set.Category] = loaded{set: set, backend: backend}
	p.mu.Unlock()
	if ok {
		closeBackend(prev.backend)
	}
	logs.Infof("models loaded for %s, version: %s, ensemble: %v", set.Category, set.Version, kinds)
	return nil
}

func (p *Pool) unload(category schema.AssetCategory) {
	p.mu.Lock()
	prev, ok := p.sets[category]
	delete(p.sets, category)
	p.mu.Unlock()
	if ok {
		closeBackend(prev.backend)
	}
}

// closeBackend releases runtime sessions of backends that hold any.
func closeBackend(b Backend) {
	c, ok := b.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logs.Warnf("close model backend, err: %+v", err)
	}
}

// HasModels reports whether predictions for category come from models.
func (p *Pool) HasModels(category schema.AssetCategory) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sets[category]
	return ok
}

// Version returns the model version serving category.
func (p *Pool) Version(category schema.AssetCategory) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if l, ok := p.sets[category]; ok {
		return "ensemble-" + l.set.Version
	}
	return RuleBasedVersion
}

type output struct {
	kind       Kind
	edge       float64
	confidence float64
	err        error
}

// Predict runs the ensemble of category under the pool timeout. Models that
// fail or time out are left out of the average; when none answers the rules do.
func (p *Pool) Predict(ctx context.Context, category schema.AssetCategory, symbol string, ts int64, vec []float32) schema.Prediction {
	start := time.Now()
	defer p.metrics.Since(obs.StageModel, start)

	p.mu.RLock()
	l, ok := p.sets[category]
	p.mu.RUnlock()
	if !ok {
		return rulePrediction(symbol, ts, vec)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	kinds := l.set.Ensemble()
	results := make(chan output, len(kinds))
	for _, kind := range kinds {
		go func(kind Kind) {
			edge, confidence, err := l.backend.Predict(ctx, kind, vec)
			results <- output{kind: kind, edge: edge, confidence: confidence, err: err}
		}(kind)
	}

	var outputs []output
	timedOut := false
collect:
	for range kinds {
		select {
		case out := <-results:
			if out.err != nil {
				if errors.Is(out.err, context.DeadlineExceeded) {
					timedOut = true
					continue
				}
				logs.Warnf("model %s failed for %s, err: %+v", out.kind, symbol, out.err)
				continue
			}
			outputs = append(outputs, out)
		case <-ctx.Done():
			timedOut = true
			break collect
		}
	}
	if timedOut {
		p.metrics.IncModelTimeout()
	}

	if len(outputs) == 0 {
		return rulePrediction(symbol, ts, vec)
	}

	edge, confidence := combine(outputs)
	return schema.Prediction{
		TimestampNs:  ts,
		Symbol:       symbol,
		EdgeBps:      edge,
		Confidence:   confidence,
		HorizonMs:    HorizonMs,
		ModelVersion: "ensemble-" + l.set.Version,
	}
}

// combine weights edges by confidence and averages confidences.
func combine(outputs []output) (edge, confidence float64) {
	total := 0.0
	for _, out := range outputs {
		total += out.confidence
	}
	confidence = total / float64(len(outputs))
	if total == 0 {
		for _, out := range outputs {
			edge += out.edge
		}
		return edge / float64(len(outputs)), 0
	}
	for _, out := range outputs {
		edge += out.edge * out.confidence / total
	}
	return edge, confidence
}
