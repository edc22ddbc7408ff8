package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"hft/internal/features"
	"hft/internal/obs"
	"hft/internal/schema"
	"hft/pkg/exception"
)

type result struct {
	edge, confidence float64
	err              error
	block            bool
}

type fakeBackend map[Kind]result

func (f fakeBackend) Predict(ctx context.Context, kind Kind, _ []float32) (float64, float64, error) {
	r, ok := f[kind]
	if !ok {
		return 0, 0, errors.New("unexpected model " + string(kind))
	}
	if r.block {
		<-ctx.Done()
		return 0, 0, ctx.Err()
	}
	return r.edge, r.confidence, r.err
}

func writeModels(t *testing.T, dir string, kinds ...Kind) {
	t.Helper()
	for _, kind := range kinds {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(kind)+".onnx"), []byte("model-"+kind), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeModels(t, dir, KindIDEC, KindTransformer, KindGBDT)

	set, err := Discover(schema.AssetCategoryCryptoFutures, dir)
	require.NoError(t, err)
	assert.True(t, set.Has(KindIDEC))
	assert.False(t, set.Has(KindEdge))
	assert.Equal(t, Ensemble, set.Ensemble())
	assert.Len(t, set.Version, 12)

	again, err := Discover(schema.AssetCategoryCryptoFutures, dir)
	require.NoError(t, err)
	assert.Equal(t, set.Version, again.Version)

	writeModels(t, dir, KindEdge)
	withEdge, err := Discover(schema.AssetCategoryCryptoFutures, dir)
	require.NoError(t, err)
	assert.NotEqual(t, set.Version, withEdge.Version)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	set, err := Discover(schema.AssetCategoryEquity, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, set.Paths)
	assert.Empty(t, set.Version)
	assert.Empty(t, set.Ensemble())
}

func loadedPool(t *testing.T, backend Backend, timeout time.Duration, metrics *obs.Metrics) *Pool {
	t.Helper()
	dir := t.TempDir()
	writeModels(t, dir, Ensemble...)
	set, err := Discover(schema.AssetCategoryCryptoFutures, dir)
	require.NoError(t, err)

	pool := NewPool(PoolConfig{
		Timeout: timeout,
		Factory: func(ModelSet) (Backend, error) { return backend, nil },
	}, metrics)
	require.NoError(t, pool.Load(set))
	require.True(t, pool.HasModels(schema.AssetCategoryCryptoFutures))
	return pool
}

func TestPoolEnsemble(t *testing.T) {
	pool := loadedPool(t, fakeBackend{
		KindIDEC:        {edge: 10, confidence: 0.8},
		KindTransformer: {edge: 4, confidence: 0.4},
		KindGBDT:        {err: errors.New("bad input")},
	}, time.Second, nil)

	pred := pool.Predict(context.Background(), schema.AssetCategoryCryptoFutures, "BTC", 42, make([]float32, features.Dim))
	assert.Equal(t, "BTC", pred.Symbol)
	assert.Equal(t, int64(42), pred.TimestampNs)
	assert.InDelta(t, 8, pred.EdgeBps, 1e-9)
	assert.InDelta(t, 0.6, pred.Confidence, 1e-9)
	assert.Equal(t, HorizonMs, pred.HorizonMs)
	assert.Equal(t, pool.Version(schema.AssetCategoryCryptoFutures), pred.ModelVersion)
	assert.Contains(t, pred.ModelVersion, "ensemble-")
}

func TestPoolTimeout(t *testing.T) {
	metrics := obs.NewMetrics()
	pool := loadedPool(t, fakeBackend{
		KindIDEC:        {block: true},
		KindTransformer: {edge: 6, confidence: 0.5},
		KindGBDT:        {edge: 2, confidence: 0.5},
	}, 20*time.Millisecond, metrics)

	pred := pool.Predict(context.Background(), schema.AssetCategoryCryptoFutures, "BTC", 1, nil)
	assert.InDelta(t, 4, pred.EdgeBps, 1e-9)
	assert.Equal(t, uint64(1), metrics.Tick(time.Now()).ModelTimeouts)
}

func TestPoolFallsBackToRules(t *testing.T) {
	vec := make([]float32, features.Dim)
	vec[features.SlotOFI] = 0.5
	vec[features.SlotDepthImbalance] = 0.5
	vec[features.SlotVWAPRatio] = 1

	testCases := []struct {
		desc string
		pool func(t *testing.T) *Pool
	}{
		{"nothing loaded", func(*testing.T) *Pool { return NewPool(PoolConfig{}, nil) }},
		{"all models fail", func(t *testing.T) *Pool {
			return loadedPool(t, fakeBackend{
				KindIDEC:        {err: errors.New("x")},
				KindTransformer: {err: errors.New("y")},
				KindGBDT:        {err: errors.New("z")},
			}, time.Second, nil)
		}},
		{"no runtime", func(t *testing.T) *Pool {
			dir := t.TempDir()
			writeModels(t, dir, Ensemble...)
			set, err := Discover(schema.AssetCategoryCryptoFutures, dir)
			require.NoError(t, err)
			pool := NewPool(PoolConfig{}, nil)
			require.NoError(t, pool.Load(set))
			assert.False(t, pool.HasModels(schema.AssetCategoryCryptoFutures))
			return pool
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			pred := tc.pool(t).Predict(context.Background(), schema.AssetCategoryCryptoFutures, "ETH", 9, vec)
			assert.Equal(t, RuleBasedVersion, pred.ModelVersion)
			assert.Equal(t, HorizonMs, pred.HorizonMs)
			assert.InDelta(t, 8, pred.EdgeBps, 1e-6)
			assert.Greater(t, pred.Confidence, 0.5)
		})
	}
}

func TestPoolLoadFactoryError(t *testing.T) {
	dir := t.TempDir()
	writeModels(t, dir, KindGBDT)
	set, err := Discover(schema.AssetCategoryEquity, dir)
	require.NoError(t, err)

	pool := NewPool(PoolConfig{Factory: func(ModelSet) (Backend, error) {
		return nil, errors.New("corrupt")
	}}, nil)
	err = pool.Load(set)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrModel))
	assert.False(t, pool.HasModels(schema.AssetCategoryEquity))
	assert.Equal(t, RuleBasedVersion, pool.Version(schema.AssetCategoryEquity))
}

func TestRuleBased(t *testing.T) {
	vec := func(ofi, imbalance, vwapRatio float32) []float32 {
		v := make([]float32, features.Dim)
		v[features.SlotOFI] = ofi
		v[features.SlotDepthImbalance] = imbalance
		v[features.SlotVWAPRatio] = vwapRatio
		return v
	}

	testCases := []struct {
		desc       string
		vec        []float32
		edge       float64
		confidence float64
	}{
		{"flat", vec(0, 0, 1), 0, 0},
		{"agreeing long", vec(1, 1, 1), 16, 0.95},
		{"agreeing short", vec(-1, -1, 1), -16, 0.95},
		{"disagreeing", vec(1, -1, 1), 4, 0.25},
		{"empty", nil, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			edge, confidence := RuleBased(tc.vec)
			assert.InDelta(t, tc.edge, edge, 1e-6)
			assert.InDelta(t, tc.confidence, confidence, 1e-6)
		})
	}
}

type closingBackend struct {
	fakeBackend
	closed *int
}

func (c closingBackend) Close() error {
	*c.closed++
	return nil
}

func TestPoolClosesReplacedBackend(t *testing.T) {
	closed := 0
	backend := closingBackend{fakeBackend: fakeBackend{}, closed: &closed}
	pool := loadedPool(t, backend, time.Second, nil)

	dir := t.TempDir()
	writeModels(t, dir, Ensemble...)
	set, err := Discover(schema.AssetCategoryCryptoFutures, dir)
	require.NoError(t, err)
	require.NoError(t, pool.Load(set))
	assert.Equal(t, 1, closed)

	require.NoError(t, pool.Load(ModelSet{Category: schema.AssetCategoryCryptoFutures}))
	assert.Equal(t, 2, closed)
	assert.False(t, pool.HasModels(schema.AssetCategoryCryptoFutures))
}
