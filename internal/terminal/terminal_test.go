package terminal

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/schema"
	"hft/internal/stream"
	"hft/pkg/exception"
)

func newEngineServer(t *testing.T) (*stream.Server, string) {
	t.Helper()
	s := stream.NewServer()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestParseTopic(t *testing.T) {
	topic, err := ParseTopic("RISK")
	require.NoError(t, err)
	assert.Equal(t, TopicRisk, topic)

	_, err = ParseTopic("orders")
	assert.ErrorIs(t, err, exception.ErrInvalidData)
}

func TestAlertRing(t *testing.T) {
	c := NewClient("")
	for i := 0; i < MaxAlerts+5; i++ {
		_, err := c.apply(TopicAlerts, []byte(fmt.Sprintf(`{"level":"Info","message":"m%d"}`, i)))
		require.NoError(t, err)
	}

	alerts := c.Alerts()
	require.Len(t, alerts, MaxAlerts)
	assert.Equal(t, "m5", alerts[0].Message)
	assert.Equal(t, fmt.Sprintf("m%d", MaxAlerts+4), alerts[MaxAlerts-1].Message)
	assert.Equal(t, schema.AlertLevelInfo, alerts[0].Level)
}

func TestApplyRejectsGarbage(t *testing.T) {
	c := NewClient("")
	_, err := c.apply(TopicMetrics, []byte(`not json`))
	assert.ErrorIs(t, err, exception.ErrSerialization)
	_, ok := c.Metrics()
	assert.False(t, ok)
}

func TestWatchRisk(t *testing.T) {
	s, url := newEngineServer(t)
	s.PublishRisk(schema.RiskSnapshot{NumPositions: 2, TotalPnL: 12.5})

	c := NewClient(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []any
	err := c.Watch(ctx, TopicRisk, func(v any) {
		got = append(got, v)
		cancel()
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	risk, ok := c.Risk()
	require.True(t, ok)
	assert.Equal(t, 2, risk.NumPositions)
	assert.Equal(t, 12.5, risk.TotalPnL)
}

func TestWatchDialError(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1")
	err := c.Watch(context.Background(), TopicMetrics, nil)
	assert.ErrorIs(t, err, exception.ErrWebSocket)
}

func TestHealthCommand(t *testing.T) {
	_, url := newEngineServer(t)

	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"health", "--url", url})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "healthy at "))
}

func TestWatchCommandRejectsTopic(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"watch", "orders"})
	assert.ErrorIs(t, root.Execute(), exception.ErrInvalidData)
}

func TestFormat(t *testing.T) {
	testCases := []struct {
		desc string
		v    any
		want string
	}{
		{
			desc: "alert",
			v: schema.Alert{
				Level:    schema.AlertLevelCritical,
				Source:   "risk",
				Message:  "Kill switch activated",
				Metadata: map[string]string{"symbol": "BTC", "burst": "10"},
			},
			want: "--:--:-- [Critical] risk: Kill switch activated burst=10 symbol=BTC",
		},
		{
			desc: "risk",
			v:    schema.RiskSnapshot{NumPositions: 1, KillSwitchActive: true},
			want: "--:--:-- | positions 1 | gross 0.00 net 0.00 | pnl total 0.00 daily 0.00 (realized 0.00 unrealized 0.00) | var95 0.00 | lev 0.00 | kill switch ACTIVE",
		},
		{
			desc: "metrics",
			v:    schema.PerformanceMetrics{IngestP50Us: 10, IngestP99Us: 40, SnapshotsPerSec: 100, OrderRejects: 2},
			want: "ingest p50/p99 10/40us | feature 0/0us | model 0/0us | route 0/0us | 100.0 snap/s 0.00 ord/s | dropped 0 timeouts 0 rejects 2",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.v))
		})
	}
}
