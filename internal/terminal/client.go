// Package terminal is a text client for the engine's stream server.
package terminal

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/request"

	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	DefaultURL = "ws://localhost:8081"
	MaxAlerts  = 100
)

type Topic string

const (
	TopicMetrics Topic = "metrics"
	TopicRisk    Topic = "risk"
	TopicAlerts  Topic = "alerts"
)

func ParseTopic(s string) (Topic, error) {
	switch t := Topic(strings.ToLower(s)); t {
	case TopicMetrics, TopicRisk, TopicAlerts:
		return t, nil
	}
	return "", errors.Wrap(exception.ErrInvalidData, "unknown topic").With("topic", s)
}

type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Client keeps the latest metrics and risk snapshot and the last MaxAlerts alerts.
type Client struct {
	base   string
	dialer *websocket.Dialer
	http   *http.Client

	mu      sync.RWMutex
	metrics *schema.PerformanceMetrics
	risk    *schema.RiskSnapshot
	alerts  []schema.Alert
	next    int
}

func NewClient(base string) *Client {
	if base == "" {
		base = DefaultURL
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		dialer: websocket.DefaultDialer,
		http:   http.DefaultClient,
		alerts: make([]schema.Alert, 0, MaxAlerts),
	}
}

// Watch streams topic until ctx is done or the connection drops, calling
// onUpdate with every decoded message.
func (c *Client) Watch(ctx context.Context, topic Topic, onUpdate func(any)) error {
	url := c.base + "/" + string(topic)
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(exception.ErrWebSocket, "dial").With("url", url, "error", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(exception.ErrWebSocket, "read").With("url", url, "error", err)
		}
		v, err := c.apply(topic, data)
		if err != nil {
			return err
		}
		if onUpdate != nil {
			onUpdate(v)
		}
	}
}

func (c *Client) apply(topic Topic, data []byte) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch topic {
	case TopicMetrics:
		var m schema.PerformanceMetrics
		if err := sonic.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(exception.ErrSerialization, "decode metrics").With("error", err)
		}
		c.metrics = &m
		return m, nil
	case TopicRisk:
		var r schema.RiskSnapshot
		if err := sonic.Unmarshal(data, &r); err != nil {
			return nil, errors.Wrap(exception.ErrSerialization, "decode risk").With("error", err)
		}
		c.risk = &r
		return r, nil
	case TopicAlerts:
		var a schema.Alert
		if err := sonic.Unmarshal(data, &a); err != nil {
			return nil, errors.Wrap(exception.ErrSerialization, "decode alert").With("error", err)
		}
		c.pushAlert(a)
		return a, nil
	}
	return nil, errors.Wrap(exception.ErrInvalidData, "unknown topic").With("topic", topic)
}

func (c *Client) pushAlert(a schema.Alert) {
	if len(c.alerts) < MaxAlerts {
		c.alerts = append(c.alerts, a)
		return
	}
	c.alerts[c.next] = a
	c.next = (c.next + 1) % MaxAlerts
}

func (c *Client) Metrics() (schema.PerformanceMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.metrics == nil {
		return schema.PerformanceMetrics{}, false
	}
	return *c.metrics, true
}

func (c *Client) Risk() (schema.RiskSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.risk == nil {
		return schema.RiskSnapshot{}, false
	}
	return *c.risk, true
}

// Alerts returns the retained alerts, oldest first.
func (c *Client) Alerts() []schema.Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]schema.Alert, 0, len(c.alerts))
	out = append(out, c.alerts[c.next:]...)
	return append(out, c.alerts[:c.next]...)
}

// Health queries GET /health on the stream server.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	url := httpURL(c.base) + "/health"
	resp, err := request.New(http.MethodGet, url).WithContext(ctx).Send(c.http.Do)
	if err != nil {
		return HealthStatus{}, errors.Wrap(exception.ErrHTTP, "get health").With("url", url, "error", err)
	}

	var status HealthStatus
	if err := resp.WithCheckStatus().Decode(&status); err != nil {
		return HealthStatus{}, errors.Wrap(exception.ErrHTTP, "decode health").With("url", url, "error", err)
	}
	return status, nil
}

func httpURL(base string) string {
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}
