// Package alert fans operator alerts out to the stream hub and, for critical
// alerts, to push notifiers.
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/bus"
	"hft/internal/schema"
)

const (
	DefaultQueueSize = 256
	notifyTimeout    = 10 * time.Second
)

// Broadcaster pushes an alert to live subscribers, e.g. the /alerts websocket.
type Broadcaster interface {
	PublishAlert(schema.Alert)
}

// Notifier delivers an alert out of band.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert schema.Alert) error
}

type Publisher struct {
	hub       Broadcaster
	notifiers []Notifier
	queue     *bus.Queue[schema.Alert]
	now       func() time.Time
}

// NewPublisher builds a publisher; hub may be nil.
func NewPublisher(hub Broadcaster, notifiers ...Notifier) *Publisher {
	p := &Publisher{
		hub: hub,
		queue: bus.NewQueue[schema.Alert](DefaultQueueSize, func() {
			logs.Warn("alert notify queue full, alert dropped")
		}),
		now: time.Now,
	}
	for _, n := range notifiers {
		if n != nil {
			p.notifiers = append(p.notifiers, n)
		}
	}
	return p
}

// Publish never blocks: notifier delivery happens on the Run worker.
func (p *Publisher) Publish(a schema.Alert) {
	if a.TimestampNs == 0 {
		a.TimestampNs = p.now().UnixNano()
	}

	l := logs.With("source", a.Source, "level", a.Level.String())
	switch a.Level {
	case schema.AlertLevelCritical:
		l.Error(a.Message)
	case schema.AlertLevelWarning:
		l.Warn(a.Message)
	default:
		l.Info(a.Message)
	}

	if p.hub != nil {
		p.hub.PublishAlert(a)
	}
	if a.Level != schema.AlertLevelCritical || len(p.notifiers) == 0 {
		return
	}
	if err := p.queue.TryPublish(a); err != nil {
		logs.Warnf("queue alert %q, err: %+v", a.Message, err)
	}
}

// Run delivers queued critical alerts until ctx is done or Close is called.
func (p *Publisher) Run(ctx context.Context) {
	p.queue.Run(ctx, p.deliver)
}

func (p *Publisher) Close() {
	p.queue.Close()
}

func (p *Publisher) deliver(a schema.Alert) {
	for _, n := range p.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := n.Notify(ctx, a); err != nil {
			logs.Warnf("notify %s, err: %+v", n.Name(), err)
		}
		cancel()
	}
}

func title(a schema.Alert) string {
	return fmt.Sprintf("[%s] %s", a.Level, a.Source)
}

// body renders the message followed by metadata in key order.
func body(a schema.Alert) string {
	if len(a.Metadata) == 0 {
		return a.Message
	}
	keys := make([]string, 0, len(a.Metadata))
	for k := range a.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(a.Message)
	for _, k := range keys {
		sb.WriteString("\n")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(a.Metadata[k])
	}
	return sb.String()
}
