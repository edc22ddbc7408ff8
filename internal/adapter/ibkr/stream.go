package ibkr

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/pkg/exception"
)

const (
	streamWriteWait = 10 * time.Second
	heartbeat       = "tic"
)

var streamFields = `{"fields":["` + strings.Join(strings.Split(snapshotField, ","), `","`) + `"]}`

// streamURL derives the gateway websocket endpoint from the REST root.
func (a *Adapter) streamURL() string {
	u := a.cfg.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func subscribeTopic(id conID) string {
	return "smd+" + id.String() + "+" + streamFields
}

// stream keeps a market data websocket open until ctx is done.
func (a *Adapter) stream(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := a.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 1
		}
		logs.Warnf("ibkr stream closed, attempt: %d, err: %+v", attempt, err)
		if !a.backoff.Sleep(ctx, attempt) {
			return
		}
	}
}

func (a *Adapter) streamOnce(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: requestTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: a.cfg.Insecure}, // nolint:gosec
	}
	header := http.Header{}
	if a.cfg.Credentials.Valid() {
		header.Set("Authorization", "Bearer "+a.cfg.Credentials.Key)
	}

	conn, _, err := dialer.DialContext(ctx, a.streamURL(), header)
	if err != nil {
		return errors.Wrap(exception.ErrWebSocket, "dial ibkr stream").With("error", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	writeErr := make(chan error, 1)
	go func() {
		err := a.streamWriter(ctx, conn, done)
		if err != nil {
			_ = conn.Close()
		}
		writeErr <- err
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case werr := <-writeErr:
				if werr != nil {
					return werr
				}
			default:
			}
			return errors.Wrap(exception.ErrWebSocket, "read ibkr stream").With("error", err)
		}

		var row map[string]any
		if err := sonic.Unmarshal(data, &row); err != nil {
			logs.Warnf("ibkr stream decode, err: %+v", err)
			continue
		}
		topic, _ := row["topic"].(string)
		if !strings.HasPrefix(topic, "smd+") {
			continue
		}
		if snap, ok := a.quote(row); ok {
			a.emit(snap)
		}
	}
}

// streamWriter subscribes new watch list entries and sends heartbeats.
func (a *Adapter) streamWriter(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) error {
	subscribed := make(map[conID]bool)
	write := func(msg string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return errors.Wrap(exception.ErrWebSocket, "write ibkr stream").With("error", err)
		}
		return nil
	}
	subscribe := func() error {
		for _, id := range a.watchList() {
			if subscribed[id] {
				continue
			}
			if err := write(subscribeTopic(id)); err != nil {
				return err
			}
			subscribed[id] = true
		}
		return nil
	}

	if err := subscribe(); err != nil {
		return err
	}
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-ticker.C:
			if err := subscribe(); err != nil {
				return err
			}
			if err := write(heartbeat); err != nil {
				return err
			}
		}
	}
}
