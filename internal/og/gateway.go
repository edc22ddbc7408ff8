package og

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

var ErrGatewayDisconnected = errors.New("order gateway disconnected")

type GatewayConfig struct {
	Session           string
	ResendOnReconnect bool
}

// Gateway sends orders through a venue router and tracks them in a state
// machine. Intents without an ack are kept for resend after a reconnect.
type Gateway struct {
	cfg    GatewayConfig
	router adapter.OrderRouter
	newID  func() string

	mu        sync.Mutex
	state     *StateMachine
	pending   map[string]schema.OrderRequest
	connected bool
}

func NewGateway(cfg GatewayConfig, router adapter.OrderRouter) *Gateway {
	if cfg.Session == "" {
		cfg.Session = "default"
	}
	return &Gateway{
		cfg:       cfg,
		router:    router,
		newID:     uuid.NewString,
		state:     NewStateMachine(),
		pending:   make(map[string]schema.OrderRequest),
		connected: true,
	}
}

func (g *Gateway) Session() string {
	return g.cfg.Session
}

// Send assigns a client ID when missing, registers the intent and routes it.
// Retryable venue errors keep the intent pending; other errors reject it.
func (g *Gateway) Send(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	if req.ClientID == "" {
		req.ClientID = g.newID()
	}

	g.mu.Lock()
	if _, err := g.state.ApplyIntent(req); err != nil {
		g.mu.Unlock()
		return schema.OrderAck{}, err
	}
	g.pending[req.ClientID] = req
	connected := g.connected
	g.mu.Unlock()

	pending := schema.OrderAck{ClientID: req.ClientID, Status: schema.OrderStatusPending}
	if !connected {
		return pending, ErrGatewayDisconnected
	}
	return g.route(ctx, req)
}

func (g *Gateway) route(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	ack, err := g.router.SendOrder(ctx, req)
	if err != nil && exception.IsRetryable(err) {
		logs.Warnf("order gateway %s keep pending intent %s, err: %+v", g.cfg.Session, req.ClientID, err)
		return schema.OrderAck{ClientID: req.ClientID, Status: schema.OrderStatusPending}, err
	}
	if err != nil && ack.Status != schema.OrderStatusRejected {
		ack = schema.OrderAck{ClientID: req.ClientID, Status: schema.OrderStatusRejected, TimestampNs: ack.TimestampNs}
	}
	if ack.ClientID == "" {
		ack.ClientID = req.ClientID
	}
	if ackErr := g.OnAck(ack); ackErr != nil {
		logs.Warnf("order gateway %s apply ack %s, err: %+v", g.cfg.Session, req.ClientID, ackErr)
	}
	return ack, err
}

// OnAck updates order state from an acknowledgment.
func (g *Gateway) OnAck(ack schema.OrderAck) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, err := g.state.ApplyAck(ack)
	if err != nil {
		return err
	}
	if order.State != OrderStateSent {
		delete(g.pending, order.ClientID)
	}
	return nil
}

// OnFill updates order state from a fill and returns the updated order.
func (g *Gateway) OnFill(fill schema.Fill) (Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, err := g.state.ApplyFill(fill)
	if err != nil {
		return order, err
	}
	delete(g.pending, order.ClientID)
	return order, nil
}

// Cancel cancels an open order by client ID.
func (g *Gateway) Cancel(ctx context.Context, clientID string) error {
	g.mu.Lock()
	order, ok := g.state.Order(clientID)
	g.mu.Unlock()
	if !ok {
		return ErrUnknownOrder
	}
	if order.State.Terminal() {
		return ErrInvalidTransition
	}

	id := order.VenueOrderID
	if id == "" {
		id = order.ClientID
	}
	if err := g.router.CancelOrder(ctx, order.Symbol, id); err != nil {
		return err
	}
	return g.OnAck(schema.OrderAck{ClientID: clientID, VenueOrderID: order.VenueOrderID, Status: schema.OrderStatusCancelled})
}

// CancelAll cancels every open order of symbol at the venue and locally.
func (g *Gateway) CancelAll(ctx context.Context, symbol string) error {
	if err := g.router.CancelAll(ctx, symbol); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, o := range g.state.Open() {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		_, _ = g.state.ApplyAck(schema.OrderAck{ClientID: o.ClientID, Status: schema.OrderStatusCancelled})
		delete(g.pending, o.ClientID)
	}
	return nil
}

func (g *Gateway) Order(clientID string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Order(clientID)
}

// Open returns the non-terminal orders sorted by client ID.
func (g *Gateway) Open() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.state.Open()
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Pending returns the number of intents without an ack.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Disconnect marks the gateway as disconnected; new intents queue until Reconnect.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
}

func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Reconnect marks the gateway as connected and resends pending intents in
// client ID order. Venues deduplicate by client ID.
func (g *Gateway) Reconnect(ctx context.Context) ([]schema.OrderAck, error) {
	g.mu.Lock()
	g.connected = true
	var resend []schema.OrderRequest
	if g.cfg.ResendOnReconnect {
		for _, req := range g.pending {
			resend = append(resend, req)
		}
	}
	g.mu.Unlock()

	sort.Slice(resend, func(i, j int) bool { return resend[i].ClientID < resend[j].ClientID })
	acks := make([]schema.OrderAck, 0, len(resend))
	var errs []error
	for _, req := range resend {
		ack, err := g.route(ctx, req)
		if err != nil {
			errs = append(errs, err)
		}
		acks = append(acks, ack)
	}
	if len(resend) > 0 {
		logs.Infof("order gateway %s resent %d pending intents", g.cfg.Session, len(resend))
	}
	return acks, errors.Join(errs...)
}
