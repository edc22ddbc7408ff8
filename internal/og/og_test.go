package og

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yerrors "github.com/yanun0323/errors"

	"hft/internal/schema"
	"hft/pkg/exception"
)

type fakeRouter struct {
	mu        sync.Mutex
	sent      []schema.OrderRequest
	cancelled []string
	err       error
	status    schema.OrderStatus
}

func (r *fakeRouter) SendOrder(_ context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	if r.err != nil {
		return schema.OrderAck{}, r.err
	}
	status := r.status
	if status == schema.OrderStatusUnknown {
		status = schema.OrderStatusAccepted
	}
	return schema.OrderAck{
		VenueOrderID: "v-" + strconv.Itoa(len(r.sent)),
		ClientID:     req.ClientID,
		Status:       status,
		TimestampNs:  int64(len(r.sent)),
	}, nil
}

func (r *fakeRouter) CancelOrder(_ context.Context, _ string, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, orderID)
	return nil
}

func (r *fakeRouter) CancelAll(context.Context, string) error {
	return nil
}

func (r *fakeRouter) GetOrder(context.Context, string, string) (schema.OrderAck, error) {
	return schema.OrderAck{}, nil
}

func intent(id string, qty float64) schema.OrderRequest {
	return schema.OrderRequest{ClientID: id, Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeMarket, Quantity: qty}
}

func TestStateMachine(t *testing.T) {
	m := NewStateMachine()

	_, err := m.ApplyIntent(intent("", 1))
	assert.ErrorIs(t, err, ErrUnknownOrder)

	o, err := m.ApplyIntent(intent("a", 3))
	require.NoError(t, err)
	assert.Equal(t, OrderStateSent, o.State)
	_, err = m.ApplyIntent(intent("a", 3))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	o, err = m.ApplyAck(schema.OrderAck{ClientID: "a", VenueOrderID: "v-1", Status: schema.OrderStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, OrderStateAcked, o.State)

	o, err = m.ApplyFill(schema.Fill{VenueOrderID: "v-1", Price: 100, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OrderStatePartFilled, o.State)
	assert.Equal(t, 2.0, o.LeavesQty)

	_, err = m.ApplyFill(schema.Fill{ClientID: "a", Price: 100, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidFill)

	o, err = m.ApplyFill(schema.Fill{ClientID: "a", Price: 103, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, o.State)
	assert.Equal(t, 3.0, o.FilledQty)
	assert.Zero(t, o.LeavesQty)
	assert.InDelta(t, 102.0, o.AvgPrice, 1e-9)

	_, err = m.ApplyFill(schema.Fill{ClientID: "a", Price: 100, Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.ApplyAck(schema.OrderAck{ClientID: "a", Status: schema.OrderStatusFilled})
	assert.NoError(t, err)
	_, err = m.ApplyAck(schema.OrderAck{ClientID: "a", Status: schema.OrderStatusCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.ApplyAck(schema.OrderAck{ClientID: "missing", Status: schema.OrderStatusAccepted})
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Empty(t, m.Open())
}

func TestStateMachineOutOfOrder(t *testing.T) {
	testCases := []struct {
		desc   string
		events func(m *StateMachine) error
		state  OrderState
		leaves float64
	}{
		{
			desc: "fill before ack",
			events: func(m *StateMachine) error {
				if _, err := m.ApplyFill(schema.Fill{ClientID: "a", Price: 1, Quantity: 2}); err != nil {
					return err
				}
				_, err := m.ApplyAck(schema.OrderAck{ClientID: "a", VenueOrderID: "v", Status: schema.OrderStatusFilled})
				return err
			},
			state: OrderStateFilled,
		},
		{
			desc: "filled ack before fill",
			events: func(m *StateMachine) error {
				if _, err := m.ApplyAck(schema.OrderAck{ClientID: "a", VenueOrderID: "v", Status: schema.OrderStatusFilled}); err != nil {
					return err
				}
				_, err := m.ApplyFill(schema.Fill{VenueOrderID: "v", Price: 1, Quantity: 2})
				return err
			},
			state: OrderStateFilled,
		},
		{
			desc: "partial fill then accepted ack",
			events: func(m *StateMachine) error {
				if _, err := m.ApplyFill(schema.Fill{ClientID: "a", Price: 1, Quantity: 1}); err != nil {
					return err
				}
				_, err := m.ApplyAck(schema.OrderAck{ClientID: "a", Status: schema.OrderStatusAccepted})
				return err
			},
			state:  OrderStatePartFilled,
			leaves: 1,
		},
		{
			desc: "late fill after cancel",
			events: func(m *StateMachine) error {
				if _, err := m.ApplyAck(schema.OrderAck{ClientID: "a", Status: schema.OrderStatusCancelled}); err != nil {
					return err
				}
				_, err := m.ApplyFill(schema.Fill{ClientID: "a", Price: 1, Quantity: 1})
				return err
			},
			state:  OrderStateCanceled,
			leaves: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			m := NewStateMachine()
			_, err := m.ApplyIntent(intent("a", 2))
			require.NoError(t, err)
			require.NoError(t, tc.events(m))

			o, ok := m.Order("a")
			require.True(t, ok)
			assert.Equal(t, tc.state, o.State)
			assert.Equal(t, tc.leaves, o.LeavesQty)
		})
	}
}

func TestGatewaySend(t *testing.T) {
	ctx := context.Background()
	router := &fakeRouter{}
	g := NewGateway(GatewayConfig{}, router)
	assert.Equal(t, "default", g.Session())

	ack, err := g.Send(ctx, intent("", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, ack.ClientID)
	assert.Len(t, ack.ClientID, 36)
	assert.Equal(t, schema.OrderStatusAccepted, ack.Status)
	assert.Equal(t, ack.ClientID, router.sent[0].ClientID)
	assert.Zero(t, g.Pending())

	order, ok := g.Order(ack.ClientID)
	require.True(t, ok)
	assert.Equal(t, OrderStateAcked, order.State)
	assert.Equal(t, "v-1", order.VenueOrderID)

	order, err = g.OnFill(schema.Fill{VenueOrderID: "v-1", Price: 10, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, order.State)
	assert.Empty(t, g.Open())
}

func TestGatewayCancel(t *testing.T) {
	ctx := context.Background()
	router := &fakeRouter{}
	g := NewGateway(GatewayConfig{}, router)

	_, err := g.Send(ctx, intent("a", 1))
	require.NoError(t, err)
	_, err = g.Send(ctx, intent("b", 1))
	require.NoError(t, err)
	require.Len(t, g.Open(), 2)

	require.NoError(t, g.Cancel(ctx, "a"))
	assert.Equal(t, []string{"v-1"}, router.cancelled)
	assert.ErrorIs(t, g.Cancel(ctx, "a"), ErrInvalidTransition)
	assert.ErrorIs(t, g.Cancel(ctx, "zzz"), ErrUnknownOrder)

	require.NoError(t, g.CancelAll(ctx, "BTC"))
	assert.Empty(t, g.Open())
}

func TestGatewayRejects(t *testing.T) {
	ctx := context.Background()
	router := &fakeRouter{err: yerrors.Wrap(exception.ErrOrderRejected, "post only would cross")}
	g := NewGateway(GatewayConfig{}, router)

	ack, err := g.Send(ctx, intent("a", 1))
	require.Error(t, err)
	assert.Equal(t, schema.OrderStatusRejected, ack.Status)
	order, ok := g.Order("a")
	require.True(t, ok)
	assert.Equal(t, OrderStateRejected, order.State)
	assert.Zero(t, g.Pending())
}

func TestGatewayResendOnReconnect(t *testing.T) {
	ctx := context.Background()
	router := &fakeRouter{err: yerrors.Wrap(exception.ErrHTTP, "connection reset")}
	g := NewGateway(GatewayConfig{Session: "LIVE", ResendOnReconnect: true}, router)

	ack, err := g.Send(ctx, intent("a", 1))
	require.Error(t, err)
	assert.Equal(t, schema.OrderStatusPending, ack.Status)
	assert.Equal(t, 1, g.Pending())

	g.Disconnect()
	assert.False(t, g.IsConnected())
	ack, err = g.Send(ctx, intent("b", 1))
	assert.True(t, errors.Is(err, ErrGatewayDisconnected))
	assert.Equal(t, schema.OrderStatusPending, ack.Status)
	assert.Len(t, router.sent, 1)

	router.err = nil
	acks, err := g.Reconnect(ctx)
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, "a", acks[0].ClientID)
	assert.Equal(t, "b", acks[1].ClientID)
	assert.Equal(t, schema.OrderStatusAccepted, acks[1].Status)
	assert.Zero(t, g.Pending())
	assert.True(t, g.IsConnected())
}
