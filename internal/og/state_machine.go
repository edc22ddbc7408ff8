package og

import (
	"errors"
	"math"

	"hft/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

const qtyEpsilon = 1e-12

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "Sent"
	case OrderStateAcked:
		return "Acked"
	case OrderStatePartFilled:
		return "PartFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCanceled:
		return "Canceled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the venue will send no further acks for the order.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

func stateOf(status schema.OrderStatus) OrderState {
	switch status {
	case schema.OrderStatusPending:
		return OrderStateSent
	case schema.OrderStatusAccepted:
		return OrderStateAcked
	case schema.OrderStatusPartiallyFilled:
		return OrderStatePartFilled
	case schema.OrderStatusFilled:
		return OrderStateFilled
	case schema.OrderStatusCancelled:
		return OrderStateCanceled
	case schema.OrderStatusRejected:
		return OrderStateRejected
	default:
		return OrderStateUnknown
	}
}

// Order holds the gateway's view of an order.
type Order struct {
	ClientID     string
	VenueOrderID string
	Symbol       string
	Side         schema.Side
	Price        *float64
	Qty          float64
	FilledQty    float64
	LeavesQty    float64
	AvgPrice     float64
	State        OrderState
	UpdatedNs    int64
}

// StateMachine updates orders from intent/ack/fill events. It is not safe for
// concurrent use; Gateway serializes access.
type StateMachine struct {
	orders map[string]*Order
	venue  map[string]string
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		orders: make(map[string]*Order),
		venue:  make(map[string]string),
	}
}

// Order returns a copy of the order with the given client ID.
func (m *StateMachine) Order(clientID string) (Order, bool) {
	o, ok := m.orders[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Open returns all orders that are not terminal.
func (m *StateMachine) Open() []Order {
	var out []Order
	for _, o := range m.orders {
		if !o.State.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// ApplyIntent creates a new order in Sent state.
func (m *StateMachine) ApplyIntent(req schema.OrderRequest) (Order, error) {
	if req.ClientID == "" {
		return Order{}, ErrUnknownOrder
	}
	if _, ok := m.orders[req.ClientID]; ok {
		return Order{}, ErrDuplicateOrder
	}
	o := &Order{
		ClientID:  req.ClientID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Qty:       req.Quantity,
		LeavesQty: req.Quantity,
		State:     OrderStateSent,
	}
	m.orders[o.ClientID] = o
	return *o, nil
}

// ApplyAck updates an order from an acknowledgment. A repeated terminal ack
// is accepted without change.
func (m *StateMachine) ApplyAck(ack schema.OrderAck) (Order, error) {
	o, ok := m.lookup(ack.ClientID, ack.VenueOrderID)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	next := stateOf(ack.Status)
	if o.State.Terminal() {
		if next == o.State {
			return *o, nil
		}
		return *o, ErrInvalidTransition
	}

	if ack.VenueOrderID != "" {
		o.VenueOrderID = ack.VenueOrderID
		m.venue[ack.VenueOrderID] = o.ClientID
	}
	if ack.TimestampNs != 0 {
		o.UpdatedNs = ack.TimestampNs
	}
	switch next {
	case OrderStateUnknown:
		return *o, ErrInvalidTransition
	case OrderStateSent, OrderStateAcked:
		// a fill may have arrived before the ack
		if o.State < next {
			o.State = next
		}
	default:
		o.State = next
	}
	return *o, nil
}

// ApplyFill books an execution. Fills are matched by client ID, then by venue
// order ID. A fill may settle after a Filled or Canceled ack.
func (m *StateMachine) ApplyFill(fill schema.Fill) (Order, error) {
	o, ok := m.lookup(fill.ClientID, fill.VenueOrderID)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if fill.Quantity <= 0 {
		return *o, ErrInvalidFill
	}
	if o.State == OrderStateRejected || o.LeavesQty <= qtyEpsilon {
		return *o, ErrInvalidTransition
	}

	qty := math.Min(fill.Quantity, o.LeavesQty)
	o.AvgPrice = (o.AvgPrice*o.FilledQty + fill.Price*qty) / (o.FilledQty + qty)
	o.FilledQty += qty
	o.LeavesQty -= qty
	if fill.TimestampNs != 0 {
		o.UpdatedNs = fill.TimestampNs
	}

	switch {
	case o.State == OrderStateCanceled:
	case o.LeavesQty <= qtyEpsilon:
		o.LeavesQty = 0
		o.State = OrderStateFilled
	default:
		o.State = OrderStatePartFilled
	}
	return *o, nil
}

func (m *StateMachine) lookup(clientID, venueOrderID string) (*Order, bool) {
	if o, ok := m.orders[clientID]; ok {
		return o, true
	}
	if id, ok := m.venue[venueOrderID]; ok {
		o, ok := m.orders[id]
		return o, ok
	}
	return nil, false
}
