package binance

import (
	"context"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// orderParams maps a venue-agnostic order onto a futures order type and
// time in force. Post-only orders become GTX limits.
func orderParams(req schema.OrderRequest) (futures.OrderType, futures.TimeInForceType, bool) {
	switch req.OrderType {
	case schema.OrderTypeMarket:
		return futures.OrderTypeMarket, "", false
	case schema.OrderTypePostOnly:
		return futures.OrderTypeLimit, futures.TimeInForceTypeGTX, true
	case schema.OrderTypeIOC:
		return futures.OrderTypeLimit, futures.TimeInForceTypeIOC, true
	case schema.OrderTypeFOK:
		return futures.OrderTypeLimit, futures.TimeInForceTypeFOK, true
	}

	switch req.TimeInForce {
	case schema.TimeInForceIOC:
		return futures.OrderTypeLimit, futures.TimeInForceTypeIOC, true
	case schema.TimeInForceFOK:
		return futures.OrderTypeLimit, futures.TimeInForceTypeFOK, true
	case schema.TimeInForceGTX:
		return futures.OrderTypeLimit, futures.TimeInForceTypeGTX, true
	default:
		return futures.OrderTypeLimit, futures.TimeInForceTypeGTC, true
	}
}

func sideType(s schema.Side) futures.SideType {
	if s == schema.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func orderStatus(s futures.OrderStatusType) schema.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew:
		return schema.OrderStatusAccepted
	case futures.OrderStatusTypePartiallyFilled:
		return schema.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return schema.OrderStatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return schema.OrderStatusCancelled
	case futures.OrderStatusTypeRejected:
		return schema.OrderStatusRejected
	default:
		return schema.OrderStatusPending
	}
}

func (a *Adapter) SendOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	orderType, tif, limit := orderParams(req)
	if limit && req.Price == nil {
		return schema.OrderAck{}, errors.Wrap(exception.ErrInvalidData, "limit order without price").With("client_id", req.ClientID)
	}
	if err := a.wait(ctx); err != nil {
		return schema.OrderAck{}, err
	}

	svc := a.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideType(req.Side)).
		Type(orderType).
		Quantity(adapter.Decimal(req.Quantity).String()).
		NewClientOrderID(req.ClientID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if limit {
		svc = svc.TimeInForce(tif).Price(adapter.Decimal(*req.Price).String())
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		err = venueError(err, "create order")
		if errors.Is(err, exception.ErrOrderRejected) {
			return schema.OrderAck{ClientID: req.ClientID, Status: schema.OrderStatusRejected, TimestampNs: a.now().UnixNano()}, err
		}
		return schema.OrderAck{}, err
	}

	ack := schema.OrderAck{
		VenueOrderID: formatID(res.OrderID),
		ClientID:     req.ClientID,
		Status:       orderStatus(res.Status),
		TimestampNs:  res.UpdateTime * 1_000_000,
	}
	if ack.TimestampNs == 0 {
		ack.TimestampNs = a.now().UnixNano()
	}

	if executed := adapter.ParseFloat(res.ExecutedQuantity); executed > 0 {
		fee, err := a.FeeTier(ctx)
		if err != nil {
			logs.Warnf("binance fee tier for fill, err: %+v", err)
		}
		maker := tif == futures.TimeInForceTypeGTX
		feeBps := fee.TakerFeeBps
		if maker {
			feeBps = fee.MakerFeeBps
		}
		a.publishFill(schema.Fill{
			ClientID:     req.ClientID,
			VenueOrderID: ack.VenueOrderID,
			Symbol:       req.Symbol,
			Venue:        schema.VenueBinanceFutures,
			Side:         req.Side,
			Price:        adapter.ParseFloat(res.AvgPrice),
			Quantity:     executed,
			FeeBps:       feeBps,
			Maker:        maker,
			TimestampNs:  ack.TimestampNs,
		})
	}
	return ack, nil
}

func (a *Adapter) publishFill(fill schema.Fill) {
	select {
	case a.fills <- fill:
	default:
		logs.Warnf("binance fill channel full, drop fill: %s", fill.ClientID)
	}
}

// CancelOrder accepts either the venue order ID or the client order ID.
func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	svc := a.client.NewCancelOrderService().Symbol(symbol)
	if id, ok := parseOrderID(orderID); ok {
		svc = svc.OrderID(id)
	} else {
		svc = svc.OrigClientOrderID(orderID)
	}
	_, err := svc.Do(ctx)
	return venueError(err, "cancel order")
}

func (a *Adapter) CancelAll(ctx context.Context, symbol string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return venueError(a.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx), "cancel all orders")
}

func (a *Adapter) GetOrder(ctx context.Context, symbol, orderID string) (schema.OrderAck, error) {
	if err := a.wait(ctx); err != nil {
		return schema.OrderAck{}, err
	}
	svc := a.client.NewGetOrderService().Symbol(symbol)
	if id, ok := parseOrderID(orderID); ok {
		svc = svc.OrderID(id)
	} else {
		svc = svc.OrigClientOrderID(orderID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return schema.OrderAck{}, venueError(err, "get order")
	}
	return schema.OrderAck{
		VenueOrderID: formatID(res.OrderID),
		ClientID:     res.ClientOrderID,
		Status:       orderStatus(res.Status),
		TimestampNs:  res.UpdateTime * 1_000_000,
	}, nil
}
