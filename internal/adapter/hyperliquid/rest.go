package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/request"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

func (a *Adapter) post(ctx context.Context, path string, body, out any, headers ...map[string]string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	req := request.New(http.MethodPost, a.cfg.RESTURL+path).
		WithContext(ctx).
		WithBodyObject(body)
	for _, h := range headers {
		req = req.WithHeaders(h)
	}

	resp, err := req.Send(a.client.Do)
	if err != nil {
		return errors.Wrap(exception.ErrHTTP, "post "+path).With("error", err)
	}
	if err := resp.WithCheckStatus().Decode(out); err != nil {
		return errors.Wrap(exception.ErrVenue, "hyperliquid "+path).With("error", err)
	}
	return nil
}

func (a *Adapter) info(ctx context.Context, body infoRequest, out any) error {
	return a.post(ctx, "/info", body, out)
}

// exchange signs action with the API secret and posts it to /exchange.
func (a *Adapter) exchange(ctx context.Context, action any) (exchangeResponse, error) {
	var out exchangeResponse
	if !a.cfg.Credentials.Valid() {
		return out, errors.Wrap(exception.ErrInvalidCredentials, "hyperliquid exchange requires credentials")
	}

	payload, err := sonic.Marshal(action)
	if err != nil {
		return out, errors.Wrap(exception.ErrSerialization, err.Error())
	}
	nonce := a.now().UnixMilli()
	body := exchangeRequest{
		Action:    payload,
		Nonce:     nonce,
		Signature: adapter.Sign(a.cfg.Credentials.Secret, string(payload)+strconv.FormatInt(nonce, 10)),
	}

	if err := a.post(ctx, "/exchange", body, &out, map[string]string{"X-API-KEY": a.cfg.Credentials.Key}); err != nil {
		return out, err
	}
	if out.Status != "ok" {
		return out, errors.Wrap(exception.ErrVenue, "hyperliquid exchange").With("status", out.Status)
	}
	return out, nil
}

func (a *Adapter) ListSymbols(ctx context.Context) ([]string, error) {
	var meta metaResponse
	if err := a.info(ctx, infoRequest{Type: "meta"}, &meta); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(meta.Universe))
	assets := make(map[string]int, len(meta.Universe))
	for i, u := range meta.Universe {
		names = append(names, u.Name)
		assets[u.Name] = i
	}

	a.assetsMu.Lock()
	a.assets = assets
	a.assetsMu.Unlock()

	return names, nil
}

func (a *Adapter) SearchSymbols(ctx context.Context, prefix string) ([]string, error) {
	all, err := a.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	prefix = strings.ToLower(prefix)
	var out []string
	for _, s := range all {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

// asset returns the universe index Hyperliquid uses to address a coin.
func (a *Adapter) asset(ctx context.Context, coin string) (int, error) {
	a.assetsMu.RLock()
	idx, ok := a.assets[coin]
	a.assetsMu.RUnlock()
	if ok {
		return idx, nil
	}

	if _, err := a.ListSymbols(ctx); err != nil {
		return 0, err
	}

	a.assetsMu.RLock()
	defer a.assetsMu.RUnlock()
	idx, ok = a.assets[coin]
	if !ok {
		return 0, errors.Wrap(exception.ErrNotFound, "hyperliquid asset").With("coin", coin)
	}
	return idx, nil
}

// assetContexts returns the perp universe with the asset context of each coin.
func (a *Adapter) assetContexts(ctx context.Context) (metaResponse, []assetContext, error) {
	var raw []json.RawMessage
	if err := a.info(ctx, infoRequest{Type: "metaAndAssetCtxs"}, &raw); err != nil {
		return metaResponse{}, nil, err
	}
	if len(raw) != 2 {
		return metaResponse{}, nil, errors.Wrap(exception.ErrInvalidData, "metaAndAssetCtxs").With("parts", len(raw))
	}

	var meta metaResponse
	var ctxs []assetContext
	if err := sonic.Unmarshal(raw[0], &meta); err != nil {
		return metaResponse{}, nil, errors.Wrap(exception.ErrSerialization, "meta").With("error", err)
	}
	if err := sonic.Unmarshal(raw[1], &ctxs); err != nil {
		return metaResponse{}, nil, errors.Wrap(exception.ErrSerialization, "asset contexts").With("error", err)
	}
	return meta, ctxs, nil
}

func (a *Adapter) assetContext(ctx context.Context, coin string) (assetContext, error) {
	meta, ctxs, err := a.assetContexts(ctx)
	if err != nil {
		return assetContext{}, err
	}
	for i, u := range meta.Universe {
		if u.Name == coin && i < len(ctxs) {
			return ctxs[i], nil
		}
	}
	return assetContext{}, errors.Wrap(exception.ErrNotFound, "hyperliquid asset context").With("coin", coin)
}

// UniverseMetrics returns scoring inputs for every listed perp. Open interest
// is valued at the mark price and doubles as the liquidity figure.
func (a *Adapter) UniverseMetrics(ctx context.Context) (map[string]schema.AssetMetrics, error) {
	meta, ctxs, err := a.assetContexts(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]schema.AssetMetrics, len(meta.Universe))
	for i, u := range meta.Universe {
		if i >= len(ctxs) {
			break
		}
		c := ctxs[i]
		funding := adapter.Float(c.Funding) * 10_000
		oi := adapter.Float(c.OpenInterest) * adapter.Float(c.MarkPx)
		out[u.Name] = schema.AssetMetrics{
			Volume24hUSD:    adapter.Float(c.DayNtlVlm),
			LiquidityUSD:    oi,
			FundingRateBps:  &funding,
			OpenInterestUSD: &oi,
		}
	}
	return out, nil
}

func (a *Adapter) FundingRate(ctx context.Context, symbol string) (float64, error) {
	c, err := a.assetContext(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return adapter.Float(c.Funding) * 10_000, nil
}

func (a *Adapter) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	c, err := a.assetContext(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return adapter.Float(c.OpenInterest), nil
}

func (a *Adapter) Volume24h(ctx context.Context, symbol string) (float64, error) {
	c, err := a.assetContext(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return adapter.Float(c.DayNtlVlm), nil
}

func (a *Adapter) clearinghouse(ctx context.Context) (clearinghouseState, error) {
	var state clearinghouseState
	err := a.info(ctx, infoRequest{Type: "clearinghouseState", User: a.cfg.Credentials.Key}, &state)
	return state, err
}

func (a *Adapter) Balances(ctx context.Context) (map[string]schema.Balance, error) {
	state, err := a.clearinghouse(ctx)
	if err != nil {
		return nil, err
	}

	total := adapter.Float(state.MarginSummary.AccountValue)
	free := adapter.Float(state.Withdrawable)
	return map[string]schema.Balance{
		"USDC": {Asset: "USDC", Free: free, Locked: max(total-free, 0), Total: total},
	}, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]schema.Position, error) {
	state, err := a.clearinghouse(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]schema.Position, 0, len(state.AssetPositions))
	for _, item := range state.AssetPositions {
		p := item.Position
		size := adapter.Float(p.Szi)
		pos := schema.Position{
			Symbol:        p.Coin,
			Size:          size,
			EntryPrice:    adapter.Float(p.EntryPx),
			UnrealizedPnL: adapter.Float(p.UnrealizedPnl),
			Leverage:      max(p.Leverage.Value, 1),
			MarginUsed:    adapter.Float(p.MarginUsed),
		}
		if size != 0 {
			pos.MarkPrice = adapter.Float(p.PositionValue) / abs(size)
		}
		if p.LiquidationPx != nil {
			liq := adapter.Float(*p.LiquidationPx)
			pos.LiquidationPrice = &liq
		}
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (a *Adapter) FeeTier(context.Context) (schema.FeeTier, error) {
	return schema.FeeTier{MakerFeeBps: makerFeeBps, TakerFeeBps: takerFeeBps}, nil
}

// Leverage returns the highest leverage across open positions, at least 1.
func (a *Adapter) Leverage(ctx context.Context) (float64, error) {
	positions, err := a.Positions(ctx)
	if err != nil {
		return 0, err
	}
	lev := 1.0
	for _, p := range positions {
		lev = max(lev, p.Leverage)
	}
	return lev, nil
}

func (a *Adapter) SendOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	idx, err := a.asset(ctx, req.Symbol)
	if err != nil {
		return schema.OrderAck{}, err
	}
	price, err := a.limitPrice(req)
	if err != nil {
		return schema.OrderAck{}, err
	}

	resp, err := a.exchange(ctx, orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      idx,
			IsBuy:      req.Side == schema.SideBuy,
			Price:      adapter.Decimal(price),
			Size:       adapter.Decimal(req.Quantity),
			ReduceOnly: req.ReduceOnly,
			OrderType:  orderTypeSpec{Limit: limitSpec{Tif: tif(req)}},
		}},
		Grouping: "na",
	})
	if err != nil {
		return schema.OrderAck{}, err
	}

	ack := schema.OrderAck{ClientID: req.ClientID, TimestampNs: a.now().UnixNano()}
	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		return ack, errors.Wrap(exception.ErrInvalidData, "hyperliquid order: empty statuses")
	}

	st := statuses[0]
	switch {
	case st.Error != "":
		ack.Status = schema.OrderStatusRejected
		return ack, errors.Wrap(exception.ErrOrderRejected, st.Error).With("client_id", req.ClientID)
	case st.Filled != nil:
		ack.VenueOrderID = strconv.FormatInt(st.Filled.Oid, 10)
		ack.Status = schema.OrderStatusFilled
		a.publishFill(schema.Fill{
			ClientID:     req.ClientID,
			VenueOrderID: ack.VenueOrderID,
			Symbol:       req.Symbol,
			Venue:        schema.VenueHyperliquid,
			Side:         req.Side,
			Price:        adapter.Float(st.Filled.AvgPx),
			Quantity:     adapter.Float(st.Filled.TotalSz),
			FeeBps:       takerFeeBps,
			TimestampNs:  ack.TimestampNs,
		})
	case st.Resting != nil:
		ack.VenueOrderID = strconv.FormatInt(st.Resting.Oid, 10)
		ack.Status = schema.OrderStatusAccepted
	default:
		ack.Status = schema.OrderStatusPending
	}
	return ack, nil
}

func (a *Adapter) publishFill(fill schema.Fill) {
	select {
	case a.fills <- fill:
	default:
		logs.Warnf("hyperliquid fill channel full, drop fill: %s", fill.ClientID)
	}
}

// limitPrice prices market orders off the last mid with a slippage band,
// since Hyperliquid only accepts limit orders.
func (a *Adapter) limitPrice(req schema.OrderRequest) (float64, error) {
	if req.Price != nil {
		return *req.Price, nil
	}
	mid, ok := a.mid(req.Symbol)
	if !ok {
		return 0, errors.Wrap(exception.ErrInvalidData, "no mid price for market order").With("symbol", req.Symbol)
	}
	if req.Side == schema.SideBuy {
		return mid * (1 + marketSlippage), nil
	}
	return mid * (1 - marketSlippage), nil
}

func tif(req schema.OrderRequest) string {
	switch {
	case req.OrderType == schema.OrderTypePostOnly || req.TimeInForce == schema.TimeInForceGTX:
		return "Alo"
	case req.OrderType == schema.OrderTypeMarket,
		req.OrderType == schema.OrderTypeIOC,
		req.OrderType == schema.OrderTypeFOK,
		req.TimeInForce == schema.TimeInForceIOC,
		req.TimeInForce == schema.TimeInForceFOK:
		return "Ioc"
	default:
		return "Gtc"
	}
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrap(exception.ErrInvalidData, "hyperliquid order id").With("order_id", orderID)
	}
	idx, err := a.asset(ctx, symbol)
	if err != nil {
		return err
	}
	_, err = a.exchange(ctx, cancelAction{Type: "cancel", Cancels: []cancelWire{{Asset: idx, Oid: oid}}})
	return err
}

func (a *Adapter) CancelAll(ctx context.Context, symbol string) error {
	var open []openOrder
	if err := a.info(ctx, infoRequest{Type: "openOrders", User: a.cfg.Credentials.Key}, &open); err != nil {
		return err
	}

	idx, err := a.asset(ctx, symbol)
	if err != nil {
		return err
	}
	var cancels []cancelWire
	for _, o := range open {
		if o.Coin == symbol {
			cancels = append(cancels, cancelWire{Asset: idx, Oid: o.Oid})
		}
	}
	if len(cancels) == 0 {
		return nil
	}
	_, err = a.exchange(ctx, cancelAction{Type: "cancel", Cancels: cancels})
	return err
}

func (a *Adapter) GetOrder(ctx context.Context, _ string, orderID string) (schema.OrderAck, error) {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(exception.ErrInvalidData, "hyperliquid order id").With("order_id", orderID)
	}

	var resp orderStatusResponse
	if err := a.info(ctx, infoRequest{Type: "orderStatus", User: a.cfg.Credentials.Key, Oid: oid}, &resp); err != nil {
		return schema.OrderAck{}, err
	}
	if resp.Status != "order" {
		return schema.OrderAck{}, errors.Wrap(exception.ErrNotFound, "hyperliquid order").With("order_id", orderID)
	}

	return schema.OrderAck{
		VenueOrderID: orderID,
		ClientID:     resp.Order.Order.Cloid,
		Status:       orderStatus(resp.Order.Status),
		TimestampNs:  resp.Order.StatusTimestamp * 1_000_000,
	}, nil
}

func orderStatus(s string) schema.OrderStatus {
	switch s {
	case "open":
		return schema.OrderStatusAccepted
	case "filled":
		return schema.OrderStatusFilled
	case "canceled", "marginCanceled":
		return schema.OrderStatusCancelled
	case "rejected":
		return schema.OrderStatusRejected
	default:
		return schema.OrderStatusPending
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
