package ibkr

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/request"

	"hft/internal/schema"
	"hft/pkg/exception"
)

func (a *Adapter) do(ctx context.Context, method, path string, query map[string]any, body, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	req := request.New(method, a.cfg.BaseURL+path).WithContext(ctx)
	if len(query) != 0 {
		req = req.WithQueryParams(query)
	}
	if body != nil {
		req = req.WithBodyObject(body)
	}
	if a.cfg.Credentials.Valid() {
		req = req.WithHeader("Authorization", "Bearer "+a.cfg.Credentials.Key)
	}

	resp, err := req.Send(a.client.Do)
	if err != nil {
		return errors.Wrap(exception.ErrHTTP, strings.ToLower(method)+" "+path).With("error", err)
	}
	switch resp.HttpResponse.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		_ = resp.HttpResponse.Body.Close()
		return errors.Wrap(exception.ErrAuthentication, "ibkr "+path).With("status", resp.HttpResponse.StatusCode)
	case http.StatusTooManyRequests:
		_ = resp.HttpResponse.Body.Close()
		return errors.Wrap(exception.ErrRateLimit, "ibkr "+path)
	}
	if err := resp.WithCheckStatus().Decode(out); err != nil {
		return errors.Wrap(exception.ErrVenue, "ibkr "+path).With("error", err)
	}
	return nil
}

func (a *Adapter) get(ctx context.Context, path string, query map[string]any, out any) error {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

func (a *Adapter) post(ctx context.Context, path string, body, out any) error {
	return a.do(ctx, http.MethodPost, path, nil, body, out)
}

func (a *Adapter) accountID(ctx context.Context) (string, error) {
	a.mu.RLock()
	id := a.account
	a.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	var accounts []account
	if err := a.get(ctx, "/portfolio/accounts", nil, &accounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", errors.Wrap(exception.ErrNotFound, "ibkr has no accounts")
	}
	id = accounts[0].AccountID
	if id == "" {
		id = accounts[0].ID
	}

	a.mu.Lock()
	a.account = id
	a.mu.Unlock()
	return id, nil
}

// resolve maps a ticker to its stock contract ID, caching the result.
func (a *Adapter) resolve(ctx context.Context, symbol string) (conID, error) {
	symbol = strings.ToUpper(symbol)
	a.mu.RLock()
	id, ok := a.conids[symbol]
	a.mu.RUnlock()
	if ok {
		return id, nil
	}

	contracts, err := a.search(ctx, symbol)
	if err != nil {
		return 0, err
	}
	for _, c := range contracts {
		if strings.EqualFold(c.Symbol, symbol) && c.ConID != 0 {
			a.mu.Lock()
			a.conids[symbol] = c.ConID
			a.symbols[c.ConID] = symbol
			a.mu.Unlock()
			return c.ConID, nil
		}
	}
	return 0, errors.Wrap(exception.ErrNotFound, "ibkr contract").With("symbol", symbol)
}

func (a *Adapter) search(ctx context.Context, symbol string) ([]contract, error) {
	var contracts []contract
	err := a.get(ctx, "/iserver/secdef/search", map[string]any{"symbol": symbol, "secType": "STK"}, &contracts)
	return contracts, err
}

func (a *Adapter) snapshot(ctx context.Context, ids []conID) ([]schema.MarketSnapshot, error) {
	list := make([]string, 0, len(ids))
	for _, id := range ids {
		list = append(list, id.String())
	}

	var rows []map[string]any
	query := map[string]any{"conids": strings.Join(list, ","), "fields": snapshotField}
	if err := a.get(ctx, "/iserver/marketdata/snapshot", query, &rows); err != nil {
		return nil, err
	}

	out := make([]schema.MarketSnapshot, 0, len(rows))
	for _, row := range rows {
		if snap, ok := a.quote(row); ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Balances reads the ledger. The BASE entry aggregates all currencies and is skipped.
func (a *Adapter) Balances(ctx context.Context) (map[string]schema.Balance, error) {
	id, err := a.accountID(ctx)
	if err != nil {
		return nil, err
	}
	var ledger map[string]ledgerEntry
	if err := a.get(ctx, fmt.Sprintf("/portfolio/%s/ledger", id), nil, &ledger); err != nil {
		return nil, err
	}

	out := make(map[string]schema.Balance, len(ledger))
	for currency, entry := range ledger {
		if strings.EqualFold(currency, "BASE") {
			continue
		}
		asset := strings.ToUpper(currency)
		out[asset] = schema.Balance{
			Asset:  asset,
			Free:   entry.SettledCash,
			Locked: max(entry.CashBalance-entry.SettledCash, 0),
			Total:  entry.CashBalance,
		}
	}
	return out, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]schema.Position, error) {
	id, err := a.accountID(ctx)
	if err != nil {
		return nil, err
	}
	var rows []position
	if err := a.get(ctx, fmt.Sprintf("/portfolio/%s/positions/0", id), nil, &rows); err != nil {
		return nil, err
	}

	out := make([]schema.Position, 0, len(rows))
	for _, p := range rows {
		if p.Position == 0 {
			continue
		}
		entry := p.AvgPrice
		if entry == 0 {
			entry = p.AvgCost
		}
		out = append(out, schema.Position{
			Symbol:        p.symbol(),
			Size:          p.Position,
			EntryPrice:    entry,
			MarkPrice:     p.MktPrice,
			UnrealizedPnL: p.UnrealizedPnl,
			RealizedPnL:   p.RealizedPnl,
			Leverage:      1,
			MarginUsed:    abs(p.MktValue),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// FeeTier is fixed; the gateway does not expose the commission schedule.
func (a *Adapter) FeeTier(context.Context) (schema.FeeTier, error) {
	return schema.FeeTier{MakerFeeBps: makerFeeBps, TakerFeeBps: takerFeeBps}, nil
}

// Leverage is gross position value over net liquidation value.
func (a *Adapter) Leverage(ctx context.Context) (float64, error) {
	id, err := a.accountID(ctx)
	if err != nil {
		return 0, err
	}
	var summary accountSummary
	if err := a.get(ctx, fmt.Sprintf("/portfolio/%s/summary", id), nil, &summary); err != nil {
		return 0, err
	}
	if summary.NetLiquidation.Amount <= 0 {
		return 1, nil
	}
	return max(summary.GrossPositionValue.Amount/summary.NetLiquidation.Amount, 1), nil
}

// ListSymbols returns the resolved watch list; the gateway has no listing endpoint.
func (a *Adapter) ListSymbols(context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.conids))
	for symbol := range a.conids {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out, nil
}

func (a *Adapter) SearchSymbols(ctx context.Context, prefix string) ([]string, error) {
	contracts, err := a.search(ctx, strings.ToUpper(prefix))
	if err != nil {
		return nil, err
	}

	prefix = strings.ToUpper(prefix)
	var out []string
	for _, c := range contracts {
		symbol := strings.ToUpper(c.Symbol)
		if strings.HasPrefix(symbol, prefix) && !contains(out, symbol) {
			out = append(out, symbol)
		}
	}
	return out, nil
}

// FundingRate is zero for cash equities.
func (a *Adapter) FundingRate(context.Context, string) (float64, error) {
	return 0, nil
}

// OpenInterest is zero for cash equities.
func (a *Adapter) OpenInterest(context.Context, string) (float64, error) {
	return 0, nil
}

// Volume24h returns the last polled day volume in shares times the mid.
func (a *Adapter) Volume24h(ctx context.Context, symbol string) (float64, error) {
	id, err := a.resolve(ctx, symbol)
	if err != nil {
		return 0, err
	}
	snaps, err := a.snapshot(ctx, []conID{id})
	if err != nil {
		return 0, err
	}
	for _, snap := range snaps {
		if snap.Symbol == strings.ToUpper(symbol) {
			return snap.Volume24h, nil
		}
	}
	return 0, nil
}

func orderTerms(req schema.OrderRequest) (orderType, tif string, limit bool) {
	switch req.OrderType {
	case schema.OrderTypeMarket:
		return "MKT", "DAY", false
	case schema.OrderTypeIOC, schema.OrderTypeFOK:
		return "LMT", "IOC", true
	}

	switch req.TimeInForce {
	case schema.TimeInForceIOC, schema.TimeInForceFOK:
		return "LMT", "IOC", true
	case schema.TimeInForceGTC:
		return "LMT", "GTC", true
	default:
		return "LMT", "DAY", true
	}
}

func orderStatus(status string, filled float64) schema.OrderStatus {
	switch strings.ToLower(status) {
	case "pendingsubmit":
		return schema.OrderStatusPending
	case "presubmitted", "submitted":
		if filled > 0 {
			return schema.OrderStatusPartiallyFilled
		}
		return schema.OrderStatusAccepted
	case "filled":
		return schema.OrderStatusFilled
	case "cancelled", "apicancelled", "pendingcancel":
		return schema.OrderStatusCancelled
	case "inactive", "rejected":
		return schema.OrderStatusRejected
	default:
		return schema.OrderStatusPending
	}
}

// SendOrder places an order and confirms the gateway's warning prompts.
func (a *Adapter) SendOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	orderType, tif, limit := orderTerms(req)
	if limit && req.Price == nil {
		return schema.OrderAck{}, errors.Wrap(exception.ErrInvalidData, "limit order without price").With("client_id", req.ClientID)
	}
	acct, err := a.accountID(ctx)
	if err != nil {
		return schema.OrderAck{}, err
	}
	id, err := a.resolve(ctx, req.Symbol)
	if err != nil {
		return schema.OrderAck{}, err
	}

	ticket := orderTicket{
		AcctID:    acct,
		ConID:     int64(id),
		COID:      req.ClientID,
		OrderType: orderType,
		Side:      "BUY",
		Quantity:  req.Quantity,
		TIF:       tif,
	}
	if req.Side == schema.SideSell {
		ticket.Side = "SELL"
	}
	if limit {
		ticket.Price = req.Price
	}

	var replies []orderReply
	if err := a.post(ctx, fmt.Sprintf("/iserver/account/%s/orders", acct), placeOrderRequest{Orders: []orderTicket{ticket}}, &replies); err != nil {
		return schema.OrderAck{}, err
	}

	for i := 0; ; i++ {
		if len(replies) == 0 {
			return schema.OrderAck{}, errors.Wrap(exception.ErrVenue, "ibkr empty order reply").With("client_id", req.ClientID)
		}
		reply := replies[0]
		switch {
		case reply.Error != "":
			ack := schema.OrderAck{ClientID: req.ClientID, Status: schema.OrderStatusRejected, TimestampNs: a.now().UnixNano()}
			return ack, errors.Wrap(exception.ErrOrderRejected, reply.Error).With("client_id", req.ClientID)
		case reply.OrderID != "":
			return schema.OrderAck{
				VenueOrderID: string(reply.OrderID),
				ClientID:     req.ClientID,
				Status:       orderStatus(reply.OrderStatus, 0),
				TimestampNs:  a.now().UnixNano(),
			}, nil
		case reply.ID != "" && i < maxReplies:
			logs.Infof("ibkr confirm order prompt, client_id: %s, message: %v", req.ClientID, reply.Message)
			replies = nil
			if err := a.post(ctx, "/iserver/reply/"+reply.ID, replyRequest{Confirmed: true}, &replies); err != nil {
				return schema.OrderAck{}, err
			}
		default:
			return schema.OrderAck{}, errors.Wrap(exception.ErrVenue, "ibkr unconfirmed order").With("client_id", req.ClientID, "message", reply.Message)
		}
	}
}

func (a *Adapter) CancelOrder(ctx context.Context, _ string, orderID string) error {
	acct, err := a.accountID(ctx)
	if err != nil {
		return err
	}
	var res cancelResponse
	if err := a.do(ctx, http.MethodDelete, fmt.Sprintf("/iserver/account/%s/order/%s", acct, orderID), nil, nil, &res); err != nil {
		return err
	}
	if res.Error != "" {
		return errors.Wrap(exception.ErrVenue, "ibkr cancel order").With("order_id", orderID, "error", res.Error)
	}
	return nil
}

// CancelAll cancels every live order of symbol; an empty symbol cancels all.
func (a *Adapter) CancelAll(ctx context.Context, symbol string) error {
	var live liveOrdersResponse
	if err := a.get(ctx, "/iserver/account/orders", nil, &live); err != nil {
		return err
	}

	var errs []error
	for _, o := range live.Orders {
		if symbol != "" && !strings.EqualFold(o.Ticker, symbol) {
			continue
		}
		if orderStatus(o.Status, 0).Terminal() {
			continue
		}
		if err := a.CancelOrder(ctx, o.Ticker, string(o.OrderID)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetOrder publishes a fill for the quantity executed since the previous poll.
func (a *Adapter) GetOrder(ctx context.Context, _ string, orderID string) (schema.OrderAck, error) {
	var res orderStatusResponse
	if err := a.get(ctx, "/iserver/account/order/status/"+orderID, nil, &res); err != nil {
		return schema.OrderAck{}, err
	}

	ts := a.now().UnixNano()
	filled := parseField(res.CumFill)
	a.mu.Lock()
	id := string(res.OrderID)
	delta := filled - a.filled[id]
	if delta > 0 {
		a.filled[id] = filled
	}
	a.mu.Unlock()

	if delta > 0 {
		side := schema.SideBuy
		if strings.HasPrefix(strings.ToUpper(res.Side), "S") {
			side = schema.SideSell
		}
		a.publishFill(schema.Fill{
			VenueOrderID: id,
			Symbol:       res.Symbol,
			Venue:        schema.VenueIBKR,
			Side:         side,
			Price:        parseField(res.AveragePrice),
			Quantity:     delta,
			FeeBps:       takerFeeBps,
			TimestampNs:  ts,
		})
	}

	return schema.OrderAck{
		VenueOrderID: id,
		Status:       orderStatus(res.OrderStatus, filled),
		TimestampNs:  ts,
	}, nil
}

func (a *Adapter) publishFill(fill schema.Fill) {
	select {
	case a.fills <- fill:
	default:
		logs.Warnf("ibkr fill channel full, drop fill: %s", fill.VenueOrderID)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
