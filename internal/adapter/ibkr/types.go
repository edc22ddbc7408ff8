package ibkr

import (
	"bytes"
	"strconv"
	"strings"
)

// conID decodes contract IDs that the gateway sends either as numbers or strings.
type conID int64

func (c *conID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*c = conID(n)
	return nil
}

func (c conID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// orderID decodes order IDs sent either as numbers or strings.
type orderID string

func (o *orderID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		b = nil
	}
	*o = orderID(b)
	return nil
}

type account struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
}

type position struct {
	ConID         conID   `json:"conid"`
	ContractDesc  string  `json:"contractDesc"`
	Ticker        string  `json:"ticker"`
	Position      float64 `json:"position"`
	MktPrice      float64 `json:"mktPrice"`
	MktValue      float64 `json:"mktValue"`
	AvgCost       float64 `json:"avgCost"`
	AvgPrice      float64 `json:"avgPrice"`
	RealizedPnl   float64 `json:"realizedPnl"`
	UnrealizedPnl float64 `json:"unrealizedPnl"`
}

func (p position) symbol() string {
	if p.Ticker != "" {
		return p.Ticker
	}
	return p.ContractDesc
}

type ledgerEntry struct {
	Currency            string  `json:"currency"`
	CashBalance         float64 `json:"cashbalance"`
	SettledCash         float64 `json:"settledcash"`
	NetLiquidationValue float64 `json:"netliquidationvalue"`
}

type contract struct {
	ConID       conID  `json:"conid"`
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
}

type orderTicket struct {
	AcctID     string   `json:"acctId"`
	ConID      int64    `json:"conid"`
	COID       string   `json:"cOID,omitempty"`
	OrderType  string   `json:"orderType"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	Price      *float64 `json:"price,omitempty"`
	TIF        string   `json:"tif"`
	OutsideRTH bool     `json:"outsideRTH"`
}

type placeOrderRequest struct {
	Orders []orderTicket `json:"orders"`
}

// orderReply is either an accepted order or a confirmation prompt carrying ID and Message.
type orderReply struct {
	OrderID     orderID  `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	ID          string   `json:"id"`
	Message     []string `json:"message"`
	Error       string   `json:"error"`
}

type replyRequest struct {
	Confirmed bool `json:"confirmed"`
}

type cancelResponse struct {
	OrderID orderID `json:"order_id"`
	Msg     string  `json:"msg"`
	Error   string  `json:"error"`
}

type orderStatusResponse struct {
	OrderID      orderID `json:"order_id"`
	OrderStatus  string  `json:"order_status"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	CumFill      string  `json:"cum_fill"`
	AveragePrice string  `json:"average_price"`
}

type liveOrder struct {
	OrderID orderID `json:"orderId"`
	Ticker  string  `json:"ticker"`
	Status  string  `json:"status"`
}

type liveOrdersResponse struct {
	Orders []liveOrder `json:"orders"`
}

// Market data field tags of /iserver/marketdata/snapshot.
const (
	fieldLast     = "31"
	fieldBid      = "84"
	fieldAskSize  = "85"
	fieldAsk      = "86"
	fieldBidSize  = "88"
	fieldVolume   = "7762"
	snapshotField = fieldLast + "," + fieldBid + "," + fieldAskSize + "," + fieldAsk + "," + fieldBidSize + "," + fieldVolume
)

// parseField reads a market data value such as "C189.50", "1,200" or "12.3K".
func parseField(v any) float64 {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		return t
	default:
		return 0
	}

	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimLeft(s, "CH")
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult, s = 1e9, strings.TrimSuffix(s, "B")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f * mult
}

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message"`
}

type summaryValue struct {
	Amount float64 `json:"amount"`
}

type accountSummary struct {
	NetLiquidation     summaryValue `json:"netliquidation"`
	GrossPositionValue summaryValue `json:"grosspositionvalue"`
}
