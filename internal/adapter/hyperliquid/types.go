package hyperliquid

import (
	"encoding/json"

	"github.com/yanun0323/decimal"
)

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
}

type subscribeRequest struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscriptionResponse struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type wsLevel struct {
	Px decimal.Decimal `json:"px"`
	Sz decimal.Decimal `json:"sz"`
	N  int             `json:"n"`
}

type l2Book struct {
	Coin   string       `json:"coin"`
	Time   int64        `json:"time"`
	Levels [2][]wsLevel `json:"levels"` // [0]bids [1]asks
}

type wsTrade struct {
	Coin string          `json:"coin"`
	Side string          `json:"side"` // B buy, A sell
	Px   decimal.Decimal `json:"px"`
	Sz   decimal.Decimal `json:"sz"`
	Time int64           `json:"time"`
	Tid  int64           `json:"tid"`
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Oid  int64  `json:"oid,omitempty"`
}

type metaResponse struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"universe"`
}

type assetContext struct {
	Funding      decimal.Decimal `json:"funding"`
	OpenInterest decimal.Decimal `json:"openInterest"`
	DayNtlVlm    decimal.Decimal `json:"dayNtlVlm"`
	MarkPx       decimal.Decimal `json:"markPx"`
	MidPx        decimal.Decimal `json:"midPx"`
}

type clearinghouseState struct {
	MarginSummary struct {
		AccountValue    decimal.Decimal `json:"accountValue"`
		TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
		TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	} `json:"marginSummary"`
	Withdrawable   decimal.Decimal `json:"withdrawable"`
	AssetPositions []struct {
		Position struct {
			Coin          string           `json:"coin"`
			Szi           decimal.Decimal  `json:"szi"`
			EntryPx       decimal.Decimal  `json:"entryPx"`
			PositionValue decimal.Decimal  `json:"positionValue"`
			UnrealizedPnl decimal.Decimal  `json:"unrealizedPnl"`
			MarginUsed    decimal.Decimal  `json:"marginUsed"`
			LiquidationPx *decimal.Decimal `json:"liquidationPx"`
			Leverage      struct {
				Value float64 `json:"value"`
			} `json:"leverage"`
		} `json:"position"`
	} `json:"assetPositions"`
}

type openOrder struct {
	Coin string `json:"coin"`
	Oid  int64  `json:"oid"`
}

type orderStatusResponse struct {
	Status string `json:"status"`
	Order  struct {
		Order struct {
			Coin  string `json:"coin"`
			Oid   int64  `json:"oid"`
			Cloid string `json:"cloid"`
		} `json:"order"`
		Status          string `json:"status"`
		StatusTimestamp int64  `json:"statusTimestamp"`
	} `json:"order"`
}

type limitSpec struct {
	Tif string `json:"tif"`
}

type orderTypeSpec struct {
	Limit limitSpec `json:"limit"`
}

type orderWire struct {
	Asset      int             `json:"a"`
	IsBuy      bool            `json:"b"`
	Price      decimal.Decimal `json:"p"`
	Size       decimal.Decimal `json:"s"`
	ReduceOnly bool            `json:"r"`
	OrderType  orderTypeSpec   `json:"t"`
	Cloid      string          `json:"c,omitempty"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type cancelWire struct {
	Asset int   `json:"a"`
	Oid   int64 `json:"o"`
}

type cancelAction struct {
	Type    string       `json:"type"`
	Cancels []cancelWire `json:"cancels"`
}

type exchangeRequest struct {
	Action    json.RawMessage `json:"action"`
	Nonce     int64           `json:"nonce"`
	Signature string          `json:"signature"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type orderStatusWire struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		TotalSz decimal.Decimal `json:"totalSz"`
		AvgPx   decimal.Decimal `json:"avgPx"`
		Oid     int64           `json:"oid"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}
