package binance

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// FuturesClient talks to a Binance perpetual-futures REST API. The same
// implementation serves USD-M (linear) and COIN-M (inverse) markets; only
// the path prefix and the position-risk endpoint version differ.
type FuturesClient struct {
	restClient

	marketType       MarketType
	pathPrefix       string
	positionRiskPath string

	mu         sync.Mutex
	precisions map[string]int
}

// NewLinearClient creates a USD-M perpetual futures adapter.
func NewLinearClient(apiKey, secretKey, baseURL string) *FuturesClient {
	return &FuturesClient{
		restClient:       newRESTClient(apiKey, secretKey, baseURL),
		marketType:       MarketLinear,
		pathPrefix:       "/fapi",
		positionRiskPath: "/fapi/v2/positionRisk",
		precisions:       make(map[string]int),
	}
}

// NewInverseClient creates a COIN-M perpetual futures adapter.
func NewInverseClient(apiKey, secretKey, baseURL string) *FuturesClient {
	return &FuturesClient{
		restClient:       newRESTClient(apiKey, secretKey, baseURL),
		marketType:       MarketInverse,
		pathPrefix:       "/dapi",
		positionRiskPath: "/dapi/v1/positionRisk",
		precisions:       make(map[string]int),
	}
}

func (c *FuturesClient) Type() MarketType { return c.marketType }
func (c *FuturesClient) CanShort() bool   { return true }

// FetchKlines fetches candlestick data.
func (c *FuturesClient) FetchKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doPublic(c.pathPrefix+"/v1/klines", params)
	if err != nil {
		return nil, &DataUnavailableError{Op: "futures klines", Err: err}
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DataUnavailableError{Op: "futures klines", Err: fmt.Errorf("error parsing klines: %w", err)}
	}
	return parseRawKlines(raw), nil
}

// FetchTruth reports the signed position amount, entry price and mark price
// for the symbol. A symbol with no open position reports as flat.
func (c *FuturesClient) FetchTruth(symbol string) (*Truth, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doSigned("GET", c.positionRiskPath, params)
	if err != nil {
		return nil, &DataUnavailableError{Op: "futures position", Err: err}
	}

	var positions []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
		MarkPrice   string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, &DataUnavailableError{Op: "futures position", Err: fmt.Errorf("error parsing positions: %w", err)}
	}

	truth := &Truth{}
	for _, p := range positions {
		if p.Symbol == symbol {
			truth.Amount, _ = strconv.ParseFloat(p.PositionAmt, 64)
			truth.EntryPrice, _ = strconv.ParseFloat(p.EntryPrice, 64)
			truth.MarkPrice, _ = strconv.ParseFloat(p.MarkPrice, 64)
			break
		}
	}
	return truth, nil
}

// CurrentPrice returns the latest trade price. COIN-M answers with an array
// even for a single symbol.
func (c *FuturesClient) CurrentPrice(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doPublic(c.pathPrefix+"/v1/ticker/price", params)
	if err != nil {
		return 0, &DataUnavailableError{Op: "futures price", Err: err}
	}

	type ticker struct {
		Price string `json:"price"`
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var tickers []ticker
		if err := json.Unmarshal(body, &tickers); err != nil || len(tickers) == 0 {
			return 0, &DataUnavailableError{Op: "futures price", Err: fmt.Errorf("error parsing ticker: %v", err)}
		}
		return strconv.ParseFloat(tickers[0].Price, 64)
	}

	var t ticker
	if err := json.Unmarshal(body, &t); err != nil {
		return 0, &DataUnavailableError{Op: "futures price", Err: err}
	}
	return strconv.ParseFloat(t.Price, 64)
}

// PlaceMarketOrder places a market order sized in contracts.
func (c *FuturesClient) PlaceMarketOrder(order MarketOrder) (*OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(order.Quantity, -1))
	if order.ClientOrderID != "" {
		params.Set("newClientOrderId", order.ClientOrderID)
	}

	body, err := c.doSigned("POST", c.pathPrefix+"/v1/order", params)
	if err != nil {
		return nil, &OrderRejectedError{Op: "futures order", Reason: err.Error()}
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		AvgPrice    string `json:"avgPrice"`
		ExecutedQty string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &OrderRejectedError{Op: "futures order", Reason: fmt.Sprintf("error parsing order response: %v", err)}
	}

	fill := &OrderFill{OrderID: resp.OrderID}
	fill.AvgPrice, _ = strconv.ParseFloat(resp.AvgPrice, 64)
	fill.ExecutedQty, _ = strconv.ParseFloat(resp.ExecutedQty, 64)
	return fill, nil
}

// PlaceStopOrder places a STOP_MARKET order. ClosePosition makes the venue
// flatten the whole position when the stop price trades.
func (c *FuturesClient) PlaceStopOrder(order StopOrder) error {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", "STOP_MARKET")
	params.Set("stopPrice", formatQty(order.StopPrice, -1))
	if order.ClosePosition {
		params.Set("closePosition", "true")
	} else {
		params.Set("quantity", formatQty(order.Quantity, -1))
	}

	if _, err := c.doSigned("POST", c.pathPrefix+"/v1/order", params); err != nil {
		return &OrderRejectedError{Op: "futures stop order", Reason: err.Error()}
	}
	return nil
}

// CancelAllOpenOrders cancels resting orders (protective stops included) for
// the symbol. A symbol with no open orders is a no-op.
func (c *FuturesClient) CancelAllOpenOrders(symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doSigned("GET", c.pathPrefix+"/v1/openOrders", params)
	if err != nil {
		return &DataUnavailableError{Op: "futures open orders", Err: err}
	}
	var open []json.RawMessage
	if err := json.Unmarshal(body, &open); err != nil {
		return &DataUnavailableError{Op: "futures open orders", Err: err}
	}
	if len(open) == 0 {
		return nil
	}

	cancelParams := url.Values{}
	cancelParams.Set("symbol", symbol)
	if _, err := c.doSigned("DELETE", c.pathPrefix+"/v1/allOpenOrders", cancelParams); err != nil {
		return &OrderRejectedError{Op: "futures cancel", Reason: err.Error()}
	}
	return nil
}

// PricePrecision returns the symbol's price decimal places as reported by
// exchange info.
func (c *FuturesClient) PricePrecision(symbol string) (int, error) {
	c.mu.Lock()
	if p, ok := c.precisions[symbol]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	body, err := c.doPublic(c.pathPrefix+"/v1/exchangeInfo", nil)
	if err != nil {
		return 0, &DataUnavailableError{Op: "futures exchange info", Err: err}
	}

	var exchangeInfo struct {
		Symbols []struct {
			Symbol         string `json:"symbol"`
			PricePrecision int    `json:"pricePrecision"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &exchangeInfo); err != nil {
		return 0, &DataUnavailableError{Op: "futures exchange info", Err: err}
	}

	for _, s := range exchangeInfo.Symbols {
		if s.Symbol == symbol {
			c.mu.Lock()
			c.precisions[symbol] = s.PricePrecision
			c.mu.Unlock()
			return s.PricePrecision, nil
		}
	}
	return 0, &DataUnavailableError{Op: "futures exchange info", Err: fmt.Errorf("symbol %s not found", symbol)}
}

// ChangeMarginType sets CROSSED or ISOLATED margin. The venue's "No need to
// change" rejection means the margin type already matches and is success.
func (c *FuturesClient) ChangeMarginType(symbol, marginType string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", marginType)

	if _, err := c.doSigned("POST", c.pathPrefix+"/v1/marginType", params); err != nil {
		if strings.Contains(err.Error(), "No need to change") {
			return nil
		}
		return &OrderRejectedError{Op: "change margin type", Reason: err.Error()}
	}
	return nil
}

// ChangeLeverage sets the initial leverage for the symbol.
func (c *FuturesClient) ChangeLeverage(symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := c.doSigned("POST", c.pathPrefix+"/v1/leverage", params); err != nil {
		return &OrderRejectedError{Op: "change leverage", Reason: err.Error()}
	}
	return nil
}
