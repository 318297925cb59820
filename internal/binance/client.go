package binance

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
)

// SpotClient talks to the Binance spot REST API. Position truth on spot is
// the free base-asset balance; there is no native short.
type SpotClient struct {
	restClient

	mu    sync.Mutex
	infos map[string]*spotSymbolInfo
}

type spotSymbolInfo struct {
	baseAsset      string
	pricePrecision int
	qtyPrecision   int
	minQty         float64
}

// NewSpotClient creates a spot adapter.
func NewSpotClient(apiKey, secretKey, baseURL string) *SpotClient {
	return &SpotClient{
		restClient: newRESTClient(apiKey, secretKey, baseURL),
		infos:      make(map[string]*spotSymbolInfo),
	}
}

func (c *SpotClient) Type() MarketType { return MarketSpot }
func (c *SpotClient) CanShort() bool   { return false }

// FetchKlines fetches candlestick data.
func (c *SpotClient) FetchKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doPublic("/api/v3/klines", params)
	if err != nil {
		return nil, &DataUnavailableError{Op: "spot klines", Err: err}
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DataUnavailableError{Op: "spot klines", Err: fmt.Errorf("error parsing klines: %w", err)}
	}
	return parseRawKlines(raw), nil
}

// FetchTruth reports the free base-asset balance as the venue truth, with
// the symbol's LOT_SIZE minimum as the dust threshold.
func (c *SpotClient) FetchTruth(symbol string) (*Truth, error) {
	info, err := c.symbolInfo(symbol)
	if err != nil {
		return nil, err
	}

	body, err := c.doSigned("GET", "/api/v3/account", nil)
	if err != nil {
		return nil, &DataUnavailableError{Op: "spot account", Err: err}
	}

	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, &DataUnavailableError{Op: "spot account", Err: fmt.Errorf("error parsing account: %w", err)}
	}

	truth := &Truth{MinQty: info.minQty}
	for _, b := range account.Balances {
		if b.Asset == info.baseAsset {
			truth.Amount, _ = strconv.ParseFloat(b.Free, 64)
			break
		}
	}
	return truth, nil
}

// CurrentPrice returns the latest trade price.
func (c *SpotClient) CurrentPrice(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doPublic("/api/v3/ticker/price", params)
	if err != nil {
		return 0, &DataUnavailableError{Op: "spot price", Err: err}
	}

	var ticker struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, &DataUnavailableError{Op: "spot price", Err: err}
	}
	return strconv.ParseFloat(ticker.Price, 64)
}

// PlaceMarketOrder places a market order. Buys size by quote spend
// (quoteOrderQty), sells by base quantity rounded to the venue's lot
// precision. The average fill price is derived from the reported fills.
func (c *SpotClient) PlaceMarketOrder(order MarketOrder) (*OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", "MARKET")
	if order.ClientOrderID != "" {
		params.Set("newClientOrderId", order.ClientOrderID)
	}

	switch {
	case order.Side == SideBuy && order.QuoteQuantity > 0:
		params.Set("quoteOrderQty", formatQty(order.QuoteQuantity, -1))
	case order.Side == SideSell && order.Quantity > 0:
		info, err := c.symbolInfo(order.Symbol)
		if err != nil {
			return nil, err
		}
		params.Set("quantity", formatQty(order.Quantity, info.qtyPrecision))
	default:
		return nil, &OrderRejectedError{Op: "spot order", Reason: "buy requires quote quantity, sell requires base quantity"}
	}

	body, err := c.doSigned("POST", "/api/v3/order", params)
	if err != nil {
		return nil, &OrderRejectedError{Op: "spot order", Reason: err.Error()}
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		ExecutedQty string `json:"executedQty"`
		Fills       []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &OrderRejectedError{Op: "spot order", Reason: fmt.Sprintf("error parsing order response: %v", err)}
	}

	fill := &OrderFill{OrderID: resp.OrderID}
	fill.ExecutedQty, _ = strconv.ParseFloat(resp.ExecutedQty, 64)

	var totalCost, totalQty float64
	for _, f := range resp.Fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Qty, 64)
		totalCost += price * qty
		totalQty += qty
	}
	if totalQty > 0 {
		fill.AvgPrice = totalCost / totalQty
	}
	return fill, nil
}

// PlaceStopOrder is not used on spot; exits are engine-driven market sells.
func (c *SpotClient) PlaceStopOrder(order StopOrder) error {
	return &OrderRejectedError{Op: "spot stop order", Reason: "protective stop orders are not supported on spot"}
}

// CancelAllOpenOrders cancels any resting orders for the symbol. A symbol
// with no open orders is a no-op, not an error.
func (c *SpotClient) CancelAllOpenOrders(symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doSigned("GET", "/api/v3/openOrders", params)
	if err != nil {
		return &DataUnavailableError{Op: "spot open orders", Err: err}
	}
	var open []json.RawMessage
	if err := json.Unmarshal(body, &open); err != nil {
		return &DataUnavailableError{Op: "spot open orders", Err: err}
	}
	if len(open) == 0 {
		return nil
	}

	cancelParams := url.Values{}
	cancelParams.Set("symbol", symbol)
	if _, err := c.doSigned("DELETE", "/api/v3/openOrders", cancelParams); err != nil {
		return &OrderRejectedError{Op: "spot cancel", Reason: err.Error()}
	}
	return nil
}

// PricePrecision returns the symbol's price decimal places from the
// PRICE_FILTER tick size.
func (c *SpotClient) PricePrecision(symbol string) (int, error) {
	info, err := c.symbolInfo(symbol)
	if err != nil {
		return 0, err
	}
	return info.pricePrecision, nil
}

func (c *SpotClient) symbolInfo(symbol string) (*spotSymbolInfo, error) {
	c.mu.Lock()
	if info, ok := c.infos[symbol]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doPublic("/api/v3/exchangeInfo", params)
	if err != nil {
		return nil, &DataUnavailableError{Op: "spot exchange info", Err: err}
	}

	var exchangeInfo struct {
		Symbols []struct {
			Symbol    string `json:"symbol"`
			BaseAsset string `json:"baseAsset"`
			Filters   []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
				MinQty     string `json:"minQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &exchangeInfo); err != nil {
		return nil, &DataUnavailableError{Op: "spot exchange info", Err: err}
	}

	for _, s := range exchangeInfo.Symbols {
		if s.Symbol != symbol {
			continue
		}
		info := &spotSymbolInfo{baseAsset: s.BaseAsset}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				info.pricePrecision = precisionFromStep(f.TickSize)
			case "LOT_SIZE":
				info.qtyPrecision = precisionFromStep(f.StepSize)
				info.minQty, _ = strconv.ParseFloat(f.MinQty, 64)
			}
		}
		c.mu.Lock()
		c.infos[symbol] = info
		c.mu.Unlock()
		return info, nil
	}
	return nil, &DataUnavailableError{Op: "spot exchange info", Err: fmt.Errorf("symbol %s not found", symbol)}
}
