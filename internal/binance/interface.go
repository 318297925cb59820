package binance

// MarketAdapter is the venue capability set one decision loop requires. All
// calls are blocking; failures surface as DataUnavailableError (reads) or
// OrderRejectedError (orders).
type MarketAdapter interface {
	Type() MarketType
	CanShort() bool
	FetchKlines(symbol, interval string, limit int) ([]Kline, error)
	FetchTruth(symbol string) (*Truth, error)
	CurrentPrice(symbol string) (float64, error)
	PlaceMarketOrder(order MarketOrder) (*OrderFill, error)
	PlaceStopOrder(order StopOrder) error
	CancelAllOpenOrders(symbol string) error
	PricePrecision(symbol string) (int, error)
}

// FuturesSetup is the extra venue preparation margined markets need before
// the first cycle. Spot adapters do not implement it.
type FuturesSetup interface {
	ChangeMarginType(symbol, marginType string) error
	ChangeLeverage(symbol string, leverage int) error
}

var (
	_ MarketAdapter = (*SpotClient)(nil)
	_ MarketAdapter = (*FuturesClient)(nil)
	_ FuturesSetup  = (*FuturesClient)(nil)
	_ MarketAdapter = (*MockAdapter)(nil)
)
