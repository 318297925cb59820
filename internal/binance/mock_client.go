package binance

import "sync"

// MockAdapter is an in-memory MarketAdapter for tests and dry runs. Fields
// are set directly; every order-side call is recorded.
type MockAdapter struct {
	mu sync.Mutex

	MarketType MarketType
	Short      bool

	KlinesByInterval map[string][]Kline
	KlinesErr        error

	Truth    Truth
	TruthErr error

	Price    float64
	PriceErr error

	Precision int

	Fill     OrderFill
	OrderErr error

	MarketOrders []MarketOrder
	StopOrders   []StopOrder
	Cancelled    []string

	LeverageChanges   map[string]int
	MarginTypeChanges map[string]string
}

// NewMockAdapter creates a mock for the given market type.
func NewMockAdapter(marketType MarketType) *MockAdapter {
	return &MockAdapter{
		MarketType:        marketType,
		Short:             marketType != MarketSpot,
		KlinesByInterval:  make(map[string][]Kline),
		LeverageChanges:   make(map[string]int),
		MarginTypeChanges: make(map[string]string),
	}
}

func (m *MockAdapter) Type() MarketType { return m.MarketType }
func (m *MockAdapter) CanShort() bool   { return m.Short }

func (m *MockAdapter) FetchKlines(symbol, interval string, limit int) ([]Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.KlinesErr != nil {
		return nil, m.KlinesErr
	}
	return m.KlinesByInterval[interval], nil
}

func (m *MockAdapter) FetchTruth(symbol string) (*Truth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TruthErr != nil {
		return nil, m.TruthErr
	}
	t := m.Truth
	return &t, nil
}

func (m *MockAdapter) CurrentPrice(symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Price, nil
}

func (m *MockAdapter) PlaceMarketOrder(order MarketOrder) (*OrderFill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	m.MarketOrders = append(m.MarketOrders, order)
	f := m.Fill
	return &f, nil
}

func (m *MockAdapter) PlaceStopOrder(order StopOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return m.OrderErr
	}
	m.StopOrders = append(m.StopOrders, order)
	return nil
}

func (m *MockAdapter) CancelAllOpenOrders(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, symbol)
	return nil
}

func (m *MockAdapter) PricePrecision(symbol string) (int, error) {
	return m.Precision, nil
}

func (m *MockAdapter) ChangeMarginType(symbol, marginType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarginTypeChanges[symbol] = marginType
	return nil
}

func (m *MockAdapter) ChangeLeverage(symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeverageChanges[symbol] = leverage
	return nil
}

var _ FuturesSetup = (*MockAdapter)(nil)
