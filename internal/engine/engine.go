// Package engine runs the per-market decision loop: reconcile local state
// against the venue, then either manage the open position or look for an
// entry. One Engine instance serves one market; the three instances share
// nothing but configuration and the event bus.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/binance"
	"consensus-trading-bot/internal/database"
	"consensus-trading-bot/internal/events"
	"consensus-trading-bot/internal/indicator"
	"consensus-trading-bot/internal/position"
	"consensus-trading-bot/internal/risk"
	"consensus-trading-bot/internal/strategy"
)

const klineFetchLimit = 200

// sleepByTimeframe maps the decision timeframe to the pause between cycles.
var sleepByTimeframe = map[string]time.Duration{
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
}

// Engine drives one market instance.
type Engine struct {
	market    string
	cfg       config.MarketConfig
	indicators config.IndicatorConfig
	atrLength int

	adapter   binance.MarketAdapter
	evaluator *strategy.Evaluator
	trend     *strategy.TrendFilter
	htfTF     string
	targets   *risk.Calculator
	store     *position.Store
	repo      *database.Repository
	bus       *events.EventBus
	clock     Clock
	log       zerolog.Logger
}

// Deps bundles the engine's collaborators. Repo may be nil when trade
// history is disabled.
type Deps struct {
	Adapter binance.MarketAdapter
	Store   *position.Store
	Repo    *database.Repository
	Bus     *events.EventBus
	Clock   Clock
	Log     zerolog.Logger
}

// New creates an engine for one market instance.
func New(cfg *config.Config, market config.MarketConfig, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{
		market:     string(deps.Adapter.Type()),
		cfg:        market,
		indicators: cfg.Indicators,
		atrLength:  cfg.ATR.Length,
		adapter:    deps.Adapter,
		evaluator:  strategy.NewEvaluator(cfg.Indicators),
		trend:      strategy.NewTrendFilter(cfg.HTF),
		htfTF:      cfg.HTF.Timeframe,
		targets:    risk.NewCalculator(cfg.ATR, market),
		store:      deps.Store,
		repo:       deps.Repo,
		bus:        deps.Bus,
		clock:      clock,
		log:        deps.Log,
	}
}

// Setup applies one-time venue settings. Futures instances set margin type
// and leverage; a leverage failure is fatal because position sizing and the
// liquidation check both assume it.
func (e *Engine) Setup() error {
	setup, ok := e.adapter.(binance.FuturesSetup)
	if !ok {
		return nil
	}

	if err := setup.ChangeMarginType(e.cfg.Symbol, e.cfg.MarginType); err != nil {
		e.log.Warn().Err(err).Str("margin_type", e.cfg.MarginType).Msg("margin type change failed")
	}
	if err := setup.ChangeLeverage(e.cfg.Symbol, e.cfg.Leverage); err != nil {
		return fmt.Errorf("leverage setup: %w", err)
	}
	e.log.Info().Int("leverage", e.cfg.Leverage).Str("margin_type", e.cfg.MarginType).Msg("futures setup complete")
	return nil
}

// Run executes decision cycles until the context is cancelled. Every
// per-cycle failure is logged and skipped; only cancellation ends the loop.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().Str("symbol", e.cfg.Symbol).Str("timeframe", e.cfg.Timeframe).Msg("engine started")
	e.bus.Publish(events.Event{Type: events.EventBotStarted, Market: e.market})

	sleep, ok := sleepByTimeframe[e.cfg.Timeframe]
	if !ok {
		sleep = time.Hour
		e.log.Warn().Str("timeframe", e.cfg.Timeframe).Msg("unknown timeframe, sleeping 1h between cycles")
	}

	for {
		e.Cycle(ctx)
		if err := e.clock.Sleep(ctx, sleep); err != nil {
			break
		}
	}

	e.shutdown()
	e.log.Info().Msg("engine stopped")
	e.bus.Publish(events.Event{Type: events.EventBotStopped, Market: e.market})
}

// shutdown cancels any resting protective orders so a stop placed by this
// process does not outlive it unattended. Best-effort; the position itself
// is left open and the next run re-parks the stop.
func (e *Engine) shutdown() {
	if !e.cfg.PlaceStopOrder || e.adapter.Type() == binance.MarketSpot {
		return
	}
	if err := e.adapter.CancelAllOpenOrders(e.cfg.Symbol); err != nil {
		e.log.Warn().Err(err).Msg("protective order cleanup failed on shutdown")
	}
}

// Cycle runs a single reconcile-and-decide pass. A panic anywhere inside is
// caught at this boundary so one poisoned cycle cannot take the loop down.
func (e *Engine) Cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("unexpected error in decision cycle")
			e.bus.PublishError(e.market, "cycle", fmt.Errorf("panic: %v", r))
		}
	}()

	truth, err := e.adapter.FetchTruth(e.cfg.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Msg("position fetch failed, skipping cycle")
		return
	}

	rec, err := e.store.Load()
	if err != nil {
		e.log.Error().Err(err).Msg("position state unreadable, skipping cycle")
		return
	}

	out := position.Reconcile(rec, truth)
	if out.Conflict != "" {
		e.log.Warn().Str("conflict", out.Conflict).Msg("reconciliation conflict, venue wins")
		e.bus.PublishReconcileConflict(e.market, e.cfg.Symbol, out.Conflict)
	}
	switch {
	case out.Record == nil && rec != nil:
		if err := e.store.Delete(ctx); err != nil {
			e.log.Error().Err(err).Msg("stale position state delete failed, skipping cycle")
			return
		}
	case out.Record != nil && out.Conflict != "":
		if err := e.store.Save(ctx, out.Record); err != nil {
			e.log.Error().Err(err).Msg("reconciled position state save failed, skipping cycle")
			return
		}
	}
	rec = out.Record

	klines, err := e.adapter.FetchKlines(e.cfg.Symbol, e.cfg.Timeframe, klineFetchLimit)
	if err != nil {
		e.log.Warn().Err(err).Msg("kline fetch failed, skipping cycle")
		return
	}
	// Need the latest closed bar (len-2) and its predecessor both past the
	// indicator warmup.
	if len(klines) < indicator.MinBars(e.atrLength)+2 {
		e.log.Warn().Int("bars", len(klines)).Msg("insufficient candle history, skipping cycle")
		return
	}

	frame := indicator.Calculate(klines, e.atrLength)
	latest := frame.Bar(frame.Len() - 2)
	prev := frame.Bar(frame.Len() - 3)

	e.log.Debug().
		Float64("close", latest.Close).
		Float64("sma_short", latest.SMAShort).
		Float64("sma_long", latest.SMALong).
		Float64("rsi", latest.RSI).
		Float64("macd", latest.MACD).
		Float64("stoch_k", latest.StochK).
		Float64("atr", latest.ATR).
		Msg("indicator snapshot")

	if rec != nil {
		e.manage(ctx, rec, truth, latest, prev)
		return
	}
	e.seek(ctx, latest, prev)
}

// manage runs the holding path: rebuild missing targets, check price
// breaches, then the exit consensus.
func (e *Engine) manage(ctx context.Context, rec *position.Record, truth *binance.Truth, latest, prev indicator.Bar) {
	if rec.StopLoss == 0 || rec.TakeProfit == 0 {
		precision, err := e.adapter.PricePrecision(e.cfg.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Msg("price precision fetch failed, skipping cycle")
			return
		}
		// The entry-time ATR is gone; the percentage mode is the
		// conservative rebuild.
		t := e.targets.ComputeFixed(rec.Side, rec.EntryPrice, precision)
		rec.StopLoss = t.StopLoss
		rec.TakeProfit = t.TakeProfit
		if err := e.store.Save(ctx, rec); err != nil {
			e.log.Error().Err(err).Msg("rebuilt targets save failed, skipping cycle")
			return
		}
		e.log.Info().Float64("stop_loss", t.StopLoss).Float64("take_profit", t.TakeProfit).
			Bool("atr", t.UsedATR).Msg("rebuilt protective targets")
	}

	price, err := e.currentPrice(truth)
	if err != nil {
		e.log.Warn().Err(err).Msg("price fetch failed, skipping cycle")
		return
	}

	if hit, reason := risk.Breached(rec.Side, price, risk.Targets{StopLoss: rec.StopLoss, TakeProfit: rec.TakeProfit}); hit {
		e.log.Info().Str("reason", reason).Float64("price", price).Msg("protective target hit")
		e.closePosition(ctx, rec, truth, price, reason)
		return
	}

	var eval strategy.Evaluation
	if rec.Side == binance.SideBuy {
		eval = e.evaluator.LongExit(latest, prev)
	} else {
		eval = e.evaluator.ShortExit(latest, prev)
	}
	e.log.Debug().Int("satisfied", eval.Satisfied).Int("total", eval.Total).
		Strs("reasons", eval.Reasons).Msg("exit consensus")

	if eval.Meets(e.indicators.MinExitConditions) {
		e.bus.PublishSignal(e.market, e.cfg.Symbol, "EXIT", eval.Satisfied, eval.Total, eval.Reasons)
		e.log.Info().Strs("reasons", eval.Reasons).Msg("exit consensus reached")
		e.closePosition(ctx, rec, truth, price, "consensus_exit")
	}
}

// currentPrice prefers the mark price the venue already reported for
// futures; spot has no mark price and asks the ticker.
func (e *Engine) currentPrice(truth *binance.Truth) (float64, error) {
	if e.adapter.Type() != binance.MarketSpot && truth.MarkPrice > 0 {
		return truth.MarkPrice, nil
	}
	return e.adapter.CurrentPrice(e.cfg.Symbol)
}

// closePosition cancels resting orders, flattens at market, and clears the
// local state. An order rejection leaves the state untouched for the next
// cycle to retry.
func (e *Engine) closePosition(ctx context.Context, rec *position.Record, truth *binance.Truth, price float64, reason string) {
	if err := e.adapter.CancelAllOpenOrders(e.cfg.Symbol); err != nil {
		e.log.Warn().Err(err).Msg("open order cancel failed")
	}

	qty := rec.Quantity
	if e.adapter.Type() == binance.MarketSpot && truth.Amount > 0 {
		// Sell the full free balance so fee dust does not strand a remainder.
		qty = truth.Amount
	}

	order := binance.MarketOrder{
		Symbol:        e.cfg.Symbol,
		Side:          oppositeSide(rec.Side),
		Quantity:      qty,
		ClientOrderID: clientOrderID(),
	}
	fill, err := e.adapter.PlaceMarketOrder(order)
	if err != nil {
		e.log.Error().Err(err).Msg("close order rejected, position kept for next cycle")
		e.bus.PublishError(e.market, "close", err)
		return
	}

	exitPrice := price
	if fill.AvgPrice > 0 {
		exitPrice = fill.AvgPrice
	}

	if err := e.store.Delete(ctx); err != nil {
		e.log.Error().Err(err).Msg("position state delete failed after close")
	}

	e.recordExit(ctx, exitPrice, reason)
	e.bus.PublishTradeClosed(e.market, e.cfg.Symbol, reason, rec.EntryPrice, exitPrice, qty)
	e.log.Info().Str("reason", reason).Float64("entry", rec.EntryPrice).
		Float64("exit", exitPrice).Float64("quantity", qty).Msg("position closed")
}

// seek runs the flat path: gate on the higher-timeframe trend, then look
// for an entry consensus.
func (e *Engine) seek(ctx context.Context, latest, prev indicator.Bar) {
	trend := strategy.TrendNeutral
	if e.trend.Enabled() {
		htf, err := e.adapter.FetchKlines(e.cfg.Symbol, e.htfTF, klineFetchLimit)
		if err != nil {
			e.log.Warn().Err(err).Msg("trend kline fetch failed, trading ungated")
		} else {
			trend = e.trend.Evaluate(htf)
			if trend == strategy.TrendNeutral {
				e.log.Warn().Int("bars", len(htf)).Msg("higher-timeframe trend neutral, trading ungated")
			}
		}
		e.log.Debug().Str("trend", string(trend)).Msg("higher-timeframe bias")
	}

	longEval := e.evaluator.LongEntry(latest, prev)
	e.log.Debug().Int("satisfied", longEval.Satisfied).Int("total", longEval.Total).
		Strs("reasons", longEval.Reasons).Msg("long entry consensus")

	if longEval.Meets(e.indicators.MinEntryConditions) {
		if !e.trend.AllowsLong(trend) {
			e.log.Info().Str("trend", string(trend)).Msg("long entry vetoed by trend filter")
		} else {
			e.bus.PublishSignal(e.market, e.cfg.Symbol, "LONG_ENTRY", longEval.Satisfied, longEval.Total, longEval.Reasons)
			e.enter(ctx, binance.SideBuy, latest)
			return
		}
	}

	if !e.adapter.CanShort() {
		return
	}

	shortEval := e.evaluator.ShortEntry(latest, prev)
	e.log.Debug().Int("satisfied", shortEval.Satisfied).Int("total", shortEval.Total).
		Strs("reasons", shortEval.Reasons).Msg("short entry consensus")

	if shortEval.Meets(e.indicators.MinEntryConditions) {
		if !e.trend.AllowsShort(trend) {
			e.log.Info().Str("trend", string(trend)).Msg("short entry vetoed by trend filter")
			return
		}
		e.bus.PublishSignal(e.market, e.cfg.Symbol, "SHORT_ENTRY", shortEval.Satisfied, shortEval.Total, shortEval.Reasons)
		e.enter(ctx, binance.SideSell, latest)
	}
}

// enter places the entry order, reads back the fill, computes protective
// targets, and persists the new position.
func (e *Engine) enter(ctx context.Context, side string, latest indicator.Bar) {
	order := binance.MarketOrder{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		ClientOrderID: clientOrderID(),
	}
	if e.adapter.Type() == binance.MarketSpot {
		order.QuoteQuantity = e.cfg.QuoteQuantity
	} else {
		order.Quantity = e.cfg.Quantity
	}

	fill, err := e.adapter.PlaceMarketOrder(order)
	if err != nil {
		e.log.Error().Err(err).Str("side", side).Msg("entry order rejected")
		e.bus.PublishError(e.market, "entry", err)
		return
	}

	// The fill read-back may lag; ask the venue for its entry price before
	// falling back to the latest close, so a zero price is never persisted.
	entryPrice := fill.AvgPrice
	if entryPrice <= 0 && e.adapter.Type() != binance.MarketSpot {
		if truth, err := e.adapter.FetchTruth(e.cfg.Symbol); err == nil && truth.EntryPrice > 0 {
			entryPrice = truth.EntryPrice
		}
	}
	if entryPrice <= 0 {
		entryPrice = latest.Close
		e.log.Warn().Msg("fill price unavailable, using latest close as entry price")
	}
	qty := fill.ExecutedQty
	if qty <= 0 {
		qty = e.cfg.Quantity
	}

	precision, err := e.adapter.PricePrecision(e.cfg.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Msg("price precision fetch failed, using unrounded targets")
		precision = -1
	}
	targets := e.targets.Compute(side, entryPrice, latest.ATR, precision)

	rec := &position.Record{
		Side:       side,
		EntryPrice: entryPrice,
		Quantity:   qty,
		StopLoss:   targets.StopLoss,
		TakeProfit: targets.TakeProfit,
		EntryTime:  e.clock.Now().UTC(),
		OrderID:    fill.OrderID,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		// The venue holds a position the file does not; the reconciler
		// adopts it next cycle.
		e.log.Error().Err(err).Msg("position state save failed after entry")
	}

	e.placeProtectiveStop(side, targets.StopLoss)
	e.recordEntry(ctx, rec)
	e.bus.PublishTradeOpened(e.market, e.cfg.Symbol, side, entryPrice, qty)
	e.log.Info().Str("side", side).Float64("entry", entryPrice).Float64("quantity", qty).
		Float64("stop_loss", targets.StopLoss).Float64("take_profit", targets.TakeProfit).
		Bool("atr", targets.UsedATR).Msg("position opened")
}

// placeProtectiveStop parks a venue-side STOP_MARKET so a crash between
// cycles cannot leave the position unprotected. Spot has no stop orders
// here; the engine's own breach check covers it.
func (e *Engine) placeProtectiveStop(side string, stopPrice float64) {
	if !e.cfg.PlaceStopOrder || e.adapter.Type() == binance.MarketSpot {
		return
	}
	err := e.adapter.PlaceStopOrder(binance.StopOrder{
		Symbol:        e.cfg.Symbol,
		Side:          oppositeSide(side),
		StopPrice:     stopPrice,
		ClosePosition: true,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("protective stop order failed, engine breach check still active")
	}
}

func (e *Engine) recordEntry(ctx context.Context, rec *position.Record) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.repo.RecordEntry(ctx, database.Trade{
		Market:     e.market,
		Symbol:     e.cfg.Symbol,
		Side:       rec.Side,
		EntryPrice: rec.EntryPrice,
		Quantity:   rec.Quantity,
		EntryTime:  rec.EntryTime,
		StopLoss:   rec.StopLoss,
		TakeProfit: rec.TakeProfit,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("trade history entry write failed")
	}
}

func (e *Engine) recordExit(ctx context.Context, exitPrice float64, reason string) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.repo.RecordExit(ctx, e.market, e.cfg.Symbol, exitPrice, reason); err != nil {
		e.log.Warn().Err(err).Msg("trade history exit write failed")
	}
}

func oppositeSide(side string) string {
	if side == binance.SideBuy {
		return binance.SideSell
	}
	return binance.SideBuy
}

func clientOrderID() string {
	return "bot-" + uuid.New().String()
}
