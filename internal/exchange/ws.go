// ws.go implements Kraken's WebSocket feeds.
//
// Three independent connections run concurrently, each with its own
// reconnect loop:
//
//   - MarketFeed (public, legacy v1 protocol at wss://ws.kraken.com):
//     subscribes to "trade" and "spread" for one pair, emitting
//     types.MarketEvent.
//
//   - ExecutionFeed (authenticated, v2 protocol at wss://ws-auth.kraken.com/v2):
//     subscribes to the "executions" channel using a bootstrap token from
//     Client.GetWebSocketsToken, emitting types.OrderReport.
//
//   - BalanceFeed (authenticated, v2 protocol, same URL): subscribes to the
//     "balances" channel, publishing account balances to an InventoryWatch.
//
// All three reconnect with exponential backoff (1s, capped at 2s) on failure.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"kraken-mm/internal/execution"
	"kraken-mm/pkg/types"
)

const (
	marketFeedURL  = "wss://ws.kraken.com"
	privateFeedURL = "wss://ws-auth.kraken.com/v2"

	maxReconnectWait = 2 * time.Second
	minReconnectWait = time.Second
)

// runWithReconnect repeatedly invokes connectOnce, applying exponential
// backoff between attempts, until ctx is cancelled.
func runWithReconnect(ctx context.Context, logger *slog.Logger, connectOnce func(context.Context) error) {
	backoff := minReconnectWait

	for {
		err := connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// MarketFeed streams top-of-book and trade events for one instrument from
// Kraken's public websocket.
type MarketFeed struct {
	url        string
	instrument types.Instrument
	events     chan types.MarketEvent
	logger     *slog.Logger
}

// NewMarketFeed creates a market data feed for instrument.
func NewMarketFeed(instrument types.Instrument, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		url:        marketFeedURL,
		instrument: instrument,
		events:     make(chan types.MarketEvent, 10_000),
		logger:     logger.With("component", "ws_market"),
	}
}

// Events returns the channel of parsed market events.
func (f *MarketFeed) Events() <-chan types.MarketEvent { return f.events }

// Run connects and maintains the market feed with auto-reconnect. Blocks
// until ctx is cancelled.
func (f *MarketFeed) Run(ctx context.Context) error {
	runWithReconnect(ctx, f.logger, f.connectAndRead)
	return ctx.Err()
}

func (f *MarketFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	pair := f.instrument.Base + "/" + f.instrument.Quote
	subscriptions := []map[string]interface{}{
		{"event": "subscribe", "pair": []string{pair}, "subscription": map[string]string{"name": "trade"}},
		{"event": "subscribe", "pair": []string{pair}, "subscription": map[string]string{"name": "spread"}},
	}
	for _, sub := range subscriptions {
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	f.logger.Info("kraken market websocket connected", "pair", pair)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if evt, ok := parseMarketEvent(msg); ok {
			select {
			case f.events <- evt:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// parseMarketEvent decodes a Kraken v1 array message: [channel_id, payload,
// channel_name, pair]. Object messages (subscription_status, heartbeat) are
// ignored.
func parseMarketEvent(raw []byte) (types.MarketEvent, bool) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return types.MarketEvent{}, false
	}
	arr, ok := probe.([]interface{})
	if !ok || len(arr) < 4 {
		return types.MarketEvent{}, false
	}

	channelName, _ := arr[2].(string)
	payload := arr[1]

	switch channelName {
	case "trade":
		return parseTrade(payload)
	case "spread":
		return parseSpread(payload)
	default:
		return types.MarketEvent{}, false
	}
}

func parseTrade(payload interface{}) (types.MarketEvent, bool) {
	trades, ok := payload.([]interface{})
	if !ok || len(trades) == 0 {
		return types.MarketEvent{}, false
	}
	first, ok := trades[0].([]interface{})
	if !ok || len(first) < 3 {
		return types.MarketEvent{}, false
	}

	price, ok1 := decimalField(first[0])
	qty, ok2 := decimalField(first[1])
	ts, ok3 := decimalField(first[2])
	if !ok1 || !ok2 || !ok3 {
		return types.MarketEvent{}, false
	}

	return types.MarketEvent{
		Kind:     types.EventTrade,
		Price:    price,
		Quantity: qty,
		TsMillis: int64(ts * 1000),
	}, true
}

func parseSpread(payload interface{}) (types.MarketEvent, bool) {
	fields, ok := payload.([]interface{})
	if !ok || len(fields) < 2 {
		return types.MarketEvent{}, false
	}

	bid, ok1 := decimalField(fields[0])
	ask, ok2 := decimalField(fields[1])
	if !ok1 || !ok2 {
		return types.MarketEvent{}, false
	}

	var ts float64
	if len(fields) > 2 {
		ts, _ = decimalField(fields[2])
	}

	return types.MarketEvent{
		Kind:     types.EventTopOfBook,
		BestBid:  bid,
		BestAsk:  ask,
		TsMillis: int64(ts * 1000),
	}, true
}

// decimalField parses a Kraken numeric wire value (always a JSON string) via
// shopspring/decimal, avoiding float-parsing artifacts at the adapter
// boundary before handing the value off as the core's float64 Price.
func decimalField(v interface{}) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ExecutionFeed streams order execution reports from Kraken's authenticated
// v2 websocket, correlated on the client's own cl_ord_id.
type ExecutionFeed struct {
	client *Client
	reports chan types.OrderReport
	logger *slog.Logger
}

// NewExecutionFeed creates a feed that bootstraps its own WS token from
// client on each (re)connect, since tokens expire.
func NewExecutionFeed(client *Client, logger *slog.Logger) *ExecutionFeed {
	return &ExecutionFeed{
		client:  client,
		reports: make(chan types.OrderReport, 10_000),
		logger:  logger.With("component", "ws_executions"),
	}
}

// Reports returns the channel of parsed execution reports.
func (f *ExecutionFeed) Reports() <-chan types.OrderReport { return f.reports }

// Run connects and maintains the execution feed with auto-reconnect.
func (f *ExecutionFeed) Run(ctx context.Context) error {
	runWithReconnect(ctx, f.logger, f.connectAndRead)
	return ctx.Err()
}

func (f *ExecutionFeed) connectAndRead(ctx context.Context) error {
	token, err := f.client.GetWebSocketsToken(ctx)
	if err != nil {
		return fmt.Errorf("get ws token: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, privateFeedURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"method": "subscribe",
		"params": map[string]interface{}{
			"channel":      "executions",
			"token":        token,
			"snap_orders":  true,
			"snap_trades":  true,
			"order_status": true,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("kraken executions websocket connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame struct {
			Channel string            `json:"channel"`
			Data    []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Channel != "executions" {
			continue
		}

		for _, raw := range frame.Data {
			report, ok := parseExecutionReport(raw)
			if !ok {
				continue
			}
			select {
			case f.reports <- report:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseExecutionReport(raw json.RawMessage) (types.OrderReport, bool) {
	var v struct {
		ExecType string          `json:"exec_type"`
		ClOrdID  string          `json:"cl_ord_id"`
		Side     string          `json:"side"`
		Price    json.Number     `json:"price"`
		AvgPrice json.Number     `json:"avg_price"`
		LastQty  json.Number     `json:"last_qty"`
		Qty      json.Number     `json:"qty"`
		OrderQty json.Number     `json:"order_qty"`
		CumQty   json.Number     `json:"cum_qty"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return types.OrderReport{}, false
	}
	if v.ClOrdID == "" {
		return types.OrderReport{}, false
	}

	side := types.Buy
	if strings.EqualFold(v.Side, "sell") {
		side = types.Sell
	}

	price := firstNonEmpty(v.Price, v.AvgPrice)
	qty := firstNonEmpty(v.LastQty, v.Qty, v.OrderQty)
	cum := v.CumQty.String()

	switch v.ExecType {
	case "new":
		return types.OrderReport{Kind: types.ReportAccepted, OrderID: v.ClOrdID, Side: side, Price: types.Price(parseNum(price)), Quantity: parseNum(qty)}, true
	case "trade":
		return types.OrderReport{Kind: types.ReportPartiallyFilled, OrderID: v.ClOrdID, Side: side, Price: types.Price(parseNum(price)), Quantity: parseNum(qty), CumQuantity: maxFloat(parseNum(cum), parseNum(qty))}, true
	case "filled":
		return types.OrderReport{Kind: types.ReportFilled, OrderID: v.ClOrdID, Side: side, Price: types.Price(parseNum(price)), Quantity: parseNum(qty), CumQuantity: maxFloat(parseNum(cum), parseNum(qty))}, true
	case "canceled":
		return types.OrderReport{Kind: types.ReportCancelled, OrderID: v.ClOrdID, Side: side}, true
	case "expired":
		return types.OrderReport{Kind: types.ReportRejected, OrderID: v.ClOrdID, Side: side, Reason: "expired"}, true
	default:
		return types.OrderReport{}, false
	}
}

func firstNonEmpty(vals ...json.Number) json.Number {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseNum(n json.Number) float64 {
	if n == "" {
		return 0
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return f
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// BalanceFeed streams account balances from Kraken's authenticated v2
// websocket, publishing the base/quote figures relevant to instrument to an
// InventoryWatch.
type BalanceFeed struct {
	client     *Client
	instrument types.Instrument
	watch      *execution.InventoryWatch
	logger     *slog.Logger
}

// NewBalanceFeed creates a feed that keeps watch up to date with the
// instrument's base/quote balances.
func NewBalanceFeed(client *Client, instrument types.Instrument, watch *execution.InventoryWatch, logger *slog.Logger) *BalanceFeed {
	return &BalanceFeed{
		client:     client,
		instrument: instrument,
		watch:      watch,
		logger:     logger.With("component", "ws_balances"),
	}
}

// Run connects and maintains the balance feed with auto-reconnect.
func (f *BalanceFeed) Run(ctx context.Context) error {
	runWithReconnect(ctx, f.logger, f.connectAndRead)
	return ctx.Err()
}

func (f *BalanceFeed) connectAndRead(ctx context.Context) error {
	token, err := f.client.GetWebSocketsToken(ctx)
	if err != nil {
		return fmt.Errorf("get ws token: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, privateFeedURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"method": "subscribe",
		"params": map[string]interface{}{
			"channel": "balances",
			"token":   token,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("kraken balances websocket connected")

	baseCodes := krakenBalanceCodes(f.instrument.Base)
	quoteCodes := krakenBalanceCodes(f.instrument.Quote)
	current := f.watch.Get()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame struct {
			Channel string `json:"channel"`
			Data    []struct {
				Asset   string  `json:"asset"`
				Balance float64 `json:"balance"`
				Wallets []struct {
					Type    string  `json:"type"`
					ID      string  `json:"id"`
					Balance float64 `json:"balance"`
				} `json:"wallets"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Channel != "balances" {
			continue
		}

		changed := false
		if bal, ok := pickBalance(frame.Data, baseCodes); ok {
			current.Base = bal
			changed = true
		}
		if bal, ok := pickBalance(frame.Data, quoteCodes); ok {
			current.Quote = bal
			changed = true
		}
		if changed {
			f.watch.Set(current)
		}
	}
}

func pickBalance(entries []struct {
	Asset   string  `json:"asset"`
	Balance float64 `json:"balance"`
	Wallets []struct {
		Type    string  `json:"type"`
		ID      string  `json:"id"`
		Balance float64 `json:"balance"`
	} `json:"wallets"`
}, codes []string) (float64, bool) {
	for _, code := range codes {
		for _, e := range entries {
			if !strings.EqualFold(e.Asset, code) {
				continue
			}
			for _, w := range e.Wallets {
				if w.Type == "spot" && w.ID == "main" {
					return w.Balance, true
				}
			}
			return e.Balance, true
		}
	}
	return 0, false
}

// krakenBalanceCodes returns the asset codes Kraken may report a given
// currency under, including its legacy Z/X-prefixed forms.
func krakenBalanceCodes(sym string) []string {
	switch strings.ToUpper(sym) {
	case "BTC", "XBT":
		return []string{"XBT", "XXBT", "BTC"}
	case "USD":
		return []string{"USD", "ZUSD"}
	case "EUR":
		return []string{"EUR", "ZEUR"}
	case "GBP":
		return []string{"GBP", "ZGBP"}
	default:
		return []string{strings.ToUpper(sym)}
	}
}
