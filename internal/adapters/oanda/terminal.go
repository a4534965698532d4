package oanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

// maxCandles is the largest count the candles endpoint accepts.
const maxCandles = 5000

// closedTradesPage is the number of closed trades requested per ClosedDeals call.
const closedTradesPage = 500

var granularities = map[string]bool{
	"S5": true, "S10": true, "S15": true, "S30": true,
	"M1": true, "M2": true, "M4": true, "M5": true, "M10": true, "M15": true, "M30": true,
	"H1": true, "H2": true, "H3": true, "H4": true, "H6": true, "H8": true, "H12": true,
	"D": true, "W": true, "M": true,
}

// Connect verifies the token and account by reading the account summary.
func (c *Client) Connect(ctx context.Context) error {
	op := "Connect"
	var resp accountSummaryResponse
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/summary"), nil, nil, &resp); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrConnectionFailed, c.handleError(ctx, err, op))
	}

	c.mu.Lock()
	c.connected = true
	c.currency = resp.Account.Currency
	c.mu.Unlock()

	c.logger.Info(ctx, "Connected to OANDA", map[string]interface{}{
		"accountID": resp.Account.ID,
		"currency":  resp.Account.Currency,
	})
	return nil
}

// SelectSymbol checks that the instrument is tradeable on the account and caches its metadata.
func (c *Client) SelectSymbol(ctx context.Context, symbol string) error {
	op := "SelectSymbol"
	if err := c.requireConnected(op); err != nil {
		return err
	}
	_, err := c.instrument(ctx, symbol, op)
	return err
}

func (c *Client) instrument(ctx context.Context, symbol, op string) (instrument, error) {
	c.mu.RLock()
	inst, ok := c.instruments[symbol]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	var resp instrumentsResponse
	q := url.Values{"instruments": {symbol}}
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/instruments"), q, nil, &resp); err != nil {
		return instrument{}, c.handleError(ctx, err, op)
	}
	for _, in := range resp.Instruments {
		if in.Name == symbol {
			c.mu.Lock()
			c.instruments[symbol] = in
			c.mu.Unlock()
			c.logger.Debug(ctx, "Instrument selected", map[string]interface{}{
				"symbol":           symbol,
				"displayPrecision": in.DisplayPrecision,
				"pipLocation":      in.PipLocation,
			})
			return in, nil
		}
	}
	return instrument{}, fmt.Errorf("%s failed: instrument %s: %w", op, symbol, ports.ErrSymbolUnavailable)
}

// AccountInfo retrieves the current account balance.
func (c *Client) AccountInfo(ctx context.Context) (*domain.Account, error) {
	op := "AccountInfo"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	var resp accountSummaryResponse
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/summary"), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
	}
	balance, err := parseDecimal(resp.Account.Balance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, fmt.Errorf("balance: %w", err), op))
	}
	return &domain.Account{ID: resp.Account.ID, Currency: resp.Account.Currency, Balance: balance}, nil
}

// PriceHistory retrieves the latest count completed mid-price candles, oldest first.
// The still-forming candle is never returned.
func (c *Client) PriceHistory(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Bar, error) {
	op := "PriceHistory"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	granularity := strings.ToUpper(timeframe)
	if !granularities[granularity] {
		return nil, fmt.Errorf("%s failed: unknown timeframe %q: %w", op, timeframe, ports.ErrInvalidRequest)
	}
	if count <= 0 || count >= maxCandles {
		return nil, fmt.Errorf("%s failed: count %d out of range: %w", op, count, ports.ErrInvalidRequest)
	}

	q := url.Values{}
	q.Set("price", "M")
	q.Set("granularity", granularity)
	// One extra to make room for the forming candle.
	q.Set("count", strconv.Itoa(count+1))

	var resp candlesResponse
	path := "/v3/instruments/" + url.PathEscape(symbol) + "/candles"
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
	}

	bars := make([]*domain.Bar, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete || ac.Mid == nil {
			continue
		}
		bar, err := toBar(ac)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s failed: no completed candles for %s: %w", op, symbol, ports.ErrFetchFailed)
	}
	return bars, nil
}

func toBar(ac apiCandle) (*domain.Bar, error) {
	t, err := time.Parse(time.RFC3339Nano, ac.Time)
	if err != nil {
		return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
	}
	var ohlc [4]float64
	for i, s := range []string{ac.Mid.O, ac.Mid.H, ac.Mid.L, ac.Mid.C} {
		if ohlc[i], err = parseDecimal(s); err != nil {
			return nil, fmt.Errorf("parse candle %s: %w", ac.Time, err)
		}
	}
	return &domain.Bar{
		Time:   t,
		Open:   ohlc[0],
		High:   ohlc[1],
		Low:    ohlc[2],
		Close:  ohlc[3],
		Volume: float64(ac.Volume),
	}, nil
}

// SymbolInfo derives the quote conventions from the instrument's display precision and
// pip location. One tick is one point; tick size is that point measured in pips, and tick
// value is one point on one lot converted into the account currency.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	op := "SymbolInfo"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	inst, err := c.instrument(ctx, symbol, op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, err)
	}
	rate, err := c.quoteToHome(ctx, symbol, op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, err)
	}
	point := decimal.New(1, int32(-inst.DisplayPrecision))
	tickInPips := decimal.New(1, int32(-inst.DisplayPrecision-inst.PipLocation))
	return &domain.SymbolInfo{
		Symbol:    symbol,
		Digits:    inst.DisplayPrecision,
		Point:     point.InexactFloat64(),
		TickSize:  tickInPips.InexactFloat64(),
		TickValue: point.Mul(decimal.NewFromFloat(c.lotUnits)).Mul(rate).InexactFloat64(),
	}, nil
}

// quoteToHome returns the factor turning an amount in the symbol's quote currency into the
// account currency. The loss factor is used since sizing prices a stop being hit.
func (c *Client) quoteToHome(ctx context.Context, symbol, op string) (decimal.Decimal, error) {
	parts := strings.Split(symbol, "_")
	if len(parts) != 2 {
		return decimal.Zero, fmt.Errorf("%s failed: no quote currency in %s: %w", op, symbol, ports.ErrInvalidRequest)
	}
	quote := parts[1]

	c.mu.RLock()
	home := c.currency
	c.mu.RUnlock()
	if strings.EqualFold(quote, home) {
		return decimal.NewFromInt(1), nil
	}

	var resp pricingResponse
	q := url.Values{"instruments": {symbol}, "includeHomeConversions": {"true"}}
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/pricing"), q, nil, &resp); err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	for _, hc := range resp.HomeConversions {
		if hc.Currency != quote {
			continue
		}
		rate, err := decimal.NewFromString(hc.AccountLoss)
		if err != nil || !rate.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s failed: bad %s conversion %q: %w", op, quote, hc.AccountLoss, ports.ErrFetchFailed)
		}
		c.logger.Debug(ctx, "Quote currency converted", map[string]interface{}{
			"symbol": symbol,
			"from":   quote,
			"to":     home,
			"rate":   rate.String(),
		})
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%s failed: no %s to %s conversion: %w", op, quote, home, ports.ErrFetchFailed)
}

// LatestTick retrieves the best bid and ask.
func (c *Client) LatestTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	op := "LatestTick"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	var resp pricingResponse
	q := url.Values{"instruments": {symbol}}
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/pricing"), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
	}
	for _, p := range resp.Prices {
		if p.Instrument != symbol {
			continue
		}
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			break
		}
		bid, err := parseDecimal(p.Bids[0].Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
		}
		ask, err := parseDecimal(p.Asks[0].Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
		}
		t, _ := time.Parse(time.RFC3339Nano, p.Time)
		return &domain.Tick{Time: t, Bid: bid, Ask: ask}, nil
	}
	return nil, fmt.Errorf("%s failed: no quote for %s: %w", op, symbol, ports.ErrFetchFailed)
}

// SubmitOrder sends one MARKET order with stop-loss and take-profit attached on fill.
// A fill yields domain.ResultDone; a cancel or reject yields OANDA's reason as the code.
func (c *Client) SubmitOrder(ctx context.Context, req *domain.TradeRequest) (*domain.OrderResult, error) {
	op := "SubmitOrder"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	inst, err := c.instrument(ctx, req.Symbol, op)
	if err != nil {
		return nil, err
	}
	body, err := c.buildOrder(req, inst.DisplayPrecision)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	var resp orderResponse
	raw, err := c.do(ctx, http.MethodPost, c.accountPath("/orders"), nil, body, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound) {
			// Rejections come back as 400/404 with a reject transaction.
			var rejected orderResponse
			if json.Unmarshal(raw, &rejected) == nil && rejected.OrderRejectTransaction != nil {
				return c.orderResult(ctx, req, &rejected), nil
			}
		}
		return nil, c.handleError(ctx, err, op)
	}
	return c.orderResult(ctx, req, &resp), nil
}

func (c *Client) buildOrder(req *domain.TradeRequest, precision int) (*orderRequestBody, error) {
	if req.Volume <= 0 {
		return nil, fmt.Errorf("volume must be positive, got %v", req.Volume)
	}
	units := decimal.NewFromFloat(req.Volume).Mul(decimal.NewFromFloat(c.lotUnits)).Round(0)
	var bound decimal.Decimal
	price := decimal.NewFromFloat(req.Price)
	deviation := decimal.NewFromFloat(req.Deviation)
	switch req.Direction {
	case domain.Buy:
		bound = price.Add(deviation)
	case domain.Sell:
		units = units.Neg()
		bound = price.Sub(deviation)
	default:
		return nil, fmt.Errorf("unknown direction %q", req.Direction)
	}

	tif := string(req.FillPolicy)
	if tif == "" {
		tif = string(domain.FillImmediateOrCancel)
	}
	legTIF := string(req.TimeInForce)
	if legTIF == "" {
		legTIF = string(domain.TimeGoodTillCancelled)
	}
	places := int32(precision)
	tag := strconv.FormatInt(req.Magic, 10)

	order := marketOrderRequest{
		Type:         "MARKET",
		Instrument:   req.Symbol,
		Units:        units.String(),
		TimeInForce:  tif,
		PositionFill: "DEFAULT",
		ClientExtensions: &clientExtensions{
			Tag:     tag,
			Comment: req.Comment,
		},
		TradeClientExtensions: &clientExtensions{
			Tag:     tag,
			Comment: req.Comment,
		},
	}
	if req.Deviation > 0 {
		order.PriceBound = bound.StringFixed(places)
	}
	if req.StopLoss > 0 {
		order.StopLossOnFill = &onFillDetails{Price: decimal.NewFromFloat(req.StopLoss).StringFixed(places), TimeInForce: legTIF}
	}
	if req.TakeProfit > 0 {
		order.TakeProfitOnFill = &onFillDetails{Price: decimal.NewFromFloat(req.TakeProfit).StringFixed(places), TimeInForce: legTIF}
	}
	return &orderRequestBody{Order: order}, nil
}

func (c *Client) orderResult(ctx context.Context, req *domain.TradeRequest, resp *orderResponse) *domain.OrderResult {
	result := &domain.OrderResult{}
	switch {
	case resp.OrderFillTransaction != nil:
		fill := resp.OrderFillTransaction
		result.Code = domain.ResultDone
		result.Ticket = fill.ID
		if fill.TradeOpened != nil && fill.TradeOpened.TradeID != "" {
			result.Ticket = fill.TradeOpened.TradeID
		}
		result.Price, _ = parseDecimal(fill.Price)
	case resp.OrderCancelTransaction != nil:
		result.Code = resp.OrderCancelTransaction.Reason
		result.Message = "order cancelled"
		if resp.OrderCreateTransaction != nil {
			result.Ticket = resp.OrderCreateTransaction.ID
		}
	case resp.OrderRejectTransaction != nil:
		result.Code = resp.OrderRejectTransaction.RejectReason
		result.Message = resp.ErrorMessage
	default:
		result.Code = "UNKNOWN"
		result.Message = "no fill, cancel or reject transaction in response"
	}
	if result.Code == "" {
		result.Code = "UNKNOWN"
	}

	fields := map[string]interface{}{
		"symbol":    req.Symbol,
		"direction": req.Direction,
		"volume":    req.Volume,
		"code":      result.Code,
		"ticket":    result.Ticket,
	}
	if result.Succeeded() {
		c.logger.Debug(ctx, "Order filled", fields)
	} else {
		c.logger.Warn(ctx, "Order not filled", fields)
	}
	return result
}

// ClosedDeals retrieves trades closed within [from, to], oldest first.
// Only the most recent page of closed trades is scanned.
func (c *Client) ClosedDeals(ctx context.Context, from, to time.Time) ([]*domain.Deal, error) {
	op := "ClosedDeals"
	if err := c.requireConnected(op); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("state", "CLOSED")
	q.Set("count", strconv.Itoa(closedTradesPage))

	var resp tradesResponse
	if _, err := c.do(ctx, http.MethodGet, c.accountPath("/trades"), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFetchFailed, c.handleError(ctx, err, op))
	}

	deals := make([]*domain.Deal, 0, len(resp.Trades))
	for _, tr := range resp.Trades {
		deal, err := toDeal(tr, c.lotUnits)
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparseable trade", map[string]interface{}{"tradeID": tr.ID, "error": err.Error()})
			continue
		}
		if deal.Time.Before(from) || deal.Time.After(to) {
			continue
		}
		deals = append(deals, deal)
	}
	sort.Slice(deals, func(i, j int) bool { return deals[i].Time.Before(deals[j].Time) })
	return deals, nil
}

func toDeal(tr apiTrade, lotUnits float64) (*domain.Deal, error) {
	closeTime, err := time.Parse(time.RFC3339Nano, tr.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time %q: %w", tr.CloseTime, err)
	}
	units, err := decimal.NewFromString(tr.InitialUnits)
	if err != nil {
		return nil, fmt.Errorf("parse units %q: %w", tr.InitialUnits, err)
	}
	profit, err := parseDecimal(tr.RealizedPL)
	if err != nil {
		return nil, fmt.Errorf("parse realized P/L %q: %w", tr.RealizedPL, err)
	}
	price, _ := parseDecimal(tr.AverageClosePrice)

	deal := &domain.Deal{
		Ticket: tr.ID,
		Symbol: tr.Instrument,
		Type:   domain.DealBuy,
		Volume: units.Abs().Div(decimal.NewFromFloat(lotUnits)).InexactFloat64(),
		Price:  price,
		Profit: profit,
		Time:   closeTime,
	}
	if units.IsNegative() {
		deal.Type = domain.DealSell
	}
	if tr.ClientExtensions != nil {
		// Untagged or foreign tags leave Magic at zero.
		if magic, err := strconv.ParseInt(tr.ClientExtensions.Tag, 10, 64); err == nil {
			deal.Magic = magic
		}
	}
	return deal, nil
}

// Disconnect drops cached state and idle connections.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.instruments = make(map[string]instrument)
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	c.logger.Info(ctx, "Disconnected from OANDA")
	return nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
