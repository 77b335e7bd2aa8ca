package clients

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/momotrade/momo/internal/domain"
)

type tickerData struct {
	Instrument string `json:"i"`
	Last       string `json:"a"`
	High       string `json:"h"`
	Low        string `json:"l"`
	Volume     string `json:"v"`
	Bid        string `json:"b"`
	Ask        string `json:"k"`
	Timestamp  int64  `json:"t"`
}

type tickerResponse struct {
	apiEnvelope
	Result struct {
		Data []tickerData `json:"data"`
	} `json:"result"`
}

// GetTicker fetches the latest ticker for an instrument and converts it to
// a market snapshot. The last traded price fills both open and close; the
// exchange ticker carries no bar-open information.
func (c *CryptoComClient) GetTicker(ctx context.Context, instrument string) (*TickerResult, error) {
	var resp tickerResponse
	params := map[string]any{"instrument_name": instrument}
	if err := c.doPublic(ctx, methodGetTickers, params, &resp); err != nil {
		return nil, err
	}

	res := &TickerResult{Envelope: Envelope{Code: resp.Code, Message: resp.Message}}
	if !res.OK() || len(resp.Result.Data) == 0 {
		return res, nil
	}

	d := resp.Result.Data[0]
	ts := c.now()
	if d.Timestamp > 0 {
		ts = time.UnixMilli(d.Timestamp)
	}
	last := parseDecimal(d.Last)

	res.Snapshot = &domain.MarketSnapshot{
		Instrument: instrument,
		Timestamp:  ts,
		Open:       last,
		High:       parseDecimal(d.High),
		Low:        parseDecimal(d.Low),
		Close:      last,
		Volume:     parseDecimal(d.Volume),
		Bid:        parseNullDecimal(d.Bid),
		Ask:        parseNullDecimal(d.Ask),
	}
	return res, nil
}

type candleData struct {
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Timestamp int64  `json:"t"`
}

type candlestickResponse struct {
	apiEnvelope
	Result struct {
		Data []candleData `json:"data"`
	} `json:"result"`
}

// GetCandlesticks fetches up to count historical bars for an instrument.
func (c *CryptoComClient) GetCandlesticks(ctx context.Context, instrument, timeframe string, count int) (*CandlestickResult, error) {
	var resp candlestickResponse
	params := map[string]any{
		"instrument_name": instrument,
		"timeframe":       timeframe,
		"count":           count,
	}
	if err := c.doPublic(ctx, methodGetCandlestick, params, &resp); err != nil {
		return nil, err
	}

	res := &CandlestickResult{Envelope: Envelope{Code: resp.Code, Message: resp.Message}}
	if !res.OK() {
		return res, nil
	}

	res.Candles = make([]domain.MarketSnapshot, len(resp.Result.Data))
	for i, d := range resp.Result.Data {
		res.Candles[i] = domain.MarketSnapshot{
			Instrument: instrument,
			Timestamp:  time.UnixMilli(d.Timestamp),
			Open:       parseDecimal(d.Open),
			High:       parseDecimal(d.High),
			Low:        parseDecimal(d.Low),
			Close:      parseDecimal(d.Close),
			Volume:     parseDecimal(d.Volume),
		}
	}
	return res, nil
}

type instrumentsResponse struct {
	apiEnvelope
	Result struct {
		Data []Instrument `json:"data"`
	} `json:"result"`
}

// GetInstruments lists tradable instruments.
func (c *CryptoComClient) GetInstruments(ctx context.Context) (*InstrumentsResult, error) {
	var resp instrumentsResponse
	if err := c.doPublic(ctx, methodGetInstruments, nil, &resp); err != nil {
		return nil, err
	}
	return &InstrumentsResult{
		Envelope:    Envelope{Code: resp.Code, Message: resp.Message},
		Instruments: resp.Result.Data,
	}, nil
}

type balanceData struct {
	TotalCashBalance      string `json:"total_cash_balance"`
	TotalAvailableBalance string `json:"total_available_balance"`
}

type balanceResponse struct {
	apiEnvelope
	Result struct {
		Data []balanceData `json:"data"`
	} `json:"result"`
}

// GetBalance fetches the account's total and available balances.
func (c *CryptoComClient) GetBalance(ctx context.Context) (*BalanceResult, error) {
	var resp balanceResponse
	if err := c.doPrivate(ctx, methodUserBalance, map[string]any{}, &resp); err != nil {
		return nil, err
	}

	res := &BalanceResult{Envelope: Envelope{Code: resp.Code, Message: resp.Message}}
	if !res.OK() || len(resp.Result.Data) == 0 {
		return res, nil
	}

	d := resp.Result.Data[0]
	res.Total = parseDecimal(d.TotalCashBalance)
	res.Available = parseDecimal(d.TotalAvailableBalance)
	return res, nil
}

type openOrdersResponse struct {
	apiEnvelope
	Result struct {
		Data []OpenOrder `json:"data"`
	} `json:"result"`
}

// GetOpenOrders lists resting orders, optionally filtered by instrument.
func (c *CryptoComClient) GetOpenOrders(ctx context.Context, instrument string) (*OpenOrdersResult, error) {
	params := map[string]any{}
	if instrument != "" {
		params["instrument_name"] = instrument
	}

	var resp openOrdersResponse
	if err := c.doPrivate(ctx, methodGetOpenOrders, params, &resp); err != nil {
		return nil, err
	}
	return &OpenOrdersResult{
		Envelope: Envelope{Code: resp.Code, Message: resp.Message},
		Orders:   resp.Result.Data,
	}, nil
}

type orderDetailResponse struct {
	apiEnvelope
	Result struct {
		Data []OpenOrder `json:"data"`
	} `json:"result"`
}

// GetOrderDetail fetches a single order by id.
func (c *CryptoComClient) GetOrderDetail(ctx context.Context, orderID string) (*OrderDetailResult, error) {
	var resp orderDetailResponse
	params := map[string]any{"order_id": orderID}
	if err := c.doPrivate(ctx, methodGetOrderDetail, params, &resp); err != nil {
		return nil, err
	}

	res := &OrderDetailResult{Envelope: Envelope{Code: resp.Code, Message: resp.Message}}
	if res.OK() && len(resp.Result.Data) > 0 {
		order := resp.Result.Data[0]
		res.Order = &order
	}
	return res, nil
}

type orderResponse struct {
	apiEnvelope
	Result struct {
		OrderID   string `json:"order_id"`
		ClientOID string `json:"client_oid"`
	} `json:"result"`
}

// CreateOrder submits a new order. A client order id is generated when the
// request does not carry one.
func (c *CryptoComClient) CreateOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	clientOID := order.ClientOID
	if clientOID == "" {
		clientOID = uuid.NewString()
	}

	params := map[string]any{
		"instrument_name": order.Instrument,
		"side":            string(order.Side),
		"type":            string(order.Type),
		"quantity":        order.Quantity.String(),
		"client_oid":      clientOID,
	}
	if order.Price.Valid {
		params["price"] = order.Price.Decimal.String()
	}

	var resp orderResponse
	if err := c.doPrivate(ctx, methodCreateOrder, params, &resp); err != nil {
		return nil, err
	}

	res := &OrderResult{
		Envelope:  Envelope{Code: resp.Code, Message: resp.Message},
		OrderID:   resp.Result.OrderID,
		ClientOID: resp.Result.ClientOID,
	}
	if res.ClientOID == "" {
		res.ClientOID = clientOID
	}

	c.logger.Debug("order submitted",
		zap.String("instrument", order.Instrument),
		zap.String("side", string(order.Side)),
		zap.String("quantity", order.Quantity.String()),
		zap.Int64("code", res.Code))
	return res, nil
}

// CancelOrder cancels a single order by id.
func (c *CryptoComClient) CancelOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	var resp orderResponse
	params := map[string]any{"order_id": orderID}
	if err := c.doPrivate(ctx, methodCancelOrder, params, &resp); err != nil {
		return nil, err
	}
	return &OrderResult{
		Envelope: Envelope{Code: resp.Code, Message: resp.Message},
		OrderID:  orderID,
	}, nil
}

// CancelAllOrders cancels every resting order, optionally scoped to an
// instrument.
func (c *CryptoComClient) CancelAllOrders(ctx context.Context, instrument string) (*OrderResult, error) {
	params := map[string]any{}
	if instrument != "" {
		params["instrument_name"] = instrument
	}

	var resp orderResponse
	if err := c.doPrivate(ctx, methodCancelAllOrders, params, &resp); err != nil {
		return nil, err
	}
	return &OrderResult{Envelope: Envelope{Code: resp.Code, Message: resp.Message}}, nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseNullDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
