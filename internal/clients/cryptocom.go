// Package clients contains exchange API clients.
package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/momotrade/momo/internal/domain"
)

const (
	liveRestURL    = "https://api.crypto.com/exchange/v1"
	sandboxRestURL = "https://uat-api.3ona.co/exchange/v1"

	// minimum spacing between outbound requests
	defaultMinRequestInterval = 100 * time.Millisecond

	// depth cap for recursive parameter serialization in signatures
	maxSignatureParamsLevel = 3

	methodGetTickers      = "public/get-tickers"
	methodGetInstruments  = "public/get-instruments"
	methodGetCandlestick  = "public/get-candlestick"
	methodUserBalance     = "private/user-balance"
	methodGetOpenOrders   = "private/get-open-orders"
	methodGetOrderDetail  = "private/get-order-detail"
	methodCreateOrder     = "private/create-order"
	methodCancelOrder     = "private/cancel-order"
	methodCancelAllOrders = "private/cancel-all-orders"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Instrument string
	Side       OrderSide
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.NullDecimal
	ClientOID  string
}

// Envelope carries the application-level result code of an exchange
// response. A non-zero code means the request reached the exchange and was
// rejected; it is returned to the caller rather than raised, so callers
// must branch on OK() explicitly. Transport failures surface as errors.
type Envelope struct {
	Code    int64
	Message string
}

// OK reports application-level success.
func (e Envelope) OK() bool { return e.Code == 0 }

// TickerResult is the outcome of a get-tickers call.
type TickerResult struct {
	Envelope
	Snapshot *domain.MarketSnapshot
}

// BalanceResult is the outcome of a user-balance call.
type BalanceResult struct {
	Envelope
	Total     decimal.Decimal
	Available decimal.Decimal
}

// OrderResult is the outcome of an order mutation call.
type OrderResult struct {
	Envelope
	OrderID   string
	ClientOID string
}

// Instrument describes a tradable instrument listed on the exchange.
type Instrument struct {
	Name          string `json:"instrument_name"`
	BaseCurrency  string `json:"base_ccy"`
	QuoteCurrency string `json:"quote_ccy"`
	Tradable      bool   `json:"tradable"`
}

// InstrumentsResult is the outcome of a get-instruments call.
type InstrumentsResult struct {
	Envelope
	Instruments []Instrument
}

// CandlestickResult is the outcome of a get-candlestick call.
type CandlestickResult struct {
	Envelope
	Candles []domain.MarketSnapshot
}

// OpenOrder describes an order resting on the book.
type OpenOrder struct {
	OrderID    string `json:"order_id"`
	ClientOID  string `json:"client_oid"`
	Instrument string `json:"instrument_name"`
	Side       string `json:"side"`
	Status     string `json:"status"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
}

// OpenOrdersResult is the outcome of a get-open-orders call.
type OpenOrdersResult struct {
	Envelope
	Orders []OpenOrder
}

// OrderDetailResult is the outcome of a get-order-detail call.
type OrderDetailResult struct {
	Envelope
	Order *OpenOrder
}

// CryptoComClient talks to the Crypto.com Exchange v1 REST API. Public
// methods are issued as GET requests with query parameters, private methods
// as signed POST requests. The client throttles all outbound calls through
// a shared marker and allocates monotonic request ids; both live under one
// mutex so concurrent callers cannot produce signature mismatches.
type CryptoComClient struct {
	apiKey    string
	secretKey string
	http      *resty.Client
	logger    *zap.Logger

	mu          sync.Mutex
	requestID   int64
	lastRequest time.Time
	minInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// Option configures a CryptoComClient.
type Option func(*CryptoComClient)

// WithBaseURL overrides the REST endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *CryptoComClient) {
		c.http.SetBaseURL(url)
	}
}

// WithMinRequestInterval overrides the throttle spacing.
func WithMinRequestInterval(d time.Duration) Option {
	return func(c *CryptoComClient) {
		c.minInterval = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *CryptoComClient) {
		c.logger = l
	}
}

// NewCryptoComClient creates a client for the live or sandbox environment.
func NewCryptoComClient(apiKey, secretKey string, sandbox bool, opts ...Option) *CryptoComClient {
	baseURL := liveRestURL
	if sandbox {
		baseURL = sandboxRestURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	c := &CryptoComClient{
		apiKey:      apiKey,
		secretKey:   secretKey,
		http:        httpClient,
		logger:      zap.NewNop(),
		minInterval: defaultMinRequestInterval,
		now:         time.Now,
		sleep:       time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close releases idle transport connections.
func (c *CryptoComClient) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// nextRequest blocks until the minimum request interval has elapsed since
// the previous call, then advances the throttle marker and allocates the
// next request id.
func (c *CryptoComClient) nextRequest() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := c.minInterval - c.now().Sub(c.lastRequest); wait > 0 {
			c.sleep(wait)
		}
	}
	c.lastRequest = c.now()

	c.requestID++
	return c.requestID
}

// sign produces the HMAC-SHA256 hex signature over the canonical string
// method + id + apiKey + serialized params + nonce.
func (c *CryptoComClient) sign(method string, id int64, params map[string]any, nonce int64) string {
	payload := method + strconv.FormatInt(id, 10) + c.apiKey + paramsToString(params, 0) + strconv.FormatInt(nonce, 10)

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// paramsToString serializes parameters for signing: keys sorted, values
// stringified, nested maps recursed and lists concatenated element-wise.
// Recursion is capped at maxSignatureParamsLevel, beyond which the value is
// stringified wholesale.
func paramsToString(obj any, level int) string {
	if obj == nil {
		return ""
	}
	if level >= maxSignatureParamsLevel {
		return stringify(obj)
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return stringify(obj)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, k := range keys {
		out += k
		switch v := m[k].(type) {
		case nil:
			out += "null"
		case []any:
			for _, item := range v {
				out += paramsToString(item, level+1)
			}
		case map[string]any:
			out += paramsToString(v, level+1)
		default:
			out += stringify(v)
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

type apiEnvelope struct {
	Code    int64  `json:"code"`
	Message string `json:"message,omitempty"`
}

type requestPayload struct {
	ID        int64          `json:"id"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params,omitempty"`
	APIKey    string         `json:"api_key,omitempty"`
	Signature string         `json:"sig,omitempty"`
	Nonce     int64          `json:"nonce,omitempty"`
}

// doPublic issues a GET request with the params encoded as query values.
func (c *CryptoComClient) doPublic(ctx context.Context, method string, params map[string]any, result any) error {
	c.nextRequest()

	// the exchange always answers JSON, regardless of what a proxy labels it
	req := c.http.R().SetContext(ctx).SetResult(result).ForceContentType("application/json")
	for k, v := range params {
		req.SetQueryParam(k, stringify(v))
	}

	resp, err := req.Get("/" + method)
	if err != nil {
		return errors.Wrapf(err, "request %s failed", method)
	}
	if resp.IsError() {
		return errors.Errorf("request %s failed with HTTP status %d", method, resp.StatusCode())
	}
	return nil
}

// doPrivate issues a signed POST request.
func (c *CryptoComClient) doPrivate(ctx context.Context, method string, params map[string]any, result any) error {
	id := c.nextRequest()
	nonce := c.now().UnixMilli()

	payload := requestPayload{
		ID:        id,
		Method:    method,
		Params:    params,
		APIKey:    c.apiKey,
		Signature: c.sign(method, id, params, nonce),
		Nonce:     nonce,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		ForceContentType("application/json").
		Post("/" + method)
	if err != nil {
		return errors.Wrapf(err, "request %s failed", method)
	}
	if resp.IsError() {
		return errors.Errorf("request %s failed with HTTP status %d", method, resp.StatusCode())
	}
	return nil
}
