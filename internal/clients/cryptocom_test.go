package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *CryptoComClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	return NewCryptoComClient("test-key", "test-secret", true,
		WithBaseURL(server.URL),
		WithMinRequestInterval(0))
}

func TestSignatureDeterminism(t *testing.T) {
	c := NewCryptoComClient("key", "secret", true)
	params := map[string]any{
		"instrument_name": "BTCUSD-PERP",
		"quantity":        "0.5",
	}

	sig1 := c.sign("private/create-order", 7, params, 1700000000000)
	sig2 := c.sign("private/create-order", 7, params, 1700000000000)
	require.Equal(t, sig1, sig2, "identical inputs must produce identical signatures")

	require.NotEqual(t, sig1, c.sign("private/cancel-order", 7, params, 1700000000000), "method must affect the signature")
	require.NotEqual(t, sig1, c.sign("private/create-order", 8, params, 1700000000000), "request id must affect the signature")
	require.NotEqual(t, sig1, c.sign("private/create-order", 7, params, 1700000000001), "nonce must affect the signature")
	require.NotEqual(t, sig1, c.sign("private/create-order", 7, map[string]any{"instrument_name": "ETHUSD-PERP", "quantity": "0.5"}, 1700000000000),
		"params must affect the signature")

	other := NewCryptoComClient("other-key", "secret", true)
	require.NotEqual(t, sig1, other.sign("private/create-order", 7, params, 1700000000000), "api key must affect the signature")
}

func TestParamsToString(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			name:   "keys sorted",
			params: map[string]any{"b": "2", "a": "1", "c": "3"},
			want:   "a1b2c3",
		},
		{
			name:   "nil rendered as null",
			params: map[string]any{"a": nil},
			want:   "anull",
		},
		{
			name: "lists concatenated element-wise",
			params: map[string]any{
				"orders": []any{
					map[string]any{"id": "1", "qty": "2"},
					map[string]any{"id": "3"},
				},
			},
			want: "ordersid1qty2id3",
		},
		{
			name:   "nested maps recursed",
			params: map[string]any{"outer": map[string]any{"y": "2", "x": "1"}},
			want:   "outerx1y2",
		},
		{
			name:   "numbers stringified",
			params: map[string]any{"count": 25},
			want:   "count25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, paramsToString(tt.params, 0))
		})
	}
}

func TestParamsToStringDepthCap(t *testing.T) {
	deep := map[string]any{
		"l1": map[string]any{
			"l2": map[string]any{
				"l3": map[string]any{"k": "v"},
			},
		},
	}
	// at level 3 the map is stringified wholesale instead of being recursed
	require.Equal(t, "l1l2l3map[k:v]", paramsToString(deep, 0))
}

func TestThrottleBlocksUntilIntervalElapsed(t *testing.T) {
	c := NewCryptoComClient("key", "secret", true)

	current := time.Unix(1700000000, 0)
	var slept []time.Duration
	c.now = func() time.Time { return current }
	c.sleep = func(d time.Duration) {
		slept = append(slept, d)
		current = current.Add(d)
	}

	id := c.nextRequest()
	require.Equal(t, int64(1), id)
	require.Empty(t, slept, "first request must not block")

	// 30ms later: must wait the remaining 70ms
	current = current.Add(30 * time.Millisecond)
	id = c.nextRequest()
	require.Equal(t, int64(2), id)
	require.Equal(t, []time.Duration{70 * time.Millisecond}, slept)

	// well past the interval: no wait
	current = current.Add(time.Second)
	id = c.nextRequest()
	require.Equal(t, int64(3), id)
	require.Len(t, slept, 1)
}

func TestGetTicker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method, "public methods use GET")
		require.Equal(t, "/public/get-tickers", r.URL.Path)
		require.Equal(t, "BTCUSD-PERP", r.URL.Query().Get("instrument_name"))

		fmt.Fprint(w, `{"code":0,"result":{"data":[{"i":"BTCUSD-PERP","a":"50000.5","h":"51000","l":"49000","v":"1234.5","b":"50000","k":"50001","t":1700000000000}]}}`)
	}))

	res, err := c.GetTicker(context.Background(), "BTCUSD-PERP")
	require.NoError(t, err)
	require.True(t, res.OK())
	require.NotNil(t, res.Snapshot)

	snap := res.Snapshot
	require.Equal(t, "BTCUSD-PERP", snap.Instrument)
	require.True(t, snap.Close.Equal(decimal.RequireFromString("50000.5")))
	require.True(t, snap.High.Equal(decimal.RequireFromString("51000")))
	require.True(t, snap.Volume.Equal(decimal.RequireFromString("1234.5")))
	require.True(t, snap.Bid.Valid)
	require.True(t, snap.Ask.Valid)
	require.Equal(t, time.UnixMilli(1700000000000), snap.Timestamp)
}

func TestGetTickerParsesMislabeledContentType(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// some proxies relabel JSON bodies; the client must not care
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, `{"code":0,"result":{"data":[{"i":"BTCUSD-PERP","a":"50000.5","h":"51000","l":"49000","v":"1234.5","b":"50000","k":"50001","t":1700000000000}]}}`)
	}))

	res, err := c.GetTicker(context.Background(), "BTCUSD-PERP")
	require.NoError(t, err)
	require.True(t, res.OK())
	require.NotNil(t, res.Snapshot)
	require.True(t, res.Snapshot.Close.Equal(decimal.RequireFromString("50000.5")))
}

func TestGetTickerApplicationFailureReturnedNotRaised(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":10002,"message":"UNAUTHORIZED"}`)
	}))

	res, err := c.GetTicker(context.Background(), "BTCUSD-PERP")
	require.NoError(t, err, "application failures are returned, not raised")
	require.False(t, res.OK())
	require.Equal(t, int64(10002), res.Code)
	require.Nil(t, res.Snapshot)
}

func TestTransportFailureRaised(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.GetTicker(context.Background(), "BTCUSD-PERP")
	require.Error(t, err, "HTTP-level failures surface as errors")
}

func TestCreateOrderSignsAndIncrementsRequestID(t *testing.T) {
	var payloads []requestPayload
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method, "private methods use POST")

		var p requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		payloads = append(payloads, p)

		fmt.Fprint(w, `{"code":0,"result":{"order_id":"12345","client_oid":"oid-1"}}`)
	}))

	order := OrderRequest{
		Instrument: "BTCUSD-PERP",
		Side:       OrderSideBuy,
		Type:       OrderTypeMarket,
		Quantity:   decimal.RequireFromString("0.25"),
	}

	res, err := c.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "12345", res.OrderID)

	_, err = c.CreateOrder(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, payloads, 2)
	require.Equal(t, int64(1), payloads[0].ID)
	require.Equal(t, int64(2), payloads[1].ID, "request ids increment by one per request")
	require.Equal(t, "test-key", payloads[0].APIKey)
	require.NotEmpty(t, payloads[0].Signature)
	require.NotEmpty(t, payloads[0].Nonce)
	require.Equal(t, "0.25", payloads[0].Params["quantity"])
	require.NotEmpty(t, payloads[0].Params["client_oid"], "client order id is generated when absent")
}

func TestGetBalance(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/private/user-balance", r.URL.Path)
		fmt.Fprint(w, `{"code":0,"result":{"data":[{"total_cash_balance":"50000","total_available_balance":"45000"}]}}`)
	}))

	res, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK())
	require.True(t, res.Total.Equal(decimal.NewFromInt(50000)))
	require.True(t, res.Available.Equal(decimal.NewFromInt(45000)))
}

func TestGetCandlesticks(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/public/get-candlestick", r.URL.Path)
		require.Equal(t, "1m", r.URL.Query().Get("timeframe"))
		require.Equal(t, "2", r.URL.Query().Get("count"))

		fmt.Fprint(w, `{"code":0,"result":{"data":[`+
			`{"o":"100","h":"110","l":"95","c":"105","v":"10","t":1700000000000},`+
			`{"o":"105","h":"112","l":"104","c":"111","v":"12","t":1700000060000}]}}`)
	}))

	res, err := c.GetCandlesticks(context.Background(), "BTCUSD-PERP", "1m", 2)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Candles, 2)
	require.True(t, res.Candles[0].Open.Equal(decimal.NewFromInt(100)))
	require.True(t, res.Candles[1].Close.Equal(decimal.NewFromInt(111)))
}

func TestCancelOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		require.Equal(t, "private/cancel-order", p.Method)
		require.Equal(t, "12345", p.Params["order_id"])
		fmt.Fprint(w, `{"code":0,"result":{}}`)
	}))

	res, err := c.CancelOrder(context.Background(), "12345")
	require.NoError(t, err)
	require.True(t, res.OK())
}
