package market

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"CoinSentinel/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// candleTimeLayout is the zone-less timestamp format of Upbit candle rows.
const candleTimeLayout = "2006-01-02T15:04:05"

// UpbitClient implements MarketData and Account against the Upbit REST API.
// Public endpoints need no credentials; Balances requires an access/secret
// key pair and signs each request with a short-lived JWT.
type UpbitClient struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	Client    *http.Client
}

// NewUpbitClient creates a client for the given API base URL. Keys may be
// empty when only public endpoints are used.
func NewUpbitClient(baseURL, accessKey, secretKey string) *UpbitClient {
	if baseURL == "" {
		baseURL = "https://api.upbit.com"
	}
	return &UpbitClient{
		BaseURL:   baseURL,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *UpbitClient) Name() string { return "upbit" }

func (c *UpbitClient) get(path string, out interface{}) error {
	return c.do(path, "", out)
}

func (c *UpbitClient) do(path, authToken string, out interface{}) error {
	req, err := http.NewRequest("GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("upbit fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("upbit read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upbit: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("upbit decode: %w", err)
	}
	return nil
}

// authToken signs a request JWT: access key + uuid nonce, HS256.
func (c *UpbitClient) authToken() (string, error) {
	if c.AccessKey == "" || c.SecretKey == "" {
		return "", fmt.Errorf("upbit: api keys not configured")
	}
	claims := jwt.MapClaims{
		"access_key": c.AccessKey,
		"nonce":      uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// tickerRow is the /v1/ticker response shape (one row per market).
type tickerRow struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	AccTradePrice24h  float64 `json:"acc_trade_price_24h"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
}

func (c *UpbitClient) CurrentPrice(ticker string) (float64, error) {
	snap, err := c.Snapshot(ticker)
	if err != nil {
		return 0, err
	}
	return snap.TradePrice, nil
}

func (c *UpbitClient) Snapshot(ticker string) (Snapshot, error) {
	var rows []tickerRow
	if err := c.get("/v1/ticker?markets="+url.QueryEscape(ticker), &rows); err != nil {
		return Snapshot{}, err
	}
	if len(rows) == 0 {
		return Snapshot{}, fmt.Errorf("upbit: no ticker data for %s", ticker)
	}
	return Snapshot{TradePrice: rows[0].TradePrice, Volume24h: rows[0].AccTradeVolume24h}, nil
}

// candleRow is the /v1/candles response shape.
type candleRow struct {
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

// OHLCV fetches candles for the given interval ("day" or "minute60") and
// returns them oldest first. The API reports newest first.
func (c *UpbitClient) OHLCV(ticker, interval string, count int) ([]model.Candle, error) {
	var path string
	switch interval {
	case IntervalDay:
		path = fmt.Sprintf("/v1/candles/days?market=%s&count=%d", url.QueryEscape(ticker), count)
	case IntervalHourly:
		path = fmt.Sprintf("/v1/candles/minutes/60?market=%s&count=%d", url.QueryEscape(ticker), count)
	default:
		return nil, fmt.Errorf("upbit: unsupported candle interval %q", interval)
	}

	var rows []candleRow
	if err := c.get(path, &rows); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(candleTimeLayout, r.DateTimeUTC)
		if err != nil {
			continue // skip rows with malformed timestamps
		}
		if r.OpeningPrice == 0 && r.HighPrice == 0 && r.LowPrice == 0 && r.TradePrice == 0 {
			continue
		}
		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      r.OpeningPrice,
			High:      r.HighPrice,
			Low:       r.LowPrice,
			Close:     r.TradePrice,
			Volume:    r.AccVolume,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

// marketRow is the /v1/market/all response shape.
type marketRow struct {
	Market string `json:"market"`
}

// AllTickers lists every market quoted in the given currency (e.g. "KRW").
func (c *UpbitClient) AllTickers(quote string) ([]string, error) {
	var rows []marketRow
	if err := c.get("/v1/market/all", &rows); err != nil {
		return nil, err
	}
	prefix := quote + "-"
	tickers := make([]string, 0, len(rows))
	for _, r := range rows {
		if strings.HasPrefix(r.Market, prefix) {
			tickers = append(tickers, r.Market)
		}
	}
	return tickers, nil
}

// BatchMetrics fetches 24h metrics for many tickers in one call.
func (c *UpbitClient) BatchMetrics(tickers []string) ([]model.CoinMetrics, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	var rows []tickerRow
	if err := c.get("/v1/ticker?markets="+url.QueryEscape(strings.Join(tickers, ",")), &rows); err != nil {
		return nil, err
	}
	metrics := make([]model.CoinMetrics, 0, len(rows))
	for _, r := range rows {
		metrics = append(metrics, model.CoinMetrics{
			Market:           r.Market,
			TradePrice:       r.TradePrice,
			HighPrice:        r.HighPrice,
			LowPrice:         r.LowPrice,
			AccTradePrice24h: r.AccTradePrice24h,
			SignedChangeRate: r.SignedChangeRate,
		})
	}
	return metrics, nil
}

// accountRow is the /v1/accounts response shape. Amounts arrive as
// decimal strings.
type accountRow struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Locked   string `json:"locked"`
}

func (c *UpbitClient) Balances() ([]Balance, error) {
	token, err := c.authToken()
	if err != nil {
		return nil, err
	}
	var rows []accountRow
	if err := c.do("/v1/accounts", token, &rows); err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(rows))
	for _, r := range rows {
		bal, err := decimal.NewFromString(r.Balance)
		if err != nil {
			continue // skip unparseable rows rather than failing the call
		}
		locked, err := decimal.NewFromString(r.Locked)
		if err != nil {
			locked = decimal.Zero
		}
		balances = append(balances, Balance{Currency: r.Currency, Balance: bal, Locked: locked})
	}
	return balances, nil
}
