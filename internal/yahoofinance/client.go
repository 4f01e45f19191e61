package yahoofinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/provider"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// ProviderName tags instruments and errors originating from Yahoo Finance.
const ProviderName = "yahoo_finance"

// Module sets for the two payloads a company target produces. The profile
// side carries assetProfile and price; the statements side carries the three
// annual statement histories.
const (
	infoModules      = "assetProfile,price"
	financialModules = "incomeStatementHistory,balanceSheetHistory,cashflowStatementHistory"
)

const defaultBackoff = time.Second

// Client fetches company fundamentals from the public quoteSummary endpoint.
// No credential pool here: the endpoint is key-less, so transient failures
// are handled with bounded same-request retries instead of rotation.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	sleeper provider.Sleeper
	retries int
	backoff time.Duration
	log     *logger.Log
}

func NewClient(cfg *appconfig.Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.Providers.YahooFinance.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Extract.Timeout,
		},
		limiter: rate.NewLimiter(rate.Every(cfg.Extract.Pace), 1),
		sleeper: provider.ClockSleeper{},
		retries: cfg.Extract.NetRetries,
		backoff: defaultBackoff,
		log:     logger.GetLogger(),
	}

	c.log.WithComponent("yahoofinance_client").WithFields(logger.Fields{
		"pace":    cfg.Extract.Pace.String(),
		"retries": c.retries,
	}).Info("yahoo finance client initialized")

	return c
}

// WithSleeper swaps the backoff sleeper. Tests inject a fake so retry
// schedules can be asserted without real delay.
func (c *Client) WithSleeper(s provider.Sleeper) *Client {
	c.sleeper = s
	return c
}

// WithBackoff overrides the initial retry backoff.
func (c *Client) WithBackoff(d time.Duration) *Client {
	if d > 0 {
		c.backoff = d
	}
	return c
}

// FetchCompany retrieves both payloads for one ticker: the financial
// statement histories and the profile. Either both come back or the target
// fails as a unit, so the snapshot pair never ends up half-written.
func (c *Client) FetchCompany(ctx context.Context, symbol string) (financials, info []byte, err error) {
	financials, err = c.fetchModules(ctx, symbol, financialModules)
	if err != nil {
		return nil, nil, err
	}
	info, err = c.fetchModules(ctx, symbol, infoModules)
	if err != nil {
		return nil, nil, err
	}
	return financials, info, nil
}

// fetchModules issues one quoteSummary request, retrying transient failures
// with exponential backoff and jitter. Schema problems (bad ticker, broken
// envelope) surface immediately: retries cannot fix them.
func (c *Client) fetchModules(ctx context.Context, symbol, modules string) ([]byte, error) {
	target := domain.Target{Domain: domain.Company, Symbol: symbol}
	log := c.log.WithComponent("yahoofinance_client").WithFields(logger.Fields{
		"target":  target.Key(),
		"modules": modules,
	})

	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			log.WithFields(logger.Fields{"attempt": attempt, "backoff": jitter.String()}).Warn("transient provider failure, backing off")
			if err := c.sleeper.Sleep(ctx, jitter); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		body, err := c.doRequest(ctx, symbol, modules)
		if err == nil {
			if reason := validate(body); reason != "" {
				return nil, &provider.SchemaError{Provider: ProviderName, Target: target.String(), Reason: reason}
			}
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var httpErr *statusError
		if errors.As(err, &httpErr) && !httpErr.retryable() {
			return nil, &provider.SchemaError{Provider: ProviderName, Target: target.String(), Reason: httpErr.reason()}
		}
	}

	return nil, &provider.NetworkError{Provider: ProviderName, Target: target.String(), Err: lastErr}
}

func (c *Client) doRequest(ctx context.Context, symbol, modules string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s&formatted=false",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(modules))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: body}
	}

	logger.IncrementProviderCall(len(body))
	return body, nil
}

// statusError carries a non-200 response so the retry loop can decide
// between backing off and failing the target outright.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (e *statusError) retryable() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

// reason extracts the provider's own error wording when the body carries a
// quoteSummary error envelope, falling back to the bare status.
func (e *statusError) reason() string {
	if desc := envelopeError(e.body); desc != "" {
		return desc
	}
	return e.Error()
}

type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []json.RawMessage `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// validate checks the response envelope of a 200 reply. The result array
// must hold exactly one entry for a single-ticker query.
func validate(body []byte) string {
	var env quoteSummaryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "response is not valid JSON"
	}
	if env.QuoteSummary.Error != nil {
		return env.QuoteSummary.Error.Description
	}
	if len(env.QuoteSummary.Result) == 0 {
		return "quoteSummary result is empty"
	}
	return ""
}

func envelopeError(body []byte) string {
	var env quoteSummaryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.QuoteSummary.Error != nil {
		return env.QuoteSummary.Error.Description
	}
	return ""
}
