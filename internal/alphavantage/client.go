package alphavantage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/provider"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// ProviderName tags instruments and errors originating from Alpha Vantage.
const ProviderName = "alpha_vantage"

// Client fetches time-indexed payloads from Alpha Vantage and survives
// per-credential throttling by rotating through an ordered key pool. The
// client owns the pool; no other component may rotate it.
type Client struct {
	baseURL           string
	client            *http.Client
	pool              *KeyPool
	limiter           *rate.Limiter
	sleeper           provider.Sleeper
	netRetries        int
	cooldown          time.Duration
	maxCooldownRounds int
	outputSize        string
	log               *logger.Log
}

func NewClient(cfg *appconfig.Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.Providers.AlphaVantage.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Extract.Timeout,
		},
		pool:              NewKeyPool(cfg.Providers.AlphaVantage.APIKeys),
		limiter:           rate.NewLimiter(rate.Every(cfg.Extract.Pace), 1),
		sleeper:           provider.ClockSleeper{},
		netRetries:        cfg.Extract.NetRetries,
		cooldown:          cfg.Extract.Cooldown,
		maxCooldownRounds: cfg.Extract.MaxCooldownRounds,
		outputSize:        cfg.Extract.OutputSize,
		log:               logger.GetLogger(),
	}

	c.log.WithComponent("alphavantage_client").WithFields(logger.Fields{
		"keys":                c.pool.Len(),
		"pace":                cfg.Extract.Pace.String(),
		"cooldown":            cfg.Extract.Cooldown.String(),
		"max_cooldown_rounds": cfg.Extract.MaxCooldownRounds,
	}).Info("alpha vantage client initialized")

	return c
}

// WithSleeper swaps the cooldown sleeper. Tests inject a fake to exercise
// the rotation protocol without real delay.
func (c *Client) WithSleeper(s provider.Sleeper) *Client {
	c.sleeper = s
	return c
}

// ResetPool rewinds the credential cursor. Called at the start of a run so
// rotation state never carries over from a previous batch.
func (c *Client) ResetPool() {
	c.pool.Reset()
}

// Fetch retrieves the raw payload for one target. Each credential is tried
// once per round (with bounded same-credential retries on transport errors);
// a round in which every credential was throttled triggers a single
// cancellable cooldown before the next round, up to the configured maximum.
// Schema errors surface immediately without consuming a rotation.
func (c *Client) Fetch(ctx context.Context, target domain.Target) ([]byte, error) {
	if target.Domain == domain.Company {
		return nil, fmt.Errorf("alpha vantage does not serve the company domain")
	}

	log := c.log.WithComponent("alphavantage_client").WithFields(logger.Fields{
		"domain": string(target.Domain),
		"target": target.Key(),
	})

	cooldowns := 0
	for {
		throttled := 0
		var lastNetErr error

		for tried := 0; tried < c.pool.Len(); tried++ {
			key, keyIdx := c.pool.Current()

			body, out, err := c.attempt(ctx, target, key)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.WithError(err).WithFields(logger.Fields{"key_index": keyIdx}).Warn("request failed after retries, rotating credential")
				lastNetErr = err
				c.pool.Advance()
				continue
			}

			switch out.Kind {
			case outcomeOK:
				return body, nil
			case outcomeThrottled:
				logger.IncrementProviderThrottle()
				log.LogMetric("alphavantage_client", "rate_limit_marker", int64(1), "counter", logger.Fields{
					"domain": string(target.Domain),
					"target": target.Key(),
				})
				log.WithFields(logger.Fields{"key_index": keyIdx, "marker": out.Marker}).Warn("rate limit marker received, rotating credential")
				throttled++
				c.pool.Advance()
			case outcomeSchemaError:
				// A bad shape stays bad under every credential, so it must
				// not consume a rotation.
				return nil, &provider.SchemaError{Provider: ProviderName, Target: target.String(), Reason: out.Reason}
			}
		}

		if throttled == 0 {
			// The whole round died on transport errors. Cooling down will
			// not revive the network, so fail fast.
			return nil, &provider.NetworkError{Provider: ProviderName, Target: target.String(), Err: lastNetErr}
		}

		if cooldowns >= c.maxCooldownRounds {
			return nil, &provider.RateLimitExhaustedError{
				Provider: ProviderName,
				Target:   target.String(),
				Keys:     c.pool.Len(),
				Rounds:   cooldowns,
			}
		}
		cooldowns++

		log.WithFields(logger.Fields{
			"cooldown": c.cooldown.String(),
			"round":    cooldowns,
		}).Warn("credential pool exhausted, entering cooldown")

		if err := c.sleeper.Sleep(ctx, c.cooldown); err != nil {
			return nil, err
		}
	}
}

// attempt issues the request with one credential, retrying transport errors
// at the same credential up to netRetries extra times.
func (c *Client) attempt(ctx context.Context, target domain.Target, key string) ([]byte, outcome, error) {
	var lastErr error
	for try := 0; try <= c.netRetries; try++ {
		body, err := c.doRequest(ctx, target, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, outcome{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		return body, classify(target.Domain, body), nil
	}
	return nil, outcome{}, lastErr
}

func (c *Client) doRequest(ctx context.Context, target domain.Target, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, buildQuery(target, key, c.outputSize).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	logger.IncrementProviderCall(len(body))
	return body, nil
}
