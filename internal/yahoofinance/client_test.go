package yahoofinance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/provider"
)

const infoPayload = `{
  "quoteSummary": {
    "result": [
      {
        "assetProfile": {
          "address1": "One Apple Park Way",
          "city": "Cupertino",
          "country": "United States",
          "website": "https://www.apple.com",
          "industry": "Consumer Electronics",
          "sector": "Technology",
          "fullTimeEmployees": 161000,
          "companyOfficers": [
            {
              "name": "Mr. Timothy D. Cook",
              "age": 62,
              "title": "CEO & Director",
              "yearBorn": 1960,
              "totalPay": {"raw": 16425933, "fmt": "16.43M"}
            }
          ]
        },
        "price": {
          "symbol": "AAPL",
          "longName": "Apple Inc.",
          "currency": "USD",
          "exchangeName": "NasdaqGS"
        }
      }
    ],
    "error": null
  }
}`

const financialsPayload = `{
  "quoteSummary": {
    "result": [
      {
        "incomeStatementHistory": {
          "incomeStatementHistory": [
            {
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalRevenue": {"raw": 383285000000, "fmt": "383.29B"},
              "netIncome": {"raw": 96995000000, "fmt": "97B"}
            }
          ]
        },
        "balanceSheetHistory": {
          "balanceSheetStatements": [
            {
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalAssets": {"raw": 352583000000, "fmt": "352.58B"}
            }
          ]
        },
        "cashflowStatementHistory": {
          "cashflowStatements": [
            {
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalCashFromOperatingActivities": {"raw": 110543000000, "fmt": "110.54B"}
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

const notFoundPayload = `{
  "quoteSummary": {
    "result": null,
    "error": {
      "code": "Not Found",
      "description": "Quote not found for ticker symbol: ZZZZ"
    }
  }
}`

type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	return f.err
}

func (f *fakeSleeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// scriptedHandler replays a response script and records the module set each
// request asked for.
type scriptedHandler struct {
	mu      sync.Mutex
	modules []string
	agents  []string
	respond func(call int, modules string) (int, string)
	calls   int
}

func (h *scriptedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	call := h.calls
	h.calls++
	mods := r.URL.Query().Get("modules")
	h.modules = append(h.modules, mods)
	h.agents = append(h.agents, r.Header.Get("User-Agent"))
	h.mu.Unlock()

	status, body := h.respond(call, mods)
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (h *scriptedHandler) seenModules() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.modules))
	copy(out, h.modules)
	return out
}

func newTestClient(t *testing.T, h *scriptedHandler, netRetries int) (*Client, *fakeSleeper) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &appconfig.Config{
		Extract: appconfig.ExtractConfig{
			Timeout:    5 * time.Second,
			Pace:       time.Millisecond,
			NetRetries: netRetries,
		},
		Providers: appconfig.ProvidersConfig{
			YahooFinance: appconfig.YahooFinanceConfig{BaseURL: srv.URL},
		},
	}
	sleeper := &fakeSleeper{}
	client := NewClient(cfg).WithSleeper(sleeper).WithBackoff(time.Millisecond)
	return client, sleeper
}

func respondByModules(_ int, modules string) (int, string) {
	if modules == financialModules {
		return http.StatusOK, financialsPayload
	}
	return http.StatusOK, infoPayload
}

func TestFetchCompany(t *testing.T) {
	h := &scriptedHandler{respond: respondByModules}
	client, sleeper := newTestClient(t, h, 0)

	financials, info, err := client.FetchCompany(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchCompany failed: %v", err)
	}
	if string(financials) != financialsPayload {
		t.Error("financials payload does not match provider response")
	}
	if string(info) != infoPayload {
		t.Error("info payload does not match provider response")
	}

	mods := h.seenModules()
	if len(mods) != 2 || mods[0] != financialModules || mods[1] != infoModules {
		t.Errorf("unexpected module sets: %v", mods)
	}
	for _, agent := range h.agents {
		if !strings.HasPrefix(agent, "Mozilla") {
			t.Errorf("unexpected user agent: %q", agent)
		}
	}
	if sleeper.count() != 0 {
		t.Errorf("unexpected backoffs: %d", sleeper.count())
	}
}

func TestFetchCompanyRetriesTransient(t *testing.T) {
	h := &scriptedHandler{respond: func(call int, modules string) (int, string) {
		if call == 0 {
			return http.StatusInternalServerError, "upstream exploded"
		}
		return respondByModules(call, modules)
	}}
	client, sleeper := newTestClient(t, h, 1)

	if _, _, err := client.FetchCompany(context.Background(), "AAPL"); err != nil {
		t.Fatalf("FetchCompany failed: %v", err)
	}
	if got := len(h.seenModules()); got != 3 {
		t.Errorf("unexpected request count: %d", got)
	}
	if sleeper.count() != 1 {
		t.Errorf("unexpected backoff count: %d", sleeper.count())
	}
}

func TestFetchCompanyUnknownTicker(t *testing.T) {
	h := &scriptedHandler{respond: func(int, string) (int, string) {
		return http.StatusNotFound, notFoundPayload
	}}
	client, sleeper := newTestClient(t, h, 2)

	_, _, err := client.FetchCompany(context.Background(), "ZZZZ")
	var schemaErr *provider.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if !strings.Contains(schemaErr.Reason, "Quote not found") {
		t.Errorf("provider wording lost: %q", schemaErr.Reason)
	}
	// a bad ticker is not transient, so no retries
	if got := len(h.seenModules()); got != 1 {
		t.Errorf("unexpected request count: %d", got)
	}
	if sleeper.count() != 0 {
		t.Errorf("unexpected backoffs: %d", sleeper.count())
	}
}

func TestFetchCompanyExhaustsRetries(t *testing.T) {
	h := &scriptedHandler{respond: func(int, string) (int, string) {
		return http.StatusServiceUnavailable, "maintenance"
	}}
	client, sleeper := newTestClient(t, h, 2)

	_, _, err := client.FetchCompany(context.Background(), "AAPL")
	var netErr *provider.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if got := len(h.seenModules()); got != 3 {
		t.Errorf("unexpected request count: %d", got)
	}
	if sleeper.count() != 2 {
		t.Errorf("unexpected backoff count: %d", sleeper.count())
	}
}

func TestFetchCompanyEnvelopeError(t *testing.T) {
	h := &scriptedHandler{respond: func(int, string) (int, string) {
		return http.StatusOK, notFoundPayload
	}}
	client, _ := newTestClient(t, h, 2)

	_, _, err := client.FetchCompany(context.Background(), "ZZZZ")
	var schemaErr *provider.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if got := len(h.seenModules()); got != 1 {
		t.Errorf("schema error retried: %d requests", got)
	}
}

func TestFetchCompanyEmptyResult(t *testing.T) {
	h := &scriptedHandler{respond: func(int, string) (int, string) {
		return http.StatusOK, `{"quoteSummary":{"result":[],"error":null}}`
	}}
	client, _ := newTestClient(t, h, 0)

	_, _, err := client.FetchCompany(context.Background(), "AAPL")
	var schemaErr *provider.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if !strings.Contains(schemaErr.Reason, "empty") {
		t.Errorf("unexpected reason: %q", schemaErr.Reason)
	}
}

func TestFetchCompanyCancelledDuringBackoff(t *testing.T) {
	h := &scriptedHandler{respond: func(int, string) (int, string) {
		return http.StatusBadGateway, "flaky"
	}}
	client, sleeper := newTestClient(t, h, 3)
	sleeper.err = context.Canceled

	_, _, err := client.FetchCompany(context.Background(), "AAPL")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sleeper.count() != 1 {
		t.Errorf("unexpected backoff count: %d", sleeper.count())
	}
}
