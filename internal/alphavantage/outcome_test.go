package alphavantage

import (
	"strings"
	"testing"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

const (
	commodityPayload = `{"name":"Global Price of Copper","interval":"monthly","unit":"dollar per metric ton","data":[{"date":"2024-01-01","value":"8345.12"},{"date":"2024-02-01","value":"8401.77"}]}`

	cryptoPayload = `{"Meta Data":{"1. Information":"Daily Prices and Volumes for Digital Currency","2. Digital Currency Code":"BTC","3. Digital Currency Name":"Bitcoin","4. Market Code":"USD","5. Market Name":"United States Dollar","6. Last Refreshed":"2024-01-02 00:00:00","7. Time Zone":"UTC"},"Time Series (Digital Currency Daily)":{"2024-01-01":{"1. open":"42000.10","2. high":"43120.55","3. low":"41500.00","4. close":"42750.30","5. volume":"1234.56"},"2024-01-02":{"1. open":"42750.30","2. high":"43500.00","3. low":"42100.90","4. close":"43205.15","5. volume":"987.65"}}}`

	stockPayload = `{"Meta Data":{"1. Information":"Daily Prices (open, high, low, close) and Volumes","2. Symbol":"AAPL","3. Last Refreshed":"2024-01-02","4. Output Size":"Compact","5. Time Zone":"US/Eastern"},"Time Series (Daily)":{"2024-01-02":{"1. open":"185.10","2. high":"186.00","3. low":"184.00","4. close":"185.64","5. volume":"52342100"}}}`

	forexPayload = `{"Meta Data":{"1. Information":"Forex Daily Prices (open, high, low, close)","2. From Symbol":"EUR","3. To Symbol":"USD","4. Output Size":"Compact","5. Last Refreshed":"2024-01-02 21:05:00","6. Time Zone":"UTC"},"Time Series FX (Daily)":{"2024-01-02":{"1. open":"1.1043","2. high":"1.1065","3. low":"1.0982","4. close":"1.0994"}}}`

	fxRatePayload = `{"Realtime Currency Exchange Rate":{"1. From_Currency Code":"USD","2. From_Currency Name":"United States Dollar","3. To_Currency Code":"JPY","4. To_Currency Name":"Japanese Yen","5. Exchange Rate":"147.52000000","6. Last Refreshed":"2024-01-02 08:15:01","7. Time Zone":"UTC","8. Bid Price":"147.51000000","9. Ask Price":"147.53000000"}}`

	throttleNote = `{"Note":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`

	throttleInformation = `{"Information":"We have detected your API key as demo and our standard API rate limit is 25 requests per day."}`

	errorMessagePayload = `{"Error Message":"Invalid API call. Please retry or visit the documentation for TIME_SERIES_DAILY."}`
)

func TestClassifyWellFormed(t *testing.T) {
	cases := []struct {
		domain  domain.Domain
		payload string
	}{
		{domain.Commodity, commodityPayload},
		{domain.Crypto, cryptoPayload},
		{domain.Stock, stockPayload},
		{domain.Forex, forexPayload},
		{domain.FXRate, fxRatePayload},
	}
	for _, c := range cases {
		if out := classify(c.domain, []byte(c.payload)); out.Kind != outcomeOK {
			t.Errorf("classify(%s) = %v, want ok (reason: %s)", c.domain, out.Kind, out.Reason)
		}
	}
}

func TestClassifyThrottleMarkers(t *testing.T) {
	for _, payload := range []string{throttleNote, throttleInformation} {
		out := classify(domain.Stock, []byte(payload))
		if out.Kind != outcomeThrottled {
			t.Errorf("classify(%s) = %v, want throttled", payload, out.Kind)
		}
	}
}

func TestClassifyErrorMessage(t *testing.T) {
	out := classify(domain.Stock, []byte(errorMessagePayload))
	if out.Kind != outcomeSchemaError {
		t.Fatalf("expected schema error, got %v", out.Kind)
	}
	if !strings.Contains(out.Reason, "Invalid API call") {
		t.Errorf("reason does not carry provider text: %s", out.Reason)
	}
}

func TestClassifyMissingDomainKey(t *testing.T) {
	// A stock payload is not a valid commodity payload.
	out := classify(domain.Commodity, []byte(stockPayload))
	if out.Kind != outcomeSchemaError {
		t.Fatalf("expected schema error, got %v", out.Kind)
	}
	if !strings.Contains(out.Reason, `"data"`) {
		t.Errorf("reason does not name the missing key: %s", out.Reason)
	}
}

func TestClassifyInvalidJSON(t *testing.T) {
	for _, payload := range []string{"", "not json", `["array","payload"]`} {
		out := classify(domain.Crypto, []byte(payload))
		if out.Kind != outcomeSchemaError {
			t.Errorf("classify(%q) = %v, want schema error", payload, out.Kind)
		}
	}
}
