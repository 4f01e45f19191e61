package alphavantage

import (
	"encoding/json"
	"fmt"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeThrottled
	outcomeSchemaError
)

// outcome is the classified result of one successfully transported request.
// Alpha Vantage answers HTTP 200 for throttles and bad symbols alike, so the
// body text is the only reliable signal.
type outcome struct {
	Kind   outcomeKind
	Marker string
	Reason string
}

// requiredKey names the top-level field a well-formed response carries for
// the given domain.
func requiredKey(d domain.Domain) string {
	switch d {
	case domain.Commodity:
		return "data"
	case domain.Crypto:
		return "Time Series (Digital Currency Daily)"
	case domain.Stock:
		return "Time Series (Daily)"
	case domain.Forex:
		return "Time Series FX (Daily)"
	case domain.FXRate:
		return "Realtime Currency Exchange Rate"
	}
	return ""
}

// classify inspects a response body and distinguishes a throttle marker from
// a schema mismatch. A "Note" or "Information" field signals rate limiting
// and justifies rotating to the next credential; an "Error Message" field or
// a missing domain key means the payload can never become valid, no matter
// which credential retries it.
func classify(d domain.Domain, body []byte) outcome {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return outcome{Kind: outcomeSchemaError, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	for _, marker := range []string{"Note", "Information"} {
		if _, ok := top[marker]; ok {
			return outcome{Kind: outcomeThrottled, Marker: marker}
		}
	}

	if raw, ok := top["Error Message"]; ok {
		return outcome{Kind: outcomeSchemaError, Reason: rawMessageText(raw)}
	}

	key := requiredKey(d)
	if _, ok := top[key]; !ok {
		return outcome{Kind: outcomeSchemaError, Reason: fmt.Sprintf("missing %q", key)}
	}

	return outcome{Kind: outcomeOK}
}

func rawMessageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
