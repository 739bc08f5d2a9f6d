// Package rates supplies exchange-rate tables: a live HTTP fetch with the
// stored history as fallback.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/model"
)

// ErrBadPayload is returned when the rate payload has no usable quotes.
var ErrBadPayload = errors.New("rates: unusable payload")

// Fetcher retrieves live base→target quotes.
type Fetcher interface {
	Fetch(ctx context.Context, base string) ([]model.ExchangeRate, error)
}

// HTTPFetcher GETs a JSON document and extracts a {code: rate} object from it
// with a JSONPath expression. The URL may contain a "{base}" placeholder.
type HTTPFetcher struct {
	client      *http.Client
	urlTemplate string
	path        string
	now         func() time.Time
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient; an
// empty path defaults to "$.rates".
func NewHTTPFetcher(client *http.Client, urlTemplate, path string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if path == "" {
		path = "$.rates"
	}
	return &HTTPFetcher{client: client, urlTemplate: urlTemplate, path: path, now: time.Now}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, base string) ([]model.ExchangeRate, error) {
	addr := strings.ReplaceAll(f.urlTemplate, "{base}", url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rates for %s: unexpected status %s", base, resp.Status)
	}

	var doc any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	source := req.URL.Host
	return extract(doc, f.path, base, source, f.now().UTC())
}

// extract reads the {code: rate} object at path. Codes outside the supported
// set, the base itself and non-positive rates are skipped.
func extract(doc any, path, base, source string, at time.Time) ([]model.ExchangeRate, error) {
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %v", ErrBadPayload, path, err)
	}
	// jsonpath may wrap a single match in a list.
	if list, ok := val.([]any); ok && len(list) > 0 {
		val = list[0]
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: path %q is not an object", ErrBadPayload, path)
	}

	var out []model.ExchangeRate
	for code, raw := range obj {
		code = strings.ToUpper(code)
		if code == base || !currency.Supported(code) {
			continue
		}
		rate, err := toDecimal(raw)
		if err != nil || !rate.IsPositive() {
			continue
		}
		out = append(out, model.ExchangeRate{
			Base:      base,
			Target:    code,
			Rate:      rate,
			FetchedAt: at,
			Source:    source,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no supported currencies at %q", ErrBadPayload, path)
	}
	return out, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	default:
		return decimal.Zero, fmt.Errorf("not a number: %v", v)
	}
}
