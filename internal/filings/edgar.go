// Package filings fetches periodic SEC filings and turns them into a
// filing-derived health view of a company.
package filings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradegraph/internal/api"
	"tradegraph/internal/store"
)

// ErrCIKNotFound means the ticker has no SEC registrant.
var ErrCIKNotFound = errors.New("CIK not found")

const (
	secBaseURL  = "https://www.sec.gov"
	dataBaseURL = "https://data.sec.gov"

	// SEC asks clients to stay under 10 requests per second.
	secRequestsPerSecond = 8
	maxDocumentChars     = 200_000
)

// Filing is one fetched periodic report.
type Filing struct {
	Form      string
	FiledAt   time.Time
	URL       string
	Accession string
	Text      string
}

// EDGARClient resolves tickers to CIKs and downloads filing documents.
type EDGARClient struct {
	client  *api.Client
	retry   *api.RetryConfig
	secURL  string
	dataURL string

	mu   sync.Mutex
	ciks map[string]int
}

type EDGAROption func(*EDGARClient)

// WithEDGARBaseURLs overrides the www.sec.gov and data.sec.gov hosts.
func WithEDGARBaseURLs(sec, data string) EDGAROption {
	return func(e *EDGARClient) {
		e.secURL, e.dataURL = sec, data
	}
}

// WithEDGARRetry overrides the retry policy.
func WithEDGARRetry(rc *api.RetryConfig) EDGAROption {
	return func(e *EDGARClient) { e.retry = rc }
}

func NewEDGARClient(cfg *store.Config, opts ...EDGAROption) *EDGARClient {
	e := &EDGARClient{
		client: api.NewClient(
			api.WithTimeout(cfg.Market.Timeout*2),
			api.WithHeaders(api.SECHeaders(cfg.Filings.UserAgent)),
			api.WithRateLimit(secRequestsPerSecond, 2),
			api.WithLogging(true),
		),
		retry:   api.DefaultRetryConfig(),
		secURL:  secBaseURL,
		dataURL: dataBaseURL,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type tickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// CIK looks up the registrant number for symbol. The ticker map is fetched
// once and kept.
func (e *EDGARClient) CIK(ctx context.Context, symbol string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ciks == nil {
		resp, err := e.client.GetWithRetry(ctx, e.secURL+"/files/company_tickers.json", e.retry)
		if err != nil {
			return 0, fmt.Errorf("ticker map: %w", err)
		}
		var entries map[string]tickerEntry
		if err := resp.ParseJSON(&entries); err != nil {
			return 0, fmt.Errorf("ticker map: %w", err)
		}
		e.ciks = make(map[string]int, len(entries))
		for _, t := range entries {
			e.ciks[strings.ToUpper(t.Ticker)] = t.CIK
		}
	}

	cik, ok := e.ciks[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrCIKNotFound)
	}
	return cik, nil
}

type submissions struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Recent lists up to perForm of the newest filings for each form, newest
// first within a form. Document text is not fetched.
func (e *EDGARClient) Recent(ctx context.Context, cik int, forms []string, perForm int) ([]Filing, error) {
	resp, err := e.client.GetWithRetry(ctx, fmt.Sprintf("%s/submissions/CIK%010d.json", e.dataURL, cik), e.retry)
	if err != nil {
		return nil, fmt.Errorf("submissions %d: %w", cik, err)
	}
	var sub submissions
	if err := resp.ParseJSON(&sub); err != nil {
		return nil, fmt.Errorf("submissions %d: %w", cik, err)
	}

	r := sub.Filings.Recent
	want := make(map[string]int, len(forms))
	for _, f := range forms {
		want[strings.ToUpper(f)] = 0
	}

	var out []Filing
	// EDGAR lists recent filings newest first.
	for i, form := range r.Form {
		n, ok := want[form]
		if !ok || n >= perForm || i >= len(r.AccessionNumber) || i >= len(r.PrimaryDocument) {
			continue
		}
		want[form] = n + 1

		f := Filing{
			Form:      form,
			Accession: r.AccessionNumber[i],
			URL: fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s", e.secURL, cik,
				strings.ReplaceAll(r.AccessionNumber[i], "-", ""), r.PrimaryDocument[i]),
		}
		if i < len(r.FilingDate) {
			f.FiledAt, _ = time.Parse("2006-01-02", r.FilingDate[i])
		}
		out = append(out, f)
	}
	return out, nil
}

// Document downloads a filing and returns its visible text.
func (e *EDGARClient) Document(ctx context.Context, url string) (string, error) {
	resp, err := e.client.GetWithRetry(ctx, url, e.retry)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", url, err)
	}
	text, err := ExtractText(resp.Body)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", url, err)
	}
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}
	return text, nil
}
