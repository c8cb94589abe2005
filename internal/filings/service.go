package filings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

// edgar is the part of EDGARClient the service needs.
type edgar interface {
	CIK(ctx context.Context, symbol string) (int, error)
	Recent(ctx context.Context, cik int, forms []string, perForm int) ([]Filing, error)
	Document(ctx context.Context, url string) (string, error)
}

// Service implements ReportSource over EDGAR.
type Service struct {
	edgar       edgar
	analyzer    Analyzer
	perForm     int
	concurrency int
}

var _ interfaces.ReportSource = (*Service)(nil)

// NewService builds the EDGAR-backed source. With filings.analyzer LLM the
// completer reads the filings; otherwise keywords do.
func NewService(cfg *store.Config, completer interfaces.Completer, opts ...EDGAROption) *Service {
	var a Analyzer = KeywordAnalyzer{}
	if cfg.Filings.Analyzer == "LLM" && completer != nil {
		a = NewLLMAnalyzer(completer)
	}
	return &Service{
		edgar:       NewEDGARClient(cfg, opts...),
		analyzer:    a,
		perForm:     max(cfg.Filings.MaxFilings, 1),
		concurrency: 2,
	}
}

// FetchReportAnalysis analyzes the most recent filings of each requested
// type. Crypto symbols, unknown tickers and companies without matching
// filings are left out. Symbols whose lookup failed are reported in a
// types.SymbolErrors next to the partial result; when every looked-up symbol
// failed that error is wrapped.
func (s *Service) FetchReportAnalysis(ctx context.Context, symbols []string, reportTypes []string) (map[string]types.ReportAnalysis, error) {
	out := make(map[string]types.ReportAnalysis, len(symbols))
	var (
		mu     sync.Mutex
		failed = types.SymbolErrors{}
		tried  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sym := range symbols {
		if types.IsCrypto(sym) {
			continue
		}
		tried++
		g.Go(func() error {
			ra, ok, err := s.analyze(gctx, sym, reportTypes)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed[sym] = err
				logger.Warn(gctx, "Filing analysis failed", "symbol", sym, "error", err)
			case ok:
				out[sym] = ra
			}
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case len(failed) == 0:
		return out, nil
	case len(failed) == tried:
		return out, fmt.Errorf("filings unavailable for all %d symbols: %w", tried, failed)
	default:
		return out, failed
	}
}

func (s *Service) analyze(ctx context.Context, symbol string, reportTypes []string) (types.ReportAnalysis, bool, error) {
	cik, err := s.edgar.CIK(ctx, symbol)
	if errors.Is(err, ErrCIKNotFound) {
		logger.Debug(ctx, "No SEC registrant", "symbol", symbol)
		return types.ReportAnalysis{}, false, nil
	}
	if err != nil {
		return types.ReportAnalysis{}, false, err
	}

	recent, err := s.edgar.Recent(ctx, cik, reportTypes, s.perForm)
	if err != nil {
		return types.ReportAnalysis{}, false, err
	}

	docs := make([]Filing, 0, len(recent))
	for _, f := range recent {
		text, err := s.edgar.Document(ctx, f.URL)
		if err != nil {
			logger.Warn(ctx, "Skipping unreadable filing", "symbol", symbol, "form", f.Form, "url", f.URL, "error", err)
			continue
		}
		f.Text = text
		docs = append(docs, f)
	}
	if len(docs) == 0 {
		return types.ReportAnalysis{}, false, nil
	}

	ra, err := s.analyzer.Analyze(ctx, symbol, docs)
	if err != nil {
		return types.ReportAnalysis{}, false, err
	}
	return ra, true, nil
}
