package pipeline

import (
	"sync"

	"tradegraph/internal/types"
)

// State is the working record of one run. A stage mutates it in place and
// nothing outside the run holds a reference to it.
type State struct {
	RunID   string
	Request types.AnalysisRequest
	Symbols []string

	News            map[string][]types.NewsArticle
	Bundles         map[string]*types.SignalBundle
	Recommendations []types.Recommendation
	Alerts          []types.Alert
	Portfolio       *types.PortfolioRecommendation

	Errors    []string
	Warnings  []string
	Completed []string

	// mu guards Bundles while a stage fans out.
	mu sync.Mutex
}

func newState(runID string, req types.AnalysisRequest) *State {
	s := &State{
		RunID:   runID,
		Request: req,
		Symbols: req.Symbols,
		News:    map[string][]types.NewsArticle{},
		Bundles: make(map[string]*types.SignalBundle, len(req.Symbols)),
	}
	for _, sym := range req.Symbols {
		s.Bundles[sym] = &types.SignalBundle{Symbol: sym}
	}
	return s
}

// bundle returns the symbol's bundle, creating it for a symbol a source
// reported without being asked.
func (s *State) bundle(sym string) *types.SignalBundle {
	b, ok := s.Bundles[sym]
	if !ok {
		b = &types.SignalBundle{Symbol: sym}
		s.Bundles[sym] = b
	}
	return b
}

func (s *State) sourceFailed(sym, source string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bundle(sym)
	b.Errors = append(b.Errors, types.SourceError{Source: source, Message: err.Error()})
}

// orderedBundles returns bundles in request order so synthesis output is
// reproducible.
func (s *State) orderedBundles() []types.SignalBundle {
	out := make([]types.SignalBundle, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		if b, ok := s.Bundles[sym]; ok {
			out = append(out, *b)
		}
	}
	return out
}

func (s *State) result() *types.AnalysisResult {
	return &types.AnalysisResult{
		RunID:           s.RunID,
		Symbols:         s.Symbols,
		Recommendations: s.Recommendations,
		Portfolio:       s.Portfolio,
		Alerts:          s.Alerts,
		Errors:          s.Errors,
		Warnings:        s.Warnings,
		CompletedStages: s.Completed,
	}
}
