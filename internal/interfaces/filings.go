package interfaces

import (
	"context"

	"tradegraph/internal/types"
)

// ReportSource analyzes periodic filings. Symbols without filings are absent
// from the result; symbols whose lookup failed may be reported as a
// types.SymbolErrors next to it.
type ReportSource interface {
	FetchReportAnalysis(ctx context.Context, symbols []string, reportTypes []string) (map[string]types.ReportAnalysis, error)
}
