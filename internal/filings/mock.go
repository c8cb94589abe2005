package filings

import (
	"context"
	"hash/fnv"
	"time"

	"tradegraph/internal/types"
)

var mockPassages = []string{
	"The company delivered record revenue driven by services.",
	"Management notes increased revenue in all segments.",
	"We maintain a strong cash position with no near-term maturities.",
	"The period closed with a net loss attributable to restructuring.",
	"A goodwill impairment was recorded in the fourth quarter.",
	"Auditors identified a material weakness in internal controls.",
}

// MockSource derives filings text from the symbol so runs are repeatable
// without network access.
type MockSource struct{}

func (MockSource) FetchReportAnalysis(ctx context.Context, symbols []string, reportTypes []string) (map[string]types.ReportAnalysis, error) {
	out := make(map[string]types.ReportAnalysis, len(symbols))
	for _, sym := range symbols {
		if types.IsCrypto(sym) {
			continue
		}
		out[sym] = Keyword(sym, mockFilings(sym, reportTypes))
	}
	return out, nil
}

func mockFilings(symbol string, forms []string) []Filing {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	bits := h.Sum32()

	filed := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	var out []Filing
	for i, form := range forms {
		text := ""
		for j, p := range mockPassages {
			if bits&(1<<uint((i*len(mockPassages)+j)%32)) != 0 {
				text += p + " "
			}
		}
		out = append(out, Filing{Form: form, FiledAt: filed.AddDate(0, -3*i, 0), Text: text})
	}
	return out
}
