package runlog

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegraph/internal/types"
)

var fixed = time.Date(2024, 3, 8, 16, 30, 0, 0, time.UTC)

func newTestLog(t *testing.T) *Log {
	l := New(t.TempDir())
	l.now = func() time.Time { return fixed }
	return l
}

func sampleResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		RunID:   "run-1",
		Symbols: []string{"AAPL", "MSFT"},
		Portfolio: &types.PortfolioRecommendation{
			Recommendations: []types.Recommendation{
				{Symbol: "AAPL", Recommendation: types.Buy, Confidence: 0.7125, Allocation: 0.1, CurrentPrice: 180,
					TargetPrice: types.Float(198), StopLoss: types.Float(165.6), RiskLevel: types.RiskMedium, TimeHorizon: types.MediumTerm},
				{Symbol: "MSFT", Recommendation: types.Hold, Confidence: 0.5, Allocation: 0.05, CurrentPrice: 400,
					RiskLevel: types.RiskLow, TimeHorizon: types.LongTerm},
			},
			CashReserve:   0.85,
			PortfolioSize: 100000,
		},
		Warnings: []string{"dropped invalid symbol \"123\""},
	}
}

func TestAppend(t *testing.T) {
	l := newTestLog(t)
	res := sampleResult()
	require.NoError(t, l.Append(res))
	res.RunID = "run-2"
	res.Portfolio = nil
	require.NoError(t, l.Append(res))

	f, err := os.Open(filepath.Join(l.Dir(), "runs", "2024-03-08.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, "2024-03-08T16:30:00Z", entries[0].Time)
	assert.Equal(t, []string{"AAPL", "MSFT"}, entries[0].Symbols)
	require.NotNil(t, entries[0].Portfolio)
	assert.Len(t, entries[0].Portfolio.Recommendations, 2)
	assert.Nil(t, entries[1].Portfolio)
}

func TestWriteDigest(t *testing.T) {
	l := newTestLog(t)
	p, err := l.WriteDigest(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Dir(), "digests", "2024-03-08", "run-1.csv"), p)

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, digestHeader, rows[0])
	assert.Equal(t, []string{"AAPL", "BUY", "0.7125", "0.1000", "10000.00", "180.00", "198.00", "165.60", "MEDIUM", "MEDIUM_TERM"}, rows[1])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, []string{"CASH", "", "", "0.8500", "85000.00", "", "", "", "", ""}, rows[3])
}

func TestWriteDigestWithoutPortfolio(t *testing.T) {
	l := newTestLog(t)
	p, err := l.WriteDigest(&types.AnalysisResult{RunID: "empty"})
	require.NoError(t, err)
	assert.Empty(t, p)
	_, err = os.Stat(filepath.Join(l.Dir(), "digests"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompressOlder(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append(sampleResult()))
	digest, err := l.WriteDigest(sampleResult())
	require.NoError(t, err)

	old := filepath.Join(l.Dir(), "runs", "2024-01-01.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{\"run_id\":\"old\"}\n"), 0o644))
	stale := fixed.AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(old, stale, stale))
	notes := filepath.Join(l.Dir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(notes, stale, stale))

	// Freshly written files carry the wall clock, which is after fixed.
	n, err := l.CompressOlder(30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, notes)
	assert.FileExists(t, digest)

	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "{\"run_id\":\"old\"}\n", string(b))
}

func TestCompressOlderMissingDir(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent"))
	n, err := l.CompressOlder(7)
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = l.CompressOlder(0)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
