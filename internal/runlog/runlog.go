// Package runlog persists analysis runs: one JSON line per run in a daily
// file, a CSV digest of each run's allocations, and gzip rotation of old
// files.
package runlog

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"tradegraph/internal/types"
)

type Entry struct {
	RunID     string                         `json:"run_id"`
	Time      string                         `json:"time"`
	Symbols   []string                       `json:"symbols"`
	Portfolio *types.PortfolioRecommendation `json:"portfolio"`
	Errors    []string                       `json:"errors"`
	Warnings  []string                       `json:"warnings"`
	Cancelled bool                           `json:"cancelled,omitempty"`
}

// Log writes under a single directory. It is safe for concurrent use.
type Log struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, "runs", t.Format("2006-01-02")+".jsonl")
}

func (l *Log) digestFilepath(t time.Time, runID string) string {
	return filepath.Join(l.dir, "digests", t.Format("2006-01-02"), runID+".csv")
}

// Append records res as one line of today's run file.
func (l *Log) Append(res *types.AnalysisResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := Entry{
		RunID:     res.RunID,
		Time:      now.Format(time.RFC3339),
		Symbols:   res.Symbols,
		Portfolio: res.Portfolio,
		Errors:    res.Errors,
		Warnings:  res.Warnings,
		Cancelled: res.Cancelled,
	}
	p := l.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", res.RunID, err)
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

var digestHeader = []string{
	"symbol", "recommendation", "confidence", "allocation", "amount",
	"current_price", "target_price", "stop_loss", "risk_level", "time_horizon",
}

// WriteDigest writes the portfolio's allocations as CSV and returns the
// file path. A run without a portfolio writes nothing and returns "".
func (l *Log) WriteDigest(res *types.AnalysisResult) (string, error) {
	if res.Portfolio == nil {
		return "", nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.digestFilepath(l.now(), res.RunID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeDigest(f, res.Portfolio); err != nil {
		return "", fmt.Errorf("digest %s: %w", res.RunID, err)
	}
	return p, nil
}

func writeDigest(w io.Writer, pr *types.PortfolioRecommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(digestHeader); err != nil {
		return err
	}
	for _, r := range pr.Recommendations {
		row := []string{
			r.Symbol,
			string(r.Recommendation),
			num(r.Confidence, 4),
			num(r.Allocation, 4),
			num(r.Allocation*pr.PortfolioSize, 2),
			num(r.CurrentPrice, 2),
			optional(r.TargetPrice),
			optional(r.StopLoss),
			string(r.RiskLevel),
			string(r.TimeHorizon),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cash := []string{"CASH", "", "", num(pr.CashReserve, 4), num(pr.CashReserve*pr.PortfolioSize, 2), "", "", "", "", ""}
	if err := cw.Write(cash); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v, 2)
}

// CompressOlder gzips run and digest files last modified more than
// retentionDays ago and removes the originals. Files that cannot be
// compressed are left in place.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(l.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == l.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext != ".jsonl" && ext != ".csv" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		compressed++
		return nil
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
