// Package tradelog appends every iteration result to a JSON-lines file per
// IST trading day and gzips days past retention.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"regime-trader/internal/types"
)

const (
	dayLayout = "2006-01-02"
	ext       = ".jsonl"
)

var ist = time.FixedZone("IST", 19800)

// Log is safe for concurrent use.
type Log struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir}
}

func (l *Log) Dir() string { return l.dir }

// Path returns the file that holds results for the IST date of t.
func (l *Log) Path(t time.Time) string {
	return filepath.Join(l.dir, t.In(ist).Format(dayLayout)+ext)
}

// Append writes res to the file of its as-of day.
func (l *Log) Append(res *types.IterationResult) error {
	if res == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal iteration result: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.Path(res.AsOf)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ReadDay returns the results logged for the IST date of t, reading the
// gzipped file when the plain one has been compressed.
func (l *Log) ReadDay(t time.Time) ([]types.IterationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.Path(t)
	var r io.Reader
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		f, err = os.Open(p + ".gz")
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	} else if err != nil {
		return nil, err
	} else {
		defer f.Close()
		r = f
	}

	var out []types.IterationResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var res types.IterationResult
		if err := json.Unmarshal(sc.Bytes(), &res); err != nil {
			continue
		}
		out = append(out, res)
	}
	return out, sc.Err()
}

// CompressOlder gzips day files whose date is more than retentionDays
// before now. The day is taken from the file name, not its mtime.
func (l *Log) CompressOlder(retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	n := now.In(ist)
	cutoff := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, ist).AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	compressed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, strings.TrimSuffix(name, ext), ist)
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := gzipFile(filepath.Join(l.dir, name)); err != nil {
			return compressed, err
		}
		compressed++
	}
	return compressed, nil
}

func gzipFile(p string) error {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(gz)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
