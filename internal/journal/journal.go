// Package journal writes the per-block text journals a simulation run
// produces: one balance history file per user, and a market-state dump
// shared across the whole book.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Writer appends block-indexed journal lines under a single output
// directory. The first write for a given user truncates any existing
// file from a prior run; subsequent writes append.
type Writer struct {
	dir     string
	touched map[string]bool
}

// NewWriter returns a Writer rooted at dir, creating it if necessary.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, touched: make(map[string]bool)}, nil
}

// WriteUserBalance appends one `block,native,tok1,tok2,…` line to
// <dir>/<userID>.txt, truncating the file on the first call for that
// user in this Writer's lifetime.
func (w *Writer) WriteUserBalance(userID string, block uint64, balances []string) error {
	path := filepath.Join(w.dir, userID+".txt")
	line := fmt.Sprintf("%d,%s\n", block, strings.Join(balances, ","))
	return w.append(path, userID, line)
}

// WriteMarketState appends one `block,price,<book dump>` record to
// <dir>/market_state.txt. dump is the multi-line rendering produced by
// the order book's Render method.
func (w *Writer) WriteMarketState(block uint64, price float64, dump string) error {
	path := filepath.Join(w.dir, "market_state.txt")
	line := fmt.Sprintf("%d,%.6f,%s", block, price, dump)
	return w.append(path, "market_state", line)
}

func (w *Writer) append(path, key, content string) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !w.touched[key] {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to open journal file")
		return fmt.Errorf("open journal file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write journal file %s: %w", path, err)
	}

	w.touched[key] = true
	return nil
}
