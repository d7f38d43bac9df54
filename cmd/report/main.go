// Command report reads a completed backtest run's journal files and
// prints a per-user balance summary.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func main() {
	outDir := flag.String("output", "data/output", "directory containing a completed run's journal files")
	flag.Parse()

	entries, err := os.ReadDir(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to read output directory %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	var userFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "market_state.txt" || !strings.HasSuffix(name, ".txt") {
			continue
		}
		userFiles = append(userFiles, name)
	}
	sort.Strings(userFiles)

	if len(userFiles) == 0 {
		fmt.Println("No user journal files found.")
		return
	}

	for _, name := range userFiles {
		userID := strings.TrimSuffix(name, ".txt")
		if err := printUserSummary(*outDir, userID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func printUserSummary(outDir, userID string) error {
	path := filepath.Join(outDir, userID+".txt")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var first, last string
	blocks := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		last = line
		blocks++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	fmt.Printf("\n=== %s ===\n", userID)
	fmt.Printf("Blocks recorded: %d\n", blocks)
	fmt.Printf("Initial: %s\n", first)
	fmt.Printf("Final:   %s\n", last)
	return nil
}
