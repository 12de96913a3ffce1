// Command analyze builds the dependency graph of a local directory and
// prints it as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/repolens/repolens/internal/analyzer"
)

func main() {
	pretty := flag.Bool("pretty", false, "Indent the JSON output")
	quiet := flag.Bool("quiet", false, "Suppress progress output on stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <directory>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	// Logs go to stderr so stdout stays pure JSON.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	an, err := analyzer.New(flag.Arg(0))
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	var progress analyzer.ProgressFn
	if !*quiet {
		progress = func(processed, total int, file string) {
			fmt.Fprintf(os.Stderr, "\r%d/%d files", processed, total)
		}
	}

	start := time.Now()
	g, err := an.Analyze(context.Background(), progress)
	if errors.Is(err, analyzer.ErrNoFiles) {
		log.Fatalf("analyze: no analyzable files under %s", an.Root())
	}
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "\r%d nodes, %d edges in %s\n",
			g.NodeCount(), g.EdgeCount(), time.Since(start).Round(time.Millisecond))
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(g); err != nil {
		log.Fatalf("analyze: encode: %v", err)
	}
}
