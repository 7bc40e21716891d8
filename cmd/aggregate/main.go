// Command aggregate performs one batch aggregation run over a date range and
// prints the daily summaries as JSON to stdout. One run per invocation, no
// server required.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"log/slog"

	"github.com/worklens/worklens/internal/aggregator"
	"github.com/worklens/worklens/internal/config"
	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/faults"
	"github.com/worklens/worklens/internal/logging"
	"github.com/worklens/worklens/internal/resilience"
)

func main() {
	startFlag := flag.String("start", "", "first day of the range, YYYY-MM-DD")
	endFlag := flag.String("end", "", "last day of the range, YYYY-MM-DD (defaults to start)")
	flag.Parse()

	if err := run(*startFlag, *endFlag); err != nil {
		fault := faults.Classify(err)
		fmt.Fprintln(os.Stderr, faults.UserMessage(fault))
		for _, suggestion := range faults.RecoverySuggestions(fault.Kind) {
			fmt.Fprintln(os.Stderr, "  - "+suggestion)
		}
		os.Exit(1)
	}
}

func run(startRaw, endRaw string) error {
	if startRaw == "" {
		return faults.New(faults.KindValidation, "-start is required")
	}
	if endRaw == "" {
		endRaw = startRaw
	}

	start, err := dates.ParseDay(startRaw)
	if err != nil {
		return err
	}
	end, err := dates.ParseDay(endRaw)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return faults.Wrap(err, faults.KindConfiguration, "failed to load configuration")
	}

	// Summaries go to stdout; keep log lines on stderr out of the way.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logging.Level}))

	executor := resilience.NewExecutor(logging.ForComponent(logger, "executor"))
	agg := aggregator.FromConfig(cfg, executor, logging.ForComponent(logger, "aggregator"), nil)

	summaries, err := agg.Run(context.Background(), start, end)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summaries)
}
