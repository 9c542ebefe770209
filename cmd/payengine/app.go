package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	egresscsv "github.com/nkiryanov/payengine/internal/egress/csv"
	"github.com/nkiryanov/payengine/internal/ingress"
	ingresscsv "github.com/nkiryanov/payengine/internal/ingress/csv"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/batch"
	"github.com/nkiryanov/payengine/internal/storage"
)

// run processes the configured input files and writes the account snapshot
// to stdout. Diagnostics go to stderr only, so stdout is always a valid
// snapshot document.
func run(ctx context.Context, c *Config, stdout, stderr io.Writer) error {
	if len(c.Files) == 0 {
		return errors.New("usage: payengine [flags] <transactions.csv> [more.csv ...]")
	}

	l := logger.NewText(stderr, c.LogLevel)

	sources := make([]ingress.Ingress, 0, len(c.Files))
	for _, path := range c.Files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close() // nolint:errcheck

		sources = append(sources, ingresscsv.NewReader(bufio.NewReader(f)))
	}

	accounts := storage.NewAccountStore()
	transactions := storage.NewTransactionStore()
	service := batch.NewService(accounts, transactions, l)

	report, err := service.Run(ctx, sources, batch.Options{
		Shards:     c.Shards,
		Policy:     c.policy(),
		Combinator: c.Combinator,
		Assignment: c.Assignment,
	})
	if err != nil {
		return fmt.Errorf("processing interrupted: %w", err)
	}
	if report.Aborted {
		return fmt.Errorf("processing aborted: %w", report.AbortReason)
	}

	l.Info("processing finished", "processed", report.Processed, "skipped", report.Skipped)

	out := bufio.NewWriter(stdout)
	sink := egresscsv.NewWriter(out)

	if err := accounts.Snapshot(ctx, sink); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := sink.Flush(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return out.Flush()
}

func (c *Config) policy() string {
	switch {
	case c.AbortOnError:
		return batch.PolicyAbort
	case c.Quiet:
		return batch.PolicySilent
	default:
		return batch.PolicySkip
	}
}
