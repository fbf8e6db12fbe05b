package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"llm-assistant/src/operation"
	"llm-assistant/src/singleinstance"
)

type stressOptions struct {
	n        int
	op       string
	mode     string
	deadline time.Duration
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeBusy
	outcomeErr
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, os.Stdout)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Stress test delegated triggers against the resident instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, singleinstance.NewClient, stdout)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.op, "op", string(operation.TranslateClipboard), "operation ID or digit to trigger")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|window: reply on stdout or show the result window")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, newClient func() singleinstance.Client, stdout io.Writer) error {
	op, err := operation.Parse(opts.op)
	if err != nil {
		return err
	}
	if opts.mode != "std" && opts.mode != "window" {
		return fmt.Errorf("invalid mode %q (want std or window)", opts.mode)
	}

	var wg sync.WaitGroup
	var counts [3]atomic.Int32

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := newClient().TryRun(ctx, string(op.ID), opts.mode == "std")
			counts[classify(delegated, err)].Add(1)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(stdout, "op=%s launched=%d ok=%d busy=%d err=%d elapsed=%s\n",
		op.ID, opts.n, counts[outcomeOK].Load(), counts[outcomeBusy].Load(), counts[outcomeErr].Load(), elapsed)
	return nil
}

// classify sorts a delegation attempt. A trigger rejected because the
// operation is still running counts as busy; no resident counts as an error.
func classify(delegated bool, err error) outcome {
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already running") {
			return outcomeBusy
		}
		return outcomeErr
	}
	if delegated {
		return outcomeOK
	}
	return outcomeErr
}
