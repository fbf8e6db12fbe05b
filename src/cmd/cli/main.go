package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"llm-assistant/src/config"
	"llm-assistant/src/hotkey"
	"llm-assistant/src/logutil"
	"llm-assistant/src/operation"
	"llm-assistant/src/overlay"
	"llm-assistant/src/runtimeinit"
	"llm-assistant/src/screenshot"
	"llm-assistant/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	text       string
	filePath   string
	query      string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), os.Stdin, os.Stdout)
}

func runWithArgs(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"llm-assistant-cli"}
	}

	cmd := newRootCmd(stdin, stdout)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "llm-assistant-cli",
		Short:         "Run LLM assistant operations without the tray",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.AddCommand(newRunCmd(&cliOptions{}, stdin, stdout), newOpsCmd(stdout))
	return root
}

func newRunCmd(opts *cliOptions, stdin io.Reader, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run one operation and print the result",
		Long: "Run one operation (ID or digit) headless. Clipboard operations take --text " +
			"or read the clipboard; screen operations take --file or capture a region.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), args[0], *opts, stdin, stdout)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Input text for clipboard operations (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file for screen operations (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.query, "query", "", "Question for query operations")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	return cmd
}

func newOpsCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List operations and their hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := hotkey.ParseModifiers(config.DefaultHotkeyModifiers)
			if err != nil {
				return err
			}
			if cfg, err := config.Load(); err == nil {
				if m, err := hotkey.ParseModifiers(cfg.HotkeyModifiers); err == nil {
					mods = m
				}
			}
			return listOperations(stdout, mods)
		},
	}
}

func listOperations(w io.Writer, mods hotkey.Modifier) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOTKEY\tID\tTITLE\tSTAGES")
	for _, op := range operation.All() {
		stages := make([]string, 0, len(op.Definition.Stages))
		for _, s := range op.Definition.Stages {
			stages = append(stages, s.Kind.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Chord(mods), op.ID, op.Definition.Title, strings.Join(stages, " > "))
	}
	return tw.Flush()
}

func runOperation(ctx context.Context, name string, opts cliOptions, stdin io.Reader, stdout io.Writer) error {
	// Configure logging BEFORE any other operations.
	if opts.verbose {
		logutil.Setup(false, os.Stderr)
		fmt.Fprintf(os.Stderr, "[verbose] Starting %s\n", name)
	} else {
		logutil.Setup(false, io.Discard)
	}

	op, err := operation.Parse(name)
	if err != nil {
		return err
	}

	loadOptions := config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath}
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   loadOptions,
		InitClipboard: needsClipboard(op, opts),
	})
	if err != nil {
		return err
	}
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Config loaded: text model=%s vision=%s\n", cfg.ActiveTextModel(), cfg.VisionModel)
		fmt.Fprintf(os.Stderr, "[verbose] API key %s from %s\n", logutil.RedactKey(cfg.APIKey), cfg.APIKeyPath)
	}

	inputs, err := buildInputs(op, opts, cfg, stdin)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	surface := &session.HeadlessSurface{Query: opts.query}
	core := runtimeinit.NewCore(runtimeinit.CoreOptions{
		Config:      cfg,
		LoadOptions: loadOptions,
		Surface:     surface,
		Inputs:      inputs,
	})
	go func() { _ = core.Loop.Run(ctx) }()
	defer core.Close()

	startTime := time.Now()
	done := make(chan outcome, 1)
	if !core.Loop.Post(func() { _ = core.Controller.Trigger(op.ID, resultTarget{done: done}) }) {
		return fmt.Errorf("event loop not running")
	}

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	elapsed := time.Since(startTime)
	if res.err != nil {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "[verbose] %s failed after %v: %v\n", op.ID, elapsed, res.err)
		}
		return fmt.Errorf("%s failed: %w", op.ID, res.err)
	}
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] %s completed in %v, %d characters\n", op.ID, elapsed, len([]rune(res.text)))
	}
	return outputResult(stdout, op.ID, res.text, sourceName(op, opts), elapsed, opts.jsonOutput)
}

func needsClipboard(op operation.Operation, opts cliOptions) bool {
	return op.Source == operation.SourceClipboard && opts.text == ""
}

func buildInputs(op operation.Operation, opts cliOptions, cfg *config.Config, stdin io.Reader) (session.Inputs, error) {
	switch op.Source {
	case operation.SourceScreen:
		if opts.filePath == "" {
			return session.DesktopInputs{Selector: overlay.NewSelector(cfg.RegionCommand)}, nil
		}
		data, err := readInput(opts.filePath, stdin)
		if err != nil {
			return nil, err
		}
		if err := validatePNG(data); err != nil {
			return nil, err
		}
		return session.StaticInputs{Image: data}, nil
	default:
		if opts.text == "" {
			return session.DesktopInputs{}, nil
		}
		text := opts.text
		if text == "-" {
			data, err := io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
			if err != nil {
				return nil, fmt.Errorf("failed to read from stdin: %w", err)
			}
			text = string(data)
		}
		return session.StaticInputs{Text: text}, nil
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if !screenshot.IsPNG(data) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func sourceName(op operation.Operation, opts cliOptions) string {
	switch {
	case op.Source == operation.SourceScreen && opts.filePath != "":
		return opts.filePath
	case op.Source == operation.SourceScreen:
		return "screen"
	case opts.text != "":
		return "text"
	}
	return "clipboard"
}

type outcome struct {
	text string
	err  error
}

// resultTarget hands the outcome back to runOperation; it is called once.
type resultTarget struct {
	done chan<- outcome
}

func (t resultTarget) OnSuccess(text string) error {
	t.done <- outcome{text: text}
	return nil
}

func (t resultTarget) OnFailure(err error) error {
	t.done <- outcome{err: err}
	return nil
}

type RunResult struct {
	Operation string  `json:"operation"`
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(w io.Writer, id operation.ID, text, source string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(w, text)
		return err
	}
	result := RunResult{
		Operation: string(id),
		Text:      text,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len([]rune(text)),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// normalizeLegacyArgs maps single-dash long flags to the double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"text", "file", "query", "json", "verbose", "api-key-path"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}
	return normalized
}
