package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"llm-assistant/src/config"
	"llm-assistant/src/dispatcher"
	"llm-assistant/src/gui"
	"llm-assistant/src/hotkey"
	"llm-assistant/src/logutil"
	"llm-assistant/src/notification"
	"llm-assistant/src/operation"
	"llm-assistant/src/overlay"
	"llm-assistant/src/runtimeinit"
	"llm-assistant/src/session"
	"llm-assistant/src/singleinstance"
	"llm-assistant/src/tray"
)

const appID = "io.github.llm-assistant"

type mainOptions struct {
	run        string
	stdout     bool
	query      string
	apiKeyPath string
}

func main() {
	// fyne needs the main thread.
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llm-assistant",
		Short:         "Tray assistant: global hotkeys for LLM translate, explain, OCR and query",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadOptions := config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath}
			if opts.run != "" {
				return runOnce(*opts, loadOptions)
			}
			return runResident(loadOptions)
		},
	}
	cmd.Flags().StringVar(&opts.run, "run", "", "Run one operation (ID or digit 1-7) through the resident instance and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run: print the result instead of showing a window")
	cmd.Flags().StringVar(&opts.query, "query", "", "With --run and no resident: question for query operations")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-run, -stdout=true) to the
// double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"llm-assistant"}
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	long := []string{"run", "stdout", "query", "api-key-path"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

// runOnce delegates to the resident; without one it runs the operation here,
// headless, copying the result to the clipboard unless --stdout is set.
func runOnce(opts mainOptions, loadOptions config.LoadOptions) error {
	op, err := operation.Parse(opts.run)
	if err != nil {
		return err
	}
	logutil.Setup(false, nil)

	ctx, cancel := signalContext()
	defer cancel()
	delegated, text, err := singleinstance.NewClient().TryRun(ctx, string(op.ID), opts.stdout)
	if delegated {
		if err != nil {
			return err
		}
		if opts.stdout {
			fmt.Print(text)
		}
		return nil
	}
	if err != nil {
		log.Printf("Delegation error: %v; running standalone", err)
	}

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   loadOptions,
		SetupLogging:  func(file bool) { logutil.Setup(file, nil) },
		InitClipboard: true,
	})
	if err != nil {
		return err
	}
	core := runtimeinit.NewCore(runtimeinit.CoreOptions{
		Config:      cfg,
		LoadOptions: loadOptions,
		Surface:     &session.HeadlessSurface{Query: opts.query, NotifyFunc: notification.Notify},
		Inputs:      session.DesktopInputs{Selector: overlay.NewSelector(cfg.RegionCommand)},
	})
	go func() { _ = core.Loop.Run(ctx) }()
	defer core.Close()

	var target session.ResultTarget = session.ClipboardTarget{}
	if opts.stdout {
		target = session.StdoutTarget{}
	}
	done := make(chan error, 1)
	wrapped := &waitTarget{inner: target, done: done}
	if !core.Loop.Post(func() { _ = core.Controller.Trigger(op.ID, wrapped) }) {
		return fmt.Errorf("event loop not running")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitTarget reports the outcome of a standalone run.
type waitTarget struct {
	inner session.ResultTarget
	done  chan<- error
}

func (t *waitTarget) OnSuccess(text string) error {
	err := t.inner.OnSuccess(text)
	t.done <- err
	return err
}

func (t *waitTarget) OnFailure(err error) error {
	_ = t.inner.OnFailure(err)
	t.done <- err
	return nil
}

func runResident(loadOptions config.LoadOptions) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:       loadOptions,
		SetupLogging:      func(file bool) { logutil.Setup(file, os.Stderr) },
		ShowBlockingError: true,
		InitClipboard:     true,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		start, _ := singleinstance.PortRange()
		return fmt.Errorf("another instance is already running (port %d busy): %w", start, err)
	}
	defer srv.Close()

	mods, err := hotkey.ParseModifiers(cfg.HotkeyModifiers)
	if err != nil {
		log.Printf("Invalid HOTKEY_MODIFIERS %q (%v), using %s", cfg.HotkeyModifiers, err, config.DefaultHotkeyModifiers)
		mods, _ = hotkey.ParseModifiers(config.DefaultHotkeyModifiers)
	}

	a := app.NewWithID(appID)
	a.SetIcon(tray.Icon)
	surface := gui.New(a)

	selector := overlay.NewSelector(cfg.RegionCommand)
	if strings.TrimSpace(cfg.RegionCommand) == "" {
		selector = surface.RegionSelector()
	}

	var menu *tray.Menu
	core := runtimeinit.NewCore(runtimeinit.CoreOptions{
		Config:      cfg,
		LoadOptions: loadOptions,
		Surface:     surface,
		Inputs:      session.DesktopInputs{Selector: selector},
		OnConfig: func(c config.Config) {
			fyne.Do(func() { menu.SetPremium(c.UsePremium) })
		},
	})
	defer core.Close()
	loop, ctrl := core.Loop, core.Controller

	menu = tray.NewMenu(mods, cfg.UsePremium, tray.Handlers{
		OnOperation: func(id operation.ID) { loop.Post(func() { ctrl.TriggerWindow(id) }) },
		OnPremium:   func(on bool) { loop.Post(func() { ctrl.SetPremium(on) }) },
		OnReload:    func() { loop.Post(ctrl.ReloadConfig) },
		OnQuit:      cancel,
	})
	if !menu.Install(a) {
		log.Printf("No system tray; hotkeys and --run still work")
	}

	source, err := hotkey.OpenHookSource()
	if err != nil {
		return fmt.Errorf("failed to start keyboard hook: %w", err)
	}
	disp := dispatcher.New(source, loop, ctrl.HandleChord)
	defer disp.Stop()
	if _, err := disp.Register(operation.Bindings(mods)); err != nil {
		log.Printf("Hotkey registration: %v", err)
		notification.Notify("LLM Assistant", fmt.Sprintf("Some hotkeys are unavailable: %v", err))
	}
	disp.Start()

	go ctrl.ServeDelegated(ctx, srv)
	go func() {
		err := config.Watch(ctx, cfg.EnvPath, func() {
			log.Printf("Config: %s changed", cfg.EnvPath)
			loop.Post(ctrl.ReloadConfig)
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("Config watch disabled: %v", err)
		}
	}()
	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("event loop stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		fyne.Do(a.Quit)
	}()

	log.Printf("LLM Assistant ready: %s+1..7, text model %s", cfg.HotkeyModifiers, cfg.ActiveTextModel())
	a.Run()

	cancel()
	log.Printf("Shutting down")
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
