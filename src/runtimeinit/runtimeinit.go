package runtimeinit

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"llm-assistant/src/clipboard"
	"llm-assistant/src/config"
	"llm-assistant/src/eventloop"
	"llm-assistant/src/llm"
	"llm-assistant/src/logutil"
	"llm-assistant/src/notification"
	"llm-assistant/src/operation"
	"llm-assistant/src/pipeline"
	"llm-assistant/src/session"
	"llm-assistant/src/worker"
)

type Options struct {
	LoadOptions       config.LoadOptions
	SetupLogging      func(bool)
	ShowBlockingError bool
	// InitClipboard is required for clipboard operations and result copying.
	InitClipboard bool
}

// Bootstrap loads and validates the configuration and initializes the
// process-wide packages.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	if err := cfg.Validate(); err != nil {
		if opts.ShowBlockingError {
			notification.ShowBlockingError("LLM Assistant", fmt.Sprintf("Configuration incomplete: %v\n\nEdit %s and restart.", err, cfg.EnvPath))
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log.Printf("Config: endpoint %s, text model %s, key %s", cfg.APIURL, cfg.ActiveTextModel(), logutil.RedactKey(cfg.APIKey))

	if opts.InitClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}
	return cfg, nil
}

// Core is the event loop plus everything the session controller needs.
type Core struct {
	Loop       *eventloop.Loop
	Pool       *worker.Pool
	Engine     *pipeline.Engine
	Store      *config.Store
	Controller *session.Controller
}

type CoreOptions struct {
	Config      *config.Config
	LoadOptions config.LoadOptions
	Surface     session.Surface
	Inputs      session.Inputs
	OnConfig    func(config.Config)
	HTTPClient  *http.Client
}

// NewCore wires the engine and controller. The caller runs Core.Loop.
func NewCore(opts CoreOptions) *Core {
	loop := eventloop.New()
	// One worker per operation: at most one run per operation is active.
	pool := worker.New(len(operation.All()), 1)
	pool.OnPanic(func(err error) { log.Printf("Worker: %v", err) })

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.Config.StreamConnectTimeout)
	}
	engine := pipeline.NewEngine(pipeline.NewLLMRunner(llm.New(httpClient)), loop, pool)
	store := config.NewStore(opts.Config, opts.LoadOptions)
	ctrl := session.NewController(session.Options{
		Loop:     loop,
		Engine:   engine,
		Store:    store,
		Surface:  opts.Surface,
		Inputs:   opts.Inputs,
		OnConfig: opts.OnConfig,
	})
	return &Core{Loop: loop, Pool: pool, Engine: engine, Store: store, Controller: ctrl}
}

// NewHTTPClient returns a client whose transport bounds connecting. Request
// deadlines are set per call.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport}
}

// Close stops accepting work and aborts in-flight requests.
func (c *Core) Close() {
	done := make(chan struct{})
	if c.Loop.Post(func() {
		c.Controller.Close()
		close(done)
	}) {
		select {
		case <-done:
		case <-c.Loop.Done():
		case <-time.After(time.Second):
		}
	}
	c.Engine.Close()
	c.Loop.Stop()
	c.Pool.Close()
}
