package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/app"
	"github.com/wippyai/ecsact-runtime/config"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/guest"
	"github.com/wippyai/ecsact-runtime/metrics"
	"github.com/wippyai/ecsact-runtime/native"
	"github.com/wippyai/ecsact-runtime/runtime"
	"github.com/wippyai/ecsact-runtime/symbol"
)

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	settings    *config.Settings
	guest       string
	bindings    []runtime.WasmBinding
	runLoop     bool
	interactive bool
}

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML settings file")
		envFile     = flag.String("env", ".env", "Optional .env file")
		guestFile   = flag.String("guest", "", "Guest wasm module providing system implementations")
		metricsAddr = flag.String("metrics", "", "Serve metrics on this address (overrides metricsAddress)")
		runLoop     = flag.Bool("run", false, "Drive async events until interrupted")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	var libs, binds stringList
	flag.Var(&libs, "lib", "Runtime library path, appended to runtimeLibraryPaths (repeatable)")
	flag.Var(&binds, "bind", "Guest binding export=systemID (repeatable)")
	flag.Parse()

	settings, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	settings.RuntimeLibraryPaths = append(settings.RuntimeLibraryPaths, libs...)
	if *metricsAddr != "" {
		settings.MetricsAddress = *metricsAddr
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(settings.RuntimeLibraryPaths) == 0 && *guestFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: ecsact -lib <libruntime.so> [-lib ...] [-config ecsact.yaml]")
		fmt.Fprintln(os.Stderr, "       ecsact -lib <libruntime.so> -guest <systems.wasm> -bind export=systemID")
		fmt.Fprintln(os.Stderr, "       ecsact -lib <libruntime.so> -run [-metrics :9464]")
		fmt.Fprintln(os.Stderr, "       ecsact -lib <libruntime.so> -i  (interactive mode)")
		os.Exit(1)
	}

	bindings, err := parseBindings(binds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(settings, *interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	err = run(context.Background(), log, options{
		settings:    settings,
		guest:       *guestFile,
		bindings:    bindings,
		runLoop:     *runLoop,
		interactive: *interactive,
	})
	if err != nil {
		if errors.IsKind(err, errors.KindLoadFailure) {
			fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

// newLogger builds a zap logger at the configured level. Terminals get the
// development encoder; the interactive mode only logs warnings and up so the
// TUI stays readable.
func newLogger(s *config.Settings, interactive bool) (*zap.Logger, error) {
	level, err := s.Level()
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg = zap.NewDevelopmentConfig()
	}
	if interactive && level < zap.WarnLevel {
		level = zap.WarnLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	native.SetLogger(log.Named("native"))
	symbol.SetLogger(log.Named("symbol"))
	guest.SetLogger(log.Named("guest"))
	runtime.SetLogger(log.Named("runtime"))
	return log, nil
}

func parseBindings(values []string) ([]runtime.WasmBinding, error) {
	bindings := make([]runtime.WasmBinding, 0, len(values))
	for _, v := range values {
		export, id, ok := strings.Cut(v, "=")
		if !ok || export == "" {
			return nil, fmt.Errorf("binding %q: want export=systemID", v)
		}
		n, err := strconv.ParseInt(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", v, err)
		}
		bindings = append(bindings, runtime.WasmBinding{Export: export, System: abi.SystemID(n)})
	}
	return bindings, nil
}

func run(ctx context.Context, log *zap.Logger, opts options) error {
	collector := metrics.NewCollector("ecsact")
	collector.Observe(runtime.Tokens())
	defer collector.Stop()

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(log),
		runtime.WithMetrics(collector),
	}
	if opts.guest != "" {
		lib := guest.NewWithConfig(ctx, &guest.Config{Name: opts.guest})
		runtimeOpts = append(runtimeOpts, runtime.WithLibraries(lib))
	}

	c, err := app.Open(opts.settings, runtimeOpts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if opts.guest != "" {
		if len(opts.bindings) == 0 {
			return fmt.Errorf("-guest needs at least one -bind")
		}
		if err := c.Runtime().Wasm().LoadFile(opts.guest, opts.bindings...); err != nil {
			return err
		}
	}

	if opts.interactive {
		return runInteractive(c)
	}

	printSummary(os.Stdout, c)
	if !opts.runLoop {
		return nil
	}
	return serve(ctx, log, c, collector)
}

// serve drives the runtime and the metrics endpoint until interrupted.
func serve(ctx context.Context, log *zap.Logger, c *app.Context, collector *metrics.Collector) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(ctx, app.WithTickObserver(collector.RecordFlush))
	})

	if addr := c.Settings().MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("serving metrics", zap.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	fmt.Println("\nRunning, press Ctrl+C to stop.")
	return g.Wait()
}
