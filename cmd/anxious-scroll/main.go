package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"anxiousscroll/scroll"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("anxious-scroll v%s\n", version)
	fmt.Println("Velocity-adaptive scroll wheel daemon for Linux input devices")
}

func printUsage() {
	defaults := DefaultConfig()

	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  anxious-scroll [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a mouse through evdev, rescales high-resolution wheel events by")
	fmt.Println("  scroll speed (slow scrolls stay precise, fast flicks travel far) and")
	fmt.Println("  re-emits the stream on a uinput virtual device. Low-resolution wheel")
	fmt.Println("  events are dropped; everything else passes through unchanged.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags explicitly set override file values)")
	fmt.Println()
	fmt.Println("  -device, -D string")
	fmt.Println("        Input event device (default: first device with X/Y motion and both wheels)")
	fmt.Println()
	fmt.Println("  -no-grab")
	fmt.Println("        Do not take exclusive access to the input device")
	fmt.Println()
	fmt.Println("  -base-sens float")
	fmt.Printf("        Sensitivity at zero velocity (default %.1f)\n", defaults.Scroll.BaseSens)
	fmt.Println()
	fmt.Println("  -max-sens float")
	fmt.Printf("        Sensitivity ceiling reached at high velocity (default %.1f)\n", defaults.Scroll.MaxSens)
	fmt.Println()
	fmt.Println("  -ramp-up-rate float")
	fmt.Printf("        Steepness of the velocity curve (default %.1f)\n", defaults.Scroll.RampUpRate)
	fmt.Println()
	fmt.Println("  -exp-lookup")
	fmt.Println("        Evaluate the curve through a precomputed exponential table")
	fmt.Println()
	fmt.Println("  -status-listen string")
	fmt.Printf("        Enable the HTTP status / WebSocket endpoint on this address (e.g. %q)\n", defaultStatusListen)
	fmt.Println()
	fmt.Println("  -statsview")
	fmt.Printf("        Serve runtime stats at http://%s%s\n", statsviewAddr, statsviewPath)
	fmt.Println()
	fmt.Println("  -debug, -d")
	fmt.Println("        Shortcut for -log-level debug")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Autodetect the mouse with default curve")
	fmt.Println("  anxious-scroll")
	fmt.Println()
	fmt.Println("  # Specific device, gentler ramp, debug logging")
	fmt.Println("  anxious-scroll -D /dev/input/event5 -ramp-up-rate 0.15 -d")
	fmt.Println()
	fmt.Println("  # Watch live samples")
	fmt.Println("  anxious-scroll -status-listen 127.0.0.1:3002 &")
	fmt.Println("  scroll-listen -ws ws://127.0.0.1:3002/ws")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input device and write access to /dev/uinput")
	fmt.Println("    (run as root or add user to the 'input' group with a uinput udev rule)")
	fmt.Println("  - Curve: sens = max / (1 + (max/base - 1) * exp(-rate * velocity)),")
	fmt.Println("    velocity in wheel units per millisecond")
	fmt.Println()
}

func main() {
	// Check for version/help early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		devicePath   string
		debug        bool
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		baseSens     = flag.Float64("base-sens", scroll.DefaultBaseSens, "Sensitivity at zero velocity")
		maxSens      = flag.Float64("max-sens", scroll.DefaultMaxSens, "Sensitivity ceiling")
		rampUpRate   = flag.Float64("ramp-up-rate", scroll.DefaultRampUpRate, "Steepness of the velocity curve")
		expLookup    = flag.Bool("exp-lookup", false, "Evaluate the curve through a precomputed exponential table")
		noGrab       = flag.Bool("no-grab", false, "Do not grab the input device")
		statusListen = flag.String("status-listen", "", "HTTP status / WebSocket listen address")
		statsviewOn  = flag.Bool("statsview", false, "Serve runtime stats viewer")
		showVersion  = flag.Bool("version", false, "Print version and exit")
		showHelp     = flag.Bool("help", false, "Print help message")
	)
	flag.StringVar(&devicePath, "device", "", "Input event device")
	flag.StringVar(&devicePath, "D", "", "Input event device (shorthand)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&debug, "d", false, "Enable debug logging (shorthand)")

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only flags that were explicitly set override the config file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device", "D":
			o.DevicePath = &devicePath
		case "no-grab":
			o.NoGrab = noGrab
		case "base-sens":
			o.BaseSens = baseSens
		case "max-sens":
			o.MaxSens = maxSens
		case "ramp-up-rate":
			o.RampUpRate = rampUpRate
		case "exp-lookup":
			o.ExpLookup = expLookup
		case "status-listen":
			o.StatusListen = statusListen
		case "statsview":
			o.Statsview = statsviewOn
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	if debug {
		lvl := string(LogLevelDebug)
		o.LogLevel = &lvl
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Validate already checked the level.
	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	logger.Debug("starting anxious-scroll", "version", version)
	logger.Debug("configuration",
		"config", *configPath,
		"device", cfg.Device.Path,
		"grab", cfg.Device.Grab,
		"virtual_name", cfg.Device.VirtualName,
		"base_sens", cfg.Scroll.BaseSens,
		"max_sens", cfg.Scroll.MaxSens,
		"ramp_up_rate", cfg.Scroll.RampUpRate,
		"exp_lookup", cfg.Scroll.ExpLookup,
		"status_enabled", cfg.Status.Enabled,
		"status_listen", cfg.Status.Listen,
		"statsview", cfg.Status.Statsview)

	if err := run(cfg, logger); err != nil {
		logger.Error("anxious-scroll stopped", "error", err)
		os.Exit(1)
	}
}

// run owns one device session: it sets up both devices, the optional status
// surfaces, and blocks in the session loop until a signal or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	phys, err := openPhysicalDevice(ExpandPath(cfg.Device.Path), logger)
	if err != nil {
		logger.Error("failed to open input device", "error", err, "tip", "run as root or add user to 'input' group")
		return err
	}
	defer phys.Close()

	if cfg.Device.Grab {
		if err := phys.grab(); err != nil {
			return err
		}
	}

	virt, err := newVirtualDevice(cfg.Device.VirtualName, phys.capabilities())
	if err != nil {
		return fmt.Errorf("create virtual device: %w", err)
	}
	defer virt.Close()

	// Let udev create the node before the first write.
	time.Sleep(uinputSettleDelay)

	startedAt := time.Now()
	sessionID := uuid.New().String()

	var samples chan scrollSample
	if cfg.Status.Enabled {
		samples = make(chan scrollSample, sampleQueueSize)
	}
	stats := newSessionStats(sessionID, startedAt, samples)

	params := cfg.ScrollParams()
	opts := []scroll.Option{scroll.WithObserver(stats.observe)}
	if cfg.Scroll.ExpLookup {
		opts = append(opts, scroll.WithExpTable(scroll.DefaultExpTable()))
	}
	pipeline := scroll.NewPipeline(params, scroll.NewState(startedAt), opts...)

	if cfg.Status.Statsview {
		launchStatsview(logger)
	}

	var wg sync.WaitGroup
	if cfg.Status.Enabled {
		ws := NewServer(logger, stats.snapshot, HubConfig{})
		router := newStatusRouter(statusSource{
			Version: version,
			Device: statusDevice{
				Path:    phys.Path(),
				Name:    phys.Name(),
				Virtual: cfg.Device.VirtualName,
				Grabbed: cfg.Device.Grab,
			},
			Params:    params,
			ExpLookup: cfg.Scroll.ExpLookup,
			Stats:     stats,
			WS:        ws,
		})

		wg.Add(3)
		go func() {
			defer wg.Done()
			ws.Hub().Run(ctx)
		}()
		go func() {
			defer wg.Done()
			RunBroadcaster(ctx, ws.Hub(), samples, logger)
		}()
		go func() {
			defer wg.Done()
			if err := runStatusServer(ctx, cfg.Status.Listen, router, logger); err != nil {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	logger.Info("listening",
		"session_id", sessionID,
		"device", phys.Path(),
		"name", phys.Name(),
		"virtual", cfg.Device.VirtualName,
		"grabbed", cfg.Device.Grab)

	err = runSession(ctx, phys, virt, pipeline, stats,
		time.Duration(cfg.Device.RetryDelayMS)*time.Millisecond, logger)

	if sigCtx.Err() != nil {
		logger.Info("shutting down")
	}
	cancel()
	wg.Wait()

	snap := stats.snapshot()
	logger.Info("session ended",
		"batches", snap.Batches,
		"transformed", snap.Transformed,
		"dropped", snap.Dropped,
		"passed", snap.Passed,
		"fallbacks", snap.Fallbacks)

	return err
}
