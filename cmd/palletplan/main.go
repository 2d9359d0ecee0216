package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/palletplan/internal/application"
	"github.com/eugenenazirov/palletplan/internal/config"
	"github.com/eugenenazirov/palletplan/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("palletplan", "Pallet Load Planner - determines how many boxes fit on a pallet and how many pallets an order needs")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	unitsFlag := kingpinApp.Flag("units", "Default unit system (imperial or metric)").String()
	redisAddr := kingpinApp.Flag("redis-addr", "Redis address for pallet profile storage").String()

	serveCmd := kingpinApp.Command("serve", "Run the HTTP service").Default()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	planCmd := kingpinApp.Command("plan", "Compute a single load plan and print it as JSON")
	var opts planOptions
	planCmd.Flag("box", "Box dimensions as L,W,H").Required().StringVar(&opts.box)
	planCmd.Flag("weight", "Weight of one box").Required().Float64Var(&opts.weight)
	planCmd.Flag("pallet", "Pallet profile name or footprint as L,W").Default("gma").StringVar(&opts.pallet)
	planCmd.Flag("max-height", "Maximum stack height (defaults to the profile value)").Float64Var(&opts.maxHeight)
	planCmd.Flag("max-weight", "Maximum load weight (defaults to the profile value)").Float64Var(&opts.maxWeight)
	planCmd.Flag("quantity", "Number of boxes to ship").Required().IntVar(&opts.quantity)
	planCmd.Flag("mode", "Planning mode").Default("default").EnumVar(&opts.mode, "default", "minimizePallets", "weightSafety")
	planCmd.Flag("layout", "Include per-box placements in the output").BoolVar(&opts.layout)

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *unitsFlag != "" {
		overrides.Units = unitsFlag
	}

	if *redisAddr != "" {
		overrides.RedisAddr = redisAddr
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to release resources", zap.Error(err))
		}
	}()

	if command == planCmd.FullCommand() {
		opts.units = cfg.Units
		if err := runPlan(ctx, os.Stdout, app.Engine(), app.Storage(), opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			_ = logger.Sync()
			_ = app.Close()
			os.Exit(1)
		}
		return
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
