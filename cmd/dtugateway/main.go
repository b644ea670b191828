// Command dtugateway connects to a Hoymiles-style DTU, keeps its telemetry
// up to date, and forwards snapshots to a configured downstream publisher.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohand/dtugateway/internal/config"
	"github.com/ohand/dtugateway/internal/dtu"
	"github.com/ohand/dtugateway/internal/publish"
	"github.com/ohand/dtugateway/internal/telemetry/logging"
	"github.com/ohand/dtugateway/internal/telemetry/metrics"
	"github.com/ohand/dtugateway/internal/telemetry/tracing"
)

func main() {
	var (
		configPath  = flag.String("config", "dtugateway.yaml", "path to the operator config file")
		metricsAddr = flag.String("metrics", ":9120", "address to serve /metrics on, empty to disable")
		healthAddr  = flag.String("health", ":9121", "address to serve /healthz on, empty to disable")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("dtugateway (development build)")
		return
	}

	baseLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	log := logging.New(baseLogger)

	cfgFile, err := config.Load(*configPath)
	if err != nil {
		baseLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rec := metrics.NewRecorder()
	exporter := tracing.NewSlogExporter(baseLogger)
	tp := tracing.NewProvider(exporter)
	defer tp.Shutdown(context.Background())

	cfg := dtu.Defaults()
	cfg.Server = cfgFile.DTU.Server
	cfg.Port = cfgFile.DTU.Port
	cfg.PowerLimitPercent = cfgFile.DTU.PowerLimit
	cfg.PreventCloudErrors = cfgFile.DTU.PreventCloudErrors

	client := dtu.NewClient(cfg, dtu.WithLogger(log), dtu.WithMetrics(rec), dtu.WithTracer(tracing.Tracer(tp)))

	var publisher publish.Publisher = publish.NewLogPublisher(baseLogger)
	if cfgFile.Publish.Mode == "homeassistant" {
		baseLogger.Warn("homeassistant publish mode configured without a wired MQTT transport; falling back to log publisher",
			"prefix", cfgFile.Publish.HomeAssistant.Prefix, "nodeId", cfgFile.Publish.HomeAssistant.NodeID)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		baseLogger.Info("shutdown requested")
		client.FlushConnection()
		cancel()
		<-sigCh
		baseLogger.Warn("forced exit on second signal")
		os.Exit(1)
	}()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				baseLogger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if *healthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv := &http.Server{Addr: *healthAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				baseLogger.Error("health server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := config.Watch(ctx, *configPath, func(c config.Change) {
		client.SetServer(c.File.DTU.Server)
		client.SetPowerLimit(c.File.DTU.PowerLimit)
		client.SetPreventCloudErrors(c.File.DTU.PreventCloudErrors)
		baseLogger.Info("config reloaded", "server", c.File.DTU.Server)
	}, func(err error) {
		baseLogger.Warn("config reload failed", "error", err)
	}); err != nil {
		baseLogger.Warn("config hot reload disabled", "error", err)
	}

	go publishLoop(ctx, client, publisher, baseLogger)

	if err := client.Run(ctx); err != nil && err != context.Canceled {
		baseLogger.Error("client exited with error", "error", err)
		os.Exit(1)
	}
}

// publishLoop forwards every telemetry update the client produces to the
// configured publisher, polling at a cadence faster than the client's own
// 5s tick so no update sits unpublished for long.
func publishLoop(ctx context.Context, client *dtu.Client, publisher publish.Publisher, log *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := client.ConsumeUpdate()
			if !snap.UpdateReceived {
				continue
			}
			if err := publisher.Publish(ctx, publish.FromDTU(snap)); err != nil {
				log.Warn("publish failed", "error", err)
			}
		}
	}
}
