package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/pkgforge/pkg/admission"
	"github.com/cuemby/pkgforge/pkg/archive"
	"github.com/cuemby/pkgforge/pkg/authz"
	"github.com/cuemby/pkgforge/pkg/blobstore"
	"github.com/cuemby/pkgforge/pkg/catalog"
	"github.com/cuemby/pkgforge/pkg/config"
	"github.com/cuemby/pkgforge/pkg/events"
	"github.com/cuemby/pkgforge/pkg/ingestion"
	"github.com/cuemby/pkgforge/pkg/ingestionapi"
	"github.com/cuemby/pkgforge/pkg/jobbroker"
	"github.com/cuemby/pkgforge/pkg/log"
	"github.com/cuemby/pkgforge/pkg/metrics"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pkgforge",
	Short: "pkgforge - package registry ingestion service",
	Long: `pkgforge accepts package archive uploads, authorizes each
upload against an external job broker, validates and re-archives the
content, stores it as a blob, reconciles author storage quota, and
periodically publishes a catalog snapshot for the public registry
frontend to read.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pkgforge version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "pkgforge.yaml", "Path to the registry configuration file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry's ingestion service",
	Long: `serve loads the registry configuration, opens its storage and
blob backends, connects to the job broker, and starts the ingestion
pipeline, catalog snapshotter, and metrics/health HTTP endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		blobs, err := blobstore.New(cfg.BlobStoreConfig())
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}

		broker := jobbroker.New(cfg.Broker.URL, cfg.Broker.TrustKeyHash, cfg.Broker.SharedSecret, log.Logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := broker.Start(ctx); err != nil {
			return fmt.Errorf("connect to job broker: %w", err)
		}
		defer broker.Stop()

		archiver := archive.New(cfg.Ingestion.TempRoot)

		eventBroker := events.NewBroker()
		eventBroker.Start()
		defer eventBroker.Stop()

		pipeline := ingestion.New(ingestion.Config{
			Store:         store,
			Blobs:         blobs,
			Broker:        broker,
			Archiver:      archiver,
			Concurrency:   cfg.Ingestion.Concurrency,
			JobAuthWindow: cfg.Broker.JobAuthWindow.Duration(),
			Log:           log.Logger,
			Events:        eventBroker,
		})

		snapshotter := catalog.New(store, cfg.Catalog.OutputPath, cfg.Catalog.Interval.Duration(), log.Logger).WithEvents(eventBroker)
		snapshotter.Start()
		defer snapshotter.Stop()

		guard := admission.NewGuard(cfg.Admission.RateLimitPerSecond, cfg.Admission.RateLimitBurst)

		svc := ingestionapi.New(store, guard, pipeline, snapshotter).WithEvents(eventBroker)
		_ = svc // wired for future transport binding (gRPC/HTTP handlers)

		collector := metrics.NewCollector(store)
		collector.Start()
		defer collector.Stop()

		metrics.RegisterComponent("storage", true, "")
		metrics.RegisterComponent("broker", true, "connected")
		metrics.RegisterComponent("ingestionapi", true, "")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())

		errCh := make(chan error, 1)
		go func() {
			log.Info(fmt.Sprintf("metrics and health endpoints listening on %s", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Info(fmt.Sprintf("shutting down on signal %s", sig.String()))
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics and health HTTP endpoints")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer token signing secrets",
}

var tokenGenerateSecretCmd = &cobra.Command{
	Use:   "generate-secret",
	Short: "Generate a fresh random signing secret for authz.Issuer",
	Long: `generate-secret prints a hex-encoded random secret suitable
for the auth.signing_secret field in the registry configuration file.
Every process that must verify the same tokens needs this same secret
configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := authz.GenerateSecret()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		fmt.Printf("%x\n", secret)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenGenerateSecretCmd)
}
