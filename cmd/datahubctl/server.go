package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	catgorm "github.com/opencdh/datahub-in-go/pkg/catalog/gorm"
	"github.com/opencdh/datahub-in-go/pkg/config"
	"github.com/opencdh/datahub-in-go/pkg/db"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	lockgorm "github.com/opencdh/datahub-in-go/pkg/locks/gorm"
	lockredis "github.com/opencdh/datahub-in-go/pkg/locks/redis"
	"github.com/opencdh/datahub-in-go/pkg/provision"
	"github.com/opencdh/datahub-in-go/pkg/server"
	"github.com/opencdh/datahub-in-go/pkg/server/endpoints"
	"github.com/opencdh/datahub-in-go/pkg/server/middleware"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the data hub control plane server",
	Long: `Run the data hub control plane server.

To run the server requires the environment variables DATABASE_URL and
CDH_JWT_SECRET.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Validate required environment variables first (fail fast)
		jwtSecret := os.Getenv("CDH_JWT_SECRET")
		if jwtSecret == "" {
			fmt.Fprintln(os.Stderr, "CDH_JWT_SECRET environment variable is required")
			os.Exit(1)
		}

		if os.Getenv("DATABASE_URL") == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if host, _ := cmd.Flags().GetString("bind-address"); host != "" {
			cfg.BindAddress = host
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}

		// Run migrations unless --no-migrate is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		database, err := db.Connect(db.Config{URL: cfg.DatabaseURL})
		if err != nil {
			fmt.Println("Unable to connect to DB:", err)
			os.Exit(1)
		}

		var lockStore locks.Store
		if cfg.LockBackend == "redis" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				fmt.Println("Bad CDH_REDIS_URL:", err)
				os.Exit(1)
			}
			lockStore = lockredis.NewStore(redis.NewClient(opts), cfg.LockTTL())
		} else {
			lockStore = lockgorm.NewStore(database, cfg.LockTTL())
		}
		lockService := locks.NewService(lockStore)

		ctx := context.Background()
		factory, err := awsclients.NewFactory(
			ctx, cfg.Partition, cfg.ProvisioningRoleName, cfg.RetryAttempts, cfg.RetryWait())
		if err != nil {
			fmt.Println("Unable to initiate provider clients:", err)
			os.Exit(1)
		}
		clients := provision.NewAWSClients(factory)

		accountsStore := catgorm.NewAccountsStore(database)
		datasetsStore := catgorm.NewDatasetsStore(database)
		resourcesStore := catgorm.NewResourcesStore(database)

		orchestrator := provision.NewOrchestrator(
			resourcesStore,
			datasetsStore,
			accountsStore,
			provision.NewSharedKeyManager(clients, accountsStore, lockService, cfg.ResourcePrefix, cfg.Environment),
			provision.NewTopicManager(clients, cfg.IngestionRoleARN),
			provision.NewS3BucketManager(clients, cfg.ResourcePrefix),
			lockService,
			provision.NoopAccessSync{},
		)

		s := server.NewServer(
			cfg,
			database,
			func(requestID string) server.Provisioner { return orchestrator.ForRequest(requestID) },
			lockService,
			catgorm.NewHealthStore(database),
			middleware.NewJWTAuthenticator([]byte(jwtSecret)),
		)

		endpoints.RegisterAll(s)

		go func() {
			log.Printf("Running server at http://%s:%s...\n", cfg.BindAddress, cfg.Port)
			if err := s.Start(); err != nil {
				log.Println(err)
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Println("Shutdown error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", "", "server listen port (overrides configuration)")
	serverCmd.Flags().StringP("bind-address", "b", "", "server bind address (overrides configuration)")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}
