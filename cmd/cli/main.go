package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/config"
	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/services"
)

var (
	dbPath     string
	configPath string
	debugHTTP  bool
	rootCmd    *cobra.Command
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error().Err(err).Msg("Error getting home directory")
		os.Exit(1)
	}

	defaultDBPath := filepath.Join(homeDir, ".ledgermirror", "ledgermirror.db")

	rootCmd = &cobra.Command{
		Use:   "ledgermirror",
		Short: "Mirror reseller bookkeeping into an external accounting ledger",
		Long: `ledgermirror imports marketplace sales and expenses into a local
SQLite ledger, posts balanced journal entries to an external accounting
provider, and continuously diagnoses whether that mirroring is trustworthy.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.InitGlobalConfig(configPath); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warn().Err(err).Msg("Failed to load configuration")
					log.Warn().Msg("A default configuration will be used")
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugHTTP, "debug-http", false, "Dump ledger provider HTTP traffic")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig()
		},
	}

	rootCmd.AddCommand(
		configCmd,
		newServeCmd(),
		newIngestCmd(),
		newDiagnoseCmd(),
		newTestPostCmd(),
		newVerifyCmd(),
		newSyncJournalCmd(),
		newMappingsCmd(),
	)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// appState carries the wired services for one command invocation.
type appState struct {
	db            *db.DB
	cfg           *config.Config
	client        ledger.Client
	ingester      *services.Ingester
	syncer        *services.JournalSyncer
	verifier      *services.Verifier
	diagnostician *services.Diagnostician
}

func initAppState() (*appState, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	database, err := db.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := database.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	provider, err := config.GetProviderOptions()
	if err != nil {
		return nil, err
	}

	client := ledger.NewHTTPClient(provider.BaseURL, provider.APIKey, provider.RealmID)
	if debugHTTP {
		client.EnableHTTPDebug()
	}

	var channels []services.Channel
	if cfg.Alerts.WebhookURL != "" {
		channels = append(channels, services.NewWebhookChannel(cfg.Alerts.WebhookURL))
	}

	dispatcher := services.NewAlertDispatcher(
		database,
		channels,
		cfg.Alerts.Recipients,
		cfg.AppBaseURL,
		time.Duration(cfg.Alerts.MinIntervalSeconds)*time.Second,
	)

	return &appState{
		db:            database,
		cfg:           cfg,
		client:        client,
		ingester:      services.NewIngester(database, cfg.Sync.DefaultCurrency),
		syncer:        services.NewJournalSyncer(database, client, provider.Name, cfg.Sync.DefaultCurrency),
		verifier:      services.NewVerifier(client),
		diagnostician: services.NewDiagnostician(database, client, provider.Name, dispatcher, cfg.Alerts.NotifyOnWarnings),
	}, nil
}

func (a *appState) Close() {
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}

// showConfig displays the current configuration
func showConfig() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Error().Err(err).Msg("Error loading configuration")
		return
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Provider:          %s\n", cfg.Provider.Name)
	fmt.Printf("Provider base URL: %s\n", cfg.Provider.BaseURL)

	apiKey := cfg.Provider.APIKey
	if apiKey == "" {
		fmt.Println("Provider API Key:  Not set")
		fmt.Println("\nPlease set provider.apiKey in config.yaml before syncing.")
	} else {
		masked := ""
		if len(apiKey) > 8 {
			masked = apiKey[:4] + maskRepeat(len(apiKey)-8) + apiKey[len(apiKey)-4:]
		} else {
			masked = maskRepeat(len(apiKey))
		}
		fmt.Printf("Provider API Key:  %s\n", masked)
	}

	fmt.Printf("Listen address:    %s\n", cfg.ListenAddr)
	fmt.Printf("Default currency:  %s\n", cfg.Sync.DefaultCurrency)
	fmt.Printf("Same-day reverse:  %v\n", cfg.Sync.SameDayReverse)
	fmt.Printf("Warn alerts:       %v\n", cfg.Alerts.NotifyOnWarnings)
}

func maskRepeat(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "*"
	}
	return s
}
