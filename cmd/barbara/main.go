package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/autofondo/barbara/internal/api"
	"github.com/autofondo/barbara/internal/bot"
	"github.com/autofondo/barbara/internal/flow"
	"github.com/autofondo/barbara/internal/genai"
	"github.com/autofondo/barbara/internal/mailer"
	"github.com/autofondo/barbara/internal/memory"
	"github.com/autofondo/barbara/internal/messaging"
	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/scheduler"
	"github.com/autofondo/barbara/internal/store"
	"github.com/autofondo/barbara/internal/twiliowhatsapp"
	"github.com/autofondo/barbara/internal/util"
	"github.com/autofondo/barbara/internal/whatsapp"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for Barbara state data.
	DefaultStateDir = "/var/lib/barbara"
	// DefaultDBFileName is the default SQLite database filename for the quote archive.
	DefaultDBFileName = "barbara.db"
	// DefaultMemoryMaxIdleHours is how long an untouched conversation survives.
	DefaultMemoryMaxIdleHours = 24
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping Barbara with configured modules")
	if err := run(flags); err != nil {
		slog.Error("Barbara failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Barbara exited successfully")
}

// Config holds environment configuration.
type Config struct {
	StateDir       string
	DatabaseURL    string
	OpenAIKey      string
	APIAddr        string
	Channel        string
	WhatsAppDSN    string
	EvictionCron   string
	MemoryMaxIdleH int
	SupportPhone   string
	QuoteValidityD int
	MaxHistory     int
	MaxRetries     int
	MaxInbound     int
}

// Flags holds command line flag values.
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	channel      *string
	waDSN        *string
	qrOutput     *string
	numeric      *bool
	evictionCron *string
	maxIdleHours *int
	supportPhone *string
	validityDays *int
	maxHistory   *int
	maxRetries   *int
	maxInbound   *int
}

// initializeLogger sets up structured logging with debug level.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and the .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("BARBARA_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("API_ADDR"),
		Channel:        os.Getenv("CHAT_CHANNEL"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		EvictionCron:   os.Getenv("MEMORY_EVICTION_CRON"),
		MemoryMaxIdleH: util.ParseIntEnv("MEMORY_MAX_IDLE_HOURS", DefaultMemoryMaxIdleHours),
		SupportPhone:   os.Getenv("SUPPORT_PHONE"),
		QuoteValidityD: util.ParseIntEnv("QUOTE_VALIDITY_DAYS", models.DefaultQuoteValidityDays),
		MaxHistory:     util.ParseIntEnv("MAX_HISTORY_TURNS", models.MaxHistoryTurns),
		MaxRetries:     util.ParseIntEnv("MAX_RETRIES_PER_STATE", models.MaxRetriesPerState),
		MaxInbound:     util.ParseIntEnv("MAX_INBOUND_LENGTH", models.MaxInboundLength),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BARBARA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"BARBARA_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"CHAT_CHANNEL", config.Channel,
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"MEMORY_EVICTION_CRON", config.EvictionCron,
		"MEMORY_MAX_IDLE_HOURS", config.MemoryMaxIdleH)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for Barbara data (overrides $BARBARA_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the quote archive (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for reply enhancement (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		channel:      flag.String("channel", config.Channel, "chat channel: none, twilio or whatsapp (overrides $CHAT_CHANNEL)"),
		waDSN:        flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:     flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		evictionCron: flag.String("eviction-cron", config.EvictionCron, "cron expression for the memory eviction sweep (overrides $MEMORY_EVICTION_CRON)"),
		maxIdleHours: flag.Int("memory-max-idle-hours", config.MemoryMaxIdleH, "hours before an idle conversation is evicted (overrides $MEMORY_MAX_IDLE_HOURS)"),
		supportPhone: flag.String("support-phone", config.SupportPhone, "support phone number quoted to users (overrides $SUPPORT_PHONE)"),
		validityDays: flag.Int("quote-validity-days", config.QuoteValidityD, "days a quoted price is honoured (overrides $QUOTE_VALIDITY_DAYS)"),
		maxHistory:   flag.Int("max-history-turns", config.MaxHistory, "conversation turns kept per user (overrides $MAX_HISTORY_TURNS)"),
		maxRetries:   flag.Int("max-retries-per-state", config.MaxRetries, "extraction misses before forced progression (overrides $MAX_RETRIES_PER_STATE)"),
		maxInbound:   flag.Int("max-inbound-length", config.MaxInbound, "inbound message truncation limit in runes (overrides $MAX_INBOUND_LENGTH)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"channel", *flags.channel,
		"evictionCron", *flags.evictionCron,
		"maxIdleHours", *flags.maxIdleHours)

	return flags
}

// ensureDirectoriesExist creates directories for file-based storage.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildArchive opens the quote archive backend implied by the DSN.
func buildArchive(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory quote archive")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL archive")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite archive", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildTransport creates the SMTP transport when configured.
func buildTransport() mailer.Transport {
	if os.Getenv("SMTP_HOST") == "" {
		slog.Warn("SMTP_HOST not set; quotation e-mails will fail until configured")
		return nil
	}
	transport, err := mailer.NewSMTPTransport()
	if err != nil {
		slog.Error("Failed to create SMTP transport", "error", err)
		return nil
	}
	return transport
}

// buildBotOptions assembles the optional orchestrator dependencies.
func buildBotOptions(flags Flags, archive store.Store) []bot.Option {
	opts := []bot.Option{
		bot.WithArchive(archive),
		bot.WithMaxInboundLength(*flags.maxInbound),
	}
	if *flags.openaiKey != "" {
		enhancer, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Error("Failed to create GenAI client, continuing without enhancement", "error", err)
		} else {
			opts = append(opts, bot.WithEnhancer(enhancer))
		}
	}
	return opts
}

// buildChannel creates the configured messaging service, or nil for none.
func buildChannel(flags Flags) (messaging.Service, *messaging.TwilioService, error) {
	switch *flags.channel {
	case "", "none":
		return nil, nil, nil
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc, nil
	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.waDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	default:
		slog.Warn("Unknown chat channel, running without one", "channel", *flags.channel)
		return nil, nil, nil
	}
}

// run wires all modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	archive, err := buildArchive(flags)
	if err != nil {
		return err
	}
	defer archive.Close()

	memStore := memory.NewStore(memory.WithMaxHistoryTurns(*flags.maxHistory))

	dispatcher := mailer.NewDispatcher(buildTransport(),
		mailer.WithSupportPhone(*flags.supportPhone))

	flowOpts := []flow.Option{
		flow.WithMaxRetries(*flags.maxRetries),
		flow.WithQuoteValidityDays(*flags.validityDays),
	}
	if *flags.supportPhone != "" {
		flowOpts = append(flowOpts, flow.WithSupportPhone(*flags.supportPhone))
	}
	machine := flow.New(memStore, dispatcher, flowOpts...)

	orchestrator := bot.New(memStore, machine, buildBotOptions(flags, archive)...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	maxIdle := time.Duration(*flags.maxIdleHours) * time.Hour
	if err := sched.ArmEviction(*flags.evictionCron, memStore, maxIdle); err != nil {
		return err
	}

	channel, twilioSvc, err := buildChannel(flags)
	if err != nil {
		return err
	}
	if channel != nil {
		if err := channel.Start(ctx); err != nil {
			return err
		}
		defer channel.Stop()
		responder := messaging.NewResponder(channel, orchestrator)
		go responder.Run(ctx)
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(orchestrator, archive, twilioSvc, apiOpts...)
	return server.Run(ctx)
}
