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

	"github.com/arcosum/arcobot/internal/api"
	"github.com/arcosum/arcobot/internal/assistant"
	"github.com/arcosum/arcobot/internal/dispatch"
	"github.com/arcosum/arcobot/internal/flow"
	"github.com/arcosum/arcobot/internal/genai"
	"github.com/arcosum/arcobot/internal/lockfile"
	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/notify"
	"github.com/arcosum/arcobot/internal/scheduler"
	"github.com/arcosum/arcobot/internal/store"
	"github.com/arcosum/arcobot/internal/twiliowhatsapp"
	"github.com/arcosum/arcobot/internal/util"
	"github.com/arcosum/arcobot/internal/whatsapp"
)

const (
	// DefaultStateDir holds the bot's file-based state.
	DefaultStateDir = "/var/lib/arcobot"
	// DefaultDBFileName is the SQLite database filename inside the state dir.
	DefaultDBFileName = "arcobot.db"
	// DefaultVerifyToken secures the Meta webhook handshake.
	DefaultVerifyToken = "ARCOSUM_WEBHOOK_2024"
)

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("arcobot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("arcobot exited successfully")
}

// Config holds environment configuration.
type Config struct {
	Backend         string
	AccessToken     string
	PhoneNumberID   string
	VerifyToken     string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	MinLeadScore    int
	DebounceSeconds int
	StartDelayMS    int
	InactivityHours int
	SweepSpec       string
	SMTP            notify.SMTPConfig
}

// Flags holds command line flag values.
type Flags struct {
	backend       *string
	accessToken   *string
	phoneNumberID *string
	verifyToken   *string
	dbDSN         *string
	stateDir      *string
	openaiKey     *string
	apiAddr       *string
	minLeadScore  *int
	debounceSecs  *int
	startDelayMS  *int
	inactivityHrs *int
	sweepSpec     *string
	qrOutput      *string
	numeric       *bool

	smtp notify.SMTPConfig
}

func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("ARCOBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		Backend:         os.Getenv("MESSAGING_BACKEND"),
		AccessToken:     os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		VerifyToken:     os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("ARCOBOT_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		MinLeadScore:    util.ParseIntEnv("MIN_LEAD_SCORE_TO_NOTIFY", assistant.DefaultMinLeadScore),
		DebounceSeconds: util.ParseIntEnv("NOTIFY_DEBOUNCE_SECONDS", int(notify.DefaultDebounceDelay/time.Second)),
		StartDelayMS:    util.ParseIntEnv("FORM_START_DELAY_MS", 0),
		InactivityHours: util.ParseIntEnv("INACTIVITY_HOURS", int(scheduler.DefaultInactivityWindow/time.Hour)),
		SweepSpec:       os.Getenv("INACTIVITY_SWEEP_CRON"),
		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     util.ParseIntEnv("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}
	if config.Backend == "" {
		config.Backend = "cloudapi"
	}
	if config.VerifyToken == "" {
		config.VerifyToken = DefaultVerifyToken
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		if path := os.Getenv("DATABASE_PATH"); path != "" {
			config.DatabaseURL = path
		} else {
			config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		}
	}
	return config
}

func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		backend:       flag.String("backend", config.Backend, "messaging backend: cloudapi, whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
		accessToken:   flag.String("access-token", config.AccessToken, "WhatsApp Cloud API access token (overrides $WHATSAPP_ACCESS_TOKEN)"),
		phoneNumberID: flag.String("phone-number-id", config.PhoneNumberID, "WhatsApp Cloud API phone number id (overrides $WHATSAPP_PHONE_NUMBER_ID)"),
		verifyToken:   flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WHATSAPP_VERIFY_TOKEN)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN or SQLite path (overrides $DATABASE_URL / $DATABASE_PATH)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for file-based data (overrides $ARCOBOT_STATE_DIR)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "HTTP listen address (overrides $API_ADDR)"),
		minLeadScore:  flag.Int("min-lead-score", config.MinLeadScore, "minimum lead score that alerts sellers (overrides $MIN_LEAD_SCORE_TO_NOTIFY)"),
		debounceSecs:  flag.Int("notify-debounce", config.DebounceSeconds, "seller alert quiet period in seconds (overrides $NOTIFY_DEBOUNCE_SECONDS)"),
		startDelayMS:  flag.Int("form-start-delay", config.StartDelayMS, "pause in milliseconds between division confirmation and the first form question (overrides $FORM_START_DELAY_MS)"),
		inactivityHrs: flag.Int("inactivity-hours", config.InactivityHours, "hours of silence before a customer is marked inactive (overrides $INACTIVITY_HOURS)"),
		sweepSpec:     flag.String("inactivity-cron", config.SweepSpec, "cron spec for the inactivity sweep (overrides $INACTIVITY_SWEEP_CRON)"),
		qrOutput:      flag.String("qr-output", "", "path to write the whatsmeow login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use a numeric whatsmeow login code instead of a QR code"),
		smtp:          config.SMTP,
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	msgService, err := openMessaging(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := msgService.Stop(); err != nil {
			slog.Error("failed to stop messaging service", "error", err)
		}
	}()

	notifier := notify.NewNotifier(msgService, notify.WithSMTP(flags.smtp))
	debouncer := notify.NewDebouncer(notifier, st,
		notify.WithDelay(time.Duration(*flags.debounceSecs)*time.Second))
	defer debouncer.Stop()

	var client genai.ClientInterface
	if *flags.openaiKey != "" {
		c, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return err
		}
		client = c
		slog.Info("AI assistant enabled")
	} else {
		slog.Warn("OPENAI_API_KEY not set, running without AI assistance")
	}

	engine := flow.NewEngine(msgService, st,
		flow.WithValidator(flow.NewValidator(client)),
		flow.WithLeadNotifier(scheduleAdapter{debouncer}),
	)

	var dispatchOpts []dispatch.Option
	if *flags.startDelayMS > 0 {
		dispatchOpts = append(dispatchOpts,
			dispatch.WithStartDelay(time.Duration(*flags.startDelayMS)*time.Millisecond))
	}
	if client != nil {
		a := assistant.New(client, msgService, st,
			assistant.WithScheduler(debouncer),
			assistant.WithMinLeadScore(*flags.minLeadScore))
		dispatchOpts = append(dispatchOpts, dispatch.WithAssistant(a))
	}
	dispatcher := dispatch.NewDispatcher(msgService, st, engine, dispatchOpts...)
	go dispatcher.Run(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	window := time.Duration(*flags.inactivityHrs) * time.Hour
	if err := sched.AddInactivitySweep(st, *flags.sweepSpec, window); err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithVerifyToken(*flags.verifyToken),
		api.WithAIEnabled(client != nil),
		api.WithNotifier(notifier),
	}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if publisher, ok := msgService.(api.EventPublisher); ok {
		apiOpts = append(apiOpts, api.WithPublisher(publisher))
	}
	server := api.NewServer(msgService, st, apiOpts...)
	return server.Run(ctx)
}

// scheduleAdapter routes form-completed leads through the debouncer so
// sellers get one alert per burst of activity.
type scheduleAdapter struct {
	debouncer *notify.Debouncer
}

func (a scheduleAdapter) NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error {
	a.debouncer.Schedule(analysis)
	return nil
}

func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Warn("no database configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return nil, err
	}
	slog.Info("using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

func openMessaging(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case "whatsmeow":
		// The device session keeps its own schema, so it gets its own
		// database next to the application store.
		sessionDSN := *flags.dbDSN
		if store.DetectDSNType(sessionDSN) != "postgres" {
			sessionDSN = filepath.Join(*flags.stateDir, "whatsmeow.db")
		}
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(sessionDSN)}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsmeowService(waClient), nil
	case "twilio":
		twClient, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(twClient), nil
	default:
		return messaging.NewCloudAPIService(
			messaging.WithAccessToken(*flags.accessToken),
			messaging.WithPhoneNumberID(*flags.phoneNumberID),
		)
	}
}
