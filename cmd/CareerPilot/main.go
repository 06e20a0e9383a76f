package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/admission"
	"github.com/PathwayLabs/CareerPilot/internal/escalation"
	"github.com/PathwayLabs/CareerPilot/internal/genai"
	"github.com/PathwayLabs/CareerPilot/internal/identity"
	"github.com/PathwayLabs/CareerPilot/internal/lockfile"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/orchestrator"
	"github.com/PathwayLabs/CareerPilot/internal/recovery"
	"github.com/PathwayLabs/CareerPilot/internal/routing"
	"github.com/PathwayLabs/CareerPilot/internal/scheduler"
	"github.com/PathwayLabs/CareerPilot/internal/specialist"
	"github.com/PathwayLabs/CareerPilot/internal/store"
	"github.com/PathwayLabs/CareerPilot/internal/util"
	"github.com/PathwayLabs/CareerPilot/internal/workflow"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CareerPilot state data
	DefaultStateDir = "/var/lib/careerpilot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "careerpilot.db"
	// DefaultProvider is the model provider gated by admission control
	DefaultProvider = "openai"
	// DefaultReviewSweepCron runs the stale-review sweep every 10 minutes
	DefaultReviewSweepCron = "*/10 * * * *"
	// DefaultReviewMaxAge is how long a review may stay pending before it expires
	DefaultReviewMaxAge = 4 * time.Hour
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	reviewer := buildReviewerChannel(config)
	orch, err := buildOrchestrator(flags, config, st, reviewer)
	if err != nil {
		slog.Error("Failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := recovery.NewManager(st)
	rec.Register(recovery.NewReviewRecovery(reviewer, escalation.NewCoordinator()))
	rec.Register(recovery.NewClarificationRecovery())
	if err := rec.RecoverAll(ctx); err != nil {
		slog.Warn("Recovery finished with errors", "error", err)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if config.ReviewSweepEnabled {
		maxAge := config.ReviewMaxAge
		if err := sched.AddJob("review-sweep", config.ReviewSweepCron, func() {
			n, err := orch.ExpireStaleReviews(context.Background(), maxAge)
			if err != nil {
				slog.Error("Stale review sweep failed", "error", err)
				return
			}
			if n > 0 {
				slog.Info("Stale review sweep expired reviews", "count", n)
			}
		}); err != nil {
			slog.Error("Failed to schedule stale review sweep", "error", err, "cron", config.ReviewSweepCron)
			os.Exit(1)
		}
	} else {
		slog.Info("Stale review sweep disabled")
	}

	slog.Info("CareerPilot started",
		"stateDir", *flags.stateDir,
		"dsnSet", *flags.dbDSN != "",
		"reviewSweepCron", config.ReviewSweepCron)

	runConsole(ctx, orch)
	slog.Info("CareerPilot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL        string
	StateDir           string
	OpenAIKey          string
	OpenAIModel        string
	TwilioSID          string
	TwilioToken        string
	ReviewSweepEnabled bool
	ReviewSweepCron    string
	ReviewMaxAge       time.Duration
	RequestsPerMin     int
	TokensPerMin       int
	BurstLimit         int
	Cooldown           time.Duration
	ErrorThreshold     int
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	model     *string
}

// initializeLogger sets up structured logging; LOG_LEVEL=debug enables debug output.
func initializeLogger() {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	defaults := models.DefaultProviderLimits()
	config := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("CAREERPILOT_STATE_DIR"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		TwilioSID:          os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		ReviewSweepEnabled: util.ParseBoolEnv("REVIEW_SWEEP_ENABLED", true),
		ReviewSweepCron:    os.Getenv("REVIEW_SWEEP_SCHEDULE"),
		ReviewMaxAge:       util.ParseDurationEnv("REVIEW_MAX_AGE", DefaultReviewMaxAge),
		RequestsPerMin:     util.ParseIntEnv("PROVIDER_REQUESTS_PER_MINUTE", defaults.RequestsPerMinute),
		TokensPerMin:       util.ParseIntEnv("PROVIDER_TOKENS_PER_MINUTE", defaults.TokensPerMinute),
		BurstLimit:         util.ParseIntEnv("PROVIDER_BURST_LIMIT", defaults.BurstLimit),
		Cooldown:           util.ParseDurationEnv("PROVIDER_COOLDOWN", defaults.Cooldown),
		ErrorThreshold:     util.ParseIntEnv("PROVIDER_ERROR_THRESHOLD", defaults.ErrorThreshold),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CAREERPILOT_STATE_DIR set, using default", "stateDir", config.StateDir)
	}
	if config.ReviewSweepCron == "" {
		config.ReviewSweepCron = DefaultReviewSweepCron
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlitePath", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"CAREERPILOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "",
		"REVIEW_SWEEP_SCHEDULE", config.ReviewSweepCron,
		"REVIEW_MAX_AGE", config.ReviewMaxAge)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for CareerPilot data (overrides $CAREERPILOT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or PostgreSQL URL (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:     flag.String("model", config.OpenAIModel, "chat model name (overrides $OPENAI_MODEL)"),
	}
	flag.Parse()

	// Follow the state directory when the DSN was only defaulted from it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dsnSet", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model)
	return flags
}

// openStore selects the backing store from the DSN.
func openStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dbPath", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildReviewerChannel prefers Twilio SMS paging when credentials are present,
// falling back to the in-memory channel for local runs.
func buildReviewerChannel(config Config) escalation.ReviewerChannel {
	if config.TwilioSID != "" && config.TwilioToken != "" {
		notifier, err := escalation.NewTwilioNotifier()
		if err != nil {
			slog.Warn("Twilio reviewer channel unavailable, using in-memory channel", "error", err)
			return escalation.NewInMemoryChannel()
		}
		slog.Info("Reviewer channel configured", "channel", "twilio-sms")
		return notifier
	}
	slog.Info("Reviewer channel configured", "channel", "in-memory")
	return escalation.NewInMemoryChannel()
}

// buildOrchestrator assembles the full pipeline.
func buildOrchestrator(flags Flags, config Config, st store.Store, reviewer escalation.ReviewerChannel) (*orchestrator.Orchestrator, error) {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	limits := models.ProviderLimits{
		RequestsPerMinute: config.RequestsPerMin,
		TokensPerMinute:   config.TokensPerMin,
		BurstLimit:        config.BurstLimit,
		Cooldown:          config.Cooldown,
		ErrorThreshold:    config.ErrorThreshold,
	}
	controller := admission.NewController(admission.WithProviderLimits(DefaultProvider, limits))

	engine := routing.NewEngine(routing.DefaultSpecialists())
	dialogue := routing.NewConfidenceDialogue(engine)
	recognizer := identity.NewRecognizer()
	wf := workflow.NewManager(models.DefaultWorkflowLimits())
	esc := escalation.NewCoordinator()
	executor := specialist.NewGenAIExecutor(engine, client, controller, DefaultProvider)
	assessor := specialist.NewHeuristicAssessor()

	return orchestrator.NewOrchestrator(st, recognizer, engine, dialogue, wf, esc, executor, assessor, reviewer), nil
}

// runConsole reads user messages from stdin and prints assistant replies.
// Commands: /new starts a fresh conversation, /resume <id> <answer> resumes a
// paused conversation, /resolve <reviewID> <decision> records a reviewer
// decision, /quit exits.
func runConsole(ctx context.Context, orch *orchestrator.Orchestrator) {
	conversationID := uuid.NewString()
	fmt.Printf("CareerPilot console. Conversation %s. Type /quit to exit.\n", conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), models.MaxMessageLength+1024)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var result *models.ProcessResult
		var err error
		switch {
		case line == "/quit":
			return
		case line == "/new":
			conversationID = uuid.NewString()
			fmt.Printf("Started conversation %s\n", conversationID)
			continue
		case strings.HasPrefix(line, "/resume "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/resume "), " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /resume <conversation-id> <input>")
				continue
			}
			result, err = orch.Resume(ctx, parts[0], parts[1])
		case strings.HasPrefix(line, "/resolve "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/resolve "), " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /resolve <review-id> <decision>")
				continue
			}
			result, err = orch.ResolveReview(ctx, parts[0], "console", parts[1])
		default:
			result, err = orch.ProcessMessage(ctx, conversationID, line)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func printResult(result *models.ProcessResult) {
	switch result.Action {
	case models.ActionRoute:
		if result.Specialist != "" {
			fmt.Printf("[%s] %s\n", result.Specialist, result.Reply)
		} else {
			fmt.Println(result.Reply)
		}
	case models.ActionClarify:
		fmt.Printf("[clarify] %s\n", result.Reply)
	case models.ActionEscalate:
		fmt.Printf("[escalated] %s\n", result.Reply)
		if result.Review != nil {
			fmt.Printf("  review %s (%s, %s)\n", result.Review.ID, result.Review.Priority, result.Review.Type)
		}
	case models.ActionError:
		fmt.Printf("[error] %s\n", result.Reply)
		if result.Admission != nil {
			fmt.Printf("  admission: %s, retry in %s (%s)\n",
				result.Admission.Reason, result.Admission.WaitTime.Round(time.Second), result.Admission.Strategy)
		}
	}
}
