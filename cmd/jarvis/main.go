package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/davidh/jarvis/internal/api"
	"github.com/davidh/jarvis/internal/auth"
	"github.com/davidh/jarvis/internal/contacts"
	"github.com/davidh/jarvis/internal/db"
	"github.com/davidh/jarvis/internal/orchestrator"
	"github.com/davidh/jarvis/internal/reactor"
	"github.com/davidh/jarvis/internal/scheduler"
	"github.com/davidh/jarvis/internal/toolbelt"
	"github.com/davidh/jarvis/internal/tools"
)

const version = "0.1.0-dev"

// exitPhrases end the interactive session.
var exitPhrases = []string{"exit", "quit", "goodbye", "thank you"}

func main() {
	// Define flags
	configPath := flag.String("config", "jarvis.json", "Path to application config file")
	toolbeltConfig := flag.String("toolbelt", "toolbelt.yaml", "Path to toolbelt.yaml config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Jarvis v%s\n", version)
		os.Exit(0)
	}

	// Environment variables referenced from toolbelt.yaml may live in .env
	_ = godotenv.Load()

	fmt.Println("Jarvis - Personal Assistant")
	fmt.Printf("Version: %s\n", version)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	location, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
		os.Exit(1)
	}

	// Initialize database
	fmt.Printf("Opening database: %s\n", cfg.DBPath)
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
		os.Exit(1)
	}

	// Load toolbelt configuration
	fmt.Printf("Loading toolbelt config: %s\n", *toolbeltConfig)
	tb, err := toolbelt.NewFromFile(*toolbeltConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading toolbelt config: %v\n", err)
		os.Exit(1)
	}
	if tb.Anthropic == nil {
		fmt.Fprintln(os.Stderr, "Error: anthropic is not configured")
		os.Exit(1)
	}
	if tb.Google == nil {
		fmt.Fprintln(os.Stderr, "Error: google is not configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Verify service connectivity before accepting work
	fmt.Println("Testing service connections...")
	for _, result := range tb.TestConnections(ctx) {
		if result.Success {
			fmt.Printf("  %s: ok (%dms)\n", result.Name, result.Latency)
		} else {
			fmt.Printf("  %s: FAILED: %s\n", result.Name, result.Error)
		}
	}

	book, err := contacts.Load(cfg.ContactsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading contacts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d contacts\n", len(book.All()))

	executor, err := tools.NewExecutor(tb.Google)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building tool executor: %v\n", err)
		os.Exit(1)
	}

	promptCfg := orchestrator.PromptConfig{
		AssistantName:   cfg.AssistantName,
		UserName:        cfg.UserName,
		Location:        location,
		DefaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
		Contacts:        book,
	}
	orch, err := orchestrator.New(tb.Anthropic, executor, promptCfg,
		orchestrator.WithMaxIterations(cfg.MaxToolIterations),
		orchestrator.WithRecorder(database),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building orchestrator: %v\n", err)
		os.Exit(1)
	}

	// Background email reactor
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	react := reactor.New(tb.Google, orch, database, location, interval)
	go react.Run(ctx)

	// Optional webhook receiver
	if cfg.Webhook.Enabled {
		if cfg.Webhook.Secret == "" {
			fmt.Fprintln(os.Stderr, "Error: webhook.secret is required when webhook is enabled")
			os.Exit(1)
		}
		server := api.NewServer(database, api.Config{
			Addr: cfg.Webhook.Addr,
			TokenConfig: &auth.TokenConfig{
				Issuer:      "jarvis",
				ExpiryHours: 24,
				Secret:      []byte(cfg.Webhook.Secret),
			},
		})
		go func() {
			fmt.Printf("Webhook receiver listening on %s\n", cfg.Webhook.Addr)
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Webhook server stopped: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	runREPL(ctx, cfg, orch, tb.Google)
}

// runREPL drives the interactive session until an exit phrase or signal.
func runREPL(ctx context.Context, cfg *Config, orch *orchestrator.Orchestrator, backend *toolbelt.GoogleClient) {
	conv := orchestrator.NewConversation(orchestrator.SourceREPL)
	// One buffered reader serves both the prompt loop and the gate, so a
	// confirmation never eats the next command.
	stdin := bufio.NewReader(os.Stdin)
	gate := orchestrator.NewInteractiveGateBuffered(stdin, os.Stdout)

	fmt.Printf("\n%s at your service. Type 'exit' to leave.\n", cfg.AssistantName)
	for {
		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		if ctx.Err() != nil {
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExitPhrase(input) {
			fmt.Println("Goodbye.")
			return
		}
		if strings.HasPrefix(input, "/schedule ") {
			runSchedule(ctx, cfg, backend, strings.TrimPrefix(input, "/schedule "))
			continue
		}

		reply, err := orch.ProcessTurn(ctx, conv, input, gate)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}

func isExitPhrase(input string) bool {
	lowered := strings.ToLower(input)
	for _, phrase := range exitPhrases {
		if lowered == phrase {
			return true
		}
	}
	return false
}

// runSchedule handles the direct scheduling command:
//
//	/schedule <email> <start RFC3339> <minutes> <summary>
//
// It books the slot if free, otherwise mails a reschedule proposal.
func runSchedule(ctx context.Context, cfg *Config, backend *toolbelt.GoogleClient, args string) {
	fields := strings.SplitN(args, " ", 4)
	if len(fields) < 4 {
		fmt.Println("usage: /schedule <email> <start RFC3339> <minutes> <summary>")
		return
	}
	person, startStr, minutesStr, summary := fields[0], fields[1], fields[2], fields[3]

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		fmt.Printf("invalid start time: %v\n", err)
		return
	}
	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes <= 0 {
		fmt.Println("minutes must be a positive integer")
		return
	}

	window := scheduler.Window{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
	horizon := time.Duration(cfg.HorizonHours) * time.Hour

	outcome, err := scheduler.ScheduleOrPropose(ctx, backend, person, summary, window, horizon)
	if err != nil {
		fmt.Printf("scheduling failed: %v\n", err)
		return
	}
	if outcome.Scheduled {
		fmt.Printf("Scheduled %q %s - %s, confirmation sent to %s\n",
			summary, outcome.Window.Start.Format(time.RFC3339), outcome.Window.End.Format(time.RFC3339), person)
	} else {
		fmt.Printf("Requested time is busy; proposed %s - %s to %s\n",
			outcome.Window.Start.Format(time.RFC3339), outcome.Window.End.Format(time.RFC3339), person)
	}
}
