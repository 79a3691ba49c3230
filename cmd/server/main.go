package main

import (
	"bufio"
	"context"
	"embed"
	goerrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Databases (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation dictionary
	words, err := loadCensoredWords()
	if err != nil {
		return exitRuntime, err
	}
	logger.Info(fmt.Sprintf("%d censored words loaded", len(words)))
	moderator, err := moderation.NewModerator(words, charReplacement, logger)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Core wiring: registry → dispatcher → coordinator → service
	telemetryChan := make(chan event.TechnicalEvent, config.BufferSize)
	registry := runtime.NewConnectionRegistry()
	dispatcher := runtime.NewBroadcastDispatcher(logger, registry,
		config.BufferSize, config.DeliveryTimeout, telemetryChan)

	messageRepository := storage.NewMessageRepository(db, logger, config.LimitMessages)
	searchRepository := storage.NewSearchRepository(blugeWriter, logger, config.SearchPageSize)
	dispatcher.Add(
		sink.NewSearchSink(searchRepository, logger),
		sink.NewTimeline(config.TimelineDepth),
	)

	coordinator := runtime.NewMessageLifecycleCoordinator(logger, messageRepository, dispatcher, &moderator)

	tokens := auth.NewTokenManager([]byte(config.AuthTokenSecret), config.AuthTokenDuration)
	accounts := auth.NewAccounts(tokens)
	oracle := auth.NewClaimsOracle(logger)

	chatService := services.NewChatService(logger, oracle, registry, dispatcher, coordinator, searchRepository)

	// 5. Supervision
	supervisor := workers.NewSupervisor(logger, telemetryChan, config.RestartInterval)
	supervisor.Add(
		dispatcher,
		workers.NewHeartbeatWorker(logger, registry, dispatcher, config.HeartbeatInterval),
		workers.NewTelemetryWorker(logger, telemetryChan, []event.Handler{
			event.NewLatencyHandler(logger, config.LatencyThreshold),
			event.NewQueueCapacityHandler(logger, config.LowCapacityThreshold),
			event.NewEvictionHandler(logger),
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go supervisor.Run(ctx)

	// 6. Front door: one upgrade handler plus the token-issuing endpoints.
	// Routing frameworks stay out; the transport only resolves the bearer
	// token and maps error kinds to status codes.
	gateway := &gateway{
		log:      logger,
		config:   config,
		tokens:   tokens,
		accounts: accounts,
		chat:     chatService,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/register", gateway.register)
	mux.HandleFunc("/login", gateway.login)
	mux.HandleFunc("/ws", gateway.connect)
	mux.HandleFunc("/messages", gateway.history)
	mux.HandleFunc("/search", gateway.search)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		_ = server.Close()
		supervisor.Stop()
	}()

	logger.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		return exitRuntime, err
	}
	return exitOK, nil
}

// loadCensoredWords reads every embedded dictionary, one word per line.
func loadCensoredWords() ([]string, error) {
	entries, err := censoredFolder.ReadDir("censored")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var words []string
	for _, entry := range entries {
		file, err := censoredFolder.Open("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
		if err := scanner.Err(); err != nil {
			_ = file.Close()
			return nil, err
		}
		_ = file.Close()
	}
	return words, nil
}
