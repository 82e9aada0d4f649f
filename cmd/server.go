package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medisur/internal/audit"
	"github.com/ziadkadry99/medisur/internal/config"
	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/db"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/handoff"
	"github.com/ziadkadry99/medisur/internal/llm"
	"github.com/ziadkadry99/medisur/internal/normalizer"
	"github.com/ziadkadry99/medisur/internal/server"
	"github.com/ziadkadry99/medisur/internal/session"
	"github.com/ziadkadry99/medisur/internal/transcript"
	"github.com/ziadkadry99/medisur/internal/triage"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the medisur server",
	Long: `Starts the HTTP server: the patient conversation channel at
/ws/appointments/{id}, the REST API for conversations, facilities, handoffs
and audit entries, and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		// Audio is optional; without a transcriber every audio frame is
		// reported back to the patient as a failed transcription.
		var transcriber normalizer.Transcriber
		if t, err := llm.NewTranscriber(llmSettings(cfg)); err != nil {
			log.Warn().Err(err).Msg("audio transcription disabled")
		} else {
			transcriber = t
		}

		geocoder, err := facilities.NewNominatimGeocoder(facilities.NominatimOptions{
			BaseURL:   cfg.Geocoder.BaseURL,
			UserAgent: cfg.Geocoder.UserAgent,
			CacheSize: cfg.Geocoder.CacheSize,
			Timeout:   cfg.Geocoder.Timeout,
		})
		if err != nil {
			return fmt.Errorf("creating geocoder: %w", err)
		}

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, database)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager, facilityStore := registerAllRoutes(srv, cfg, database, provider, transcriber, geocoder)

		if cfg.Facilities.Monitor {
			monitor := facilities.NewMonitor(facilityStore, cfg.Facilities.HealthInterval, cfg.Facilities.HealthPath)
			go monitor.Run(ctx)
		}

		log.Info().
			Str("version", Version).
			Str("database", database.Path()).
			Str("llm_provider", provider.Name()).
			Str("model", cfg.LLM.Model).
			Int("max_rounds", cfg.Session.MaxRounds).
			Msg("medisur server starting")

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		// Graceful shutdown: stop accepting requests, then close the
		// channels and let in-flight handoffs finish.
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("closing conversation channels")
		}
		return nil
	},
}

// registerAllRoutes wires the stores and the conversation protocol onto the
// server.
func registerAllRoutes(srv *server.Server, cfg *config.Config, database *db.DB, provider llm.Provider, transcriber normalizer.Transcriber, geocoder facilities.Geocoder) (*session.Manager, *facilities.Store) {
	api := srv.API()

	// Audit Trail
	auditStore := audit.NewStore(database)
	audit.RegisterRoutes(api, auditStore)

	// Facility directory
	facilityStore := facilities.NewStore(database)
	facilities.RegisterRoutes(api, facilityStore)

	// Conversations and transcripts
	conversations := conversation.NewStore(database)
	transcripts := transcript.NewStore(database)
	conversation.RegisterRoutes(api, conversations, transcripts, auditStore)

	// Handoffs
	handoffStore := handoff.NewStore(database)
	notifier := handoff.NewHTTPNotifier(cfg.Handoff.IntakePath, cfg.Handoff.Timeout)
	dispatcher := handoff.NewDispatcher(handoffStore, facilityStore, notifier, auditStore)
	handoff.RegisterRoutes(api, handoffStore)

	// Conversation channel
	engine := triage.NewEngine(
		triage.NewLLMOracle(provider, cfg.LLM.Model),
		facilities.NewLocator(facilityStore, geocoder),
		triage.Options{
			MaxRounds:         cfg.Session.MaxRounds,
			QuestionsPerRound: cfg.Session.QuestionsPerRound,
			OracleTimeout:     cfg.Session.OracleTimeout,
		},
	)
	manager := session.NewManager(session.Dependencies{
		DB:            database,
		Conversations: conversations,
		Transcripts:   transcripts,
		Audit:         auditStore,
		Normalizer:    normalizer.New(transcriber, cfg.Session.AudioDir, cfg.Session.OracleTimeout),
		Engine:        engine,
		Dispatcher:    dispatcher,
	}, session.Options{
		MaxMessageBytes: cfg.Session.MaxMessageBytes,
		WriteTimeout:    cfg.Session.WriteTimeout,
		AllowAllOrigins: cfg.Server.AllowAll,
	})
	manager.RegisterRoutes(srv.Router())

	return manager, facilityStore
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
