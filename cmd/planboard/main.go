// Command planboard runs the content-planning service: it opens the
// embedded store, connects to the shared SurrealDB backend when one is
// reachable, and keeps the board synchronized either way.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"planboard/internal/ai"
	"planboard/internal/config"
	"planboard/internal/invite"
	"planboard/internal/model"
	"planboard/internal/storage"
	"planboard/internal/store"
	"planboard/internal/store/local"
	"planboard/internal/store/remote"
)

func main() {
	inviteURL := flag.String("invite", "", "project invitation link to accept on startup")
	flag.Parse()

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if err := run(cfg, *inviteURL, log); err != nil {
		log.Fatal().Err(err).Msg("planboard exited")
	}
}

func run(cfg *config.Config, inviteURL string, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := local.Open(cfg.LocalDBPath)
	if err != nil {
		return err
	}
	defer l.Close()

	remoteCfg := remote.Config{
		Endpoint:  cfg.SurrealEndpoint,
		Namespace: cfg.SurrealNamespace,
		Database:  cfg.SurrealDatabase,
		Access:    cfg.SurrealAccess,
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	r, err := remote.Dial(dialCtx, remoteCfg, log)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("backend unreachable, starting offline")
		r = nil
	}

	svc, err := newService(ctx, l, r, log)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return err
	}
	defer svc.Close()

	if svc.Online() {
		if raw, err := json.Marshal(remoteCfg); err == nil {
			if err := l.Put(ctx, store.KeyRemoteConfig, raw); err != nil {
				log.Warn().Err(err).Msg("could not persist connection settings")
			}
		}
	}

	assistant := ai.NewClient(cfg.AIKey, log, aiOptions(cfg)...)
	if assistant.Enabled() {
		log.Info().Msg("content assistant enabled")
	}

	unsubConn := svc.SubscribeConnection(func(online bool) {
		log.Info().Bool("online", online).Msg("mode changed")
	})
	defer unsubConn()

	unsubProjects, err := svc.SubscribeProjects(ctx, func(projects []model.Project) {
		log.Info().Int("projects", len(projects)).Msg("project list updated")
	})
	if err != nil {
		return err
	}
	defer unsubProjects()

	unsubTasks, err := svc.SubscribeTasks(ctx, func(tasks []model.Task) {
		log.Info().Int("tasks", len(tasks)).Str("project", svc.ActiveProject().String()).Msg("board updated")
	})
	if err != nil {
		return err
	}
	defer unsubTasks()

	if inviteURL != "" {
		if id, ok := invite.ParseProjectID(inviteURL); ok {
			if err := svc.JoinProject(ctx, id); err != nil {
				log.Error().Err(err).Str("project", id.String()).Msg("could not accept invite")
			} else {
				log.Info().Str("project", id.String()).Msg("joined project")
			}
		} else {
			log.Warn().Str("url", inviteURL).Msg("not an invitation link")
		}
	}

	log.Info().
		Str("active_project", svc.ActiveProject().String()).
		Bool("online", svc.Online()).
		Msg("planboard ready")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

func newService(ctx context.Context, l *local.Store, r *remote.Store, log zerolog.Logger) (*storage.Service, error) {
	if r == nil {
		return storage.New(ctx, l, nil, log)
	}
	return storage.New(ctx, l, r, log)
}

func aiOptions(cfg *config.Config) []ai.Option {
	var opts []ai.Option
	if cfg.AIBaseURL != "" {
		opts = append(opts, ai.WithBaseURL(cfg.AIBaseURL))
	}
	if cfg.AIModel != "" {
		opts = append(opts, ai.WithModel(cfg.AIModel))
	}
	return opts
}
