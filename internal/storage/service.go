// Package storage is the synchronization layer between the embedded
// local store and the shared SurrealDB backend. Every read and
// subscription is answered from whichever side the session currently
// operates against, and every write follows the same discipline: try
// the remote first, mirror locally, and fall back to local-only
// operation when the backend becomes unusable.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"planboard/internal/model"
	"planboard/internal/store"
)

// Service is the single entry point the rest of the application talks
// to. It owns the operating mode, the collection hubs, and the
// active-project selection.
type Service struct {
	log   zerolog.Logger
	local store.Local
	mode  *modeController

	mu     sync.Mutex
	remote store.Remote
	user   *model.User
	active model.ProjectID

	projects    *hub[model.Project]
	tasks       *hub[model.Task]
	columns     *hub[model.Column]
	competitors *hub[model.Competitor]
	team        *hub[model.TeamMember]

	activeSignal *signal[model.ProjectID]
}

// New builds the service. A nil remote starts the session offline.
// Startup guarantees the board is usable: at least one project exists
// and the active selection points at one of them.
func New(ctx context.Context, local store.Local, remote store.Remote, log zerolog.Logger) (*Service, error) {
	s := &Service{
		log:          log.With().Str("component", "storage").Logger(),
		local:        local,
		remote:       remote,
		mode:         newModeController(remote != nil, log),
		projects:     newHub[model.Project](),
		tasks:        newHub[model.Task](),
		columns:      newHub[model.Column](),
		competitors:  newHub[model.Competitor](),
		team:         newHub[model.TeamMember](),
		activeSignal: newSignal[model.ProjectID](),
	}

	if err := s.loadUser(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) loadUser(ctx context.Context) error {
	b, err := s.local.Get(ctx, store.KeyUser)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if b == nil {
		return nil
	}
	var u model.User
	if err := json.Unmarshal(b, &u); err != nil {
		return fmt.Errorf("decode user: %w", err)
	}
	s.user = &u
	return nil
}

// ensureBootstrapped enforces the board invariants on whatever the
// local store holds: a project always exists and the active selection
// is valid.
func (s *Service) ensureBootstrapped(ctx context.Context) error {
	projects, err := readList[model.Project](ctx, s, store.KeyProjects)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		p := model.Project{ID: model.NewOfflineProjectID(), Name: "My Project"}
		projects = []model.Project{p}
		if err := writeList(ctx, s, store.KeyProjects, projects); err != nil {
			return err
		}
		columns, err := readList[model.Column](ctx, s, store.KeyColumns)
		if err != nil {
			return err
		}
		columns = append(columns, model.DefaultColumns(p.ID)...)
		if err := writeList(ctx, s, store.KeyColumns, columns); err != nil {
			return err
		}
		s.log.Info().Str("project", p.ID.String()).Msg("seeded starter project")
	}

	active, err := s.storedActiveProject(ctx)
	if err != nil {
		return err
	}
	if !projectExists(projects, active) {
		active = projects[0].ID
		if err := s.persistActiveProject(ctx, active); err != nil {
			return err
		}
	}
	s.active = active
	return nil
}

func (s *Service) storedActiveProject(ctx context.Context) (model.ProjectID, error) {
	b, err := s.local.Get(ctx, store.KeyActiveProject)
	if err != nil {
		return "", fmt.Errorf("load active project: %w", err)
	}
	if b == nil {
		return "", nil
	}
	var id model.ProjectID
	if err := json.Unmarshal(b, &id); err != nil {
		return "", fmt.Errorf("decode active project: %w", err)
	}
	return id, nil
}

func (s *Service) persistActiveProject(ctx context.Context, id model.ProjectID) error {
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := s.local.Put(ctx, store.KeyActiveProject, b); err != nil {
		return fmt.Errorf("persist active project: %w", err)
	}
	return nil
}

func projectExists(projects []model.Project, id model.ProjectID) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Online reports whether the session currently operates against the
// remote backend.
func (s *Service) Online() bool { return s.mode.Online() }

// CurrentUser returns the signed-in user, nil when nobody is.
func (s *Service) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// ActiveProject returns the currently selected project.
func (s *Service) ActiveProject() model.ProjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SubscribeConnection observes mode changes. The current mode is
// reported immediately.
func (s *Service) SubscribeConnection(fn func(online bool)) func() {
	return s.mode.subscribe(fn)
}

// SubscribeActiveProject observes active-project switches.
func (s *Service) SubscribeActiveProject(fn func(model.ProjectID)) func() {
	return s.activeSignal.subscribe(fn)
}

// currentRemote returns the remote store when the session is online.
func (s *Service) currentRemote() store.Remote {
	if !s.mode.Online() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// writeWithFallback runs one write through the mode discipline: online
// writes go to the backend first and are mirrored locally on success;
// an infrastructure failure demotes the session and the write lands
// locally so it is never lost. Caller mistakes surface unchanged and
// nothing is written. Offline writes go straight to the local store.
func (s *Service) writeWithFallback(ctx context.Context, op string, remoteFn func(context.Context, store.Remote) error, localFn func(context.Context) error) error {
	if r := s.currentRemote(); r != nil {
		err := remoteFn(ctx, r)
		switch {
		case err == nil:
		case store.Demotes(err):
			s.demote(err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := localFn(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// demote flips the session offline and tears down every remote feed.
// Hubs keep their observers and their last published state, so the
// board stays populated.
func (s *Service) demote(reason error) {
	s.mode.demote(reason)
	s.projects.unbind()
	s.tasks.unbind()
	s.columns.unbind()
	s.competitors.unbind()
	s.team.unbind()
}

// Connect installs a fresh remote connection and promotes the session
// back to online operation. Feeds with observers are rebound to the
// backend, and the connection settings are persisted for the next
// start when rawConfig is given.
func (s *Service) Connect(ctx context.Context, r store.Remote, rawConfig json.RawMessage) error {
	if r == nil {
		return fmt.Errorf("connect: nil remote")
	}
	if rawConfig != nil {
		if err := s.local.Put(ctx, store.KeyRemoteConfig, rawConfig); err != nil {
			return fmt.Errorf("persist remote config: %w", err)
		}
	}

	s.mu.Lock()
	old := s.remote
	s.remote = r
	s.mu.Unlock()
	if old != nil && old != r {
		if err := old.Close(); err != nil {
			s.log.Debug().Err(err).Msg("closing previous remote")
		}
	}

	s.mode.promote()
	s.rebindAll(ctx)
	return nil
}

// RemoteConfig returns the persisted connection settings, nil when the
// session has never been connected.
func (s *Service) RemoteConfig(ctx context.Context) (json.RawMessage, error) {
	b, err := s.local.Get(ctx, store.KeyRemoteConfig)
	if err != nil {
		return nil, fmt.Errorf("load remote config: %w", err)
	}
	return b, nil
}

// Close tears down feeds and the remote connection. The local store is
// owned by the caller.
func (s *Service) Close() error {
	s.projects.unbind()
	s.tasks.unbind()
	s.columns.unbind()
	s.competitors.unbind()
	s.team.unbind()

	s.mu.Lock()
	r := s.remote
	s.remote = nil
	s.mu.Unlock()
	if r != nil {
		return r.Close()
	}
	return nil
}

func readList[T any](ctx context.Context, s *Service, key store.Key) ([]T, error) {
	b, err := s.local.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if b == nil {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func writeList[T any](ctx context.Context, s *Service, key store.Key, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.local.Put(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
