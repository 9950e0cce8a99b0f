package storage

import (
	"context"
	"fmt"

	"planboard/internal/model"
	"planboard/internal/store"
)

// Subscription methods share one shape: the new observer hears the
// current state immediately (last published state, or the local store
// when nothing has been published yet), and the first observer of a
// collection starts its remote feed when the session is online. Later
// observers share that feed. The feed stops when the last observer
// unsubscribes.

func (s *Service) SubscribeProjects(ctx context.Context, fn func([]model.Project)) (func(), error) {
	unsub, first := s.projects.subscribe(fn)
	if items, ok := s.projects.latest(); ok {
		fn(items)
	} else {
		items, err := readList[model.Project](ctx, s, store.KeyProjects)
		if err != nil {
			unsub()
			return nil, err
		}
		fn(items)
	}
	if first {
		s.bindProjectsFeed(ctx)
	}
	return unsub, nil
}

func (s *Service) SubscribeTasks(ctx context.Context, fn func([]model.Task)) (func(), error) {
	unsub, first := s.tasks.subscribe(fn)
	if items, ok := s.tasks.latest(); ok {
		fn(items)
	} else {
		items, err := s.localTasks(ctx)
		if err != nil {
			unsub()
			return nil, err
		}
		fn(items)
	}
	if first {
		s.bindTasksFeed(ctx)
	}
	return unsub, nil
}

func (s *Service) SubscribeColumns(ctx context.Context, fn func([]model.Column)) (func(), error) {
	unsub, first := s.columns.subscribe(fn)
	if items, ok := s.columns.latest(); ok {
		fn(items)
	} else {
		items, err := s.localColumns(ctx)
		if err != nil {
			unsub()
			return nil, err
		}
		fn(items)
	}
	if first {
		s.bindColumnsFeed(ctx)
	}
	return unsub, nil
}

func (s *Service) SubscribeCompetitors(ctx context.Context, fn func([]model.Competitor)) (func(), error) {
	unsub, first := s.competitors.subscribe(fn)
	if items, ok := s.competitors.latest(); ok {
		fn(items)
	} else {
		items, err := s.localCompetitors(ctx)
		if err != nil {
			unsub()
			return nil, err
		}
		fn(items)
	}
	if first {
		s.bindCompetitorsFeed(ctx)
	}
	return unsub, nil
}

func (s *Service) SubscribeTeam(ctx context.Context, fn func([]model.TeamMember)) (func(), error) {
	unsub, first := s.team.subscribe(fn)
	if items, ok := s.team.latest(); ok {
		fn(items)
	} else {
		items, err := s.localTeam(ctx)
		if err != nil {
			unsub()
			return nil, err
		}
		fn(items)
	}
	if first {
		s.bindTeamFeed(ctx)
	}
	return unsub, nil
}

// bindProjectsFeed starts the project feed. Unlike the project-scoped
// feeds this one mirrors into the local store, because the project list
// is what offline startup is bootstrapped from.
func (s *Service) bindProjectsFeed(ctx context.Context) {
	r := s.currentRemote()
	if r == nil {
		return
	}
	cancel, err := r.SubscribeProjects(ctx, func(items []model.Project) {
		s.onProjectsFromRemote(items)
	})
	if err != nil {
		s.feedError("projects", err)
		return
	}
	s.projects.bind(cancel)
}

// onProjectsFromRemote mirrors the shared project list and keeps the
// active selection pointing at a project that still exists. An empty
// remote list is not mirrored; the board never goes below one project.
func (s *Service) onProjectsFromRemote(items []model.Project) {
	ctx := context.Background()
	if len(items) == 0 {
		local, err := readList[model.Project](ctx, s, store.KeyProjects)
		if err == nil && len(local) > 0 {
			s.projects.publish(local)
		}
		return
	}
	if err := writeList(ctx, s, store.KeyProjects, items); err != nil {
		s.log.Warn().Err(err).Msg("could not mirror project list")
	}
	s.projects.publish(items)

	if !projectExists(items, s.ActiveProject()) {
		if err := s.SetActiveProject(ctx, items[0].ID); err != nil {
			s.log.Warn().Err(err).Msg("could not reselect active project")
		}
	}
}

func (s *Service) bindTasksFeed(ctx context.Context) {
	r := s.currentRemote()
	if r == nil {
		return
	}
	cancel, err := r.SubscribeTasks(ctx, s.ActiveProject(), func(items []model.Task) {
		s.tasks.publish(items)
	})
	if err != nil {
		s.feedError("tasks", err)
		return
	}
	s.tasks.bind(cancel)
}

func (s *Service) bindColumnsFeed(ctx context.Context) {
	r := s.currentRemote()
	if r == nil {
		return
	}
	cancel, err := r.SubscribeColumns(ctx, s.ActiveProject(), func(items []model.Column) {
		s.columns.publish(items)
	})
	if err != nil {
		s.feedError("columns", err)
		return
	}
	s.columns.bind(cancel)
}

func (s *Service) bindCompetitorsFeed(ctx context.Context) {
	r := s.currentRemote()
	if r == nil {
		return
	}
	cancel, err := r.SubscribeCompetitors(ctx, s.ActiveProject(), func(items []model.Competitor) {
		s.competitors.publish(items)
	})
	if err != nil {
		s.feedError("competitors", err)
		return
	}
	s.competitors.bind(cancel)
}

func (s *Service) bindTeamFeed(ctx context.Context) {
	r := s.currentRemote()
	if r == nil {
		return
	}
	cancel, err := r.SubscribeTeam(ctx, s.ActiveProject(), func(items []model.TeamMember) {
		s.team.publish(items)
	})
	if err != nil {
		s.feedError("team", err)
		return
	}
	s.team.bind(cancel)
}

// feedError handles a failed feed start. The session keeps running on
// local data either way.
func (s *Service) feedError(collection string, err error) {
	if store.Demotes(err) {
		s.demote(err)
		return
	}
	s.log.Warn().Err(err).Str("collection", collection).Msg("could not start feed")
}

// SetActiveProject switches the board to another project. The
// selection is persisted, observers are told, and every project-scoped
// feed is torn down and rebuilt against the new project while keeping
// its observers.
func (s *Service) SetActiveProject(ctx context.Context, id model.ProjectID) error {
	projects, err := s.knownProjects(ctx)
	if err != nil {
		return err
	}
	if !projectExists(projects, id) {
		return fmt.Errorf("set active project: %q: %w", id, store.ErrNotFound)
	}

	s.mu.Lock()
	changed := s.active != id
	s.active = id
	s.mu.Unlock()
	if !changed {
		return nil
	}

	if err := s.persistActiveProject(ctx, id); err != nil {
		return err
	}
	s.activeSignal.emit(id)
	s.rebindScoped(ctx)
	return nil
}

// knownProjects prefers the live project list over the mirrored one.
func (s *Service) knownProjects(ctx context.Context) ([]model.Project, error) {
	if items, ok := s.projects.latest(); ok {
		return items, nil
	}
	return readList[model.Project](ctx, s, store.KeyProjects)
}

// rebindScoped repoints the project-scoped feeds at the current active
// project. Offline, it republishes the local slices for the new
// project instead.
func (s *Service) rebindScoped(ctx context.Context) {
	online := s.currentRemote() != nil

	// Cached snapshots belong to the previous project.
	s.tasks.clear()
	s.columns.clear()
	s.competitors.clear()
	s.team.clear()

	if s.tasks.active() {
		if online {
			s.bindTasksFeed(ctx)
		} else if items, err := s.localTasks(ctx); err == nil {
			s.tasks.publish(items)
		}
	}
	if s.columns.active() {
		if online {
			s.bindColumnsFeed(ctx)
		} else if items, err := s.localColumns(ctx); err == nil {
			s.columns.publish(items)
		}
	}
	if s.competitors.active() {
		if online {
			s.bindCompetitorsFeed(ctx)
		} else if items, err := s.localCompetitors(ctx); err == nil {
			s.competitors.publish(items)
		}
	}
	if s.team.active() {
		if online {
			s.bindTeamFeed(ctx)
		} else if items, err := s.localTeam(ctx); err == nil {
			s.team.publish(items)
		}
	}
}

// rebindAll restarts every feed that has observers, after a fresh
// remote connection came up.
func (s *Service) rebindAll(ctx context.Context) {
	if s.projects.active() {
		s.bindProjectsFeed(ctx)
	}
	s.rebindScoped(ctx)
}

func (s *Service) localTasks(ctx context.Context) ([]model.Task, error) {
	all, err := readList[model.Task](ctx, s, store.KeyTasks)
	if err != nil {
		return nil, err
	}
	active := s.ActiveProject()
	out := make([]model.Task, 0, len(all))
	for _, t := range all {
		if t.ProjectID == active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) localColumns(ctx context.Context) ([]model.Column, error) {
	all, err := readList[model.Column](ctx, s, store.KeyColumns)
	if err != nil {
		return nil, err
	}
	active := s.ActiveProject()
	out := make([]model.Column, 0, len(all))
	for _, c := range all {
		if c.ProjectID == active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) localCompetitors(ctx context.Context) ([]model.Competitor, error) {
	all, err := readList[model.Competitor](ctx, s, store.KeyCompetitors)
	if err != nil {
		return nil, err
	}
	active := s.ActiveProject()
	out := make([]model.Competitor, 0, len(all))
	for _, c := range all {
		if c.ProjectID == active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) localTeam(ctx context.Context) ([]model.TeamMember, error) {
	all, err := readList[model.TeamMember](ctx, s, store.KeyTeam)
	if err != nil {
		return nil, err
	}
	active := s.ActiveProject()
	out := make([]model.TeamMember, 0, len(all))
	for _, m := range all {
		if m.ProjectID == active {
			out = append(out, m)
		}
	}
	return out, nil
}
