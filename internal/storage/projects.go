package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planboard/internal/model"
	"planboard/internal/store"
)

// CreateProject creates a project with the four starting columns and
// makes it the active one. Online, the project and columns are created
// on the backend under a freshly minted ID; if the backend gives out
// partway through, the session demotes and the whole project is
// recreated locally under an offline ID.
func (s *Service) CreateProject(ctx context.Context, name string) (*model.Project, error) {
	owner := s.ownerID()

	if r := s.currentRemote(); r != nil {
		p := model.Project{
			ID:        model.NewProjectID(),
			Name:      name,
			OwnerID:   owner,
			CreatedAt: time.Now(),
		}
		cols := model.DefaultColumns(p.ID)

		err := r.CreateProject(ctx, p)
		for i := 0; err == nil && i < len(cols); i++ {
			err = r.CreateColumn(ctx, cols[i])
		}
		switch {
		case err == nil:
			if err := s.addProjectLocally(ctx, p, cols); err != nil {
				return nil, err
			}
			return &p, nil
		case store.Demotes(err):
			s.demote(err)
		default:
			return nil, fmt.Errorf("create project: %w", err)
		}
	}

	p := model.Project{
		ID:        model.NewOfflineProjectID(),
		Name:      name,
		OwnerID:   owner,
		CreatedAt: time.Now(),
	}
	cols := model.DefaultColumns(p.ID)
	if err := s.addProjectLocally(ctx, p, cols); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) addProjectLocally(ctx context.Context, p model.Project, cols []model.Column) error {
	projects, err := readList[model.Project](ctx, s, store.KeyProjects)
	if err != nil {
		return err
	}
	projects = append(projects, p)
	if err := writeList(ctx, s, store.KeyProjects, projects); err != nil {
		return err
	}

	columns, err := readList[model.Column](ctx, s, store.KeyColumns)
	if err != nil {
		return err
	}
	columns = append(columns, cols...)
	if err := writeList(ctx, s, store.KeyColumns, columns); err != nil {
		return err
	}

	s.projects.publish(projects)
	return s.SetActiveProject(ctx, p.ID)
}

// RenameProject changes a project's name.
func (s *Service) RenameProject(ctx context.Context, id model.ProjectID, name string) error {
	projects, err := s.knownProjects(ctx)
	if err != nil {
		return err
	}
	var updated *model.Project
	for i := range projects {
		if projects[i].ID == id {
			projects[i].Name = name
			updated = &projects[i]
			break
		}
	}
	if updated == nil {
		return fmt.Errorf("rename project: %q: %w", id, store.ErrNotFound)
	}

	return s.writeWithFallback(ctx, "rename project",
		func(ctx context.Context, r store.Remote) error {
			return r.UpdateProject(ctx, *updated)
		},
		func(ctx context.Context) error {
			if err := writeList(ctx, s, store.KeyProjects, projects); err != nil {
				return err
			}
			s.projects.publish(projects)
			return nil
		})
}

// DeleteProject removes a project and everything scoped to it. The
// board never goes empty: when the last project is deleted a fresh
// starter project takes its place, and when the deleted project was
// active the selection moves to a surviving one.
func (s *Service) DeleteProject(ctx context.Context, id model.ProjectID) error {
	projects, err := s.knownProjects(ctx)
	if err != nil {
		return err
	}
	if !projectExists(projects, id) {
		return fmt.Errorf("delete project: %q: %w", id, store.ErrNotFound)
	}

	remaining := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if p.ID != id {
			remaining = append(remaining, p)
		}
	}

	var starter *model.Project
	var starterCols []model.Column
	if len(remaining) == 0 {
		p := model.Project{
			ID:        model.NewOfflineProjectID(),
			Name:      "My Project",
			OwnerID:   s.ownerID(),
			CreatedAt: time.Now(),
		}
		starter = &p
		starterCols = model.DefaultColumns(p.ID)
		remaining = append(remaining, p)
	}

	err = s.writeWithFallback(ctx, "delete project",
		func(ctx context.Context, r store.Remote) error {
			if err := r.DeleteProject(ctx, id); err != nil {
				return err
			}
			if starter != nil {
				if err := r.CreateProject(ctx, *starter); err != nil {
					return err
				}
				for _, c := range starterCols {
					if err := r.CreateColumn(ctx, c); err != nil {
						return err
					}
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			if err := writeList(ctx, s, store.KeyProjects, remaining); err != nil {
				return err
			}
			if err := s.dropProjectData(ctx, id, starterCols); err != nil {
				return err
			}
			s.projects.publish(remaining)
			return nil
		})
	if err != nil {
		return err
	}

	if s.ActiveProject() == id {
		return s.SetActiveProject(ctx, remaining[0].ID)
	}
	return nil
}

// dropProjectData cascades a project deletion through the local lists.
func (s *Service) dropProjectData(ctx context.Context, id model.ProjectID, addCols []model.Column) error {
	tasks, err := readList[model.Task](ctx, s, store.KeyTasks)
	if err != nil {
		return err
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ProjectID != id {
			kept = append(kept, t)
		}
	}
	if err := writeList(ctx, s, store.KeyTasks, kept); err != nil {
		return err
	}

	columns, err := readList[model.Column](ctx, s, store.KeyColumns)
	if err != nil {
		return err
	}
	keptCols := columns[:0]
	for _, c := range columns {
		if c.ProjectID != id {
			keptCols = append(keptCols, c)
		}
	}
	keptCols = append(keptCols, addCols...)
	if err := writeList(ctx, s, store.KeyColumns, keptCols); err != nil {
		return err
	}

	competitors, err := readList[model.Competitor](ctx, s, store.KeyCompetitors)
	if err != nil {
		return err
	}
	keptComp := competitors[:0]
	for _, c := range competitors {
		if c.ProjectID != id {
			keptComp = append(keptComp, c)
		}
	}
	if err := writeList(ctx, s, store.KeyCompetitors, keptComp); err != nil {
		return err
	}

	team, err := readList[model.TeamMember](ctx, s, store.KeyTeam)
	if err != nil {
		return err
	}
	keptTeam := team[:0]
	for _, m := range team {
		if m.ProjectID != id {
			keptTeam = append(keptTeam, m)
		}
	}
	return writeList(ctx, s, store.KeyTeam, keptTeam)
}

// ErrOfflineJoin is returned when a project invite is followed without
// a backend connection to resolve it against.
var ErrOfflineJoin = errors.New("joining a project requires an online session")

// JoinProject accepts an invite to a shared project: the current user
// is added to its team and the board switches to it. The project
// itself arrives through the shared project feed.
func (s *Service) JoinProject(ctx context.Context, id model.ProjectID) error {
	r := s.currentRemote()
	if r == nil {
		return fmt.Errorf("join project: %w", ErrOfflineJoin)
	}
	u := s.CurrentUser()
	if u == nil {
		return fmt.Errorf("join project: not signed in")
	}

	member := newTeamMember(id, u.Email)
	member.Name = u.Name
	if u.AvatarURL != "" {
		member.AvatarURL = u.AvatarURL
	}
	if err := r.CreateTeamMember(ctx, member); err != nil {
		if store.Demotes(err) {
			s.demote(err)
		}
		return fmt.Errorf("join project: %w", err)
	}

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	if err := s.persistActiveProject(ctx, id); err != nil {
		return err
	}
	s.activeSignal.emit(id)
	s.rebindScoped(ctx)
	return nil
}

func (s *Service) ownerID() model.UserID {
	if u := s.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}
