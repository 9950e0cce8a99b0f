package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"planboard/internal/model"
	"planboard/internal/store"
)

// AddTask creates a task on the active project. Missing fields are
// filled in: a fresh ID, the active project, and the signed-in user as
// author.
func (s *Service) AddTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if t.ID.IsZero() {
		t.ID = model.NewTaskID()
	}
	if t.ProjectID.IsZero() {
		t.ProjectID = s.ActiveProject()
	}
	if t.AuthorID.IsZero() {
		if u := s.CurrentUser(); u != nil {
			t.AuthorID = u.ID
		}
	}
	if t.Title == "" {
		return nil, fmt.Errorf("add task: empty title")
	}
	if t.ColumnID.IsZero() {
		return nil, fmt.Errorf("add task: no column")
	}

	err := s.writeWithFallback(ctx, "add task",
		func(ctx context.Context, r store.Remote) error {
			return r.CreateTask(ctx, t)
		},
		func(ctx context.Context) error {
			return s.mutateTasks(ctx, func(all []model.Task) []model.Task {
				return append(all, t)
			})
		})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskPatch is a partial task update; nil fields keep their value.
type TaskPatch struct {
	Title       *string
	Description *string
	ColumnID    *model.ColumnID
	Platform    *model.SocialPlatform
	Date        *string
	Slides      []model.Slide
}

func (p TaskPatch) apply(t model.Task) model.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ColumnID != nil {
		t.ColumnID = *p.ColumnID
	}
	if p.Platform != nil {
		t.Platform = *p.Platform
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Slides != nil {
		t.Slides = p.Slides
	}
	return t
}

// UpdateTask applies a patch to a task and writes the whole record
// back. Concurrent editors race on the full record; the last write
// wins.
func (s *Service) UpdateTask(ctx context.Context, id model.TaskID, patch TaskPatch) (*model.Task, error) {
	current, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := patch.apply(*current)

	err = s.writeWithFallback(ctx, "update task",
		func(ctx context.Context, r store.Remote) error {
			return r.UpdateTask(ctx, updated)
		},
		func(ctx context.Context) error {
			return s.mutateTasks(ctx, func(all []model.Task) []model.Task {
				for i := range all {
					if all[i].ID == id {
						all[i] = updated
						return all
					}
				}
				return append(all, updated)
			})
		})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MoveTask moves a task to another column.
func (s *Service) MoveTask(ctx context.Context, id model.TaskID, columnID model.ColumnID) (*model.Task, error) {
	return s.UpdateTask(ctx, id, TaskPatch{ColumnID: &columnID})
}

// ScriptGenerator drafts a script for a task. Satisfied by ai.Client.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, t model.Task) (string, error)
}

// MoveTaskWithAssist moves a task and, when it lands in the scripting
// stage with an empty description, asks gen to draft one. The draft is
// a bonus: generation failure never undoes or blocks the move.
func (s *Service) MoveTaskWithAssist(ctx context.Context, id model.TaskID, columnID model.ColumnID, gen ScriptGenerator) (*model.Task, error) {
	moved, err := s.MoveTask(ctx, id, columnID)
	if err != nil {
		return nil, err
	}
	if gen == nil || moved.Description != "" || !s.isScriptingColumn(ctx, columnID) {
		return moved, nil
	}

	script, err := gen.GenerateScript(ctx, *moved)
	if err != nil {
		s.log.Warn().Err(err).Str("task", id.String()).Msg("script generation failed")
		return moved, nil
	}
	withScript, err := s.UpdateTask(ctx, id, TaskPatch{Description: &script})
	if err != nil {
		s.log.Warn().Err(err).Str("task", id.String()).Msg("could not attach generated script")
		return moved, nil
	}
	return withScript, nil
}

func (s *Service) isScriptingColumn(ctx context.Context, id model.ColumnID) bool {
	cols, err := s.localColumns(ctx)
	if err != nil {
		return false
	}
	if items, ok := s.columns.latest(); ok {
		cols = items
	}
	for _, c := range cols {
		if c.ID == id {
			return c.SystemID == model.StageScripting
		}
	}
	return false
}

// DeleteTask removes a task. Deleting what is already gone is not an
// error.
func (s *Service) DeleteTask(ctx context.Context, id model.TaskID) error {
	return s.writeWithFallback(ctx, "delete task",
		func(ctx context.Context, r store.Remote) error {
			return r.DeleteTask(ctx, id)
		},
		func(ctx context.Context) error {
			return s.mutateTasks(ctx, func(all []model.Task) []model.Task {
				kept := all[:0]
				for _, t := range all {
					if t.ID != id {
						kept = append(kept, t)
					}
				}
				return kept
			})
		})
}

// findTask consults the live board first and the local store second.
func (s *Service) findTask(ctx context.Context, id model.TaskID) (*model.Task, error) {
	if items, ok := s.tasks.latest(); ok {
		for _, t := range items {
			if t.ID == id {
				return &t, nil
			}
		}
	}
	all, err := readList[model.Task](ctx, s, store.KeyTasks)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("task %q: %w", id, store.ErrNotFound)
}

// ErrFirstColumnRequired is returned when a column layout drops the
// intake column every board must keep.
var ErrFirstColumnRequired = errors.New("the intake column cannot be removed")

// SaveColumns replaces the active project's column layout. Columns
// absent from the new layout are deleted, new ones are created, and the
// rest are updated in place. The intake column must survive.
func (s *Service) SaveColumns(ctx context.Context, cols []model.Column) error {
	projectID := s.ActiveProject()
	hasIntake := false
	for i := range cols {
		if cols[i].ID.IsZero() {
			cols[i].ID = model.NewColumnID()
		}
		if cols[i].SystemID == "" {
			cols[i].SystemID = cols[i].ID.String()
		}
		cols[i].ProjectID = projectID
		if cols[i].SystemID == model.StageIdeas {
			hasIntake = true
		}
	}
	if !hasIntake {
		return fmt.Errorf("save columns: %w", ErrFirstColumnRequired)
	}

	current, err := s.localColumns(ctx)
	if err != nil {
		return err
	}
	if items, ok := s.columns.latest(); ok {
		current = items
	}

	keep := make(map[model.ColumnID]bool, len(cols))
	for _, c := range cols {
		keep[c.ID] = true
	}
	existing := make(map[model.ColumnID]bool, len(current))
	for _, c := range current {
		existing[c.ID] = true
	}

	return s.writeWithFallback(ctx, "save columns",
		func(ctx context.Context, r store.Remote) error {
			for _, c := range current {
				if !keep[c.ID] {
					if err := r.DeleteColumn(ctx, c.ID); err != nil {
						return err
					}
				}
			}
			for _, c := range cols {
				var err error
				if existing[c.ID] {
					err = r.UpdateColumn(ctx, c)
				} else {
					err = r.CreateColumn(ctx, c)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			return s.mutateColumns(ctx, func(all []model.Column) []model.Column {
				kept := all[:0]
				for _, c := range all {
					if c.ProjectID != projectID {
						kept = append(kept, c)
					}
				}
				return append(kept, cols...)
			})
		})
}

// AddCompetitor tracks a competitor on the active project.
func (s *Service) AddCompetitor(ctx context.Context, c model.Competitor) (*model.Competitor, error) {
	if c.ID.IsZero() {
		c.ID = model.NewCompetitorID()
	}
	if c.ProjectID.IsZero() {
		c.ProjectID = s.ActiveProject()
	}
	if c.Name == "" {
		return nil, fmt.Errorf("add competitor: empty name")
	}

	err := s.writeWithFallback(ctx, "add competitor",
		func(ctx context.Context, r store.Remote) error {
			return r.CreateCompetitor(ctx, c)
		},
		func(ctx context.Context) error {
			return s.mutateCompetitors(ctx, func(all []model.Competitor) []model.Competitor {
				return append(all, c)
			})
		})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCompetitor writes a competitor record back whole.
func (s *Service) UpdateCompetitor(ctx context.Context, c model.Competitor) error {
	if c.ProjectID.IsZero() {
		c.ProjectID = s.ActiveProject()
	}
	return s.writeWithFallback(ctx, "update competitor",
		func(ctx context.Context, r store.Remote) error {
			return r.UpdateCompetitor(ctx, c)
		},
		func(ctx context.Context) error {
			return s.mutateCompetitors(ctx, func(all []model.Competitor) []model.Competitor {
				for i := range all {
					if all[i].ID == c.ID {
						all[i] = c
						return all
					}
				}
				return append(all, c)
			})
		})
}

// DeleteCompetitor stops tracking a competitor.
func (s *Service) DeleteCompetitor(ctx context.Context, id model.CompetitorID) error {
	return s.writeWithFallback(ctx, "delete competitor",
		func(ctx context.Context, r store.Remote) error {
			return r.DeleteCompetitor(ctx, id)
		},
		func(ctx context.Context) error {
			return s.mutateCompetitors(ctx, func(all []model.Competitor) []model.Competitor {
				kept := all[:0]
				for _, c := range all {
					if c.ID != id {
						kept = append(kept, c)
					}
				}
				return kept
			})
		})
}

// AddTeamMember invites a collaborator by email to the active project.
func (s *Service) AddTeamMember(ctx context.Context, email string) (*model.TeamMember, error) {
	if email == "" {
		return nil, fmt.Errorf("add team member: empty email")
	}
	m := newTeamMember(s.ActiveProject(), email)

	err := s.writeWithFallback(ctx, "add team member",
		func(ctx context.Context, r store.Remote) error {
			return r.CreateTeamMember(ctx, m)
		},
		func(ctx context.Context) error {
			return s.mutateTeam(ctx, func(all []model.TeamMember) []model.TeamMember {
				return append(all, m)
			})
		})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveTeamMember removes a collaborator from the active project.
func (s *Service) RemoveTeamMember(ctx context.Context, id model.MemberID) error {
	return s.writeWithFallback(ctx, "remove team member",
		func(ctx context.Context, r store.Remote) error {
			return r.DeleteTeamMember(ctx, id)
		},
		func(ctx context.Context) error {
			return s.mutateTeam(ctx, func(all []model.TeamMember) []model.TeamMember {
				kept := all[:0]
				for _, m := range all {
					if m.ID != id {
						kept = append(kept, m)
					}
				}
				return kept
			})
		})
}

// newTeamMember derives a member record from an email address the way
// invitations have always worked: the mailbox name becomes the display
// name and the avatar is generated from the address.
func newTeamMember(projectID model.ProjectID, email string) model.TeamMember {
	return model.TeamMember{
		ID:        model.NewMemberID(),
		ProjectID: projectID,
		Name:      nameFromEmail(email),
		Email:     email,
		AvatarURL: "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(email),
		Role:      "editor",
		AddedAt:   time.Now(),
	}
}

// mutate helpers rewrite one local list and publish the slice scoped to
// the active project.

func (s *Service) mutateTasks(ctx context.Context, mutate func([]model.Task) []model.Task) error {
	all, err := readList[model.Task](ctx, s, store.KeyTasks)
	if err != nil {
		return err
	}
	all = mutate(all)
	if err := writeList(ctx, s, store.KeyTasks, all); err != nil {
		return err
	}
	active := s.ActiveProject()
	scoped := make([]model.Task, 0, len(all))
	for _, t := range all {
		if t.ProjectID == active {
			scoped = append(scoped, t)
		}
	}
	s.tasks.publish(scoped)
	return nil
}

func (s *Service) mutateColumns(ctx context.Context, mutate func([]model.Column) []model.Column) error {
	all, err := readList[model.Column](ctx, s, store.KeyColumns)
	if err != nil {
		return err
	}
	all = mutate(all)
	if err := writeList(ctx, s, store.KeyColumns, all); err != nil {
		return err
	}
	active := s.ActiveProject()
	scoped := make([]model.Column, 0, len(all))
	for _, c := range all {
		if c.ProjectID == active {
			scoped = append(scoped, c)
		}
	}
	s.columns.publish(scoped)
	return nil
}

func (s *Service) mutateCompetitors(ctx context.Context, mutate func([]model.Competitor) []model.Competitor) error {
	all, err := readList[model.Competitor](ctx, s, store.KeyCompetitors)
	if err != nil {
		return err
	}
	all = mutate(all)
	if err := writeList(ctx, s, store.KeyCompetitors, all); err != nil {
		return err
	}
	active := s.ActiveProject()
	scoped := make([]model.Competitor, 0, len(all))
	for _, c := range all {
		if c.ProjectID == active {
			scoped = append(scoped, c)
		}
	}
	s.competitors.publish(scoped)
	return nil
}

func (s *Service) mutateTeam(ctx context.Context, mutate func([]model.TeamMember) []model.TeamMember) error {
	all, err := readList[model.TeamMember](ctx, s, store.KeyTeam)
	if err != nil {
		return err
	}
	all = mutate(all)
	if err := writeList(ctx, s, store.KeyTeam, all); err != nil {
		return err
	}
	active := s.ActiveProject()
	scoped := make([]model.TeamMember, 0, len(all))
	for _, m := range all {
		if m.ProjectID == active {
			scoped = append(scoped, m)
		}
	}
	s.team.publish(scoped)
	return nil
}
