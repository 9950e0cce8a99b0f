// Package storetest provides an in-memory remote store for exercising
// the synchronization layer without a backend. Failures are scripted
// through Fail, and feed deliveries can be driven by hand through the
// Push helpers.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"planboard/internal/model"
	"planboard/internal/store"
)

// FakeRemote implements store.Remote against plain maps.
type FakeRemote struct {
	mu sync.Mutex

	// Fail, when non-nil, is returned from every data operation.
	Fail error
	// AuthFail, when non-nil, is returned from SignIn and SignUp.
	AuthFail error

	Users       map[string]model.User
	Projects    map[model.ProjectID]model.Project
	Tasks       map[model.TaskID]model.Task
	Columns     map[model.ColumnID]model.Column
	Competitors map[model.CompetitorID]model.Competitor
	Team        map[model.MemberID]model.TeamMember

	// SubscribeCalls counts feed starts per collection, CancelCalls
	// counts teardowns.
	SubscribeCalls map[string]int
	CancelCalls    map[string]int

	SignOuts int
	Closed   bool

	projectSubs    []func([]model.Project)
	taskSubs       []scopedSub[model.Task]
	columnSubs     []scopedSub[model.Column]
	competitorSubs []scopedSub[model.Competitor]
	teamSubs       []scopedSub[model.TeamMember]
}

type scopedSub[T any] struct {
	projectID model.ProjectID
	fn        func([]T)
}

var _ store.Remote = (*FakeRemote)(nil)

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Users:          make(map[string]model.User),
		Projects:       make(map[model.ProjectID]model.Project),
		Tasks:          make(map[model.TaskID]model.Task),
		Columns:        make(map[model.ColumnID]model.Column),
		Competitors:    make(map[model.CompetitorID]model.Competitor),
		Team:           make(map[model.MemberID]model.TeamMember),
		SubscribeCalls: make(map[string]int),
		CancelCalls:    make(map[string]int),
	}
}

func (f *FakeRemote) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthFail != nil {
		return nil, f.AuthFail
	}
	u, ok := f.Users[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", email, store.ErrInvalidCredentials)
	}
	return &u, nil
}

func (f *FakeRemote) SignUp(ctx context.Context, name, email, password string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthFail != nil {
		return nil, f.AuthFail
	}
	if _, ok := f.Users[email]; ok {
		return nil, fmt.Errorf("%s: %w", email, store.ErrInvalidCredentials)
	}
	u := model.User{ID: model.NewUserID(), Name: name, Email: email}
	f.Users[email] = u
	return &u, nil
}

func (f *FakeRemote) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOuts++
	return f.Fail
}

func (f *FakeRemote) CreateProject(ctx context.Context, p model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Projects[p.ID] = p
	return nil
}

func (f *FakeRemote) UpdateProject(ctx context.Context, p model.Project) error {
	return f.CreateProject(ctx, p)
}

func (f *FakeRemote) DeleteProject(ctx context.Context, id model.ProjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	delete(f.Projects, id)
	return nil
}

func (f *FakeRemote) SubscribeProjects(ctx context.Context, fn func([]model.Project)) (func(), error) {
	f.mu.Lock()
	if f.Fail != nil {
		defer f.mu.Unlock()
		return nil, f.Fail
	}
	f.SubscribeCalls["projects"]++
	f.projectSubs = append(f.projectSubs, fn)
	snapshot := f.projectList()
	f.mu.Unlock()

	fn(snapshot)
	return func() {
		f.mu.Lock()
		f.CancelCalls["projects"]++
		f.mu.Unlock()
	}, nil
}

func (f *FakeRemote) CreateTask(ctx context.Context, t model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Tasks[t.ID] = t
	return nil
}

func (f *FakeRemote) UpdateTask(ctx context.Context, t model.Task) error {
	return f.CreateTask(ctx, t)
}

func (f *FakeRemote) DeleteTask(ctx context.Context, id model.TaskID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	delete(f.Tasks, id)
	return nil
}

func (f *FakeRemote) SubscribeTasks(ctx context.Context, projectID model.ProjectID, fn func([]model.Task)) (func(), error) {
	f.mu.Lock()
	if f.Fail != nil {
		defer f.mu.Unlock()
		return nil, f.Fail
	}
	f.SubscribeCalls["tasks"]++
	f.taskSubs = append(f.taskSubs, scopedSub[model.Task]{projectID, fn})
	snapshot := f.taskList(projectID)
	f.mu.Unlock()

	fn(snapshot)
	return func() {
		f.mu.Lock()
		f.CancelCalls["tasks"]++
		f.mu.Unlock()
	}, nil
}

func (f *FakeRemote) CreateColumn(ctx context.Context, c model.Column) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Columns[c.ID] = c
	return nil
}

func (f *FakeRemote) UpdateColumn(ctx context.Context, c model.Column) error {
	return f.CreateColumn(ctx, c)
}

func (f *FakeRemote) DeleteColumn(ctx context.Context, id model.ColumnID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	delete(f.Columns, id)
	return nil
}

func (f *FakeRemote) SubscribeColumns(ctx context.Context, projectID model.ProjectID, fn func([]model.Column)) (func(), error) {
	f.mu.Lock()
	if f.Fail != nil {
		defer f.mu.Unlock()
		return nil, f.Fail
	}
	f.SubscribeCalls["columns"]++
	f.columnSubs = append(f.columnSubs, scopedSub[model.Column]{projectID, fn})
	snapshot := f.columnList(projectID)
	f.mu.Unlock()

	fn(snapshot)
	return func() {
		f.mu.Lock()
		f.CancelCalls["columns"]++
		f.mu.Unlock()
	}, nil
}

func (f *FakeRemote) CreateCompetitor(ctx context.Context, c model.Competitor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Competitors[c.ID] = c
	return nil
}

func (f *FakeRemote) UpdateCompetitor(ctx context.Context, c model.Competitor) error {
	return f.CreateCompetitor(ctx, c)
}

func (f *FakeRemote) DeleteCompetitor(ctx context.Context, id model.CompetitorID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	delete(f.Competitors, id)
	return nil
}

func (f *FakeRemote) SubscribeCompetitors(ctx context.Context, projectID model.ProjectID, fn func([]model.Competitor)) (func(), error) {
	f.mu.Lock()
	if f.Fail != nil {
		defer f.mu.Unlock()
		return nil, f.Fail
	}
	f.SubscribeCalls["competitors"]++
	f.competitorSubs = append(f.competitorSubs, scopedSub[model.Competitor]{projectID, fn})
	snapshot := f.competitorList(projectID)
	f.mu.Unlock()

	fn(snapshot)
	return func() {
		f.mu.Lock()
		f.CancelCalls["competitors"]++
		f.mu.Unlock()
	}, nil
}

func (f *FakeRemote) CreateTeamMember(ctx context.Context, m model.TeamMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Team[m.ID] = m
	return nil
}

func (f *FakeRemote) DeleteTeamMember(ctx context.Context, id model.MemberID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	delete(f.Team, id)
	return nil
}

func (f *FakeRemote) SubscribeTeam(ctx context.Context, projectID model.ProjectID, fn func([]model.TeamMember)) (func(), error) {
	f.mu.Lock()
	if f.Fail != nil {
		defer f.mu.Unlock()
		return nil, f.Fail
	}
	f.SubscribeCalls["team"]++
	f.teamSubs = append(f.teamSubs, scopedSub[model.TeamMember]{projectID, fn})
	snapshot := f.teamList(projectID)
	f.mu.Unlock()

	fn(snapshot)
	return func() {
		f.mu.Lock()
		f.CancelCalls["team"]++
		f.mu.Unlock()
	}, nil
}

func (f *FakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// PushProjects delivers the current project collection to every feed
// observer, as the backend would after a change.
func (f *FakeRemote) PushProjects() {
	f.mu.Lock()
	subs := append([]func([]model.Project){}, f.projectSubs...)
	snapshot := f.projectList()
	f.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// PushTasks delivers the tasks of one project to its feed observers.
func (f *FakeRemote) PushTasks(projectID model.ProjectID) {
	f.mu.Lock()
	subs := append([]scopedSub[model.Task]{}, f.taskSubs...)
	snapshot := f.taskList(projectID)
	f.mu.Unlock()
	for _, sub := range subs {
		if sub.projectID == projectID {
			sub.fn(snapshot)
		}
	}
}

func (f *FakeRemote) projectList() []model.Project {
	out := make([]model.Project, 0, len(f.Projects))
	for _, p := range f.Projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeRemote) taskList(projectID model.ProjectID) []model.Task {
	out := make([]model.Task, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeRemote) columnList(projectID model.ProjectID) []model.Column {
	out := make([]model.Column, 0, len(f.Columns))
	for _, c := range f.Columns {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeRemote) competitorList(projectID model.ProjectID) []model.Competitor {
	out := make([]model.Competitor, 0, len(f.Competitors))
	for _, c := range f.Competitors {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeRemote) teamList(projectID model.ProjectID) []model.TeamMember {
	out := make([]model.TeamMember, 0, len(f.Team))
	for _, m := range f.Team {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
