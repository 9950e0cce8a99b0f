package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/model"
	"planboard/internal/store"
	"planboard/internal/store/local"
	"planboard/internal/storetest"
)

func newTestService(t *testing.T, remote store.Remote) *Service {
	t.Helper()
	l, err := local.Open(filepath.Join(t.TempDir(), "planboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	s, err := New(context.Background(), l, remote, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartupSeedsStarterProject(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	var projects []model.Project
	unsub, err := s.SubscribeProjects(ctx, func(items []model.Project) { projects = items })
	require.NoError(t, err)
	defer unsub()

	require.Len(t, projects, 1)
	assert.Equal(t, "My Project", projects[0].Name)
	assert.Equal(t, projects[0].ID, s.ActiveProject())

	var columns []model.Column
	unsubCols, err := s.SubscribeColumns(ctx, func(items []model.Column) { columns = items })
	require.NoError(t, err)
	defer unsubCols()

	require.Len(t, columns, 4)
	stages := make([]string, 0, 4)
	for _, c := range columns {
		stages = append(stages, c.SystemID)
	}
	assert.ElementsMatch(t, []string{model.StageIdeas, model.StageScripting, model.StageFilming, model.StageDone}, stages)
}

func TestFailingRemoteWriteLandsLocally(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	var tasks []model.Task
	unsub, err := s.SubscribeTasks(ctx, func(items []model.Task) { tasks = items })
	require.NoError(t, err)
	defer unsub()

	var modes []bool
	unsubConn := s.SubscribeConnection(func(online bool) { modes = append(modes, online) })
	defer unsubConn()

	fake.Fail = store.ErrUnavailable

	col := s.intakeColumn(t)
	created, err := s.AddTask(ctx, model.Task{Title: "Idea A", ColumnID: col})
	require.NoError(t, err, "the write survives the dead backend")

	assert.False(t, s.Online())
	assert.Equal(t, []bool{true, false}, modes)

	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)

	// durable, not just in memory
	persisted, err := readList[model.Task](ctx, s, store.KeyTasks)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Idea A", persisted[0].Title)
}

// intakeColumn finds the ideas column of the active project.
func (s *Service) intakeColumn(t *testing.T) model.ColumnID {
	t.Helper()
	cols, err := s.localColumns(context.Background())
	require.NoError(t, err)
	for _, c := range cols {
		if c.SystemID == model.StageIdeas {
			return c.ID
		}
	}
	t.Fatal("no intake column")
	return ""
}

func TestValidationErrorSurfacesWithoutDemotion(t *testing.T) {
	fake := storetest.NewFakeRemote()
	fake.Fail = errors.New("expected a string for field `title`")
	s := newTestService(t, fake)
	ctx := context.Background()

	_, err := s.AddTask(ctx, model.Task{Title: "x", ColumnID: "c1"})
	require.Error(t, err)
	assert.True(t, s.Online(), "caller mistakes do not change the mode")

	persisted, rerr := readList[model.Task](ctx, s, store.KeyTasks)
	require.NoError(t, rerr)
	assert.Empty(t, persisted, "a rejected write leaves no local trace")
}

func TestObserversShareOneFeed(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	var a, b []model.Task
	unsubA, err := s.SubscribeTasks(ctx, func(items []model.Task) { a = items })
	require.NoError(t, err)
	unsubB, err := s.SubscribeTasks(ctx, func(items []model.Task) { b = items })
	require.NoError(t, err)

	assert.Equal(t, 1, fake.SubscribeCalls["tasks"], "one live feed for many observers")

	task := model.Task{ID: model.NewTaskID(), ProjectID: s.ActiveProject(), Title: "shared", ColumnID: "c1"}
	require.NoError(t, fake.CreateTask(ctx, task))
	fake.PushTasks(s.ActiveProject())

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "shared", a[0].Title)

	unsubA()
	assert.Zero(t, fake.CancelCalls["tasks"], "feed stays while an observer remains")
	unsubB()
	assert.Equal(t, 1, fake.CancelCalls["tasks"], "last unsubscribe tears the feed down")
}

func TestCreateProjectOnline(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Q4 Campaign")
	require.NoError(t, err)

	assert.Contains(t, fake.Projects, p.ID)
	assert.Len(t, fake.Columns, 4, "a new project gets its starting columns on the backend")
	assert.Equal(t, p.ID, s.ActiveProject())
}

func TestCreateProjectRoundTrip(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Q4 Campaign")
	require.NoError(t, err)

	projects, err := readList[model.Project](ctx, s, store.KeyProjects)
	require.NoError(t, err)
	var found *model.Project
	for i := range projects {
		if projects[i].ID == p.ID {
			found = &projects[i]
		}
	}
	require.NotNil(t, found, "the new project lands in the local store")
	assert.Equal(t, "Q4 Campaign", found.Name)

	columns, err := readList[model.Column](ctx, s, store.KeyColumns)
	require.NoError(t, err)
	var stages []string
	for _, c := range columns {
		if c.ProjectID == p.ID {
			stages = append(stages, c.SystemID)
		}
	}
	assert.Equal(t, []string{model.StageIdeas, model.StageScripting, model.StageFilming, model.StageDone}, stages)
}

func TestCreateProjectOfflineUsesOfflineID(t *testing.T) {
	s := newTestService(t, nil)

	p, err := s.CreateProject(context.Background(), "Side Channel")
	require.NoError(t, err)
	assert.Regexp(t, `^proj_\d+$`, p.ID.String())
	assert.Equal(t, p.ID, s.ActiveProject())
}

func TestCreateProjectFallsBackWhenBackendDies(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	fake.Fail = store.ErrUnavailable

	p, err := s.CreateProject(context.Background(), "Rescued")
	require.NoError(t, err)
	assert.False(t, s.Online())
	assert.Regexp(t, `^proj_\d+$`, p.ID.String())
}

func TestDeleteLastProjectSynthesizesStarter(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	projects, err := readList[model.Project](ctx, s, store.KeyProjects)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	require.NoError(t, s.DeleteProject(ctx, projects[0].ID))

	after, err := readList[model.Project](ctx, s, store.KeyProjects)
	require.NoError(t, err)
	require.Len(t, after, 1, "the board never goes empty")
	assert.NotEqual(t, projects[0].ID, after[0].ID)
	assert.Equal(t, after[0].ID, s.ActiveProject())
}

func TestDeleteActiveProjectMovesSelection(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	p2, err := s.CreateProject(ctx, "Second")
	require.NoError(t, err)
	require.Equal(t, p2.ID, s.ActiveProject())

	require.NoError(t, s.DeleteProject(ctx, p2.ID))
	assert.NotEqual(t, p2.ID, s.ActiveProject())

	after, err := readList[model.Project](ctx, s, store.KeyProjects)
	require.NoError(t, err)
	assert.True(t, projectExists(after, s.ActiveProject()))
}

func TestDeleteProjectCascadesLocally(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "Doomed")
	require.NoError(t, err)
	col := s.intakeColumn(t)
	_, err = s.AddTask(ctx, model.Task{Title: "orphan-to-be", ColumnID: col})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	tasks, err := readList[model.Task](ctx, s, store.KeyTasks)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	cols, err := readList[model.Column](ctx, s, store.KeyColumns)
	require.NoError(t, err)
	for _, c := range cols {
		assert.NotEqual(t, p.ID, c.ProjectID)
	}
}

func TestScopedVisibilityAcrossProjects(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	colA := s.intakeColumn(t)
	_, err := s.AddTask(ctx, model.Task{Title: "only in A", ColumnID: colA})
	require.NoError(t, err)
	projectA := s.ActiveProject()

	_, err = s.CreateProject(ctx, "B")
	require.NoError(t, err)

	var visible []model.Task
	unsub, err := s.SubscribeTasks(ctx, func(items []model.Task) { visible = items })
	require.NoError(t, err)
	defer unsub()
	assert.Empty(t, visible, "project B shows none of A's tasks")

	require.NoError(t, s.SetActiveProject(ctx, projectA))
	require.Len(t, visible, 1)
	assert.Equal(t, "only in A", visible[0].Title)
}

func TestProjectSwitchRebindsFeeds(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	unsub, err := s.SubscribeTasks(ctx, func([]model.Task) {})
	require.NoError(t, err)
	defer unsub()
	require.Equal(t, 1, fake.SubscribeCalls["tasks"])

	_, err = s.CreateProject(ctx, "Next Season")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.SubscribeCalls["tasks"], "the feed follows the active project")
}

func TestSetActiveProjectRejectsUnknown(t *testing.T) {
	s := newTestService(t, nil)
	err := s.SetActiveProject(context.Background(), "proj_nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConnectPromotesAndRebinds(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	var modes []bool
	unsubConn := s.SubscribeConnection(func(online bool) { modes = append(modes, online) })
	defer unsubConn()

	unsub, err := s.SubscribeTasks(ctx, func([]model.Task) {})
	require.NoError(t, err)
	defer unsub()

	fake := storetest.NewFakeRemote()
	require.NoError(t, s.Connect(ctx, fake, []byte(`{"endpoint":"ws://localhost:8000/rpc"}`)))

	assert.True(t, s.Online())
	assert.Equal(t, []bool{false, true}, modes)
	assert.Equal(t, 1, fake.SubscribeCalls["tasks"], "feeds with observers are rebound")

	cfg, err := s.RemoteConfig(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"endpoint":"ws://localhost:8000/rpc"}`, string(cfg))
}

func TestLoginStoresCredentialsForOfflineUse(t *testing.T) {
	fake := storetest.NewFakeRemote()
	fake.Users["ana@example.com"] = model.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	s := newTestService(t, fake)
	ctx := context.Background()

	u, err := s.Login(ctx, "ana@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)

	require.NoError(t, s.Logout(ctx))
	assert.Nil(t, s.CurrentUser())

	s.demote(errors.New("network down"))

	u2, err := s.Login(ctx, "ana@example.com", "s3cret")
	require.NoError(t, err, "stored credentials carry the offline session")
	assert.Equal(t, "Ana", u2.Name)

	_, err = s.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestLoginFallsBackWhenBackendUnreachable(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)
	ctx := context.Background()

	// seed stored credentials through an offline register on a twin setup
	require.NoError(t, s.storeCredentials(ctx, model.User{ID: "u2", Name: "Bo", Email: "bo@example.com"}, "pw"))

	fake.AuthFail = store.ErrUnavailable
	u, err := s.Login(ctx, "bo@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Bo", u.Name)
	assert.False(t, s.Online())
}

func TestFreshStartOfflineLoginCreatesAccount(t *testing.T) {
	fake := storetest.NewFakeRemote()
	fake.AuthFail = store.ErrUnavailable
	s := newTestService(t, fake)
	ctx := context.Background()

	// First sign-in on a pristine device with the backend down: the
	// account is minted from the address rather than rejected.
	u, err := s.Login(ctx, "fresh@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "fresh", u.Name)
	assert.Equal(t, "fresh@example.com", u.Email)
	assert.False(t, s.Online())

	// The minted account sticks: same password works, another does not.
	u2, err := s.Login(ctx, "fresh@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, u2.ID)

	_, err = s.Login(ctx, "fresh@example.com", "other")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestWrongPasswordNeverDemotes(t *testing.T) {
	fake := storetest.NewFakeRemote()
	s := newTestService(t, fake)

	_, err := s.Login(context.Background(), "ghost@example.com", "pw")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
	assert.True(t, s.Online())
}

func TestRegisterOffline(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	u, err := s.Register(ctx, "Cleo", "cleo@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Cleo", u.Name)
	require.NotNil(t, s.CurrentUser())

	_, err = s.Register(ctx, "Cleo", "cleo@example.com", "pw")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestSaveColumnsKeepsIntakeColumn(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	cols, err := s.localColumns(ctx)
	require.NoError(t, err)

	trimmed := make([]model.Column, 0, len(cols)-1)
	for _, c := range cols {
		if c.SystemID != model.StageIdeas {
			trimmed = append(trimmed, c)
		}
	}
	err = s.SaveColumns(ctx, trimmed)
	assert.ErrorIs(t, err, ErrFirstColumnRequired)

	// renaming it is fine, removing it is not
	for i := range cols {
		if cols[i].SystemID == model.StageIdeas {
			cols[i].Title = "Inbox"
		}
	}
	require.NoError(t, s.SaveColumns(ctx, cols))

	after, err := s.localColumns(ctx)
	require.NoError(t, err)
	found := false
	for _, c := range after {
		if c.SystemID == model.StageIdeas {
			found = true
			assert.Equal(t, "Inbox", c.Title)
		}
	}
	assert.True(t, found)
}

func TestFreshStartOfflineFlow(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	_, err := s.Register(ctx, "Solo", "solo@example.com", "pw")
	require.NoError(t, err)

	var tasks []model.Task
	unsub, err := s.SubscribeTasks(ctx, func(items []model.Task) { tasks = items })
	require.NoError(t, err)
	defer unsub()

	cols, err := s.localColumns(ctx)
	require.NoError(t, err)
	var ideas, scripting model.ColumnID
	for _, c := range cols {
		switch c.SystemID {
		case model.StageIdeas:
			ideas = c.ID
		case model.StageScripting:
			scripting = c.ID
		}
	}

	created, err := s.AddTask(ctx, model.Task{Title: "Idea A", ColumnID: ideas})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, ideas, tasks[0].ColumnID)

	moved, err := s.MoveTask(ctx, created.ID, scripting)
	require.NoError(t, err)
	assert.Equal(t, scripting, moved.ColumnID)
	require.Len(t, tasks, 1)
	assert.Equal(t, scripting, tasks[0].ColumnID)
}

func TestUpdateTaskPatchKeepsUntouchedFields(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	col := s.intakeColumn(t)
	created, err := s.AddTask(ctx, model.Task{
		Title:       "Hooks",
		Description: "3 hook variants",
		ColumnID:    col,
		Platform:    model.PlatformInstagramReels,
	})
	require.NoError(t, err)

	title := "Hooks v2"
	updated, err := s.UpdateTask(ctx, created.ID, TaskPatch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "Hooks v2", updated.Title)
	assert.Equal(t, "3 hook variants", updated.Description)
	assert.Equal(t, model.PlatformInstagramReels, updated.Platform)
}

func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	s := newTestService(t, nil)
	title := "x"
	_, err := s.UpdateTask(context.Background(), "missing", TaskPatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJoinProjectRequiresOnlineSession(t *testing.T) {
	s := newTestService(t, nil)
	err := s.JoinProject(context.Background(), "proj_remote")
	assert.ErrorIs(t, err, ErrOfflineJoin)
}

func TestJoinProjectAddsMemberAndSwitches(t *testing.T) {
	fake := storetest.NewFakeRemote()
	fake.Users["ana@example.com"] = model.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	s := newTestService(t, fake)
	ctx := context.Background()

	_, err := s.Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)

	shared := model.ProjectID("shared-1")
	require.NoError(t, s.JoinProject(ctx, shared))

	assert.Equal(t, shared, s.ActiveProject())
	require.Len(t, fake.Team, 1)
	for _, m := range fake.Team {
		assert.Equal(t, "ana@example.com", m.Email)
		assert.Equal(t, shared, m.ProjectID)
	}
}

type fakeGenerator struct {
	script string
	err    error
	calls  int
}

func (g *fakeGenerator) GenerateScript(ctx context.Context, t model.Task) (string, error) {
	g.calls++
	return g.script, g.err
}

func TestMoveTaskWithAssistDraftsScript(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	cols, err := s.localColumns(ctx)
	require.NoError(t, err)
	var ideas, scripting model.ColumnID
	for _, c := range cols {
		switch c.SystemID {
		case model.StageIdeas:
			ideas = c.ID
		case model.StageScripting:
			scripting = c.ID
		}
	}

	created, err := s.AddTask(ctx, model.Task{Title: "Morning routine", ColumnID: ideas})
	require.NoError(t, err)

	gen := &fakeGenerator{script: "Hook: ..."}
	moved, err := s.MoveTaskWithAssist(ctx, created.ID, scripting, gen)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "Hook: ...", moved.Description)
}

func TestMoveTaskWithAssistSurvivesGeneratorFailure(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	cols, err := s.localColumns(ctx)
	require.NoError(t, err)
	var ideas, scripting model.ColumnID
	for _, c := range cols {
		switch c.SystemID {
		case model.StageIdeas:
			ideas = c.ID
		case model.StageScripting:
			scripting = c.ID
		}
	}

	created, err := s.AddTask(ctx, model.Task{Title: "B-roll list", ColumnID: ideas})
	require.NoError(t, err)

	gen := &fakeGenerator{err: errors.New("rate limited")}
	moved, err := s.MoveTaskWithAssist(ctx, created.ID, scripting, gen)
	require.NoError(t, err, "the move stands even when generation fails")
	assert.Equal(t, scripting, moved.ColumnID)
	assert.Empty(t, moved.Description)
}

func TestMoveTaskWithAssistSkipsOtherStages(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	cols, err := s.localColumns(ctx)
	require.NoError(t, err)
	var ideas, done model.ColumnID
	for _, c := range cols {
		switch c.SystemID {
		case model.StageIdeas:
			ideas = c.ID
		case model.StageDone:
			done = c.ID
		}
	}

	created, err := s.AddTask(ctx, model.Task{Title: "publish", ColumnID: ideas})
	require.NoError(t, err)

	gen := &fakeGenerator{script: "unused"}
	_, err = s.MoveTaskWithAssist(ctx, created.ID, done, gen)
	require.NoError(t, err)
	assert.Zero(t, gen.calls)
}

func TestCompetitorRoundTrip(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	var visible []model.Competitor
	unsub, err := s.SubscribeCompetitors(ctx, func(items []model.Competitor) { visible = items })
	require.NoError(t, err)
	defer unsub()

	c, err := s.AddCompetitor(ctx, model.Competitor{Name: "rivalreels", Platform: model.PlatformTikTok})
	require.NoError(t, err)
	require.Len(t, visible, 1)

	c.Notes = "posts daily"
	require.NoError(t, s.UpdateCompetitor(ctx, *c))
	assert.Equal(t, "posts daily", visible[0].Notes)

	require.NoError(t, s.DeleteCompetitor(ctx, c.ID))
	assert.Empty(t, visible)
}

func TestTeamRoundTrip(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	m, err := s.AddTeamMember(ctx, "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, "guest", m.Name)
	assert.Equal(t, "editor", m.Role)

	team, err := s.localTeam(ctx)
	require.NoError(t, err)
	require.Len(t, team, 1)

	require.NoError(t, s.RemoveTeamMember(ctx, m.ID))
	team, err = s.localTeam(ctx)
	require.NoError(t, err)
	assert.Empty(t, team)
}
