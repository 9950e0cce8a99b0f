// Package store defines the contracts the synchronization layer is
// built on: a durable key-value Local store, a Remote store backed by
// SurrealDB, and the error classes that decide whether a failed remote
// call demotes the session to offline operation.
package store

import (
	"context"

	"planboard/internal/model"
)

// Key names a slot in the local store. Each slot holds one JSON
// document, typically a whole collection serialized as a list.
type Key string

const (
	KeyUser          Key = "current-user"
	KeyProjects      Key = "projects"
	KeyTasks         Key = "tasks"
	KeyColumns       Key = "columns"
	KeyCompetitors   Key = "competitors"
	KeyTeam          Key = "team"
	KeyActiveProject Key = "active-project-id"
	KeyRemoteConfig  Key = "remote-config"
)

// CredentialKey names the slot holding the stored login material for
// one account, used for offline sign-in.
func CredentialKey(email string) Key {
	return Key("cred:" + email)
}

// Local is durable single-user storage. Get returns (nil, nil) when the
// key has never been written.
type Local interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	Close() error
}

// Remote is the shared backend. Write methods return classified errors
// (see Demotes); Subscribe methods push the full current collection on
// every change and return a cancel function that tears the feed down.
//
// Project-scoped subscriptions are bound to a single project at call
// time; switching projects means cancelling and resubscribing.
type Remote interface {
	SignIn(ctx context.Context, email, password string) (*model.User, error)
	SignUp(ctx context.Context, name, email, password string) (*model.User, error)
	SignOut(ctx context.Context) error

	CreateProject(ctx context.Context, p model.Project) error
	UpdateProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id model.ProjectID) error
	SubscribeProjects(ctx context.Context, fn func([]model.Project)) (func(), error)

	CreateTask(ctx context.Context, t model.Task) error
	UpdateTask(ctx context.Context, t model.Task) error
	DeleteTask(ctx context.Context, id model.TaskID) error
	SubscribeTasks(ctx context.Context, projectID model.ProjectID, fn func([]model.Task)) (func(), error)

	CreateColumn(ctx context.Context, c model.Column) error
	UpdateColumn(ctx context.Context, c model.Column) error
	DeleteColumn(ctx context.Context, id model.ColumnID) error
	SubscribeColumns(ctx context.Context, projectID model.ProjectID, fn func([]model.Column)) (func(), error)

	CreateCompetitor(ctx context.Context, c model.Competitor) error
	UpdateCompetitor(ctx context.Context, c model.Competitor) error
	DeleteCompetitor(ctx context.Context, id model.CompetitorID) error
	SubscribeCompetitors(ctx context.Context, projectID model.ProjectID, fn func([]model.Competitor)) (func(), error)

	CreateTeamMember(ctx context.Context, m model.TeamMember) error
	DeleteTeamMember(ctx context.Context, id model.MemberID) error
	SubscribeTeam(ctx context.Context, projectID model.ProjectID, fn func([]model.TeamMember)) (func(), error)

	Close() error
}
