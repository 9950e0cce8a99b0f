package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identifier types are plain strings rather than record IDs of any
// particular backend. The remote store embeds them into its own record
// keys; the local store persists them verbatim. Offline-created entities
// carry timestamp-derived IDs so their origin is visible in logs.

type (
	TaskID       string
	ProjectID    string
	ColumnID     string
	UserID       string
	CompetitorID string
	MemberID     string
)

func NewTaskID() TaskID             { return TaskID(uuid.NewString()) }
func NewProjectID() ProjectID       { return ProjectID(uuid.NewString()) }
func NewColumnID() ColumnID         { return ColumnID(uuid.NewString()) }
func NewUserID() UserID             { return UserID(uuid.NewString()) }
func NewCompetitorID() CompetitorID { return CompetitorID(uuid.NewString()) }

// NewOfflineProjectID returns an ID minted without the remote backend.
func NewOfflineProjectID() ProjectID {
	return ProjectID(fmt.Sprintf("proj_%d", time.Now().UnixMilli()))
}

// NewMemberID is timestamp-derived because membership rows are only
// created interactively and never in bulk.
func NewMemberID() MemberID {
	return MemberID(fmt.Sprintf("tm_%d", time.Now().UnixMilli()))
}

func (id TaskID) String() string       { return string(id) }
func (id ProjectID) String() string    { return string(id) }
func (id ColumnID) String() string     { return string(id) }
func (id UserID) String() string       { return string(id) }
func (id CompetitorID) String() string { return string(id) }
func (id MemberID) String() string     { return string(id) }

func (id TaskID) IsZero() bool       { return id == "" }
func (id ProjectID) IsZero() bool    { return id == "" }
func (id ColumnID) IsZero() bool     { return id == "" }
func (id UserID) IsZero() bool       { return id == "" }
func (id CompetitorID) IsZero() bool { return id == "" }
func (id MemberID) IsZero() bool     { return id == "" }
