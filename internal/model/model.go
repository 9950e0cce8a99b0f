// Package model defines the content-planning domain entities shared by
// the local and remote stores. Entities are plain serializable structs;
// persistence concerns live in the store packages.
package model

import "time"

// SocialPlatform identifies the publishing target of a planned post.
type SocialPlatform string

const (
	PlatformInstagramReels SocialPlatform = "instagram_reels"
	PlatformInstagramPost  SocialPlatform = "instagram_post"
	PlatformTelegram       SocialPlatform = "telegram"
	PlatformTikTok         SocialPlatform = "tiktok"
	PlatformYouTube        SocialPlatform = "youtube"
	PlatformThreads        SocialPlatform = "threads"
	PlatformCustom         SocialPlatform = "custom"
)

// Slide is one frame of a carousel post.
type Slide struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Task is a single planned piece of content. Date is a plain calendar
// date string (YYYY-MM-DD) chosen by the author, not a timestamp.
type Task struct {
	ID          TaskID         `json:"id"`
	ProjectID   ProjectID      `json:"projectId"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ColumnID    ColumnID       `json:"columnId"`
	Platform    SocialPlatform `json:"platform,omitempty"`
	Date        string         `json:"date,omitempty"`
	AuthorID    UserID         `json:"authorId,omitempty"`
	Slides      []Slide        `json:"carouselSlides,omitempty"`
}

// Column is a workflow stage on a project board. SystemID carries the
// well-known stage name for the default columns so that renames keep
// their role recognizable; user-created columns have SystemID equal to
// their ID.
type Column struct {
	ID        ColumnID  `json:"id"`
	SystemID  string    `json:"systemId"`
	ProjectID ProjectID `json:"projectId"`
	Title     string    `json:"title"`
	Color     string    `json:"color,omitempty"`
}

// Project is the top-level grouping of boards, tasks and members.
type Project struct {
	ID        ProjectID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   UserID    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// User is the authenticated account operating the planner.
type User struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Competitor is a tracked rival account for a project.
type Competitor struct {
	ID        CompetitorID   `json:"id"`
	ProjectID ProjectID      `json:"projectId"`
	Name      string         `json:"name"`
	Platform  SocialPlatform `json:"platform,omitempty"`
	URL       string         `json:"url,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

// TeamMember is a collaborator on a project.
type TeamMember struct {
	ID        MemberID  `json:"id"`
	ProjectID ProjectID `json:"projectId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Role      string    `json:"role"`
	AddedAt   time.Time `json:"addedAt,omitempty"`
}

// Default workflow stages every project starts with. The first stage is
// the intake column and must always exist on a board.
const (
	StageIdeas     = "ideas"
	StageScripting = "scripting"
	StageFilming   = "filming"
	StageDone      = "done"
)

// DefaultColumns returns the four starting columns for a new project.
// Column IDs are minted fresh on each call.
func DefaultColumns(projectID ProjectID) []Column {
	stages := []struct {
		system string
		title  string
		color  string
	}{
		{StageIdeas, "Ideas", "#8b5cf6"},
		{StageScripting, "Scripting", "#3b82f6"},
		{StageFilming, "Filming", "#f59e0b"},
		{StageDone, "Done", "#10b981"},
	}
	cols := make([]Column, 0, len(stages))
	for _, s := range stages {
		cols = append(cols, Column{
			ID:        NewColumnID(),
			SystemID:  s.system,
			ProjectID: projectID,
			Title:     s.title,
			Color:     s.color,
		})
	}
	return cols
}
