package remote

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"planboard/internal/model"
)

// Record wrappers pair each domain entity with a SurrealDB record ID.
// Foreign keys stay plain strings so that live query filters like
// "WHERE projectId = $projectId" match without record-link resolution.

const (
	tableUsers       = "users"
	tableProjects    = "projects"
	tableTasks       = "tasks"
	tableColumns     = "columns"
	tableCompetitors = "competitors"
	tableTeam        = "team_members"
)

func rid(table, id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: table, ID: id}
}

// recordKey extracts the plain entity ID out of a SurrealDB record ID.
func recordKey(id *surrealmodels.RecordID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id.ID)
}

type userRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	AvatarURL string                  `json:"avatarUrl,omitempty"`
}

func (r userRecord) toModel() model.User {
	return model.User{
		ID:        model.UserID(recordKey(r.ID)),
		Name:      r.Name,
		Email:     r.Email,
		AvatarURL: r.AvatarURL,
	}
}

type projectRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	Name      string                  `json:"name"`
	OwnerID   string                  `json:"ownerId,omitempty"`
	CreatedAt string                  `json:"createdAt,omitempty"`
}

func projectToRecord(p model.Project) projectRecord {
	rec := projectRecord{
		Name:    p.Name,
		OwnerID: p.OwnerID.String(),
	}
	if !p.CreatedAt.IsZero() {
		rec.CreatedAt = p.CreatedAt.UTC().Format(timeLayout)
	}
	return rec
}

func (r projectRecord) toModel() model.Project {
	p := model.Project{
		ID:      model.ProjectID(recordKey(r.ID)),
		Name:    r.Name,
		OwnerID: model.UserID(r.OwnerID),
	}
	p.CreatedAt = parseTime(r.CreatedAt)
	return p
}

type taskRecord struct {
	ID          *surrealmodels.RecordID `json:"id,omitempty"`
	ProjectID   string                  `json:"projectId"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	ColumnID    string                  `json:"columnId"`
	Platform    string                  `json:"platform,omitempty"`
	Date        string                  `json:"date,omitempty"`
	AuthorID    string                  `json:"authorId,omitempty"`
	Slides      []model.Slide           `json:"carouselSlides,omitempty"`
}

func taskToRecord(t model.Task) taskRecord {
	return taskRecord{
		ProjectID:   t.ProjectID.String(),
		Title:       t.Title,
		Description: t.Description,
		ColumnID:    t.ColumnID.String(),
		Platform:    string(t.Platform),
		Date:        t.Date,
		AuthorID:    t.AuthorID.String(),
		Slides:      t.Slides,
	}
}

func (r taskRecord) toModel() model.Task {
	return model.Task{
		ID:          model.TaskID(recordKey(r.ID)),
		ProjectID:   model.ProjectID(r.ProjectID),
		Title:       r.Title,
		Description: r.Description,
		ColumnID:    model.ColumnID(r.ColumnID),
		Platform:    model.SocialPlatform(r.Platform),
		Date:        r.Date,
		AuthorID:    model.UserID(r.AuthorID),
		Slides:      r.Slides,
	}
}

type columnRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	SystemID  string                  `json:"systemId,omitempty"`
	ProjectID string                  `json:"projectId"`
	Title     string                  `json:"title"`
	Color     string                  `json:"color,omitempty"`
}

func columnToRecord(c model.Column) columnRecord {
	return columnRecord{
		SystemID:  c.SystemID,
		ProjectID: c.ProjectID.String(),
		Title:     c.Title,
		Color:     c.Color,
	}
}

func (r columnRecord) toModel() model.Column {
	c := model.Column{
		ID:        model.ColumnID(recordKey(r.ID)),
		SystemID:  r.SystemID,
		ProjectID: model.ProjectID(r.ProjectID),
		Title:     r.Title,
		Color:     r.Color,
	}
	// Columns created before renaming support carried no stage name;
	// treat the record key as the stage so first-column checks hold.
	if c.SystemID == "" {
		c.SystemID = c.ID.String()
	}
	return c
}

type competitorRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	ProjectID string                  `json:"projectId"`
	Name      string                  `json:"name"`
	Platform  string                  `json:"platform,omitempty"`
	URL       string                  `json:"url,omitempty"`
	Notes     string                  `json:"notes,omitempty"`
}

func competitorToRecord(c model.Competitor) competitorRecord {
	return competitorRecord{
		ProjectID: c.ProjectID.String(),
		Name:      c.Name,
		Platform:  string(c.Platform),
		URL:       c.URL,
		Notes:     c.Notes,
	}
}

func (r competitorRecord) toModel() model.Competitor {
	return model.Competitor{
		ID:        model.CompetitorID(recordKey(r.ID)),
		ProjectID: model.ProjectID(r.ProjectID),
		Name:      r.Name,
		Platform:  model.SocialPlatform(r.Platform),
		URL:       r.URL,
		Notes:     r.Notes,
	}
}

type teamMemberRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	ProjectID string                  `json:"projectId"`
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	AvatarURL string                  `json:"avatarUrl,omitempty"`
	Role      string                  `json:"role"`
	AddedAt   string                  `json:"addedAt,omitempty"`
}

func teamMemberToRecord(m model.TeamMember) teamMemberRecord {
	rec := teamMemberRecord{
		ProjectID: m.ProjectID.String(),
		Name:      m.Name,
		Email:     m.Email,
		AvatarURL: m.AvatarURL,
		Role:      m.Role,
	}
	if !m.AddedAt.IsZero() {
		rec.AddedAt = m.AddedAt.UTC().Format(timeLayout)
	}
	return rec
}

func (r teamMemberRecord) toModel() model.TeamMember {
	m := model.TeamMember{
		ID:        model.MemberID(recordKey(r.ID)),
		ProjectID: model.ProjectID(r.ProjectID),
		Name:      r.Name,
		Email:     r.Email,
		AvatarURL: r.AvatarURL,
		Role:      r.Role,
	}
	m.AddedAt = parseTime(r.AddedAt)
	return m
}
