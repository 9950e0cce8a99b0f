// Package remote implements the shared backend on SurrealDB. Records
// live under one namespace/database; end users authenticate through a
// record access so the backend's own permission rules scope what each
// session can read and write. Collection feeds are built on live
// queries.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"planboard/internal/model"
	"planboard/internal/store"
)

const timeLayout = time.RFC3339

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Config carries everything needed to reach the backend. Access names
// the record access used for end-user sign-in and sign-up.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
	Database  string `json:"database"`
	Access    string `json:"access"`
}

// Store is a SurrealDB-backed store.Remote.
type Store struct {
	db   *surrealdb.DB
	conf Config
	log  zerolog.Logger
}

var _ store.Remote = (*Store)(nil)

// Dial connects to the backend using the websocket transport and the
// CBOR codec the server speaks natively. No authentication happens
// here; callers sign in afterwards.
func Dial(ctx context.Context, conf Config, log zerolog.Logger) (*Store, error) {
	u, err := url.Parse(conf.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", conf.Endpoint, err)
	}

	c := connection.NewConfig(u)
	// surrealcbor keeps record IDs and datetimes in the server's
	// native representation across the wire.
	codec := surrealcbor.New()
	c.Marshaler = codec
	c.Unmarshaler = codec

	conn := gorillaws.New(c)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", conf.Endpoint, classify(err))
	}
	if err := db.Use(ctx, conf.Namespace, conf.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", conf.Namespace, conf.Database, classify(err))
	}

	return &Store{db: db, conf: conf, log: log.With().Str("component", "remote").Logger()}, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	_, err := s.db.SignIn(ctx, surrealdb.Auth{
		Namespace: s.conf.Namespace,
		Database:  s.conf.Database,
		Access:    s.conf.Access,
		Username:  email,
		Password:  password,
	})
	if err != nil {
		return nil, classifyAuth(err)
	}
	return s.currentUser(ctx, email)
}

func (s *Store) SignUp(ctx context.Context, name, email, password string) (*model.User, error) {
	_, err := s.db.SignUp(ctx, surrealdb.Auth{
		Namespace: s.conf.Namespace,
		Database:  s.conf.Database,
		Access:    s.conf.Access,
		Username:  email,
		Password:  password,
	})
	if err != nil {
		return nil, classifyAuth(err)
	}
	u, err := s.currentUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if name != "" && u.Name != name {
		u.Name = name
		rec := userRecord{Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
		if _, uerr := surrealdb.Update[userRecord](ctx, s.db, rid(tableUsers, u.ID.String()), rec); uerr != nil {
			s.log.Warn().Err(uerr).Msg("could not set display name on new account")
		}
	}
	return u, nil
}

// currentUser resolves the signed-in identity through the $auth
// parameter, which the backend binds to the access's user record.
func (s *Store) currentUser(ctx context.Context, email string) (*model.User, error) {
	result, err := surrealdb.Query[[]userRecord](ctx, s.db, `SELECT * FROM $auth`, map[string]any{})
	if err == nil && result != nil && len(*result) > 0 && len((*result)[0].Result) > 0 {
		u := (*result)[0].Result[0].toModel()
		if u.Email == "" {
			u.Email = email
		}
		if u.Name == "" {
			u.Name = nameFromEmail(email)
		}
		return &u, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("could not resolve $auth identity")
	}
	// The session is valid even when the identity record is not
	// readable; derive a usable user from the address.
	return &model.User{
		ID:    model.UserID(email),
		Name:  nameFromEmail(email),
		Email: email,
	}, nil
}

func nameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func (s *Store) SignOut(ctx context.Context) error {
	if err := s.db.Invalidate(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p model.Project) error {
	_, err := surrealdb.Create[projectRecord](ctx, s.db, rid(tableProjects, p.ID.String()), projectToRecord(p))
	return classify(err)
}

func (s *Store) UpdateProject(ctx context.Context, p model.Project) error {
	_, err := surrealdb.Update[projectRecord](ctx, s.db, rid(tableProjects, p.ID.String()), projectToRecord(p))
	return classify(err)
}

func (s *Store) DeleteProject(ctx context.Context, id model.ProjectID) error {
	_, err := surrealdb.Delete[projectRecord](ctx, s.db, rid(tableProjects, id.String()))
	return classify(err)
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) error {
	_, err := surrealdb.Create[taskRecord](ctx, s.db, rid(tableTasks, t.ID.String()), taskToRecord(t))
	return classify(err)
}

func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	_, err := surrealdb.Update[taskRecord](ctx, s.db, rid(tableTasks, t.ID.String()), taskToRecord(t))
	return classify(err)
}

func (s *Store) DeleteTask(ctx context.Context, id model.TaskID) error {
	_, err := surrealdb.Delete[taskRecord](ctx, s.db, rid(tableTasks, id.String()))
	return classify(err)
}

func (s *Store) CreateColumn(ctx context.Context, c model.Column) error {
	_, err := surrealdb.Create[columnRecord](ctx, s.db, rid(tableColumns, c.ID.String()), columnToRecord(c))
	return classify(err)
}

func (s *Store) UpdateColumn(ctx context.Context, c model.Column) error {
	_, err := surrealdb.Update[columnRecord](ctx, s.db, rid(tableColumns, c.ID.String()), columnToRecord(c))
	return classify(err)
}

func (s *Store) DeleteColumn(ctx context.Context, id model.ColumnID) error {
	_, err := surrealdb.Delete[columnRecord](ctx, s.db, rid(tableColumns, id.String()))
	return classify(err)
}

func (s *Store) CreateCompetitor(ctx context.Context, c model.Competitor) error {
	_, err := surrealdb.Create[competitorRecord](ctx, s.db, rid(tableCompetitors, c.ID.String()), competitorToRecord(c))
	return classify(err)
}

func (s *Store) UpdateCompetitor(ctx context.Context, c model.Competitor) error {
	_, err := surrealdb.Update[competitorRecord](ctx, s.db, rid(tableCompetitors, c.ID.String()), competitorToRecord(c))
	return classify(err)
}

func (s *Store) DeleteCompetitor(ctx context.Context, id model.CompetitorID) error {
	_, err := surrealdb.Delete[competitorRecord](ctx, s.db, rid(tableCompetitors, id.String()))
	return classify(err)
}

func (s *Store) CreateTeamMember(ctx context.Context, m model.TeamMember) error {
	_, err := surrealdb.Create[teamMemberRecord](ctx, s.db, rid(tableTeam, m.ID.String()), teamMemberToRecord(m))
	return classify(err)
}

func (s *Store) DeleteTeamMember(ctx context.Context, id model.MemberID) error {
	_, err := surrealdb.Delete[teamMemberRecord](ctx, s.db, rid(tableTeam, id.String()))
	return classify(err)
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// classify maps client errors onto the store error classes. Transport
// failures and refusals by the backend's permission system both mean
// the backend is unusable for this session; anything else is a caller
// mistake and passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection") && (strings.Contains(msg, "closed") || strings.Contains(msg, "refused") || strings.Contains(msg, "reset")),
		strings.Contains(msg, "websocket"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	case strings.Contains(msg, "not enough permissions"),
		strings.Contains(msg, "iam error"),
		strings.Contains(msg, "not allowed"):
		return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "capacity"):
		return fmt.Errorf("%w: %w", store.ErrQuota, err)
	}
	return err
}

// classifyAuth is classify with the authentication refusal mapped to
// the credentials error, so a wrong password never demotes the session.
func classifyAuth(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "signin") ||
		strings.Contains(msg, "signup") ||
		strings.Contains(msg, "already exists") {
		return fmt.Errorf("%w: %w", store.ErrInvalidCredentials, err)
	}
	return classify(err)
}
