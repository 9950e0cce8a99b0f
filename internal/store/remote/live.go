package remote

import (
	"context"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"planboard/internal/model"
)

// recordPtr is the pointer-side contract of the record wrappers,
// letting subscribeTable rebuild record IDs after decoding.
type recordPtr[R any] interface {
	*R
	setID(*surrealmodels.RecordID)
	key() string
}

func (r *userRecord) setID(id *surrealmodels.RecordID)       { r.ID = id }
func (r *projectRecord) setID(id *surrealmodels.RecordID)    { r.ID = id }
func (r *taskRecord) setID(id *surrealmodels.RecordID)       { r.ID = id }
func (r *columnRecord) setID(id *surrealmodels.RecordID)     { r.ID = id }
func (r *competitorRecord) setID(id *surrealmodels.RecordID) { r.ID = id }
func (r *teamMemberRecord) setID(id *surrealmodels.RecordID) { r.ID = id }

func (r *userRecord) key() string       { return recordKey(r.ID) }
func (r *projectRecord) key() string    { return recordKey(r.ID) }
func (r *taskRecord) key() string       { return recordKey(r.ID) }
func (r *columnRecord) key() string     { return recordKey(r.ID) }
func (r *competitorRecord) key() string { return recordKey(r.ID) }
func (r *teamMemberRecord) key() string { return recordKey(r.ID) }

// subscribeTable starts a collection feed over a live query. The
// current contents are delivered once before the function returns, then
// the feed pushes the full updated collection after every change. An
// empty projectID subscribes to the whole table.
//
// The feed keeps an id-keyed cache and folds each notification into it
// rather than re-querying, falling back to a full snapshot when a
// notification cannot be decoded. The returned cancel kills the live
// query, which closes the notification channel and stops the feed.
func subscribeTable[R any, P recordPtr[R]](ctx context.Context, s *Store, table string, projectID string, fn func([]R)) (func(), error) {
	query := "SELECT * FROM " + table
	liveQuery := "LIVE SELECT * FROM " + table
	params := map[string]any{}
	if projectID != "" {
		query += " WHERE projectId = $projectId"
		liveQuery += " WHERE projectId = $projectId"
		params["projectId"] = projectID
	}

	snapshot := func(ctx context.Context) (map[string]R, error) {
		res, err := surrealdb.Query[[]R](ctx, s.db, query, params)
		if err != nil {
			return nil, classify(err)
		}
		byKey := make(map[string]R)
		if res != nil && len(*res) > 0 {
			for _, rec := range (*res)[0].Result {
				rec := rec
				byKey[P(&rec).key()] = rec
			}
		}
		return byKey, nil
	}

	byKey, err := snapshot(ctx)
	if err != nil {
		return nil, err
	}

	liveRes, err := surrealdb.Query[surrealmodels.UUID](ctx, s.db, liveQuery, params)
	if err != nil {
		return nil, classify(err)
	}
	if liveRes == nil || len(*liveRes) == 0 {
		return nil, fmt.Errorf("%s: live query returned no id", table)
	}
	liveID := (*liveRes)[0].Result.String()

	notifications, err := s.db.LiveNotifications(liveID)
	if err != nil {
		return nil, classify(err)
	}

	fn(sortedRecords[R, P](byKey))

	go func() {
		for nf := range notifications {
			if applyNotification[R, P](byKey, nf) {
				fn(sortedRecords[R, P](byKey))
				continue
			}
			// Undecodable payload, resync from the server.
			fresh, serr := snapshot(context.Background())
			if serr != nil {
				s.log.Warn().Err(serr).Str("table", table).Msg("feed resync failed")
				continue
			}
			byKey = fresh
			fn(sortedRecords[R, P](byKey))
		}
	}()

	cancel := func() {
		if err := surrealdb.Kill(context.Background(), s.db, liveID); err != nil {
			s.log.Warn().Err(err).Str("table", table).Msg("could not kill live query")
		}
	}
	return cancel, nil
}

// applyNotification folds one live-query event into the cache,
// reporting false when the payload could not be decoded.
func applyNotification[R any, P recordPtr[R]](byKey map[string]R, nf connection.Notification) bool {
	raw, ok := nf.Result.(map[string]any)
	if !ok {
		return false
	}
	id, ok := extractRecordID(raw["id"])
	if !ok {
		return false
	}

	if nf.Action == connection.DeleteAction {
		delete(byKey, recordKey(id))
		return true
	}

	// The id is re-attached after decoding; RecordID does not survive
	// a round trip through a plain map marshal.
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	data, err := cbor.Marshal(fields)
	if err != nil {
		return false
	}
	var rec R
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return false
	}
	P(&rec).setID(id)
	byKey[recordKey(id)] = rec
	return true
}

func extractRecordID(v any) (*surrealmodels.RecordID, bool) {
	switch id := v.(type) {
	case surrealmodels.RecordID:
		return &id, true
	case *surrealmodels.RecordID:
		return id, true
	default:
		return nil, false
	}
}

func sortedRecords[R any, P recordPtr[R]](byKey map[string]R) []R {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]R, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

func (s *Store) SubscribeProjects(ctx context.Context, fn func([]model.Project)) (func(), error) {
	return subscribeTable[projectRecord](ctx, s, tableProjects, "", func(recs []projectRecord) {
		out := make([]model.Project, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.toModel())
		}
		fn(out)
	})
}

func (s *Store) SubscribeTasks(ctx context.Context, projectID model.ProjectID, fn func([]model.Task)) (func(), error) {
	return subscribeTable[taskRecord](ctx, s, tableTasks, projectID.String(), func(recs []taskRecord) {
		out := make([]model.Task, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.toModel())
		}
		fn(out)
	})
}

func (s *Store) SubscribeColumns(ctx context.Context, projectID model.ProjectID, fn func([]model.Column)) (func(), error) {
	return subscribeTable[columnRecord](ctx, s, tableColumns, projectID.String(), func(recs []columnRecord) {
		out := make([]model.Column, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.toModel())
		}
		fn(out)
	})
}

func (s *Store) SubscribeCompetitors(ctx context.Context, projectID model.ProjectID, fn func([]model.Competitor)) (func(), error) {
	return subscribeTable[competitorRecord](ctx, s, tableCompetitors, projectID.String(), func(recs []competitorRecord) {
		out := make([]model.Competitor, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.toModel())
		}
		fn(out)
	})
}

func (s *Store) SubscribeTeam(ctx context.Context, projectID model.ProjectID, fn func([]model.TeamMember)) (func(), error) {
	return subscribeTable[teamMemberRecord](ctx, s, tableTeam, projectID.String(), func(recs []teamMemberRecord) {
		out := make([]model.TeamMember, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.toModel())
		}
		fn(out)
	})
}
