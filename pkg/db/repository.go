package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// ErrNotFound is returned by operations that require an existing row.
var ErrNotFound = errors.New("not found")

// Repository provides database access for the woodchuck hierarchy.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Table names a table of the hierarchy.
type Table string

const (
	TableManagers Table = "managers"
	TableStreams  Table = "streams"
	TableObjects  Table = "objects"
)

// parentColumn is the column linking rows of t to their parent.
func (t Table) parentColumn() string {
	switch t {
	case TableStreams:
		return "manager_id"
	case TableObjects:
		return "stream_id"
	}
	return "parent_id"
}

// nullable maps "" to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// =========================================================================
// REGISTRATION
// =========================================================================

// GetManager finds a manager by ID. Returns nil if there is none.
func (r *Repository) GetManager(ctx context.Context, id string) (*Manager, error) {
	var m Manager
	err := r.pool.QueryRow(ctx,
		`SELECT id, parent_id, human_readable_name, dbus_service_name, dbus_object,
		        cookie, priority, created
		 FROM managers WHERE id = $1`, id,
	).Scan(&m.ID, &m.ParentID, &m.HumanReadableName, &m.DBusServiceName, &m.DBusObject,
		&m.Cookie, &m.Priority, &m.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetManager failed: %w", repoLogPrefix, err)
	}
	return &m, nil
}

// GetStream finds a stream by ID. Returns nil if there is none.
func (r *Repository) GetStream(ctx context.Context, id string) (*Stream, error) {
	var s Stream
	err := r.pool.QueryRow(ctx,
		`SELECT id, manager_id, instance, human_readable_name, cookie, priority,
		        freshness, objects_mostly_inline, created
		 FROM streams WHERE id = $1`, id,
	).Scan(&s.ID, &s.ManagerID, &s.Instance, &s.HumanReadableName, &s.Cookie, &s.Priority,
		&s.Freshness, &s.ObjectsMostlyInline, &s.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetStream failed: %w", repoLogPrefix, err)
	}
	return &s, nil
}

// SiblingByCookie returns the ID of a row of t under parentID with the
// given cookie, or "" if there is none. parentID "" is the top level.
func (r *Repository) SiblingByCookie(ctx context.Context, t Table, parentID, cookie string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE %s IS NOT DISTINCT FROM $1 AND cookie = $2 ORDER BY seq LIMIT 1`,
			t, t.parentColumn()),
		nullable(parentID), cookie).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s - SiblingByCookie %s failed: %w", repoLogPrefix, t, err)
	}
	return id, nil
}

// InsertManager registers a manager. ParentID "" registers a top-level manager.
func (r *Repository) InsertManager(ctx context.Context, m *Manager) error {
	slog.Info(fmt.Sprintf("%s - InsertManager id=%s name=%q", repoLogPrefix, m.ID, m.HumanReadableName))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO managers (id, parent_id, human_readable_name, dbus_service_name,
		                       dbus_object, cookie, priority)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ParentID, m.HumanReadableName, m.DBusServiceName, m.DBusObject, m.Cookie, m.Priority)
	if err != nil {
		return fmt.Errorf("%s - InsertManager failed: %w", repoLogPrefix, err)
	}
	return nil
}

// InsertStream registers a stream.
func (r *Repository) InsertStream(ctx context.Context, s *Stream) error {
	slog.Info(fmt.Sprintf("%s - InsertStream id=%s manager=%s name=%q", repoLogPrefix, s.ID, s.ManagerID, s.HumanReadableName))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO streams (id, manager_id, human_readable_name, cookie, priority,
		                      freshness, objects_mostly_inline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.ManagerID, s.HumanReadableName, s.Cookie, s.Priority, s.Freshness, s.ObjectsMostlyInline)
	if err != nil {
		return fmt.Errorf("%s - InsertStream failed: %w", repoLogPrefix, err)
	}
	return nil
}

// InsertObject registers an object and its versions in one transaction.
func (r *Repository) InsertObject(ctx context.Context, o *Object, versions []ObjectVersion) error {
	slog.Info(fmt.Sprintf("%s - InsertObject id=%s stream=%s name=%q versions=%d",
		repoLogPrefix, o.ID, o.StreamID, o.HumanReadableName, len(versions)))

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO objects (id, stream_id, human_readable_name, cookie, filename, wakeup,
			                      trigger_target, trigger_earliest, trigger_latest,
			                      download_frequency, priority)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, o.StreamID, o.HumanReadableName, o.Cookie, o.Filename, o.Wakeup,
			o.TriggerTarget, o.TriggerEarliest, o.TriggerLatest, o.DownloadFrequency, o.Priority,
		); err != nil {
			return err
		}
		for _, v := range versions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO object_versions (object_id, version, url, expected_size, utility, use_simple_downloader)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				o.ID, v.Version, v.URL, v.ExpectedSize, v.Utility, v.UseSimpleDownloader,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s - InsertObject failed: %w", repoLogPrefix, err)
	}
	return nil
}

// =========================================================================
// LISTING
// =========================================================================

// managerScope returns a query selecting the ids of the managers listed
// under parentID: its children, or all its descendants when recurse is set.
func managerScope(parentID string, recurse bool) (string, []any) {
	switch {
	case !recurse:
		return `SELECT id FROM managers WHERE parent_id IS NOT DISTINCT FROM $1`, []any{nullable(parentID)}
	case parentID == "":
		return `SELECT id FROM managers`, nil
	}
	return `WITH RECURSIVE sub(id) AS (
	            SELECT id FROM managers WHERE parent_id = $1
	            UNION ALL
	            SELECT m.id FROM managers m JOIN sub ON m.parent_id = sub.id
	        ) SELECT id FROM sub`, []any{parentID}
}

// ListManagers lists the managers under parentID in registration order.
func (r *Repository) ListManagers(ctx context.Context, parentID string, recurse bool) ([]Listing, error) {
	scope, args := managerScope(parentID, recurse)
	return r.list(ctx, "ListManagers", fmt.Sprintf(
		`SELECT id, cookie, human_readable_name, parent_id FROM managers
		 WHERE id IN (%s) ORDER BY seq`, scope), args...)
}

// LookupManagersByCookie lists the managers under parentID with the given cookie.
func (r *Repository) LookupManagersByCookie(ctx context.Context, parentID, cookie string, recurse bool) ([]Listing, error) {
	scope, args := managerScope(parentID, recurse)
	args = append(args, cookie)
	return r.list(ctx, "LookupManagersByCookie", fmt.Sprintf(
		`SELECT id, cookie, human_readable_name, parent_id FROM managers
		 WHERE id IN (%s) AND cookie = $%d ORDER BY seq`, scope, len(args)), args...)
}

// ListStreams lists a manager's streams in registration order.
func (r *Repository) ListStreams(ctx context.Context, managerID string) ([]Listing, error) {
	return r.list(ctx, "ListStreams",
		`SELECT id, cookie, human_readable_name, manager_id FROM streams
		 WHERE manager_id = $1 ORDER BY seq`, managerID)
}

// LookupStreamsByCookie lists a manager's streams with the given cookie.
func (r *Repository) LookupStreamsByCookie(ctx context.Context, managerID, cookie string) ([]Listing, error) {
	return r.list(ctx, "LookupStreamsByCookie",
		`SELECT id, cookie, human_readable_name, manager_id FROM streams
		 WHERE manager_id = $1 AND cookie = $2 ORDER BY seq`, managerID, cookie)
}

// ListObjects lists a stream's objects in registration order.
func (r *Repository) ListObjects(ctx context.Context, streamID string) ([]Listing, error) {
	return r.list(ctx, "ListObjects",
		`SELECT id, cookie, human_readable_name, stream_id FROM objects
		 WHERE stream_id = $1 ORDER BY seq`, streamID)
}

// LookupObjectsByCookie lists a stream's objects with the given cookie.
func (r *Repository) LookupObjectsByCookie(ctx context.Context, streamID, cookie string) ([]Listing, error) {
	return r.list(ctx, "LookupObjectsByCookie",
		`SELECT id, cookie, human_readable_name, stream_id FROM objects
		 WHERE stream_id = $1 AND cookie = $2 ORDER BY seq`, streamID, cookie)
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]Listing, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - %s failed: %w", repoLogPrefix, op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Listing, error) {
		var l Listing
		err := row.Scan(&l.ID, &l.Cookie, &l.Name, &l.ParentID)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - %s scan failed: %w", repoLogPrefix, op, err)
	}
	return out, nil
}

// =========================================================================
// DELETION
// =========================================================================

// CountDescendents counts the direct children of a manager (managers and
// streams) or a stream (objects).
func (r *Repository) CountDescendents(ctx context.Context, t Table, id string) (int, error) {
	var query string
	switch t {
	case TableManagers:
		query = `SELECT (SELECT COUNT(*) FROM managers WHERE parent_id = $1)
		              + (SELECT COUNT(*) FROM streams WHERE manager_id = $1)`
	case TableStreams:
		query = `SELECT COUNT(*) FROM objects WHERE stream_id = $1`
	default:
		return 0, nil
	}
	var n int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s - CountDescendents %s failed: %w", repoLogPrefix, t, err)
	}
	return n, nil
}

// Delete removes a row of t and, through cascading foreign keys, everything
// below it. Returns false if the row did not exist.
func (r *Repository) Delete(ctx context.Context, t Table, id string) (bool, error) {
	slog.Info(fmt.Sprintf("%s - Delete %s id=%s", repoLogPrefix, t, id))

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t), id)
	if err != nil {
		return false, fmt.Errorf("%s - Delete %s failed: %w", repoLogPrefix, t, err)
	}
	return tag.RowsAffected() > 0, nil
}

// =========================================================================
// FEEDBACK
// =========================================================================

// InsertFeedbackSubscription stores a feedback subscription.
func (r *Repository) InsertFeedbackSubscription(ctx context.Context, sub *FeedbackSubscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedback_subscriptions (handle, manager_id, descendents_too) VALUES ($1, $2, $3)`,
		sub.Handle, sub.ManagerID, sub.DescendentsToo)
	if err != nil {
		return fmt.Errorf("%s - InsertFeedbackSubscription failed: %w", repoLogPrefix, err)
	}
	return nil
}

// DeleteFeedbackSubscription removes a manager's subscription. Returns
// false if the manager holds no subscription with that handle.
func (r *Repository) DeleteFeedbackSubscription(ctx context.Context, managerID, handle string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM feedback_subscriptions WHERE manager_id = $1 AND handle = $2`, managerID, handle)
	if err != nil {
		return false, fmt.Errorf("%s - DeleteFeedbackSubscription failed: %w", repoLogPrefix, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SubscriptionsFor returns the subscriptions that receive upcalls about a
// manager's resources: the manager's own and those of ancestors that asked
// for descendants too.
func (r *Repository) SubscriptionsFor(ctx context.Context, managerID string) ([]FeedbackSubscription, error) {
	rows, err := r.pool.Query(ctx,
		`WITH RECURSIVE anc(id, depth) AS (
		     SELECT id, 0 FROM managers WHERE id = $1
		     UNION ALL
		     SELECT m.parent_id, anc.depth + 1 FROM managers m JOIN anc ON m.id = anc.id
		     WHERE m.parent_id IS NOT NULL
		 )
		 SELECT s.handle, s.manager_id, s.descendents_too, s.created
		 FROM feedback_subscriptions s JOIN anc ON s.manager_id = anc.id
		 WHERE anc.depth = 0 OR s.descendents_too
		 ORDER BY s.created, s.handle`, managerID)
	if err != nil {
		return nil, fmt.Errorf("%s - SubscriptionsFor failed: %w", repoLogPrefix, err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (FeedbackSubscription, error) {
		var s FeedbackSubscription
		err := row.Scan(&s.Handle, &s.ManagerID, &s.DescendentsToo, &s.Created)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - SubscriptionsFor scan failed: %w", repoLogPrefix, err)
	}
	return subs, nil
}

// ManagerCovers reports whether managerID is descendantID itself or one of
// its ancestors.
func (r *Repository) ManagerCovers(ctx context.Context, managerID, descendantID string) (bool, error) {
	var covers bool
	err := r.pool.QueryRow(ctx,
		`WITH RECURSIVE anc(id) AS (
		     SELECT id FROM managers WHERE id = $2
		     UNION ALL
		     SELECT m.parent_id FROM managers m JOIN anc ON m.id = anc.id
		     WHERE m.parent_id IS NOT NULL
		 )
		 SELECT EXISTS (SELECT 1 FROM anc WHERE id = $1)`, managerID, descendantID).Scan(&covers)
	if err != nil {
		return false, fmt.Errorf("%s - ManagerCovers failed: %w", repoLogPrefix, err)
	}
	return covers, nil
}

// InsertFeedbackAck records that a manager processed an object instance.
// Repeated acknowledgements are ignored.
func (r *Repository) InsertFeedbackAck(ctx context.Context, managerID, objectID string, instance int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedback_acks (manager_id, object_id, instance) VALUES ($1, $2, $3)
		 ON CONFLICT (manager_id, object_id, instance) DO NOTHING`,
		managerID, objectID, instance)
	if err != nil {
		return fmt.Errorf("%s - InsertFeedbackAck failed: %w", repoLogPrefix, err)
	}
	return nil
}

// =========================================================================
// STATUS REPORTS
// =========================================================================

// ObjectOwner returns the stream and manager an object belongs to and its
// current instance.
func (r *Repository) ObjectOwner(ctx context.Context, objectID string) (*Owner, error) {
	var o Owner
	err := r.pool.QueryRow(ctx,
		`SELECT s.manager_id, o.stream_id, o.cookie, o.instance
		 FROM objects o JOIN streams s ON s.id = o.stream_id
		 WHERE o.id = $1`, objectID,
	).Scan(&o.ManagerID, &o.StreamID, &o.Cookie, &o.Instance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - ObjectOwner failed: %w", repoLogPrefix, err)
	}
	return &o, nil
}

// StreamOwner returns the manager a stream belongs to and its current instance.
func (r *Repository) StreamOwner(ctx context.Context, streamID string) (*Owner, error) {
	o := Owner{StreamID: streamID}
	err := r.pool.QueryRow(ctx,
		`SELECT manager_id, cookie, instance FROM streams WHERE id = $1`, streamID,
	).Scan(&o.ManagerID, &o.Cookie, &o.Instance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - StreamOwner failed: %w", repoLogPrefix, err)
	}
	return &o, nil
}

// ObjectStatusParams holds parameters for RecordObjectStatus.
type ObjectStatusParams struct {
	ObjectID         string
	Status           int64
	Indicator        int64
	TransferredUp    int64
	TransferredDown  int64
	DownloadTime     int64
	DownloadDuration int64
	ObjectSize       int64
	Files            []InstanceFile
}

// RecordObjectStatus stores a download status at the object's current
// instance and then advances the instance. Returns the instance recorded,
// or ErrNotFound.
func (r *Repository) RecordObjectStatus(ctx context.Context, p ObjectStatusParams) (int64, error) {
	var instance int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT instance FROM objects WHERE id = $1 FOR UPDATE`, p.ObjectID).Scan(&instance)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO object_instance_status
			   (object_id, instance, status, indicator, transferred_up, transferred_down,
			    download_time, download_duration, object_size)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ObjectID, instance, p.Status, p.Indicator, p.TransferredUp, p.TransferredDown,
			p.DownloadTime, p.DownloadDuration, p.ObjectSize,
		); err != nil {
			return err
		}
		for _, f := range p.Files {
			if _, err := tx.Exec(ctx,
				`INSERT INTO object_instance_files (object_id, instance, filename, dedicated, deletion_policy)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (object_id, instance, filename) DO UPDATE SET
				   dedicated = EXCLUDED.dedicated, deletion_policy = EXCLUDED.deletion_policy`,
				p.ObjectID, instance, f.Filename, f.Dedicated, f.DeletionPolicy,
			); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE objects SET instance = instance + 1 WHERE id = $1`, p.ObjectID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%s - RecordObjectStatus failed: %w", repoLogPrefix, err)
	}
	return instance, nil
}

// StreamUpdateParams holds parameters for RecordStreamUpdate.
type StreamUpdateParams struct {
	StreamID         string
	Status           int64
	Indicator        int64
	TransferredUp    int64
	TransferredDown  int64
	DownloadTime     int64
	DownloadDuration int64
	NewObjects       int64
	UpdatedObjects   int64
	ObjectsInline    int64
}

// RecordStreamUpdate stores an update status at the stream's current
// instance and then advances the instance. Returns the instance recorded,
// or ErrNotFound.
func (r *Repository) RecordStreamUpdate(ctx context.Context, p StreamUpdateParams) (int64, error) {
	var instance int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT instance FROM streams WHERE id = $1 FOR UPDATE`, p.StreamID).Scan(&instance)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO stream_updates
			   (stream_id, instance, status, indicator, transferred_up, transferred_down,
			    download_time, download_duration, new_objects, updated_objects, objects_inline)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.StreamID, instance, p.Status, p.Indicator, p.TransferredUp, p.TransferredDown,
			p.DownloadTime, p.DownloadDuration, p.NewObjects, p.UpdatedObjects, p.ObjectsInline,
		); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE streams SET instance = instance + 1 WHERE id = $1`, p.StreamID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%s - RecordStreamUpdate failed: %w", repoLogPrefix, err)
	}
	return instance, nil
}

// InsertObjectUse records a use of the object's current instance.
func (r *Repository) InsertObjectUse(ctx context.Context, objectID string, start, end, useMask int64) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO object_use (object_id, instance, start_time, end_time, use_mask)
		 SELECT id, instance, $2, $3, $4 FROM objects WHERE id = $1`,
		objectID, start, end, useMask)
	if err != nil {
		return fmt.Errorf("%s - InsertObjectUse failed: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDownloadRequest records a request to download an object.
func (r *Repository) InsertDownloadRequest(ctx context.Context, objectID string, requestType int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO download_requests (object_id, request_type) VALUES ($1, $2)`, objectID, requestType)
	if err != nil {
		return fmt.Errorf("%s - InsertDownloadRequest failed: %w", repoLogPrefix, err)
	}
	return nil
}

// MarkFilesDeleted flags the files of the object's latest instance as deleted.
func (r *Repository) MarkFilesDeleted(ctx context.Context, objectID string) error {
	return r.updateLatestStatus(ctx, objectID, `deleted = true`)
}

// PreserveFilesUntil records that the files of the latest instance must be
// kept until the given time.
func (r *Repository) PreserveFilesUntil(ctx context.Context, objectID string, until time.Time) error {
	return r.updateLatestStatus(ctx, objectID, `preserve_until = $2`, until)
}

// SetCompressedSize records the compressed size of the latest instance's files.
func (r *Repository) SetCompressedSize(ctx context.Context, objectID string, size int64) error {
	return r.updateLatestStatus(ctx, objectID, `compressed_size = $2`, size)
}

func (r *Repository) updateLatestStatus(ctx context.Context, objectID, assignment string, args ...any) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE object_instance_status SET %s
		 WHERE object_id = $1
		   AND instance = (SELECT MAX(instance) FROM object_instance_status WHERE object_id = $1)`, assignment),
		append([]any{objectID}, args...)...)
	if err != nil {
		return fmt.Errorf("%s - update latest status failed: %w", repoLogPrefix, err)
	}
	return nil
}
