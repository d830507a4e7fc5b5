package woodchuck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/woodchuck/pkg/db"
)

const registerLogPrefix = "woodchuck:register"

// ManagerRegister registers a manager under parentID ("" for top level)
// and returns its id.
func (s *Service) ManagerRegister(ctx context.Context, parentID string, bag PropertyBag, onlyIfUnique bool) (string, error) {
	slog.Info(fmt.Sprintf("%s - manager parent=%q unique=%v", registerLogPrefix, parentID, onlyIfUnique))

	props, err := parseProperties(managerProperties, bag)
	if err != nil {
		return "", err
	}
	if err := s.requireRepo(); err != nil {
		return "", err
	}
	if parentID != "" {
		if err := s.requireManager(ctx, parentID); err != nil {
			return "", err
		}
	}
	if err := s.checkCookie(ctx, db.TableManagers, "manager", parentID, props, onlyIfUnique); err != nil {
		return "", err
	}

	m := &db.Manager{
		ID:                newID(),
		HumanReadableName: props.name(),
		DBusServiceName:   props.str("DBusServiceName"),
		DBusObject:        props.str("DBusObject"),
		Cookie:            props.str("Cookie"),
		Priority:          props.integer("Priority"),
	}
	if parentID != "" {
		m.ParentID = &parentID
	}
	if err := s.repo.InsertManager(ctx, m); err != nil {
		return "", storeFailed("InsertManager", err)
	}
	return m.ID, nil
}

// StreamRegister registers a stream under a manager and returns its id.
func (s *Service) StreamRegister(ctx context.Context, managerID string, bag PropertyBag, onlyIfUnique bool) (string, error) {
	slog.Info(fmt.Sprintf("%s - stream manager=%s unique=%v", registerLogPrefix, managerID, onlyIfUnique))

	props, err := parseProperties(streamProperties, bag)
	if err != nil {
		return "", err
	}
	if err := s.requireRepo(); err != nil {
		return "", err
	}
	if err := s.requireManager(ctx, managerID); err != nil {
		return "", err
	}
	if err := s.checkCookie(ctx, db.TableStreams, "stream", managerID, props, onlyIfUnique); err != nil {
		return "", err
	}

	st := &db.Stream{
		ID:                  newID(),
		ManagerID:           managerID,
		HumanReadableName:   props.name(),
		Cookie:              props.str("Cookie"),
		Priority:            props.integer("Priority"),
		Freshness:           props.integer("Freshness"),
		ObjectsMostlyInline: props.boolean("ObjectsMostlyInline"),
	}
	if err := s.repo.InsertStream(ctx, st); err != nil {
		return "", storeFailed("InsertStream", err)
	}
	return st.ID, nil
}

// ObjectRegister registers an object under a stream and returns its id.
func (s *Service) ObjectRegister(ctx context.Context, streamID string, bag PropertyBag, onlyIfUnique bool) (string, error) {
	slog.Info(fmt.Sprintf("%s - object stream=%s unique=%v", registerLogPrefix, streamID, onlyIfUnique))

	props, err := parseProperties(objectProperties, bag)
	if err != nil {
		return "", err
	}
	if err := s.requireRepo(); err != nil {
		return "", err
	}
	if err := s.requireStream(ctx, streamID); err != nil {
		return "", err
	}
	if err := s.checkCookie(ctx, db.TableObjects, "object", streamID, props, onlyIfUnique); err != nil {
		return "", err
	}

	o := &db.Object{
		ID:                newID(),
		StreamID:          streamID,
		HumanReadableName: props.name(),
		Cookie:            props.str("Cookie"),
		Filename:          props.str("Filename"),
		Wakeup:            props.boolean("Wakeup"),
		TriggerTarget:     props.integer("TriggerTarget"),
		TriggerEarliest:   props.integer("TriggerEarliest"),
		TriggerLatest:     props.integer("TriggerLatest"),
		DownloadFrequency: props.integer("DownloadFrequency"),
		Priority:          props.integer("Priority"),
	}
	versions := make([]db.ObjectVersion, 0, len(props.versions()))
	for i, v := range props.versions() {
		versions = append(versions, db.ObjectVersion{
			Version:             i,
			URL:                 v.URL,
			ExpectedSize:        int64(v.ExpectedSize),
			Utility:             int64(v.Utility),
			UseSimpleDownloader: v.UseSimpleDownloader,
		})
	}
	if err := s.repo.InsertObject(ctx, o, versions); err != nil {
		return "", storeFailed("InsertObject", err)
	}
	return o.ID, nil
}

// checkCookie enforces onlyIfUnique: the new resource needs a cookie no
// sibling already uses.
func (s *Service) checkCookie(ctx context.Context, t db.Table, kind, parentID string, props properties, onlyIfUnique bool) error {
	if !onlyIfUnique {
		return nil
	}
	cookie := props.str("Cookie")
	if cookie == nil {
		return Errorf(KindObjectExists, "Cookie NULL not unique")
	}
	other, err := s.repo.SiblingByCookie(ctx, t, parentID, *cookie)
	if err != nil {
		return storeFailed("SiblingByCookie", err)
	}
	if other != "" {
		return Errorf(KindObjectExists, "Cookie '%s' not unique. Other %s with cookie: %s", *cookie, kind, other)
	}
	return nil
}
