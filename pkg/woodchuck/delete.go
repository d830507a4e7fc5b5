package woodchuck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/woodchuck/pkg/db"
)

const deleteLogPrefix = "woodchuck:delete"

// ManagerDelete removes a manager. With onlyIfNoDescendents it refuses when
// the manager has child managers or streams; otherwise everything below it
// goes too.
func (s *Service) ManagerDelete(ctx context.Context, id string, onlyIfNoDescendents bool) error {
	return s.delete(ctx, db.TableManagers, "manager", id, onlyIfNoDescendents)
}

// StreamDelete removes a stream, refusing when it has objects if
// onlyIfNoDescendents is set.
func (s *Service) StreamDelete(ctx context.Context, id string, onlyIfNoDescendents bool) error {
	return s.delete(ctx, db.TableStreams, "stream", id, onlyIfNoDescendents)
}

// ObjectDelete removes an object and everything recorded about it.
func (s *Service) ObjectDelete(ctx context.Context, id string) error {
	return s.delete(ctx, db.TableObjects, "object", id, false)
}

func (s *Service) delete(ctx context.Context, t db.Table, kind, id string, onlyIfNoDescendents bool) error {
	slog.Info(fmt.Sprintf("%s - %s id=%s onlyIfNoDescendents=%v", deleteLogPrefix, kind, id, onlyIfNoDescendents))

	if err := s.requireRepo(); err != nil {
		return err
	}
	if onlyIfNoDescendents {
		n, err := s.repo.CountDescendents(ctx, t, id)
		if err != nil {
			return storeFailed("CountDescendents", err)
		}
		if n > 0 {
			return Errorf(KindGeneric, "%s has descendents, not removing", id)
		}
	}
	ok, err := s.repo.Delete(ctx, t, id)
	if err != nil {
		return storeFailed("Delete", err)
	}
	if !ok {
		return noSuchObject(kind, id)
	}
	return nil
}
