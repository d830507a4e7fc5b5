package woodchuck

import (
	"context"

	"github.com/morezero/woodchuck/pkg/db"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Listing columns.
const (
	colID = iota
	colCookie
	colName
	colParent
)

// tuples projects listing rows onto the given columns.
func tuples(rows []db.Listing, cols ...int) TupleList {
	out := make(TupleList, 0, len(rows))
	for _, r := range rows {
		t := make(Tuple, 0, len(cols))
		for _, c := range cols {
			switch c {
			case colID:
				t = append(t, r.ID)
			case colCookie:
				t = append(t, deref(r.Cookie))
			case colName:
				t = append(t, r.Name)
			case colParent:
				t = append(t, deref(r.ParentID))
			}
		}
		out = append(out, t)
	}
	return out
}

// ListManagers lists the managers under parentID ("" for top level) as
// (id, cookie, name, parentId) tuples, with parentId "" for top-level
// managers. With recurse, all descendants are listed.
func (s *Service) ListManagers(ctx context.Context, parentID string, recurse bool) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if parentID != "" {
		if err := s.requireManager(ctx, parentID); err != nil {
			return nil, err
		}
	}
	rows, err := s.repo.ListManagers(ctx, parentID, recurse)
	if err != nil {
		return nil, storeFailed("ListManagers", err)
	}
	return tuples(rows, colID, colCookie, colName, colParent), nil
}

// LookupManagerByCookie finds the managers under parentID with the given
// cookie as (id, name, parentId) tuples.
func (s *Service) LookupManagerByCookie(ctx context.Context, parentID, cookie string, recurse bool) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if parentID != "" {
		if err := s.requireManager(ctx, parentID); err != nil {
			return nil, err
		}
	}
	rows, err := s.repo.LookupManagersByCookie(ctx, parentID, cookie, recurse)
	if err != nil {
		return nil, storeFailed("LookupManagersByCookie", err)
	}
	return tuples(rows, colID, colName, colParent), nil
}

// ListStreams lists a manager's streams as (id, cookie, name) tuples.
func (s *Service) ListStreams(ctx context.Context, managerID string) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, managerID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStreams(ctx, managerID)
	if err != nil {
		return nil, storeFailed("ListStreams", err)
	}
	return tuples(rows, colID, colCookie, colName), nil
}

// LookupStreamByCookie finds a manager's streams with the given cookie as
// (id, name) tuples.
func (s *Service) LookupStreamByCookie(ctx context.Context, managerID, cookie string) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, managerID); err != nil {
		return nil, err
	}
	rows, err := s.repo.LookupStreamsByCookie(ctx, managerID, cookie)
	if err != nil {
		return nil, storeFailed("LookupStreamsByCookie", err)
	}
	return tuples(rows, colID, colName), nil
}

// ListObjects lists a stream's objects as (id, cookie, name) tuples.
func (s *Service) ListObjects(ctx context.Context, streamID string) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if err := s.requireStream(ctx, streamID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListObjects(ctx, streamID)
	if err != nil {
		return nil, storeFailed("ListObjects", err)
	}
	return tuples(rows, colID, colCookie, colName), nil
}

// LookupObjectByCookie finds a stream's objects with the given cookie as
// (id, name) tuples.
func (s *Service) LookupObjectByCookie(ctx context.Context, streamID, cookie string) (TupleList, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if err := s.requireStream(ctx, streamID); err != nil {
		return nil, err
	}
	rows, err := s.repo.LookupObjectsByCookie(ctx, streamID, cookie)
	if err != nil {
		return nil, storeFailed("LookupObjectsByCookie", err)
	}
	return tuples(rows, colID, colName), nil
}
