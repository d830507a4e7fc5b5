// Package woodchuck implements the Core Service behind the woodchuck
// resource API: registration, listing and deletion of managers, streams
// and objects, status reports, and feedback upcalls.
package woodchuck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/woodchuck/pkg/db"
	"github.com/morezero/woodchuck/pkg/events"
)

const serviceLogPrefix = "woodchuck:service"

// Service is the Core Service. All state lives in the repository.
type Service struct {
	repo      *db.Repository
	publisher events.UpcallPublisher
	now       func() time.Time
}

// NewServiceParams holds parameters for NewService.
type NewServiceParams struct {
	Repo      *db.Repository
	Publisher events.UpcallPublisher
	// Now overrides the clock (for tests).
	Now func() time.Time
}

// NewService creates a new Service.
func NewService(params NewServiceParams) *Service {
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, publisher: pub, now: now}
}

// newID returns a fresh identifier: a random UUID as 32 lowercase hex characters.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// requireRepo returns an error if the repository is not configured (e.g. in tests with nil repo).
func (s *Service) requireRepo() error {
	if s.repo == nil {
		return internalError("repository not configured")
	}
	return nil
}

// storeFailed logs a repository failure and converts it to an internal error.
func storeFailed(op string, err error) error {
	slog.Error(fmt.Sprintf("%s - %s failed: %v", serviceLogPrefix, op, err))
	return internalError(fmt.Sprintf("%s failed", op))
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// requireManager returns NoSuchObject unless the manager exists.
func (s *Service) requireManager(ctx context.Context, id string) error {
	m, err := s.repo.GetManager(ctx, id)
	if err != nil {
		return storeFailed("GetManager", err)
	}
	if m == nil {
		return noSuchObject("manager", id)
	}
	return nil
}

// requireStream returns NoSuchObject unless the stream exists.
func (s *Service) requireStream(ctx context.Context, id string) error {
	st, err := s.repo.GetStream(ctx, id)
	if err != nil {
		return storeFailed("GetStream", err)
	}
	if st == nil {
		return noSuchObject("stream", id)
	}
	return nil
}

// objectOwner locates an object, or returns NoSuchObject.
func (s *Service) objectOwner(ctx context.Context, id string) (*db.Owner, error) {
	owner, err := s.repo.ObjectOwner(ctx, id)
	if err != nil {
		return nil, storeFailed("ObjectOwner", err)
	}
	if owner == nil {
		return nil, noSuchObject("object", id)
	}
	return owner, nil
}
