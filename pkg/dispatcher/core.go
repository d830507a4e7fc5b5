package dispatcher

import (
	"context"

	"github.com/morezero/woodchuck/pkg/woodchuck"
)

// CoreService performs the operations the dispatcher routes to. A nil
// error means success; failures should be *woodchuck.Error. Resource ids
// are the hex ids taken from the object path, and an empty parent id
// addresses the root.
type CoreService interface {
	ManagerRegister(ctx context.Context, parentID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error)
	StreamRegister(ctx context.Context, managerID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error)
	ObjectRegister(ctx context.Context, streamID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error)

	ListManagers(ctx context.Context, parentID string, recurse bool) (woodchuck.TupleList, error)
	LookupManagerByCookie(ctx context.Context, parentID, cookie string, recurse bool) (woodchuck.TupleList, error)
	ListStreams(ctx context.Context, managerID string) (woodchuck.TupleList, error)
	LookupStreamByCookie(ctx context.Context, managerID, cookie string) (woodchuck.TupleList, error)
	ListObjects(ctx context.Context, streamID string) (woodchuck.TupleList, error)
	LookupObjectByCookie(ctx context.Context, streamID, cookie string) (woodchuck.TupleList, error)

	ManagerDelete(ctx context.Context, managerID string, onlyIfNoDescendents bool) error
	StreamDelete(ctx context.Context, streamID string, onlyIfNoDescendents bool) error
	ObjectDelete(ctx context.Context, objectID string) error

	DownloadDesirability(ctx context.Context, requestType uint32, versions []woodchuck.DesirabilityVersion) (desirability, version uint32, err error)

	FeedbackSubscribe(ctx context.Context, managerID string, descendentsToo bool) (string, error)
	FeedbackUnsubscribe(ctx context.Context, managerID, handle string) error
	FeedbackAck(ctx context.Context, managerID, objectID string, instance uint32) error

	Download(ctx context.Context, objectID string, requestType uint32) error
	DownloadStatus(ctx context.Context, objectID string, report *woodchuck.DownloadStatusReport) error
	UpdateStatus(ctx context.Context, streamID string, report *woodchuck.UpdateStatusReport) error
	Used(ctx context.Context, objectID string, start, end, useMask uint64) error
	FilesDeleted(ctx context.Context, objectID string, kind woodchuck.FilesDeletedKind, arg uint64) error
}

var _ CoreService = (*woodchuck.Service)(nil)
