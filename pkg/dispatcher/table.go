package dispatcher

import (
	"context"
	"slices"

	"github.com/morezero/woodchuck/pkg/wire"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

type handlerFunc func(ctx context.Context, core CoreService, id string, r *argReader) (result, error)

// method describes one (kind, interface, member) entry of the routing table.
type method struct {
	kind       ResourceKind
	name       string
	signatures []string
	reply      replyShape
	arity      int
	handle     handlerFunc
}

func (m *method) accepts(sig string) bool {
	return slices.Contains(m.signatures, sig)
}

func (m *method) replySignature() string {
	return replySignature(m.reply, m.arity)
}

type routeKey struct {
	kind   ResourceKind
	iface  string
	member string
}

// catalogue lists every method, grouped by kind. Order is preserved in
// introspection output.
var catalogue = []*method{
	{kind: KindRoot, name: "ManagerRegister", signatures: registerSignatures, reply: replyString, handle: register(CoreService.ManagerRegister)},
	{kind: KindRoot, name: "ListManagers", signatures: []string{"b", ""}, reply: replyTuples, arity: 4, handle: listManagers},
	{kind: KindRoot, name: "LookupManagerByCookie", signatures: []string{"sb"}, reply: replyTuples, arity: 3, handle: lookupManagerRecursive},
	{kind: KindRoot, name: "DownloadDesirability", signatures: []string{"ua(tu)"}, reply: replyPair, handle: downloadDesirability},

	{kind: KindManager, name: "ManagerRegister", signatures: registerSignatures, reply: replyString, handle: register(CoreService.ManagerRegister)},
	{kind: KindManager, name: "StreamRegister", signatures: registerSignatures, reply: replyString, handle: register(CoreService.StreamRegister)},
	{kind: KindManager, name: "ListManagers", signatures: []string{"b", ""}, reply: replyTuples, arity: 4, handle: listManagers},
	{kind: KindManager, name: "LookupManagerByCookie", signatures: []string{"s"}, reply: replyTuples, arity: 3, handle: lookupManager},
	{kind: KindManager, name: "ListStreams", signatures: []string{""}, reply: replyTuples, arity: 3, handle: list(CoreService.ListStreams)},
	{kind: KindManager, name: "LookupStreamByCookie", signatures: []string{"s"}, reply: replyTuples, arity: 2, handle: lookup(CoreService.LookupStreamByCookie)},
	{kind: KindManager, name: "Delete", signatures: []string{"b"}, reply: replyNone, handle: deleteWithPredicate(CoreService.ManagerDelete)},
	{kind: KindManager, name: "FeedbackSubscribe", signatures: []string{"b"}, reply: replyString, handle: feedbackSubscribe},
	{kind: KindManager, name: "FeedbackUnsubscribe", signatures: []string{"s"}, reply: replyNone, handle: feedbackUnsubscribe},
	{kind: KindManager, name: "FeedbackAck", signatures: []string{"su"}, reply: replyNone, handle: feedbackAck},

	{kind: KindStream, name: "ObjectRegister", signatures: registerSignatures, reply: replyString, handle: register(CoreService.ObjectRegister)},
	{kind: KindStream, name: "ListObjects", signatures: []string{""}, reply: replyTuples, arity: 3, handle: list(CoreService.ListObjects)},
	{kind: KindStream, name: "LookupObjectByCookie", signatures: []string{"s"}, reply: replyTuples, arity: 2, handle: lookup(CoreService.LookupObjectByCookie)},
	{kind: KindStream, name: "Delete", signatures: []string{"b"}, reply: replyNone, handle: deleteWithPredicate(CoreService.StreamDelete)},
	{kind: KindStream, name: "UpdateStatus", signatures: []string{"uutttuuuu"}, reply: replyNone, handle: updateStatus},

	{kind: KindObject, name: "Delete", signatures: []string{""}, reply: replyNone, handle: objectDelete},
	{kind: KindObject, name: "Download", signatures: []string{"u"}, reply: replyNone, handle: download},
	{kind: KindObject, name: "DownloadStatus", signatures: []string{"uutttuta(sbu)"}, reply: replyNone, handle: downloadStatus},
	{kind: KindObject, name: "Used", signatures: []string{"ttt"}, reply: replyNone, handle: used},
	{kind: KindObject, name: "FilesDeleted", signatures: []string{"ut"}, reply: replyNone, handle: filesDeleted},
}

// registerSignatures are the two accepted forms of a registration call;
// clients without variant support send the property bag as a{ss}.
var registerSignatures = []string{"a{sv}b", "a{ss}b"}

var routes = buildRoutes(catalogue)

func buildRoutes(methods []*method) map[routeKey]*method {
	out := make(map[routeKey]*method, len(methods))
	for _, m := range methods {
		out[routeKey{kind: m.kind, iface: m.kind.Interface(), member: m.name}] = m
	}
	return out
}

// --- handlers ---

func register(fn func(CoreService, context.Context, string, woodchuck.PropertyBag, bool) (string, error)) handlerFunc {
	return func(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
		props := r.bag()
		onlyIfUnique := r.boolean()
		if err := r.done(); err != nil {
			return result{}, err
		}
		newID, err := fn(core, ctx, id, props, onlyIfUnique)
		return result{str: newID}, err
	}
}

func list(fn func(CoreService, context.Context, string) (woodchuck.TupleList, error)) handlerFunc {
	return func(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
		if err := r.done(); err != nil {
			return result{}, err
		}
		tuples, err := fn(core, ctx, id)
		return result{tuples: tuples}, err
	}
}

func lookup(fn func(CoreService, context.Context, string, string) (woodchuck.TupleList, error)) handlerFunc {
	return func(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
		cookie := r.str()
		if err := r.done(); err != nil {
			return result{}, err
		}
		tuples, err := fn(core, ctx, id, cookie)
		return result{tuples: tuples}, err
	}
}

func listManagers(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	recurse := true
	if r.has() {
		recurse = r.boolean()
	}
	if err := r.done(); err != nil {
		return result{}, err
	}
	tuples, err := core.ListManagers(ctx, id, recurse)
	return result{tuples: tuples}, err
}

func lookupManagerRecursive(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	cookie := r.str()
	recurse := r.boolean()
	if err := r.done(); err != nil {
		return result{}, err
	}
	tuples, err := core.LookupManagerByCookie(ctx, id, cookie, recurse)
	return result{tuples: tuples}, err
}

func lookupManager(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	cookie := r.str()
	if err := r.done(); err != nil {
		return result{}, err
	}
	tuples, err := core.LookupManagerByCookie(ctx, id, cookie, true)
	return result{tuples: tuples}, err
}

func deleteWithPredicate(fn func(CoreService, context.Context, string, bool) error) handlerFunc {
	return func(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
		onlyIfNoDescendents := r.boolean()
		if err := r.done(); err != nil {
			return result{}, err
		}
		return result{}, fn(core, ctx, id, onlyIfNoDescendents)
	}
}

func objectDelete(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.ObjectDelete(ctx, id)
}

func downloadDesirability(ctx context.Context, core CoreService, _ string, r *argReader) (result, error) {
	requestType := r.u32()
	rows := r.structs("t", "u")
	if err := r.done(); err != nil {
		return result{}, err
	}
	versions := make([]woodchuck.DesirabilityVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, woodchuck.DesirabilityVersion{
			ExpectedSize: uint64(row[0].(wire.U64)),
			Utility:      uint32(row[1].(wire.U32)),
		})
	}
	desirability, version, err := core.DownloadDesirability(ctx, requestType, versions)
	return result{pair: [2]uint32{desirability, version}}, err
}

func feedbackSubscribe(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	descendentsToo := r.boolean()
	if err := r.done(); err != nil {
		return result{}, err
	}
	handle, err := core.FeedbackSubscribe(ctx, id, descendentsToo)
	return result{str: handle}, err
}

func feedbackUnsubscribe(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	handle := r.str()
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.FeedbackUnsubscribe(ctx, id, handle)
}

func feedbackAck(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	objectID := r.str()
	instance := r.u32()
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.FeedbackAck(ctx, id, objectID, instance)
}

func download(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	requestType := r.u32()
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.Download(ctx, id, requestType)
}

func downloadStatus(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	report := &woodchuck.DownloadStatusReport{
		Status:           woodchuck.DownloadStatus(r.u32()),
		Indicator:        r.u32(),
		TransferredUp:    r.u64(),
		TransferredDown:  r.u64(),
		DownloadTime:     r.u64(),
		DownloadDuration: r.u32(),
		ObjectSize:       r.u64(),
	}
	rows := r.structs("s", "b", "u")
	if err := r.done(); err != nil {
		return result{}, err
	}
	report.Files = make([]woodchuck.StatusFile, 0, len(rows))
	for _, row := range rows {
		report.Files = append(report.Files, woodchuck.StatusFile{
			Filename:       string(row[0].(wire.Str)),
			Dedicated:      bool(row[1].(wire.Bool)),
			DeletionPolicy: woodchuck.DeletionPolicy(row[2].(wire.U32)),
		})
	}
	return result{}, core.DownloadStatus(ctx, id, report)
}

func updateStatus(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	report := &woodchuck.UpdateStatusReport{
		Status:           woodchuck.DownloadStatus(r.u32()),
		Indicator:        r.u32(),
		TransferredUp:    r.u64(),
		TransferredDown:  r.u64(),
		DownloadTime:     r.u64(),
		DownloadDuration: r.u32(),
		NewObjects:       r.u32(),
		UpdatedObjects:   r.u32(),
		ObjectsInline:    r.u32(),
	}
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.UpdateStatus(ctx, id, report)
}

func used(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	start := r.u64()
	end := r.u64()
	useMask := r.u64()
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.Used(ctx, id, start, end, useMask)
}

func filesDeleted(ctx context.Context, core CoreService, id string, r *argReader) (result, error) {
	kind := r.u32()
	arg := r.u64()
	if err := r.done(); err != nil {
		return result{}, err
	}
	return result{}, core.FilesDeleted(ctx, id, woodchuck.FilesDeletedKind(kind), arg)
}
