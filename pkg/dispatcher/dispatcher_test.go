package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/morezero/woodchuck/pkg/wire"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

const dispatcherTestPrefix = "dispatcher:dispatcher_test"

// fakeCore records the last call and returns canned results.
type fakeCore struct {
	calls []string

	id        string
	props     woodchuck.PropertyBag
	unique    bool
	recurse   bool
	cookie    string
	predicate bool
	versions  []woodchuck.DesirabilityVersion
	download  *woodchuck.DownloadStatusReport
	update    *woodchuck.UpdateStatusReport
	u32s      []uint32
	u64s      []uint64

	newID  string
	tuples woodchuck.TupleList
	pair   [2]uint32
	err    error
}

func (f *fakeCore) record(name, id string) { f.calls = append(f.calls, name); f.id = id }

func (f *fakeCore) ManagerRegister(_ context.Context, id string, props woodchuck.PropertyBag, unique bool) (string, error) {
	f.record("ManagerRegister", id)
	f.props, f.unique = props, unique
	return f.newID, f.err
}

func (f *fakeCore) StreamRegister(_ context.Context, id string, props woodchuck.PropertyBag, unique bool) (string, error) {
	f.record("StreamRegister", id)
	f.props, f.unique = props, unique
	return f.newID, f.err
}

func (f *fakeCore) ObjectRegister(_ context.Context, id string, props woodchuck.PropertyBag, unique bool) (string, error) {
	f.record("ObjectRegister", id)
	f.props, f.unique = props, unique
	return f.newID, f.err
}

func (f *fakeCore) ListManagers(_ context.Context, id string, recurse bool) (woodchuck.TupleList, error) {
	f.record("ListManagers", id)
	f.recurse = recurse
	return f.tuples, f.err
}

func (f *fakeCore) LookupManagerByCookie(_ context.Context, id, cookie string, recurse bool) (woodchuck.TupleList, error) {
	f.record("LookupManagerByCookie", id)
	f.cookie, f.recurse = cookie, recurse
	return f.tuples, f.err
}

func (f *fakeCore) ListStreams(_ context.Context, id string) (woodchuck.TupleList, error) {
	f.record("ListStreams", id)
	return f.tuples, f.err
}

func (f *fakeCore) LookupStreamByCookie(_ context.Context, id, cookie string) (woodchuck.TupleList, error) {
	f.record("LookupStreamByCookie", id)
	f.cookie = cookie
	return f.tuples, f.err
}

func (f *fakeCore) ListObjects(_ context.Context, id string) (woodchuck.TupleList, error) {
	f.record("ListObjects", id)
	return f.tuples, f.err
}

func (f *fakeCore) LookupObjectByCookie(_ context.Context, id, cookie string) (woodchuck.TupleList, error) {
	f.record("LookupObjectByCookie", id)
	f.cookie = cookie
	return f.tuples, f.err
}

func (f *fakeCore) ManagerDelete(_ context.Context, id string, onlyIfNoDescendents bool) error {
	f.record("ManagerDelete", id)
	f.predicate = onlyIfNoDescendents
	return f.err
}

func (f *fakeCore) StreamDelete(_ context.Context, id string, onlyIfNoDescendents bool) error {
	f.record("StreamDelete", id)
	f.predicate = onlyIfNoDescendents
	return f.err
}

func (f *fakeCore) ObjectDelete(_ context.Context, id string) error {
	f.record("ObjectDelete", id)
	return f.err
}

func (f *fakeCore) DownloadDesirability(_ context.Context, requestType uint32, versions []woodchuck.DesirabilityVersion) (uint32, uint32, error) {
	f.record("DownloadDesirability", "")
	f.u32s = []uint32{requestType}
	f.versions = versions
	return f.pair[0], f.pair[1], f.err
}

func (f *fakeCore) FeedbackSubscribe(_ context.Context, id string, descendentsToo bool) (string, error) {
	f.record("FeedbackSubscribe", id)
	f.predicate = descendentsToo
	return f.newID, f.err
}

func (f *fakeCore) FeedbackUnsubscribe(_ context.Context, id, handle string) error {
	f.record("FeedbackUnsubscribe", id)
	f.cookie = handle
	return f.err
}

func (f *fakeCore) FeedbackAck(_ context.Context, id, objectID string, instance uint32) error {
	f.record("FeedbackAck", id)
	f.cookie = objectID
	f.u32s = []uint32{instance}
	return f.err
}

func (f *fakeCore) Download(_ context.Context, id string, requestType uint32) error {
	f.record("Download", id)
	f.u32s = []uint32{requestType}
	return f.err
}

func (f *fakeCore) DownloadStatus(_ context.Context, id string, report *woodchuck.DownloadStatusReport) error {
	f.record("DownloadStatus", id)
	f.download = report
	return f.err
}

func (f *fakeCore) UpdateStatus(_ context.Context, id string, report *woodchuck.UpdateStatusReport) error {
	f.record("UpdateStatus", id)
	f.update = report
	return f.err
}

func (f *fakeCore) Used(_ context.Context, id string, start, end, useMask uint64) error {
	f.record("Used", id)
	f.u64s = []uint64{start, end, useMask}
	return f.err
}

func (f *fakeCore) FilesDeleted(_ context.Context, id string, kind woodchuck.FilesDeletedKind, arg uint64) error {
	f.record("FilesDeleted", id)
	f.u32s = []uint32{uint32(kind)}
	f.u64s = []uint64{arg}
	return f.err
}

func newCall(t *testing.T, path, iface, member string, args ...wire.Value) *MethodCall {
	t.Helper()
	sig, body, err := wire.Encode(args...)
	if err != nil {
		t.Fatalf("%s - encode args: %v", dispatcherTestPrefix, err)
	}
	return &MethodCall{ID: "call-1", Path: path, Interface: iface, Member: member, Signature: sig, Body: body}
}

func replyValues(t *testing.T, reply *Reply) []wire.Value {
	t.Helper()
	it, err := wire.NewIter(reply.Signature, reply.Body)
	if err != nil {
		t.Fatalf("%s - reply iter: %v", dispatcherTestPrefix, err)
	}
	var out []wire.Value
	for it.ArgType() != wire.TypeInvalid {
		v, err := wire.DecodeValue(it)
		if err != nil {
			t.Fatalf("%s - reply decode: %v", dispatcherTestPrefix, err)
		}
		out = append(out, v)
		if err := it.Next(); err != nil {
			t.Fatalf("%s - reply next: %v", dispatcherTestPrefix, err)
		}
	}
	if err := it.Close(); err != nil {
		t.Fatalf("%s - reply close: %v", dispatcherTestPrefix, err)
	}
	return out
}

func expectError(t *testing.T, reply *Reply, code string) *ErrorDetail {
	t.Helper()
	if reply.Ok() {
		t.Fatalf("%s - expected %s error, got success (sig %q)", dispatcherTestPrefix, code, reply.Signature)
	}
	if reply.Error.Code != code {
		t.Fatalf("%s - expected code %s, got %s (%s)", dispatcherTestPrefix, code, reply.Error.Code, reply.Error.Message)
	}
	if reply.Body != nil || reply.Signature != "" {
		t.Errorf("%s - error reply carries a payload", dispatcherTestPrefix)
	}
	return reply.Error
}

func expectOK(t *testing.T, reply *Reply) {
	t.Helper()
	if !reply.Ok() {
		t.Fatalf("%s - expected success, got %s: %s", dispatcherTestPrefix, reply.Error.Code, reply.Error.Message)
	}
}

func TestDispatch_UnknownObject(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	for _, path := range []string{"/org/woodchuck/manager/0a1b2cZ", "/org/woodchuck/widget/ab", "/elsewhere"} {
		reply := disp.Dispatch(context.Background(), newCall(t, path, InterfaceManager, "ListStreams"))
		detail := expectError(t, reply, CodeUnknownObject)
		if detail.Name != NameUnknownObject {
			t.Errorf("%s - name = %s, want %s", dispatcherTestPrefix, detail.Name, NameUnknownObject)
		}
		if detail.Message != path+": No such object." {
			t.Errorf("%s - message = %q", dispatcherTestPrefix, detail.Message)
		}
	}
	if len(core.calls) != 0 {
		t.Errorf("%s - core called on unresolvable path: %v", dispatcherTestPrefix, core.calls)
	}
}

func TestDispatch_UnknownInterface(t *testing.T) {
	paths := map[ResourceKind]string{
		KindRoot:    RootPath,
		KindManager: ObjectPath(KindManager, "ab"),
		KindStream:  ObjectPath(KindStream, "cd"),
		KindObject:  ObjectPath(KindObject, "ef"),
	}
	disp := NewDispatcher(&fakeCore{})
	for _, m := range catalogue {
		for kind, path := range paths {
			if kind == m.kind {
				continue
			}
			call := &MethodCall{ID: "x", Path: path, Interface: m.kind.Interface(), Member: m.name, Signature: m.signatures[0]}
			reply := disp.Dispatch(context.Background(), call)
			detail := expectError(t, reply, CodeUnknownInterface)
			if detail.Name != NameUnknownInterface {
				t.Errorf("%s - name = %s", dispatcherTestPrefix, detail.Name)
			}
		}
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	disp := NewDispatcher(&fakeCore{})
	path := ObjectPath(KindStream, "0a1b2c")
	reply := disp.Dispatch(context.Background(), newCall(t, path, InterfaceStream, "ListStreams"))
	detail := expectError(t, reply, CodeUnknownMethod)
	for _, want := range []string{path, InterfaceStream, "ListStreams"} {
		if !strings.Contains(detail.Message, want) {
			t.Errorf("%s - message %q should contain %q", dispatcherTestPrefix, detail.Message, want)
		}
	}
	if detail.Retryable {
		t.Errorf("%s - UnknownMethod should not be retryable", dispatcherTestPrefix)
	}
}

func TestDispatch_PreservesCallID(t *testing.T) {
	disp := NewDispatcher(&fakeCore{})
	for _, id := range []string{"req-1", "unique-abc-123", ""} {
		call := newCall(t, RootPath, InterfaceRoot, "Nope")
		call.ID = id
		if reply := disp.Dispatch(context.Background(), call); reply.ID != id {
			t.Errorf("%s - reply ID = %q, want %q", dispatcherTestPrefix, reply.ID, id)
		}
	}
}

func TestDispatch_SignatureMismatch(t *testing.T) {
	tests := []struct {
		name string
		args []wire.Value
	}{
		{"one char off", []wire.Value{wire.U64(1)}},
		{"extra trailing", []wire.Value{wire.Str("c"), wire.Bool(true), wire.U32(1)}},
		{"wrong order", []wire.Value{wire.Bool(true), wire.Str("c")}},
		{"missing", nil},
	}
	core := &fakeCore{}
	disp := NewDispatcher(core)
	for _, tt := range tests {
		call := newCall(t, RootPath, InterfaceRoot, "LookupManagerByCookie", tt.args...)
		detail := expectError(t, disp.Dispatch(context.Background(), call), CodeInvalidArguments)
		if !strings.Contains(detail.Message, "Expected sb got "+call.Signature) {
			t.Errorf("%s - %s: message %q should name both signatures", dispatcherTestPrefix, tt.name, detail.Message)
		}
	}
	if len(core.calls) != 0 {
		t.Errorf("%s - core called despite bad signature: %v", dispatcherTestPrefix, core.calls)
	}
}

func TestDispatch_MalformedBody(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	call := &MethodCall{Path: ObjectPath(KindObject, "ab"), Interface: InterfaceObject, Member: "Used", Signature: "ttt", Body: []byte{1, 2, 3}}
	detail := expectError(t, disp.Dispatch(context.Background(), call), CodeInvalidArguments)
	if detail.Name != NameInvalidArgs {
		t.Errorf("%s - name = %s", dispatcherTestPrefix, detail.Name)
	}
	if len(core.calls) != 0 {
		t.Errorf("%s - core called with undecodable body", dispatcherTestPrefix)
	}
}

func TestDispatch_TrailingBytes(t *testing.T) {
	disp := NewDispatcher(&fakeCore{})
	call := newCall(t, ObjectPath(KindObject, "ab"), InterfaceObject, "Download", wire.U32(1))
	call.Body = append(call.Body, 0)
	expectError(t, disp.Dispatch(context.Background(), call), CodeInvalidArguments)
}

func TestDispatch_ListStreams(t *testing.T) {
	core := &fakeCore{tuples: woodchuck.TupleList{{"id1", "cookie1", "Foo"}}}
	disp := NewDispatcher(core)
	reply := disp.Dispatch(context.Background(), newCall(t, "/org/woodchuck/manager/0a1b2c", InterfaceManager, "ListStreams"))
	expectOK(t, reply)
	if reply.Signature != "a(sss)" {
		t.Errorf("%s - signature = %q, want a(sss)", dispatcherTestPrefix, reply.Signature)
	}
	want := []wire.Value{wire.Array{ElemSig: "(sss)", Elems: []wire.Value{
		wire.Struct{wire.Str("id1"), wire.Str("cookie1"), wire.Str("Foo")},
	}}}
	if diff := cmp.Diff(want, replyValues(t, reply)); diff != "" {
		t.Errorf("%s - reply mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
	if core.id != "0a1b2c" {
		t.Errorf("%s - core got id %q, want 0a1b2c", dispatcherTestPrefix, core.id)
	}
}

func TestDispatch_ListStreamsEmpty(t *testing.T) {
	disp := NewDispatcher(&fakeCore{})
	reply := disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "ListStreams"))
	expectOK(t, reply)
	if reply.Signature != "a(sss)" {
		t.Fatalf("%s - signature = %q, want a(sss)", dispatcherTestPrefix, reply.Signature)
	}
	want := []wire.Value{wire.Array{ElemSig: "(sss)", Elems: []wire.Value{}}}
	if diff := cmp.Diff(want, replyValues(t, reply)); diff != "" {
		t.Errorf("%s - reply mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
}

func TestDispatch_ManagerRegister(t *testing.T) {
	core := &fakeCore{newID: "deadbeef"}
	disp := NewDispatcher(core)
	call := newCall(t, RootPath, InterfaceRoot, "ManagerRegister", wire.Dict{"Cookie": wire.Str("abc")}, wire.Bool(false))
	if call.Signature != "a{sv}b" {
		t.Fatalf("%s - call signature = %q", dispatcherTestPrefix, call.Signature)
	}
	reply := disp.Dispatch(context.Background(), call)
	expectOK(t, reply)
	if diff := cmp.Diff([]wire.Value{wire.Str("deadbeef")}, replyValues(t, reply)); diff != "" {
		t.Errorf("%s - reply mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
	if diff := cmp.Diff(woodchuck.PropertyBag{"Cookie": wire.Str("abc")}, core.props); diff != "" {
		t.Errorf("%s - props mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
	if core.unique || core.id != "" {
		t.Errorf("%s - unique=%v id=%q, want false and root", dispatcherTestPrefix, core.unique, core.id)
	}
}

func TestDispatch_ManagerRegisterStringBag(t *testing.T) {
	core := &fakeCore{newID: "0123"}
	disp := NewDispatcher(core)
	w := wire.NewWriter()
	if err := w.AppendAs("a{ss}", wire.Dict{"HumanReadableName": wire.Str("Feeds")}); err != nil {
		t.Fatalf("%s - AppendAs: %v", dispatcherTestPrefix, err)
	}
	if err := w.Append(wire.Bool(true)); err != nil {
		t.Fatalf("%s - Append: %v", dispatcherTestPrefix, err)
	}
	call := &MethodCall{Path: ObjectPath(KindManager, "ab"), Interface: InterfaceManager, Member: "StreamRegister", Signature: w.Signature(), Body: w.Bytes()}
	expectOK(t, disp.Dispatch(context.Background(), call))
	if core.calls[0] != "StreamRegister" || core.id != "ab" || !core.unique {
		t.Errorf("%s - unexpected core call %v id=%q unique=%v", dispatcherTestPrefix, core.calls, core.id, core.unique)
	}
}

func TestDispatch_OperationFailed(t *testing.T) {
	core := &fakeCore{err: woodchuck.Errorf(woodchuck.KindObjectExists, "duplicate cookie")}
	disp := NewDispatcher(core)
	call := newCall(t, RootPath, InterfaceRoot, "ManagerRegister", wire.Dict{"Cookie": wire.Str("abc")}, wire.Bool(false))
	detail := expectError(t, disp.Dispatch(context.Background(), call), CodeOperationFailed)
	if !strings.Contains(detail.Message, "duplicate cookie") {
		t.Errorf("%s - message %q should contain the core message", dispatcherTestPrefix, detail.Message)
	}
	if detail.Name != "org.woodchuck.ObjectExists" {
		t.Errorf("%s - name = %s, want org.woodchuck.ObjectExists", dispatcherTestPrefix, detail.Name)
	}
	if detail.Retryable {
		t.Errorf("%s - ObjectExists should not be retryable", dispatcherTestPrefix)
	}
}

func TestDispatch_OperationFailedKindString(t *testing.T) {
	core := &fakeCore{err: &woodchuck.Error{Kind: woodchuck.KindNotImplemented}}
	disp := NewDispatcher(core)
	call := newCall(t, ObjectPath(KindObject, "ab"), InterfaceObject, "Download", wire.U32(0))
	detail := expectError(t, disp.Dispatch(context.Background(), call), CodeOperationFailed)
	want := "/org/woodchuck/object/ab: org.woodchuck.object.Download: Method not implemented."
	if detail.Message != want {
		t.Errorf("%s - message = %q, want %q", dispatcherTestPrefix, detail.Message, want)
	}
}

func TestDispatch_PlainErrorIsInternal(t *testing.T) {
	core := &fakeCore{err: errors.New("connection reset")}
	disp := NewDispatcher(core)
	detail := expectError(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "ListStreams")), CodeOperationFailed)
	if detail.Name != "org.woodchuck.InternalError" || !detail.Retryable {
		t.Errorf("%s - got name=%s retryable=%v, want InternalError retryable", dispatcherTestPrefix, detail.Name, detail.Retryable)
	}
}

func TestDispatch_NilCore(t *testing.T) {
	disp := &Dispatcher{routes: routes}
	detail := expectError(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "ListStreams")), CodeOperationFailed)
	if !detail.Retryable {
		t.Errorf("%s - missing core should be retryable", dispatcherTestPrefix)
	}
}

func TestDispatch_TupleArityFault(t *testing.T) {
	core := &fakeCore{tuples: woodchuck.TupleList{{"id1", "Foo"}}}
	disp := NewDispatcher(core)
	detail := expectError(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindStream, "ab"), InterfaceStream, "ListObjects")), CodeOperationFailed)
	if detail.Name != "org.woodchuck.InternalError" {
		t.Errorf("%s - name = %s, want org.woodchuck.InternalError", dispatcherTestPrefix, detail.Name)
	}
}

func TestDispatch_ListManagersOptionalRecurse(t *testing.T) {
	core := &fakeCore{tuples: woodchuck.TupleList{{"a", "c", "n", ""}}}
	disp := NewDispatcher(core)

	reply := disp.Dispatch(context.Background(), newCall(t, RootPath, InterfaceRoot, "ListManagers"))
	expectOK(t, reply)
	if !core.recurse {
		t.Errorf("%s - ListManagers without argument should recurse", dispatcherTestPrefix)
	}
	if reply.Signature != "a(ssss)" {
		t.Errorf("%s - signature = %q, want a(ssss)", dispatcherTestPrefix, reply.Signature)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "ListManagers", wire.Bool(false))))
	if core.recurse || core.id != "ab" {
		t.Errorf("%s - recurse=%v id=%q, want false ab", dispatcherTestPrefix, core.recurse, core.id)
	}
}

func TestDispatch_LookupManagerByCookie(t *testing.T) {
	core := &fakeCore{tuples: woodchuck.TupleList{{"a", "n", ""}}}
	disp := NewDispatcher(core)

	reply := disp.Dispatch(context.Background(), newCall(t, RootPath, InterfaceRoot, "LookupManagerByCookie", wire.Str("ck"), wire.Bool(false)))
	expectOK(t, reply)
	if core.cookie != "ck" || core.recurse {
		t.Errorf("%s - root lookup got cookie=%q recurse=%v", dispatcherTestPrefix, core.cookie, core.recurse)
	}
	if reply.Signature != "a(sss)" {
		t.Errorf("%s - signature = %q", dispatcherTestPrefix, reply.Signature)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "LookupManagerByCookie", wire.Str("ck2"))))
	if core.cookie != "ck2" || !core.recurse || core.id != "ab" {
		t.Errorf("%s - manager lookup got cookie=%q recurse=%v id=%q", dispatcherTestPrefix, core.cookie, core.recurse, core.id)
	}
}

func TestDispatch_LookupStreamReply(t *testing.T) {
	core := &fakeCore{tuples: woodchuck.TupleList{{"s1", "Stream"}}}
	disp := NewDispatcher(core)
	reply := disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "LookupStreamByCookie", wire.Str("c")))
	expectOK(t, reply)
	if reply.Signature != "a(ss)" {
		t.Errorf("%s - signature = %q, want a(ss)", dispatcherTestPrefix, reply.Signature)
	}
}

func TestDispatch_InvalidUTF8Cookie(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	call := &MethodCall{ID: "call-1", Path: ObjectPath(KindManager, "ab"), Interface: InterfaceManager, Member: "LookupStreamByCookie", Signature: "s", Body: []byte{2, 0xff, 0xfe}}
	detail := expectError(t, disp.Dispatch(context.Background(), call), CodeInvalidArguments)
	if detail.Name != NameInvalidArgs {
		t.Errorf("%s - name = %s", dispatcherTestPrefix, detail.Name)
	}
	if len(core.calls) != 0 {
		t.Errorf("%s - core called with invalid UTF-8 cookie: %v", dispatcherTestPrefix, core.calls)
	}
}

func TestDispatch_Delete(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)

	reply := disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindManager, "ab"), InterfaceManager, "Delete", wire.Bool(true)))
	expectOK(t, reply)
	if reply.Signature != "" || len(reply.Body) != 0 {
		t.Errorf("%s - Delete reply should be empty", dispatcherTestPrefix)
	}
	if core.calls[0] != "ManagerDelete" || !core.predicate {
		t.Errorf("%s - calls=%v predicate=%v", dispatcherTestPrefix, core.calls, core.predicate)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindStream, "cd"), InterfaceStream, "Delete", wire.Bool(false))))
	expectOK(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindObject, "ef"), InterfaceObject, "Delete")))
	if diff := cmp.Diff([]string{"ManagerDelete", "StreamDelete", "ObjectDelete"}, core.calls); diff != "" {
		t.Errorf("%s - calls mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}

	expectError(t, disp.Dispatch(context.Background(), newCall(t, ObjectPath(KindObject, "ef"), InterfaceObject, "Delete", wire.Bool(true))), CodeInvalidArguments)
}

func TestDispatch_DownloadDesirability(t *testing.T) {
	core := &fakeCore{pair: [2]uint32{3, 1}}
	disp := NewDispatcher(core)
	versions := wire.Array{ElemSig: "(tu)", Elems: []wire.Value{
		wire.Struct{wire.U64(100), wire.U32(2)},
		wire.Struct{wire.U64(50), wire.U32(3)},
	}}
	reply := disp.Dispatch(context.Background(), newCall(t, RootPath, InterfaceRoot, "DownloadDesirability", wire.U32(1), versions))
	expectOK(t, reply)
	if diff := cmp.Diff([]wire.Value{wire.U32(3), wire.U32(1)}, replyValues(t, reply)); diff != "" {
		t.Errorf("%s - reply mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
	want := []woodchuck.DesirabilityVersion{{ExpectedSize: 100, Utility: 2}, {ExpectedSize: 50, Utility: 3}}
	if diff := cmp.Diff(want, core.versions); diff != "" {
		t.Errorf("%s - versions mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
}

func TestDispatch_DownloadStatus(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	files := wire.Array{ElemSig: "(sbu)", Elems: []wire.Value{
		wire.Struct{wire.Str("/tmp/a.ogg"), wire.Bool(true), wire.U32(2)},
	}}
	call := newCall(t, ObjectPath(KindObject, "ab"), InterfaceObject, "DownloadStatus",
		wire.U32(0x101), wire.U32(0x80000000), wire.U64(10), wire.U64(2000), wire.U64(1700000000),
		wire.U32(30), wire.U64(2000), files)
	if call.Signature != "uutttuta(sbu)" {
		t.Fatalf("%s - call signature = %q", dispatcherTestPrefix, call.Signature)
	}
	expectOK(t, disp.Dispatch(context.Background(), call))
	want := &woodchuck.DownloadStatusReport{
		Status: woodchuck.StatusTransientNetwork, Indicator: woodchuck.IndicatorUnknown,
		TransferredUp: 10, TransferredDown: 2000, DownloadTime: 1700000000,
		DownloadDuration: 30, ObjectSize: 2000,
		Files: []woodchuck.StatusFile{{Filename: "/tmp/a.ogg", Dedicated: true, DeletionPolicy: woodchuck.DeletionDeleteWithConsultation}},
	}
	if diff := cmp.Diff(want, core.download); diff != "" {
		t.Errorf("%s - report mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
}

func TestDispatch_UpdateStatus(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	call := newCall(t, ObjectPath(KindStream, "cd"), InterfaceStream, "UpdateStatus",
		wire.U32(0), wire.U32(1), wire.U64(5), wire.U64(6), wire.U64(7), wire.U32(8), wire.U32(9), wire.U32(10), wire.U32(11))
	expectOK(t, disp.Dispatch(context.Background(), call))
	want := &woodchuck.UpdateStatusReport{
		Indicator: 1, TransferredUp: 5, TransferredDown: 6, DownloadTime: 7,
		DownloadDuration: 8, NewObjects: 9, UpdatedObjects: 10, ObjectsInline: 11,
	}
	if diff := cmp.Diff(want, core.update); diff != "" {
		t.Errorf("%s - report mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}
}

func TestDispatch_ObjectScalars(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	obj := ObjectPath(KindObject, "ef")

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, obj, InterfaceObject, "Used", wire.U64(1), wire.U64(2), wire.U64(3))))
	if diff := cmp.Diff([]uint64{1, 2, 3}, core.u64s); diff != "" {
		t.Errorf("%s - Used args mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, obj, InterfaceObject, "FilesDeleted", wire.U32(1), wire.U64(3600))))
	if core.u32s[0] != 1 || core.u64s[0] != 3600 {
		t.Errorf("%s - FilesDeleted got %v %v", dispatcherTestPrefix, core.u32s, core.u64s)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, obj, InterfaceObject, "Download", wire.U32(2))))
	if core.u32s[0] != 2 {
		t.Errorf("%s - Download got %v", dispatcherTestPrefix, core.u32s)
	}
}

func TestDispatch_Feedback(t *testing.T) {
	core := &fakeCore{newID: "feed"}
	disp := NewDispatcher(core)
	mgr := ObjectPath(KindManager, "ab")

	reply := disp.Dispatch(context.Background(), newCall(t, mgr, InterfaceManager, "FeedbackSubscribe", wire.Bool(true)))
	expectOK(t, reply)
	if diff := cmp.Diff([]wire.Value{wire.Str("feed")}, replyValues(t, reply)); diff != "" {
		t.Errorf("%s - reply mismatch (-want +got):\n%s", dispatcherTestPrefix, diff)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, mgr, InterfaceManager, "FeedbackAck", wire.Str("0f"), wire.U32(4))))
	if core.cookie != "0f" || core.u32s[0] != 4 {
		t.Errorf("%s - FeedbackAck got %q %v", dispatcherTestPrefix, core.cookie, core.u32s)
	}

	expectOK(t, disp.Dispatch(context.Background(), newCall(t, mgr, InterfaceManager, "FeedbackUnsubscribe", wire.Str("feed"))))
	if core.cookie != "feed" {
		t.Errorf("%s - FeedbackUnsubscribe got %q", dispatcherTestPrefix, core.cookie)
	}
}

func TestDispatch_HeterogeneousPropertyArray(t *testing.T) {
	core := &fakeCore{}
	disp := NewDispatcher(core)
	bag := wire.Dict{
		"HumanReadableName": wire.Str("x"),
		"Versions": wire.Array{ElemSig: "v", Elems: []wire.Value{
			wire.Struct{wire.Str("u"), wire.Bool(true), wire.U32(1)},
			wire.Struct{wire.Str("v"), wire.U32(2), wire.U32(3)},
		}},
	}
	call := newCall(t, ObjectPath(KindStream, "cd"), InterfaceStream, "ObjectRegister", bag, wire.Bool(false))
	detail := expectError(t, disp.Dispatch(context.Background(), call), CodeInvalidArguments)
	if !strings.Contains(detail.Message, "element 1") {
		t.Errorf("%s - message %q should name element 1", dispatcherTestPrefix, detail.Message)
	}
	if len(core.calls) != 0 {
		t.Errorf("%s - core called after decode failure", dispatcherTestPrefix)
	}
}

func TestIntrospect(t *testing.T) {
	info := NewDispatcher(nil).Introspect("woodchuckd", "woodchuck.call")
	if info.ProtocolVersion != ProtocolVersion || info.RootPath != RootPath {
		t.Errorf("%s - unexpected header %+v", dispatcherTestPrefix, info)
	}
	if len(info.Interfaces) != 4 {
		t.Fatalf("%s - got %d interfaces, want 4", dispatcherTestPrefix, len(info.Interfaces))
	}
	total := 0
	for _, iface := range info.Interfaces {
		total += len(iface.Methods)
	}
	if total != len(catalogue) {
		t.Errorf("%s - introspection lists %d methods, catalogue has %d", dispatcherTestPrefix, total, len(catalogue))
	}
	root := info.Interfaces[0]
	if root.Name != InterfaceRoot || root.Methods[0].Name != "ManagerRegister" || root.Methods[0].ReplySignature != "s" {
		t.Errorf("%s - unexpected root interface %+v", dispatcherTestPrefix, root)
	}
}
