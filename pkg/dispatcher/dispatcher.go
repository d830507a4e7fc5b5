package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/woodchuck/pkg/metrics"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes method calls to the Core Service.
type Dispatcher struct {
	core   CoreService
	routes map[routeKey]*method
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(core CoreService) *Dispatcher {
	return &Dispatcher{core: core, routes: routes}
}

// Dispatch resolves, validates, decodes and executes one call and returns
// its reply. Every call yields exactly one reply, success or error.
func (d *Dispatcher) Dispatch(ctx context.Context, call *MethodCall) *Reply {
	slog.Debug(fmt.Sprintf("%s - path=%s member=%s.%s sig=%q id=%s",
		logPrefix, call.Path, call.Interface, call.Member, call.Signature, call.ID))

	start := time.Now()
	m, sig, body, callErr := d.dispatch(ctx, call)

	iface, member, code := "unknown", "unknown", "ok"
	if m != nil {
		iface, member = m.kind.Interface(), m.name
	}
	reply := &Reply{ID: call.ID}
	if callErr != nil {
		code = callErr.Code
		reply.Error = callErr.Detail()
		slog.Debug(fmt.Sprintf("%s - id=%s failed: %s", logPrefix, call.ID, callErr.Message))
	} else {
		reply.Signature = sig
		reply.Body = body
	}
	metrics.ObserveDispatch(iface, member, code, time.Since(start))
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, call *MethodCall) (*method, string, []byte, *CallError) {
	path, err := ResolvePath(call.Path)
	if err != nil {
		return nil, "", nil, unknownObject(call)
	}
	if call.Interface != path.Kind.Interface() {
		return nil, "", nil, unknownInterface(call)
	}
	m, ok := d.routes[routeKey{kind: path.Kind, iface: call.Interface, member: call.Member}]
	if !ok {
		return nil, "", nil, unknownMethod(call)
	}
	if !m.accepts(call.Signature) {
		return m, "", nil, badSignature(call, m.signatures[0])
	}
	if d.core == nil {
		return m, "", nil, coreErrorToCallError(call, &woodchuck.Error{Kind: woodchuck.KindInternalError, Message: "core service not configured"})
	}

	r, err := newArgReader(call.Signature, call.Body)
	if err != nil {
		return m, "", nil, coreErrorToCallError(call, err)
	}
	res, err := m.handle(ctx, d.core, path.ID, r)
	if err != nil {
		return m, "", nil, coreErrorToCallError(call, err)
	}

	sig, body, err := encodeReply(m.reply, m.arity, res)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s.%s reply encode: %v", logPrefix, call.Interface, call.Member, err))
		return m, "", nil, coreErrorToCallError(call, err)
	}
	return m, sig, body, nil
}

// ErrorReply builds the reply for a call whose envelope could not be decoded.
func ErrorReply(id string, err error) *Reply {
	return &Reply{
		ID: id,
		Error: &ErrorDetail{
			Code:    CodeInvalidArguments,
			Name:    NameInvalidArgs,
			Message: fmt.Sprintf("Failed to decode call: %v", err),
		},
	}
}
