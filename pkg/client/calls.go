package client

import (
	"context"
	"fmt"

	"github.com/morezero/woodchuck/pkg/dispatcher"
	"github.com/morezero/woodchuck/pkg/wire"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

// target returns the path and interface of a resource. An empty id
// addresses the root.
func target(kind dispatcher.ResourceKind, id string) (string, string) {
	if kind == dispatcher.KindRoot || id == "" {
		return dispatcher.RootPath, dispatcher.KindRoot.Interface()
	}
	return dispatcher.ObjectPath(kind, id), kind.Interface()
}

func args(values ...wire.Value) (*wire.Writer, error) {
	w := wire.NewWriter()
	for _, v := range values {
		if err := w.Append(v); err != nil {
			return nil, fmt.Errorf("%s - encode arguments: %w", logPrefix, err)
		}
	}
	return w, nil
}

func (c *Client) register(ctx context.Context, kind dispatcher.ResourceKind, id, member string, props woodchuck.PropertyBag, unique bool) (string, error) {
	w, err := args(props, wire.Bool(unique))
	if err != nil {
		return "", err
	}
	path, iface := target(kind, id)
	reply, err := c.Call(ctx, path, iface, member, w)
	if err != nil {
		return "", err
	}
	return replyString(reply)
}

// ManagerRegister registers a manager under parentID, or at the top level
// when parentID is empty, and returns its id.
func (c *Client) ManagerRegister(ctx context.Context, parentID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error) {
	return c.register(ctx, dispatcher.KindManager, parentID, "ManagerRegister", props, onlyIfUnique)
}

// StreamRegister registers a stream under managerID and returns its id.
func (c *Client) StreamRegister(ctx context.Context, managerID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error) {
	return c.register(ctx, dispatcher.KindManager, managerID, "StreamRegister", props, onlyIfUnique)
}

// ObjectRegister registers an object under streamID and returns its id.
func (c *Client) ObjectRegister(ctx context.Context, streamID string, props woodchuck.PropertyBag, onlyIfUnique bool) (string, error) {
	return c.register(ctx, dispatcher.KindStream, streamID, "ObjectRegister", props, onlyIfUnique)
}

func (c *Client) listing(ctx context.Context, kind dispatcher.ResourceKind, id, member string, w *wire.Writer) (woodchuck.TupleList, error) {
	path, iface := target(kind, id)
	reply, err := c.Call(ctx, path, iface, member, w)
	if err != nil {
		return nil, err
	}
	return replyTuples(reply)
}

// ListManagers lists the managers under parentID, or the top-level ones
// when parentID is empty.
func (c *Client) ListManagers(ctx context.Context, parentID string, recurse bool) (woodchuck.TupleList, error) {
	w, err := args(wire.Bool(recurse))
	if err != nil {
		return nil, err
	}
	return c.listing(ctx, dispatcher.KindManager, parentID, "ListManagers", w)
}

// LookupManagerByCookie finds managers by cookie. recurse only applies to
// lookups from the root.
func (c *Client) LookupManagerByCookie(ctx context.Context, parentID, cookie string, recurse bool) (woodchuck.TupleList, error) {
	values := []wire.Value{wire.Str(cookie)}
	if parentID == "" {
		values = append(values, wire.Bool(recurse))
	}
	w, err := args(values...)
	if err != nil {
		return nil, err
	}
	return c.listing(ctx, dispatcher.KindManager, parentID, "LookupManagerByCookie", w)
}

// ListStreams lists the streams of a manager.
func (c *Client) ListStreams(ctx context.Context, managerID string) (woodchuck.TupleList, error) {
	return c.listing(ctx, dispatcher.KindManager, managerID, "ListStreams", nil)
}

// ListObjects lists the objects of a stream.
func (c *Client) ListObjects(ctx context.Context, streamID string) (woodchuck.TupleList, error) {
	return c.listing(ctx, dispatcher.KindStream, streamID, "ListObjects", nil)
}

// Delete unregisters a manager, stream or object. onlyIfNoDescendents is
// ignored for objects.
func (c *Client) Delete(ctx context.Context, kind dispatcher.ResourceKind, id string, onlyIfNoDescendents bool) error {
	if kind == dispatcher.KindRoot || id == "" {
		return fmt.Errorf("%s - Delete needs a manager, stream or object id", logPrefix)
	}
	var w *wire.Writer
	if kind != dispatcher.KindObject {
		var err error
		if w, err = args(wire.Bool(onlyIfNoDescendents)); err != nil {
			return err
		}
	}
	_, err := c.Call(ctx, dispatcher.ObjectPath(kind, id), kind.Interface(), "Delete", w)
	return err
}

// DownloadStatus reports the outcome of a download of objectID.
func (c *Client) DownloadStatus(ctx context.Context, objectID string, report *woodchuck.DownloadStatusReport) error {
	files := wire.Array{ElemSig: "(sbu)", Elems: make([]wire.Value, 0, len(report.Files))}
	for _, f := range report.Files {
		files.Elems = append(files.Elems, wire.Struct{wire.Str(f.Filename), wire.Bool(f.Dedicated), wire.U32(f.DeletionPolicy)})
	}
	w, err := args(
		wire.U32(report.Status),
		wire.U32(report.Indicator),
		wire.U64(report.TransferredUp),
		wire.U64(report.TransferredDown),
		wire.U64(report.DownloadTime),
		wire.U32(report.DownloadDuration),
		wire.U64(report.ObjectSize),
		files,
	)
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, dispatcher.ObjectPath(dispatcher.KindObject, objectID), dispatcher.InterfaceObject, "DownloadStatus", w)
	return err
}

// FeedbackSubscribe subscribes to upcalls about managerID's objects and
// returns the subscription handle.
func (c *Client) FeedbackSubscribe(ctx context.Context, managerID string, descendentsToo bool) (string, error) {
	w, err := args(wire.Bool(descendentsToo))
	if err != nil {
		return "", err
	}
	reply, err := c.Call(ctx, dispatcher.ObjectPath(dispatcher.KindManager, managerID), dispatcher.InterfaceManager, "FeedbackSubscribe", w)
	if err != nil {
		return "", err
	}
	return replyString(reply)
}

// FeedbackUnsubscribe cancels a subscription.
func (c *Client) FeedbackUnsubscribe(ctx context.Context, managerID, handle string) error {
	w, err := args(wire.Str(handle))
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, dispatcher.ObjectPath(dispatcher.KindManager, managerID), dispatcher.InterfaceManager, "FeedbackUnsubscribe", w)
	return err
}

// FeedbackAck acknowledges the upcall for instance of objectID.
func (c *Client) FeedbackAck(ctx context.Context, managerID, objectID string, instance uint32) error {
	w, err := args(wire.Str(objectID), wire.U32(instance))
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, dispatcher.ObjectPath(dispatcher.KindManager, managerID), dispatcher.InterfaceManager, "FeedbackAck", w)
	return err
}

func replyString(reply *dispatcher.Reply) (string, error) {
	values, err := Values(reply)
	if err != nil {
		return "", fmt.Errorf("%s - decode reply: %w", logPrefix, err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%s - reply %q is not a single string", logPrefix, reply.Signature)
	}
	s, ok := values[0].(wire.Str)
	if !ok {
		return "", fmt.Errorf("%s - reply %q is not a single string", logPrefix, reply.Signature)
	}
	return string(s), nil
}

func replyTuples(reply *dispatcher.Reply) (woodchuck.TupleList, error) {
	values, err := Values(reply)
	if err != nil {
		return nil, fmt.Errorf("%s - decode reply: %w", logPrefix, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s - reply %q is not a tuple list", logPrefix, reply.Signature)
	}
	arr, ok := values[0].(wire.Array)
	if !ok {
		return nil, fmt.Errorf("%s - reply %q is not a tuple list", logPrefix, reply.Signature)
	}
	out := make(woodchuck.TupleList, 0, len(arr.Elems))
	for _, elem := range arr.Elems {
		st, ok := elem.(wire.Struct)
		if !ok {
			return nil, fmt.Errorf("%s - reply %q is not a tuple list", logPrefix, reply.Signature)
		}
		tuple := make(woodchuck.Tuple, 0, len(st))
		for _, field := range st {
			s, ok := field.(wire.Str)
			if !ok {
				return nil, fmt.Errorf("%s - reply %q has a non-string field", logPrefix, reply.Signature)
			}
			tuple = append(tuple, string(s))
		}
		out = append(out, tuple)
	}
	return out, nil
}
