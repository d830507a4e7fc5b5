// Package client calls woodchuckd over COMMS (NATS).
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/woodchuck/pkg/commsutil"
	"github.com/morezero/woodchuck/pkg/dispatcher"
	"github.com/morezero/woodchuck/pkg/wire"
)

const logPrefix = "client:client"

// DefaultTimeout bounds a request whose context has no deadline.
const DefaultTimeout = 30 * time.Second

// Options configures a Client. Zero fields take the defaults.
type Options struct {
	CallSubject        string
	IntrospectSubject  string
	UpcallPrefix       string
	Timeout            time.Duration
	ProtocolConstraint string
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.CallSubject == "" {
		out.CallSubject = commsutil.SubjectCall
	}
	if out.IntrospectSubject == "" {
		out.IntrospectSubject = commsutil.SubjectIntrospect
	}
	if out.UpcallPrefix == "" {
		out.UpcallPrefix = commsutil.SubjectUpcallPrefix
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.ProtocolConstraint == "" {
		out.ProtocolConstraint = DefaultProtocolConstraint
	}
	return out
}

// Client sends method calls to woodchuckd. It does not own the connection.
type Client struct {
	nc   *comms.Conn
	opts Options
	info *dispatcher.ServiceInfo
}

// Connect fetches the service's introspection document and checks that its
// protocol version satisfies opts.ProtocolConstraint.
func Connect(ctx context.Context, nc *comms.Conn, opts *Options) (*Client, error) {
	c := &Client{nc: nc, opts: opts.withDefaults()}

	msg, err := c.request(ctx, c.opts.IntrospectSubject, nil)
	if err != nil {
		return nil, fmt.Errorf("%s - introspect: %w", logPrefix, err)
	}
	var info dispatcher.ServiceInfo
	if err := commsutil.DecodePayload(msg.Data, &info); err != nil {
		return nil, fmt.Errorf("%s - decode introspection: %w", logPrefix, err)
	}
	if err := checkProtocol(info.ProtocolVersion, c.opts.ProtocolConstraint); err != nil {
		return nil, err
	}
	c.info = &info
	return c, nil
}

// Info returns the introspection document read by Connect.
func (c *Client) Info() *dispatcher.ServiceInfo {
	return c.info
}

// Call invokes member of iface on the resource at path. args may be nil
// for a call without arguments. An error reply is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, path, iface, member string, args *wire.Writer) (*dispatcher.Reply, error) {
	call := &dispatcher.MethodCall{
		ID:        uuid.NewString(),
		Sender:    c.nc.Opts.Name,
		Interface: iface,
		Path:      path,
		Member:    member,
	}
	if args != nil {
		call.Signature = args.Signature()
		call.Body = args.Bytes()
	}
	payload, err := commsutil.EncodePayload(call)
	if err != nil {
		return nil, fmt.Errorf("%s - encode call: %w", logPrefix, err)
	}

	msg, err := c.request(ctx, c.opts.CallSubject, payload)
	if err != nil {
		return nil, fmt.Errorf("%s - %s.%s on %s: %w", logPrefix, iface, member, path, err)
	}
	var reply dispatcher.Reply
	if err := commsutil.DecodePayload(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("%s - decode reply: %w", logPrefix, err)
	}
	if !reply.Ok() {
		return nil, &RemoteError{Code: reply.Error.Code, Name: reply.Error.Name, Message: reply.Error.Message}
	}
	if reply.ID != call.ID {
		return nil, fmt.Errorf("%s - reply id %q does not match call %q", logPrefix, reply.ID, call.ID)
	}
	return &reply, nil
}

func (c *Client) request(ctx context.Context, subject string, data []byte) (*comms.Msg, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	return c.nc.RequestWithContext(ctx, subject, data)
}

// Values decodes every top-level value of a reply.
func Values(reply *dispatcher.Reply) ([]wire.Value, error) {
	it, err := wire.NewIter(reply.Signature, reply.Body)
	if err != nil {
		return nil, err
	}
	var out []wire.Value
	for it.ArgType() != wire.TypeInvalid {
		v, err := wire.DecodeValue(it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
