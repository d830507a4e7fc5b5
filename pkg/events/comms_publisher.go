package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/woodchuck/pkg/commsutil"
	"github.com/morezero/woodchuck/pkg/metrics"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the upcall subject prefix (WOODCHUCK_UPCALL_PREFIX).
	SubjectPrefix string
}

// CommsPublisher publishes upcalls as CBOR to <prefix>.<handle>.
type CommsPublisher struct {
	nc     *comms.Conn
	prefix string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := commsutil.SubjectUpcallPrefix
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsPublisher{nc: nc, prefix: prefix}
}

// PublishUpcall publishes one upcall to its subscription's subject.
func (p *CommsPublisher) PublishUpcall(_ context.Context, upcall *Upcall) (err error) {
	defer func() { metrics.ObserveUpcall(upcall.Name, err) }()

	if upcall.Handle == "" {
		return fmt.Errorf("%s - upcall %s has no subscription handle", commsPublisherLogPrefix, upcall.Name)
	}
	data, err := commsutil.EncodePayload(upcall)
	if err != nil {
		return fmt.Errorf("%s - failed to encode upcall: %w", commsPublisherLogPrefix, err)
	}

	subject := commsutil.UpcallSubject(p.prefix, upcall.Handle)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s to %s", commsPublisherLogPrefix, upcall.Name, subject))
	return nil
}
