package client

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/woodchuck/pkg/commsutil"
	"github.com/morezero/woodchuck/pkg/events"
)

// SubscribeUpcalls delivers the upcalls published for a feedback
// subscription handle to fn. Undecodable messages are logged and dropped.
// Callers unsubscribe through the returned subscription.
func (c *Client) SubscribeUpcalls(handle string, fn func(events.Upcall)) (*comms.Subscription, error) {
	subject := commsutil.UpcallSubject(c.opts.UpcallPrefix, handle)
	sub, err := c.nc.Subscribe(subject, func(msg *comms.Msg) {
		var up events.Upcall
		if err := commsutil.DecodePayload(msg.Data, &up); err != nil {
			slog.Warn(fmt.Sprintf("%s - undecodable upcall on %s: %v", logPrefix, msg.Subject, err))
			return
		}
		fn(up)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - subscribe %s: %w", logPrefix, subject, err)
	}
	return sub, nil
}
