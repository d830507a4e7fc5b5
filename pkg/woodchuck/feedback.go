package woodchuck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/woodchuck/pkg/db"
	"github.com/morezero/woodchuck/pkg/events"
)

const feedbackLogPrefix = "woodchuck:feedback"

// FeedbackSubscribe subscribes to upcalls about the manager's resources,
// and those of its descendants when descendentsToo is set. Returns the
// subscription handle.
func (s *Service) FeedbackSubscribe(ctx context.Context, managerID string, descendentsToo bool) (string, error) {
	if err := s.requireRepo(); err != nil {
		return "", err
	}
	if err := s.requireManager(ctx, managerID); err != nil {
		return "", err
	}
	sub := &db.FeedbackSubscription{
		Handle:         newID(),
		ManagerID:      managerID,
		DescendentsToo: descendentsToo,
	}
	if err := s.repo.InsertFeedbackSubscription(ctx, sub); err != nil {
		return "", storeFailed("InsertFeedbackSubscription", err)
	}
	slog.Info(fmt.Sprintf("%s - manager %s subscribed handle=%s descendentsToo=%v",
		feedbackLogPrefix, managerID, sub.Handle, descendentsToo))
	return sub.Handle, nil
}

// FeedbackUnsubscribe cancels a subscription the manager holds.
func (s *Service) FeedbackUnsubscribe(ctx context.Context, managerID, handle string) error {
	if err := s.requireRepo(); err != nil {
		return err
	}
	ok, err := s.repo.DeleteFeedbackSubscription(ctx, managerID, handle)
	if err != nil {
		return storeFailed("DeleteFeedbackSubscription", err)
	}
	if !ok {
		return Errorf(KindNoSuchObject, "Manager %s has no subscription %s", managerID, handle)
	}
	slog.Info(fmt.Sprintf("%s - manager %s unsubscribed handle=%s", feedbackLogPrefix, managerID, handle))
	return nil
}

// FeedbackAck records that the manager has processed an instance of an
// object. Only instances already reported can be acknowledged.
func (s *Service) FeedbackAck(ctx context.Context, managerID, objectID string, instance uint32) error {
	if err := s.requireRepo(); err != nil {
		return err
	}
	if err := s.requireManager(ctx, managerID); err != nil {
		return err
	}
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return err
	}
	covers, err := s.repo.ManagerCovers(ctx, managerID, owner.ManagerID)
	if err != nil {
		return storeFailed("ManagerCovers", err)
	}
	if !covers {
		// Objects outside the manager's subtree are invisible to it.
		return noSuchObject("object", objectID)
	}
	if int64(instance) >= owner.Instance {
		return Errorf(KindInvalidArgs, "Object %s has no instance %d (current instance: %d)", objectID, instance, owner.Instance)
	}
	if err := s.repo.InsertFeedbackAck(ctx, managerID, objectID, int64(instance)); err != nil {
		return storeFailed("InsertFeedbackAck", err)
	}
	return nil
}

// notify sends an upcall to every subscription covering managerID. build
// is called once per subscription. Failures are logged only.
func (s *Service) notify(ctx context.Context, managerID string, build func() *events.Upcall) {
	subs, err := s.repo.SubscriptionsFor(ctx, managerID)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - SubscriptionsFor %s failed: %v", feedbackLogPrefix, managerID, err))
		return
	}
	for _, sub := range subs {
		up := build()
		up.Handle = sub.Handle
		up.ManagerID = managerID
		if up.Timestamp == "" {
			up.Timestamp = s.timestamp()
		}
		if err := s.publisher.PublishUpcall(ctx, up); err != nil {
			slog.Warn(fmt.Sprintf("%s - publish %s to %s failed: %v", feedbackLogPrefix, up.Name, sub.Handle, err))
		}
	}
}
