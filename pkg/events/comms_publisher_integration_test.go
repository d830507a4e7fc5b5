package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/woodchuck/pkg/commsutil"
)

const commsPublisherTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process COMMS server on a random port.
func startTestServer(t *testing.T) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsPublisherTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsPublisherTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", commsPublisherTestPrefix, err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
	return nc, cleanup
}

func receiveUpcall(t *testing.T, nc *comms.Conn, subject string) (<-chan *Upcall, func()) {
	t.Helper()
	received := make(chan *Upcall, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var upcall Upcall
		if err := commsutil.DecodePayload(msg.Data, &upcall); err != nil {
			t.Errorf("%s - failed to decode: %v", commsPublisherTestPrefix, err)
			return
		}
		received <- &upcall
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe: %v", commsPublisherTestPrefix, err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("%s - flush: %v", commsPublisherTestPrefix, err)
	}
	return received, func() { _ = sub.Unsubscribe() }
}

func TestCommsPublisher_PublishUpcall_DefaultPrefix(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	received, unsub := receiveUpcall(t, nc, "woodchuck.upcall.0a1b2c")
	defer unsub()

	upcall := &Upcall{
		Name:            UpcallObjectDownloaded,
		Handle:          "0a1b2c",
		ManagerID:       "m1",
		StreamID:        "s1",
		ObjectID:        "o1",
		Instance:        3,
		Status:          0x101,
		TransferredDown: 2048,
		Files:           []UpcallFile{{Filename: "/tmp/a.ogg", Dedicated: true, DeletionPolicy: 2}},
		Timestamp:       "2026-01-01T00:00:00Z",
	}
	if err := NewCommsPublisher(nc, nil).PublishUpcall(context.Background(), upcall); err != nil {
		t.Fatalf("%s - PublishUpcall failed: %v", commsPublisherTestPrefix, err)
	}

	select {
	case got := <-received:
		if diff := cmp.Diff(upcall, got); diff != "" {
			t.Errorf("%s - upcall mismatch (-want +got):\n%s", commsPublisherTestPrefix, diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for upcall", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_PublishUpcall_CustomPrefix(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	received, unsub := receiveUpcall(t, nc, "test.feedback.*")
	defer unsub()

	pub := NewCommsPublisher(nc, &CommsPublisherOpts{SubjectPrefix: "test.feedback"})
	if err := pub.PublishUpcall(context.Background(), &Upcall{Name: UpcallStreamUpdated, Handle: "ff", StreamID: "s2", NewObjects: 4}); err != nil {
		t.Fatalf("%s - PublishUpcall failed: %v", commsPublisherTestPrefix, err)
	}

	select {
	case got := <-received:
		if got.Name != UpcallStreamUpdated || got.StreamID != "s2" || got.NewObjects != 4 {
			t.Errorf("%s - got %+v", commsPublisherTestPrefix, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for upcall", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_PublishUpcall_RequiresHandle(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	err := NewCommsPublisher(nc, nil).PublishUpcall(context.Background(), &Upcall{Name: UpcallObjectDownloadRequested})
	if err == nil {
		t.Errorf("%s - expected error for missing handle", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_PublishUpcall_ClosedConnection(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()
	nc.Close()

	err := NewCommsPublisher(nc, nil).PublishUpcall(context.Background(), &Upcall{Name: UpcallObjectFilesDeleted, Handle: "ab"})
	if err == nil {
		t.Errorf("%s - expected error publishing on a closed connection", commsPublisherTestPrefix)
	}
}
