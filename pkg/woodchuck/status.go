package woodchuck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/morezero/woodchuck/pkg/db"
	"github.com/morezero/woodchuck/pkg/events"
)

const statusLogPrefix = "woodchuck:status"

// maxPreserveSeconds is the longest delay a time.Duration can hold.
const maxPreserveSeconds = uint64(math.MaxInt64 / int64(time.Second))

// preserveUntil returns now plus seconds, clamped so that huge requests
// keep the files for as long as possible instead of wrapping into the past.
func preserveUntil(now time.Time, seconds uint64) time.Time {
	if seconds > maxPreserveSeconds {
		seconds = maxPreserveSeconds
	}
	return now.Add(time.Duration(seconds) * time.Second)
}

// Download records a request to download the object now and tells the
// owning manager's subscribers.
func (s *Service) Download(ctx context.Context, objectID string, requestType uint32) error {
	if err := s.requireRepo(); err != nil {
		return err
	}
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return err
	}
	if err := s.repo.InsertDownloadRequest(ctx, objectID, int64(requestType)); err != nil {
		return storeFailed("InsertDownloadRequest", err)
	}
	s.notify(ctx, owner.ManagerID, func() *events.Upcall {
		return &events.Upcall{
			Name:        events.UpcallObjectDownloadRequested,
			StreamID:    owner.StreamID,
			ObjectID:    objectID,
			Cookie:      deref(owner.Cookie),
			Instance:    uint32(owner.Instance),
			RequestType: requestType,
		}
	})
	return nil
}

// DownloadStatus records the outcome of a download of the object's
// current instance and advances the instance.
func (s *Service) DownloadStatus(ctx context.Context, objectID string, report *DownloadStatusReport) error {
	if report == nil {
		return Errorf(KindInvalidArgs, "No status report")
	}
	files := make([]db.InstanceFile, 0, len(report.Files))
	upFiles := make([]events.UpcallFile, 0, len(report.Files))
	for _, f := range report.Files {
		if f.DeletionPolicy > DeletionDeleteWithConsultation {
			return Errorf(KindInvalidArgs, "Bad deletion policy: %d", uint32(f.DeletionPolicy))
		}
		files = append(files, db.InstanceFile{
			Filename:       f.Filename,
			Dedicated:      f.Dedicated,
			DeletionPolicy: int(f.DeletionPolicy),
		})
		upFiles = append(upFiles, events.UpcallFile{
			Filename:       f.Filename,
			Dedicated:      f.Dedicated,
			DeletionPolicy: uint32(f.DeletionPolicy),
		})
	}
	if err := s.requireRepo(); err != nil {
		return err
	}
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return err
	}

	instance, err := s.repo.RecordObjectStatus(ctx, db.ObjectStatusParams{
		ObjectID:         objectID,
		Status:           int64(report.Status),
		Indicator:        int64(report.Indicator),
		TransferredUp:    int64(report.TransferredUp),
		TransferredDown:  int64(report.TransferredDown),
		DownloadTime:     int64(report.DownloadTime),
		DownloadDuration: int64(report.DownloadDuration),
		ObjectSize:       int64(report.ObjectSize),
		Files:            files,
	})
	if errors.Is(err, db.ErrNotFound) {
		return noSuchObject("object", objectID)
	}
	if err != nil {
		return storeFailed("RecordObjectStatus", err)
	}
	slog.Info(fmt.Sprintf("%s - object %s instance %d status 0x%x", statusLogPrefix, objectID, instance, uint32(report.Status)))

	s.notify(ctx, owner.ManagerID, func() *events.Upcall {
		return &events.Upcall{
			Name:             events.UpcallObjectDownloaded,
			StreamID:         owner.StreamID,
			ObjectID:         objectID,
			Cookie:           deref(owner.Cookie),
			Instance:         uint32(instance),
			Status:           uint32(report.Status),
			Indicator:        report.Indicator,
			TransferredUp:    report.TransferredUp,
			TransferredDown:  report.TransferredDown,
			DownloadTime:     report.DownloadTime,
			DownloadDuration: report.DownloadDuration,
			ObjectSize:       report.ObjectSize,
			Files:            upFiles,
		}
	})
	return nil
}

// UpdateStatus records the outcome of a stream update at the stream's
// current instance and advances the instance.
func (s *Service) UpdateStatus(ctx context.Context, streamID string, report *UpdateStatusReport) error {
	if report == nil {
		return Errorf(KindInvalidArgs, "No status report")
	}
	if err := s.requireRepo(); err != nil {
		return err
	}
	owner, err := s.repo.StreamOwner(ctx, streamID)
	if err != nil {
		return storeFailed("StreamOwner", err)
	}
	if owner == nil {
		return noSuchObject("stream", streamID)
	}

	instance, err := s.repo.RecordStreamUpdate(ctx, db.StreamUpdateParams{
		StreamID:         streamID,
		Status:           int64(report.Status),
		Indicator:        int64(report.Indicator),
		TransferredUp:    int64(report.TransferredUp),
		TransferredDown:  int64(report.TransferredDown),
		DownloadTime:     int64(report.DownloadTime),
		DownloadDuration: int64(report.DownloadDuration),
		NewObjects:       int64(report.NewObjects),
		UpdatedObjects:   int64(report.UpdatedObjects),
		ObjectsInline:    int64(report.ObjectsInline),
	})
	if errors.Is(err, db.ErrNotFound) {
		return noSuchObject("stream", streamID)
	}
	if err != nil {
		return storeFailed("RecordStreamUpdate", err)
	}
	slog.Info(fmt.Sprintf("%s - stream %s instance %d status 0x%x", statusLogPrefix, streamID, instance, uint32(report.Status)))

	s.notify(ctx, owner.ManagerID, func() *events.Upcall {
		return &events.Upcall{
			Name:             events.UpcallStreamUpdated,
			StreamID:         streamID,
			Cookie:           deref(owner.Cookie),
			Instance:         uint32(instance),
			Status:           uint32(report.Status),
			Indicator:        report.Indicator,
			TransferredUp:    report.TransferredUp,
			TransferredDown:  report.TransferredDown,
			DownloadTime:     report.DownloadTime,
			DownloadDuration: report.DownloadDuration,
			NewObjects:       report.NewObjects,
			UpdatedObjects:   report.UpdatedObjects,
			ObjectsInline:    report.ObjectsInline,
		}
	})
	return nil
}

// Used records that the object's current instance was used between start
// and end.
func (s *Service) Used(ctx context.Context, objectID string, start, end, useMask uint64) error {
	if start > end {
		return Errorf(KindInvalidArgs, "Start time %d after end time %d", start, end)
	}
	if err := s.requireRepo(); err != nil {
		return err
	}
	err := s.repo.InsertObjectUse(ctx, objectID, int64(start), int64(end), int64(useMask))
	if errors.Is(err, db.ErrNotFound) {
		return noSuchObject("object", objectID)
	}
	if err != nil {
		return storeFailed("InsertObjectUse", err)
	}
	return nil
}

// FilesDeleted records what happened to the files of the object's latest
// instance: deleted, kept for arg more seconds, or compressed to arg bytes.
func (s *Service) FilesDeleted(ctx context.Context, objectID string, kind FilesDeletedKind, arg uint64) error {
	if kind > FilesCompressed {
		return Errorf(KindInvalidArgs, "Bad value for Update argument: %d", uint32(kind))
	}
	if err := s.requireRepo(); err != nil {
		return err
	}
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return err
	}

	switch kind {
	case FilesDeleted:
		err = s.repo.MarkFilesDeleted(ctx, objectID)
	case FilesRefused:
		err = s.repo.PreserveFilesUntil(ctx, objectID, preserveUntil(s.now(), arg))
	case FilesCompressed:
		err = s.repo.SetCompressedSize(ctx, objectID, int64(arg))
	}
	if err != nil {
		return storeFailed("FilesDeleted", err)
	}

	s.notify(ctx, owner.ManagerID, func() *events.Upcall {
		return &events.Upcall{
			Name:             events.UpcallObjectFilesDeleted,
			StreamID:         owner.StreamID,
			ObjectID:         objectID,
			Cookie:           deref(owner.Cookie),
			Instance:         uint32(owner.Instance),
			FilesDeletedKind: uint32(kind),
			FilesDeletedArg:  arg,
		}
	})
	return nil
}
