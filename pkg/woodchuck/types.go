package woodchuck

import "github.com/morezero/woodchuck/pkg/wire"

// PropertyBag holds the properties supplied at registration.
type PropertyBag = wire.Dict

// Tuple is one row of a listing or lookup reply.
type Tuple []string

// TupleList is a listing or lookup reply. All tuples share one arity.
type TupleList []Tuple

// DesirabilityVersion is one candidate passed to DownloadDesirability.
type DesirabilityVersion struct {
	ExpectedSize uint64
	Utility      uint32
}

// Version is one entry of an object's Versions property.
type Version struct {
	URL                 string
	ExpectedSize        uint64
	Utility             uint32
	UseSimpleDownloader bool
}

// DownloadStatus is the outcome of a download or stream update.
type DownloadStatus uint32

const (
	StatusSuccess              DownloadStatus = 0
	StatusTransientOther       DownloadStatus = 0x100
	StatusTransientNetwork     DownloadStatus = 0x101
	StatusTransientInterrupted DownloadStatus = 0x102
	StatusFailureOther         DownloadStatus = 0x200
	StatusFailureGone          DownloadStatus = 0x201
)

// Transient reports whether a retry may succeed.
func (s DownloadStatus) Transient() bool { return s >= 0x100 && s < 0x200 }

// Indicator flags describe how the user was told about a transfer.
const (
	IndicatorAudio              uint32 = 0x1
	IndicatorApplicationVisual  uint32 = 0x2
	IndicatorDesktopSmallVisual uint32 = 0x4
	IndicatorDesktopLargeVisual uint32 = 0x8
	IndicatorExternalVisual     uint32 = 0x10
	IndicatorVibrate            uint32 = 0x20
	IndicatorObjectSpecific     uint32 = 0x40
	IndicatorSystemWide         uint32 = 0x80
	IndicatorManagerWide        uint32 = 0x100
	IndicatorUnknown            uint32 = 0x80000000
)

// DeletionPolicy says what may be done with a downloaded file.
type DeletionPolicy uint32

const (
	DeletionPrecious                  DeletionPolicy = 0
	DeletionDeleteWithoutConsultation DeletionPolicy = 1
	DeletionDeleteWithConsultation    DeletionPolicy = 2
)

// FilesDeletedKind is the update reported by FilesDeleted.
type FilesDeletedKind uint32

const (
	FilesDeleted    FilesDeletedKind = 0
	FilesRefused    FilesDeletedKind = 1
	FilesCompressed FilesDeletedKind = 2
)

// StatusFile is one file produced by a download.
type StatusFile struct {
	Filename       string
	Dedicated      bool
	DeletionPolicy DeletionPolicy
}

// DownloadStatusReport is the argument of Object.DownloadStatus.
type DownloadStatusReport struct {
	Status           DownloadStatus
	Indicator        uint32
	TransferredUp    uint64
	TransferredDown  uint64
	DownloadTime     uint64
	DownloadDuration uint32
	ObjectSize       uint64
	Files            []StatusFile
}

// UpdateStatusReport is the argument of Stream.UpdateStatus.
type UpdateStatusReport struct {
	Status           DownloadStatus
	Indicator        uint32
	TransferredUp    uint64
	TransferredDown  uint64
	DownloadTime     uint64
	DownloadDuration uint32
	NewObjects       uint32
	UpdatedObjects   uint32
	ObjectsInline    uint32
}

// HealthOutput is the result of Health.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks holds individual health check results.
type HealthChecks struct {
	Database bool `json:"database"`
}
