// Package events defines the feedback upcalls woodchuckd sends to
// subscribed managers, and the publishers that deliver them.
package events

// Upcall names.
const (
	UpcallObjectDownloaded        = "ObjectDownloaded"
	UpcallStreamUpdated           = "StreamUpdated"
	UpcallObjectDownloadRequested = "ObjectDownloadRequested"
	UpcallObjectFilesDeleted      = "ObjectFilesDeleted"
)

// Upcall is one feedback event. Which fields are set depends on Name.
type Upcall struct {
	Name      string `cbor:"name" json:"name"`
	Handle    string `cbor:"handle" json:"handle"`
	ManagerID string `cbor:"managerId" json:"managerId"`
	StreamID  string `cbor:"streamId,omitempty" json:"streamId,omitempty"`
	ObjectID  string `cbor:"objectId,omitempty" json:"objectId,omitempty"`
	Cookie    string `cbor:"cookie,omitempty" json:"cookie,omitempty"`
	Instance  uint32 `cbor:"instance" json:"instance"`

	RequestType uint32 `cbor:"requestType,omitempty" json:"requestType,omitempty"`

	Status           uint32       `cbor:"status,omitempty" json:"status,omitempty"`
	Indicator        uint32       `cbor:"indicator,omitempty" json:"indicator,omitempty"`
	TransferredUp    uint64       `cbor:"transferredUp,omitempty" json:"transferredUp,omitempty"`
	TransferredDown  uint64       `cbor:"transferredDown,omitempty" json:"transferredDown,omitempty"`
	DownloadTime     uint64       `cbor:"downloadTime,omitempty" json:"downloadTime,omitempty"`
	DownloadDuration uint32       `cbor:"downloadDuration,omitempty" json:"downloadDuration,omitempty"`
	ObjectSize       uint64       `cbor:"objectSize,omitempty" json:"objectSize,omitempty"`
	Files            []UpcallFile `cbor:"files,omitempty" json:"files,omitempty"`

	NewObjects     uint32 `cbor:"newObjects,omitempty" json:"newObjects,omitempty"`
	UpdatedObjects uint32 `cbor:"updatedObjects,omitempty" json:"updatedObjects,omitempty"`
	ObjectsInline  uint32 `cbor:"objectsInline,omitempty" json:"objectsInline,omitempty"`

	FilesDeletedKind uint32 `cbor:"filesDeletedKind,omitempty" json:"filesDeletedKind,omitempty"`
	FilesDeletedArg  uint64 `cbor:"filesDeletedArg,omitempty" json:"filesDeletedArg,omitempty"`

	Timestamp string `cbor:"timestamp" json:"timestamp"`
}

// UpcallFile is one file reported with ObjectDownloaded.
type UpcallFile struct {
	Filename       string `cbor:"filename" json:"filename"`
	Dedicated      bool   `cbor:"dedicated" json:"dedicated"`
	DeletionPolicy uint32 `cbor:"deletionPolicy" json:"deletionPolicy"`
}
