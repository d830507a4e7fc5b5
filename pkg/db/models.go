package db

import "time"

// Manager represents a row in the managers table.
type Manager struct {
	ID                string    `json:"id"`
	ParentID          *string   `json:"parent_id,omitempty"`
	HumanReadableName string    `json:"human_readable_name"`
	DBusServiceName   *string   `json:"dbus_service_name,omitempty"`
	DBusObject        *string   `json:"dbus_object,omitempty"`
	Cookie            *string   `json:"cookie,omitempty"`
	Priority          *int64    `json:"priority,omitempty"`
	Created           time.Time `json:"created"`
}

// Stream represents a row in the streams table.
type Stream struct {
	ID                  string    `json:"id"`
	ManagerID           string    `json:"manager_id"`
	Instance            int64     `json:"instance"`
	HumanReadableName   string    `json:"human_readable_name"`
	Cookie              *string   `json:"cookie,omitempty"`
	Priority            *int64    `json:"priority,omitempty"`
	Freshness           *int64    `json:"freshness,omitempty"`
	ObjectsMostlyInline *bool     `json:"objects_mostly_inline,omitempty"`
	Created             time.Time `json:"created"`
}

// Object represents a row in the objects table.
type Object struct {
	ID                string    `json:"id"`
	StreamID          string    `json:"stream_id"`
	Instance          int64     `json:"instance"`
	HumanReadableName string    `json:"human_readable_name"`
	Cookie            *string   `json:"cookie,omitempty"`
	Filename          *string   `json:"filename,omitempty"`
	Wakeup            *bool     `json:"wakeup,omitempty"`
	TriggerTarget     *int64    `json:"trigger_target,omitempty"`
	TriggerEarliest   *int64    `json:"trigger_earliest,omitempty"`
	TriggerLatest     *int64    `json:"trigger_latest,omitempty"`
	DownloadFrequency *int64    `json:"download_frequency,omitempty"`
	Priority          *int64    `json:"priority,omitempty"`
	Created           time.Time `json:"created"`
}

// ObjectVersion represents a row in the object_versions table.
type ObjectVersion struct {
	Version             int    `json:"version"`
	URL                 string `json:"url"`
	ExpectedSize        int64  `json:"expected_size"`
	Utility             int64  `json:"utility"`
	UseSimpleDownloader bool   `json:"use_simple_downloader"`
}

// InstanceFile represents a row in the object_instance_files table.
type InstanceFile struct {
	Filename       string `json:"filename"`
	Dedicated      bool   `json:"dedicated"`
	DeletionPolicy int    `json:"deletion_policy"`
}

// FeedbackSubscription represents a row in the feedback_subscriptions table.
type FeedbackSubscription struct {
	Handle         string    `json:"handle"`
	ManagerID      string    `json:"manager_id"`
	DescendentsToo bool      `json:"descendents_too"`
	Created        time.Time `json:"created"`
}

// Listing is one row of a manager, stream or object listing.
type Listing struct {
	ID       string
	Cookie   *string
	Name     string
	ParentID *string
}

// Owner locates a stream or object within the hierarchy.
type Owner struct {
	ManagerID string
	StreamID  string
	Cookie    *string
	Instance  int64
}
