package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocID identifies a document in the catalog. Stable and unique.
type DocID uint64

// TagID identifies a tag definition.
type TagID uint64

// Document is the record served by GET /documents/json.
// Timestamps are seconds since the epoch; a zero DocDate means unknown.
type Document struct {
	ID               DocID     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	Title            string    `json:"title"`
	Tags             []TagID   `json:"tags"`
	ImportedDate     int64     `json:"imported_date"`
	Extracted        Extracted `json:"extracted"`
	Language         string    `json:"language"`
	Hash             string    `json:"hash"`
	FileSize         uint64    `json:"file_size"`
}

// Extracted holds metadata the server pulled out of the document body.
type Extracted struct {
	DocDate int64    `json:"doc_date"`
	Phone   []string `json:"phone"`
	Email   []string `json:"email"`
	Link    []string `json:"link"`
	IBAN    []string `json:"iban"`
}

// Imported returns the import time.
func (d Document) Imported() time.Time {
	return time.Unix(d.ImportedDate, 0)
}

// DocumentDate returns the extracted document date, if the server found one.
func (d Document) DocumentDate() (time.Time, bool) {
	if d.Extracted.DocDate <= 0 {
		return time.Time{}, false
	}
	return time.Unix(d.Extracted.DocDate, 0), true
}

// HasTag reports whether the document carries tag.
func (d Document) HasTag(tag TagID) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WithTag returns a copy of d with tag added (no duplicates).
func (d Document) WithTag(tag TagID) Document {
	if d.HasTag(tag) {
		return d
	}
	tags := make([]TagID, len(d.Tags), len(d.Tags)+1)
	copy(tags, d.Tags)
	d.Tags = append(tags, tag)
	return d
}

// WithoutTag returns a copy of d with every occurrence of tag removed.
func (d Document) WithoutTag(tag TagID) Document {
	tags := make([]TagID, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	d.Tags = tags
	return d
}

// Tag is a tag definition. Deactivated tags are still served so documents
// referencing them can be resolved.
type Tag struct {
	ID          TagID  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Deactivated bool   `json:"deactivated"`
}

// JobStatus is the singleton state of the server's processing queue.
// On the wire it is either the string "Idle" or
// {"Busy": {"current": "...", "progress": 0, "queue": 3}}.
type JobStatus struct {
	Busy     bool
	Current  string
	Progress int
	Queue    int
}

// Pending returns the number of documents still to process, including the
// one currently running. Zero when idle.
func (s JobStatus) Pending() int {
	if !s.Busy {
		return 0
	}
	return s.Queue + 1
}

type busyPayload struct {
	Current  string `json:"current"`
	Progress int    `json:"progress"`
	Queue    int    `json:"queue"`
}

// UnmarshalJSON decodes the externally tagged status enum.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "Idle" {
			return fmt.Errorf("unknown job status %q", tag)
		}
		*s = JobStatus{}
		return nil
	}

	var obj struct {
		Busy *busyPayload `json:"Busy"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Busy == nil {
		return fmt.Errorf("job status: missing Busy payload")
	}
	*s = JobStatus{
		Busy:     true,
		Current:  obj.Busy.Current,
		Progress: obj.Busy.Progress,
		Queue:    obj.Busy.Queue,
	}
	return nil
}

// MarshalJSON encodes the status in the server's wire format.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	if !s.Busy {
		return json.Marshal("Idle")
	}
	return json.Marshal(map[string]busyPayload{
		"Busy": {Current: s.Current, Progress: s.Progress, Queue: s.Queue},
	})
}

// Patch is a partial metadata update for PATCH /documents/{id}.
// Nil fields are left untouched by the server.
type Patch struct {
	Title     *string         `json:"title,omitempty"`
	Language  *string         `json:"language,omitempty"`
	Tags      []TagID         `json:"tags,omitempty"`
	Extracted *ExtractedPatch `json:"extracted,omitempty"`
}

// ExtractedPatch updates extracted fields. DocDate is always serialized
// (null when unset) because the server requires the key.
type ExtractedPatch struct {
	DocDate *int64   `json:"doc_date"`
	Phone   []string `json:"phone,omitempty"`
	Email   []string `json:"email,omitempty"`
	Link    []string `json:"link,omitempty"`
	IBAN    []string `json:"iban,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Language == nil && p.Tags == nil && p.Extracted == nil
}
