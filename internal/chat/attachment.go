package chat

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// AttachmentKind selects the inline preview strategy for an attachment.
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentVideo   AttachmentKind = "video"
	AttachmentAudio   AttachmentKind = "audio"
	AttachmentGeneric AttachmentKind = "file"
)

// Attachment describes a file attached to a message. URL and thumbnail
// generation belong to the storage collaborator; the client only reads
// them.
type Attachment struct {
	ID           int64  `json:"id"`
	MimeType     string `json:"mime_type"`
	FileName     string `json:"file_name"`
	ByteSize     int64  `json:"byte_size"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ThumbnailW   int    `json:"thumbnail_w,omitempty"`
	ThumbnailH   int    `json:"thumbnail_h,omitempty"`
}

// Kind maps the mime type onto a preview strategy. Anything outside the
// three media families renders as a generic file row.
func (a Attachment) Kind() AttachmentKind {
	mime := strings.ToLower(strings.TrimSpace(a.MimeType))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mime, "video/"):
		return AttachmentVideo
	case strings.HasPrefix(mime, "audio/"):
		return AttachmentAudio
	default:
		return AttachmentGeneric
	}
}

// HumanSize renders the byte size for display ("1.2 MB").
func (a Attachment) HumanSize() string {
	if a.ByteSize < 0 {
		return ""
	}
	return humanize.Bytes(uint64(a.ByteSize))
}
