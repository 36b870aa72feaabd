package types

import "context"

// MediaFormat is one raw encoding reported by the extraction engine for a
// single item.
type MediaFormat struct {
	FormatID   string
	Ext        string
	Height     int
	Bitrate    float64
	VideoCodec string
	AudioCodec string
}

func (f MediaFormat) HasVideo() bool {
	return f.VideoCodec != "" && f.VideoCodec != "none"
}

func (f MediaFormat) HasAudio() bool {
	return f.AudioCodec != "" && f.AudioCodec != "none"
}

// ItemInfo is probe metadata for a single downloadable item.
type ItemInfo struct {
	Title   string
	Formats []MediaFormat
}

// CollectionInfo is probe metadata for a playlist or other multi-item URL.
type CollectionInfo struct {
	Title   string
	Entries []CollectionEntry
}

type CollectionEntry struct {
	URL   string
	Title string
}

// ProbeResult carries exactly one of Item or Collection.
type ProbeResult struct {
	Item       *ItemInfo
	Collection *CollectionInfo
}

// Engine is the external extraction capability: given a URL and a selector
// it produces a local artifact or fails. Probe never downloads.
type Engine interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	Fetch(ctx context.Context, job *Job, sink func(Progress)) (*Artifact, error)
}

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MessageRef identifies a sent chat message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Notifier is the chat channel used for menus, progress and results. All
// calls are fire-and-report; callers consume nothing beyond success or
// failure.
type Notifier interface {
	SendText(chatID int64, replyToID int, text string) (MessageRef, error)
	EditOrReply(ref MessageRef, text string) error
	SendMedia(chatID int64, replyToID int, kind MediaKind, path, caption string) error
}

// Uploader is the fallback file host for artifacts over the inline limit.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
