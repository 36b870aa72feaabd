package types

// Job is one accepted download request. Immutable once enqueued; the worker
// is its only consumer and it has no existence after processing finishes.
type Job struct {
	ID           string
	RequesterKey int64
	ChatID       int64
	ReplyToID    int
	SourceURL    string
	Selector     string
	Title        string
	IsPlaylist   bool
	IsAudioOnly  bool
}

// Artifact is the local file produced by a fetch, owned by the worker until
// cleanup.
type Artifact struct {
	LocalPath string
	SizeBytes int64
	Title     string
}

// Progress is a single progress event emitted from inside a fetch call.
type Progress struct {
	Percent    float64
	TotalBytes int64
	Speed      string
	ETA        string
}
