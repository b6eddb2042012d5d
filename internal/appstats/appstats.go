package appstats

// SegmentStats describes one finalized segment of a capture session.
type SegmentStats struct {
	CreatedAt int64  `json:"createdAt"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

// UploadStats summarizes the outcome of one finalize batch.
type UploadStats struct {
	Attempted   int     `json:"attempted"`
	Uploaded    int     `json:"uploaded"`
	Failed      int     `json:"failed"`
	ProgressPct float64 `json:"progressPct"`
}

type SessionStats struct {
	OwnerID  string          `json:"ownerId"`
	Segments []*SegmentStats `json:"segments"`
	Uploads  *UploadStats    `json:"uploads,omitempty"`
}
