package domain

// SchemaVersion identifies the result record wire format.
const SchemaVersion = 1

// AcquireResult is the terminal success value for one item. The engine
// retains no reference once it is returned.
type AcquireResult struct {
	Bytes        []byte     `json:"-"`
	MIME         string     `json:"mime"`
	FilenameHint string     `json:"filename_hint,omitempty"`
	Platform     PlatformID `json:"platform"`
	Method       string     `json:"method"`

	// Tier is the 1-based position of Method in the adapter's declared
	// fallback chain. Lower tier implies higher expected fidelity.
	Tier int `json:"tier"`

	WidthPx    int  `json:"width_px,omitempty"`
	HeightPx   int  `json:"height_px,omitempty"`
	ByteLength int  `json:"byte_length"`
	IsPreview  bool `json:"is_preview"`
}

// ResultRecord is the per-item output line handed to downstream consumers,
// success or failure. Records are emitted in item index order.
type ResultRecord struct {
	SchemaVersion int        `json:"schema_version"`
	OK            bool       `json:"ok"`
	ItemIndex     int        `json:"item_index"`
	Platform      PlatformID `json:"platform"`

	// Success fields
	Method     string `json:"method,omitempty"`
	Tier       int    `json:"tier,omitempty"`
	Path       string `json:"path,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	ByteLength int    `json:"byte_length,omitempty"`
	IsPreview  bool   `json:"is_preview,omitempty"`

	// Failure field
	Error *Envelope `json:"error,omitempty"`
}

// NewSuccessRecord builds the record for an accepted result.
func NewSuccessRecord(itemIndex int, result *AcquireResult, path string) ResultRecord {
	return ResultRecord{
		SchemaVersion: SchemaVersion,
		OK:            true,
		ItemIndex:     itemIndex,
		Platform:      result.Platform,
		Method:        result.Method,
		Tier:          result.Tier,
		Path:          path,
		Width:         result.WidthPx,
		Height:        result.HeightPx,
		ByteLength:    result.ByteLength,
		IsPreview:     result.IsPreview,
	}
}

// NewFailureRecord builds the record for a terminal per-item error.
func NewFailureRecord(itemIndex int, platform PlatformID, env *Envelope) ResultRecord {
	return ResultRecord{
		SchemaVersion: SchemaVersion,
		OK:            false,
		ItemIndex:     itemIndex,
		Platform:      platform,
		Error:         env,
	}
}
