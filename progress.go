package unitypackage

// ProgressEvent represents a progress update during pack, extract, or list operations.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the archive entry or asset currently being processed, if applicable.
	Path string

	// BytesDone is the number of content bytes handled so far in this stage.
	BytesDone uint64

	// FilesDone is the number of entries or assets completed in this stage.
	FilesDone int

	// FilesTotal is the total number of entries or assets in this stage.
	// Zero indicates the total is unknown (e.g., while decoding).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates meta files are being discovered.
	StageEnumerating ProgressStage = iota

	// StageStaging indicates assets are being copied into the staging area.
	StageStaging

	// StageCompressing indicates staged groups are being written to the archive.
	StageCompressing

	// StageDecoding indicates archive entries are being decoded into staging.
	StageDecoding

	// StageExtracting indicates staged groups are being placed in the output tree.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageStaging:
		return "staging"
	case StageCompressing:
		return "compressing"
	case StageDecoding:
		return "decoding"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Calls are made sequentially from the goroutine running the operation.
type ProgressFunc func(ProgressEvent)

// reporter fans events out to an optional ProgressFunc.
type reporter struct {
	fn ProgressFunc
}

func (r reporter) report(stage ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if r.fn == nil {
		return
	}
	r.fn(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}
