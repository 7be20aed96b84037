package config

const (
	// MaxEntryNameLength is the maximum length for file and folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (names should be short and descriptive).
	MaxEntryNameLength = 255

	// MaxUploadBatchEntries bounds a single ingestion batch. Larger
	// uploads must be split by the client; one transaction holding more
	// rows than this starves other writers.
	MaxUploadBatchEntries = 5000
)
