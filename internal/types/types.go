package types

// ScanProgress represents scan progress for SSE updates.
type ScanProgress struct {
	Message    string
	Percentage float64
	HasPercent bool
	FilesFound int64
	Status     string
}
