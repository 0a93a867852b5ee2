package task

// Status describes where a task is in its lifecycle. Transitions follow the
// order pending -> fetching_info -> preparing_download -> downloading and end
// at finished or error; terminal states are never left.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFetchingInfo Status = "fetching_info"
	StatusPreparing    Status = "preparing_download"
	StatusDownloading  Status = "downloading"
	StatusFinished     Status = "finished"
	StatusError        Status = "error"
)

// Terminal reports whether no further mutation of the task is permitted.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Progress holds the evolving download counters for a task. Display strings
// (Speed, ETA, TotalBytesString) are copied verbatim from the worker.
type Progress struct {
	Percentage       float64 `json:"percentage"`
	Speed            string  `json:"speed"`
	ETA              string  `json:"eta"`
	TotalBytes       int64   `json:"total_bytes"`
	TotalBytesString string  `json:"total_bytes_string"`
	DownloadedBytes  int64   `json:"downloaded_bytes"`
}

// Task is one tracked download job. Filename, DownloadURL and ErrorMessage
// serialize as null until known, matching the client contract.
type Task struct {
	Status       Status   `json:"status"`
	Progress     Progress `json:"progress"`
	Filename     *string  `json:"filename"`
	DownloadURL  *string  `json:"download_url"`
	ErrorMessage *string  `json:"error_message"`
}

// New returns a pending task with zeroed progress.
func New() Task {
	return Task{Status: StatusPending}
}

// Clone returns a deep copy. Pointer fields are re-allocated so the copy
// shares no memory with the original.
func (t Task) Clone() Task {
	cp := t
	cp.Filename = cloneString(t.Filename)
	cp.DownloadURL = cloneString(t.DownloadURL)
	cp.ErrorMessage = cloneString(t.ErrorMessage)
	return cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
