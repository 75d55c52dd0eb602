package domain

// Exit/status codes shared by the engine client and the CLI.
const (
	StatusOK        = 0
	StatusFailOn    = 1
	StatusFatal     = 2
	StatusCancelled = 9
)

// EngineRequest asks the analysis engine to lint a set of files.
type EngineRequest struct {
	Args       []string `json:"args"`
	BaseDir    string   `json:"baseDir"`
	Includes   []string `json:"includes,omitempty"`
	Excludes   []string `json:"excludes,omitempty"`
	Parse      bool     `json:"parse"`
	Files      []string `json:"fileList,omitempty"`
	RequestKey string   `json:"requestKey,omitempty"`
}

// ResponseStatus discriminates EngineResponse.
type ResponseStatus int

const (
	ResponseSuccess ResponseStatus = iota
	ResponseCancelledByDuplicate
	ResponseEngineFailure
)

func (s ResponseStatus) String() string {
	switch s {
	case ResponseSuccess:
		return "success"
	case ResponseCancelledByDuplicate:
		return "cancelledByDuplicateRequest"
	case ResponseEngineFailure:
		return "error"
	default:
		return "unknown"
	}
}

// EngineViolation is one raw violation as reported by the engine.
type EngineViolation struct {
	Rule       string `json:"rule"`
	Priority   int    `json:"priority"`
	Line       int    `json:"line"`
	SourceLine string `json:"sourceLine,omitempty"`
	Message    string `json:"message"`
}

// EngineFile groups the raw violations of one analyzed file.
type EngineFile struct {
	Path       string            `json:"path"`
	Violations []EngineViolation `json:"violations"`
}

// EngineResponse is the outcome of one analysis request. Transport failures
// are not responses; they are returned as *TransportError.
type EngineResponse struct {
	Status      ResponseStatus
	Files       []EngineFile
	FileList    []string
	ParseErrors map[string][]string
	Stdout      string
	Error       *EngineError
}

// Cancelled reports whether the request was displaced by a newer one.
func (r *EngineResponse) Cancelled() bool {
	return r != nil && r.Status == ResponseCancelledByDuplicate
}
