package domain

import "time"

type Label string

const (
	LabelClear     Label = "Clear"
	LabelAmbiguous Label = "Ambiguous"
	LabelError     Label = "Error"
)

type ResultStatus string

const (
	StatusClear     ResultStatus = "clear"
	StatusAmbiguous ResultStatus = "ambiguous"
	StatusError     ResultStatus = "error"
)

const (
	NoContextRewrite   = "No relevant context found."
	MaxEvidenceItems   = 5
	apiErrorPrefix     = "API Error: "
	resolveErrorPrefix = "Error: "
)

// Classification is the raw classifier verdict for a single sentence.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// IsClear accepts the label spellings produced by the supported classifiers.
func (c Classification) IsClear() bool {
	switch c.Label {
	case "Clear", "Clean", "LABEL_0":
		return true
	default:
		return false
	}
}

// Resolution is the rewrite produced for an ambiguous sentence.
type Resolution struct {
	Rewrite  string     `json:"rewrite"`
	Evidence []Evidence `json:"evidence"`
}

func NoContextResolution() Resolution {
	return Resolution{Rewrite: NoContextRewrite, Evidence: []Evidence{}}
}

func GenerationFailedResolution(err error) Resolution {
	return Resolution{Rewrite: apiErrorPrefix + err.Error(), Evidence: []Evidence{}}
}

func ResolveErrorRewrite(err error) string {
	return resolveErrorPrefix + err.Error()
}

// AnalysisResult is created once per sentence per run and never mutated.
type AnalysisResult struct {
	Sentence   string       `json:"sentence"`
	Label      Label        `json:"label"`
	Confidence float64      `json:"confidence"`
	Status     ResultStatus `json:"status"`
	Rewrite    *string      `json:"rewrite,omitempty"`
	Evidence   []Provenance `json:"evidence"`
	Error      string       `json:"error,omitempty"`
}

type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunStopped   RunState = "stopped"
)

// RunSnapshot is a point-in-time copy of a batch run.
type RunSnapshot struct {
	ID        string           `json:"id"`
	State     RunState         `json:"state"`
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
	Results   []AnalysisResult `json:"results"`
}

// Summary aggregates results the way the report presents them. Errors count
// as ambiguous because they are not confirmed clear.
type Summary struct {
	Total         int     `json:"total"`
	Clear         int     `json:"clear"`
	Ambiguous     int     `json:"ambiguous"`
	AmbiguityRate float64 `json:"ambiguity_rate"`
}

func Summarize(results []AnalysisResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Label == LabelClear {
			s.Clear++
		}
	}
	s.Ambiguous = s.Total - s.Clear
	if s.Total > 0 {
		s.AmbiguityRate = float64(s.Ambiguous) / float64(s.Total) * 100
	}
	return s
}

// RunRecord is a finished run as kept in run history. Listings leave Results
// empty.
type RunRecord struct {
	ID         string           `json:"id"`
	State      RunState         `json:"state"`
	Total      int              `json:"total"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Summary    Summary          `json:"summary"`
	Results    []AnalysisResult `json:"results,omitempty"`
}

func NewRunRecord(s RunSnapshot) RunRecord {
	return RunRecord{
		ID:         s.ID,
		State:      s.State,
		Total:      s.Total,
		StartedAt:  s.StartedAt,
		FinishedAt: s.StartedAt.Add(s.Elapsed),
		Summary:    Summarize(s.Results),
		Results:    s.Results,
	}
}
