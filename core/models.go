package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Priority orders jobs across lanes. Higher priorities are always
// dispatched before lower ones when a worker asks for its next job.
type Priority int

const (
	// PriorityLow is for background work that can wait.
	PriorityLow Priority = iota + 1
	// PriorityNormal is the default for submissions.
	PriorityNormal
	// PriorityHigh is for latency-sensitive submissions.
	PriorityHigh
)

// ParsePriority parses a priority label case-insensitively.
// Returns ErrInvalidPriority for anything outside {high, normal, low}.
func ParsePriority(label string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, ErrInvalidPriority
	}
}

// String returns the canonical lowercase label.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Lane returns the queue lane this priority maps to. The mapping is
// fixed and total; there is no runtime reconfiguration.
func (p Priority) Lane() string {
	return "docq:" + p.String()
}

// Lanes returns all lane names in dispatch precedence order.
func Lanes() []string {
	return []string{PriorityHigh.Lane(), PriorityNormal.Lane(), PriorityLow.Lane()}
}

// Status is the lifecycle state of a job. Transitions are monotonic:
// queued -> started -> finished|failed, never backwards.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// rank returns the position of a status in the lifecycle. Terminal
// states share a rank since a job reaches exactly one of them.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusStarted:
		return 1
	case StatusFinished, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether a status is an end state.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// JobKind distinguishes single-document jobs from batch jobs.
type JobKind string

const (
	KindSingle JobKind = "single"
	KindBatch  JobKind = "batch"
)

// Margins are the page trim margins applied during extraction, in points.
type Margins struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// DefaultMargins trims typical running headers and footers.
func DefaultMargins() Margins {
	return Margins{Left: 0, Top: 50, Right: 0, Bottom: 30}
}

// ExtractionOptions tunes the extraction engine for one job.
// Zero values mean engine defaults.
type ExtractionOptions struct {
	Margins         *Margins `json:"margins,omitempty"`
	HeaderMaxLevels int      `json:"header_max_levels,omitempty"`
	HeaderBodyLimit int      `json:"header_body_limit,omitempty"`
}

// ChunkStrategy selects how extracted text is split into chunks.
type ChunkStrategy string

const (
	// ChunkNone disables chunking; the job yields extraction output only.
	ChunkNone ChunkStrategy = ""
	// ChunkHeader splits at marker-prefixed header lines.
	ChunkHeader ChunkStrategy = "header"
	// ChunkToken splits into fixed-size sliding windows with overlap.
	ChunkToken ChunkStrategy = "token"
)

// ChunkOptions tunes the chunker for one job.
type ChunkOptions struct {
	Strategy ChunkStrategy `json:"strategy,omitempty"`
	Size     int           `json:"size,omitempty"`
	Overlap  int           `json:"overlap,omitempty"`
	// MinLength is the minimum trimmed length a header chunk must reach
	// to be emitted. Zero means the default of 100.
	MinLength int `json:"min_length,omitempty"`
}

// ProcessOptions is the closed configuration schema carried by a job.
// Fields a submitter sends outside the schema go into Extra and are
// never merged into the typed fields.
type ProcessOptions struct {
	Extraction ExtractionOptions `json:"extraction"`
	Chunking   ChunkOptions      `json:"chunking"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// BatchFile is one (payload, filename) entry of a batch submission.
type BatchFile struct {
	Payload  []byte `json:"payload"`
	Filename string `json:"filename"`
}

// JobDescriptor is the immutable submission unit placed on a lane.
// It is consumed exactly once by one worker.
type JobDescriptor struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	Payload     []byte         `json:"payload,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Files       []BatchFile    `json:"files,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Priority    Priority       `json:"priority"`
	Lane        string         `json:"lane"`
	Options     ProcessOptions `json:"options"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// ExtractionMetadata is the structural metadata produced alongside
// extracted text.
type ExtractionMetadata struct {
	Pages           int     `json:"pages"`
	HeadersStrategy string  `json:"headers_strategy"`
	HeaderLevels    int     `json:"header_levels_detected"`
	Margins         Margins `json:"margins"`
	OutputSizeChars int     `json:"output_size_chars"`
}

// ExtractionResult is the immutable output of one engine invocation.
type ExtractionResult struct {
	Text     string             `json:"text"`
	Metadata ExtractionMetadata `json:"structural_metadata"`
}

// Chunk is a bounded span of extracted text. Ordinals within one
// document are unique and strictly increasing.
type Chunk struct {
	Text    string `json:"text"`
	Ordinal int    `json:"ordinal"`

	// Header boundary metadata. Header is empty for content preceding
	// the first header line.
	Header      string `json:"header,omitempty"`
	HeaderLevel int    `json:"header_level,omitempty"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`

	// Token-window boundary metadata.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	Filename string `json:"filename,omitempty"`
}

// JobResult is the stable result shape stored for a finished job and
// handed to any downstream persistence hook.
type JobResult struct {
	Text           string             `json:"text"`
	Metadata       ExtractionMetadata `json:"structural_metadata"`
	Chunks         []Chunk            `json:"chunks,omitempty"`
	Filename       string             `json:"filename,omitempty"`
	ProcessingTime float64            `json:"processing_time"`
	Batch          *BatchResult       `json:"batch,omitempty"`
}

// BatchOutcome records the result of one file within a batch, in the
// order the files were submitted.
type BatchOutcome struct {
	Index          int     `json:"index"`
	Filename       string  `json:"filename"`
	Success        bool    `json:"success"`
	Text           string  `json:"text,omitempty"`
	Chunks         []Chunk `json:"chunks,omitempty"`
	Error          string  `json:"error,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

// BatchResult aggregates the per-file outcomes of a batch job.
// A single file's failure never aborts its siblings; a batch-level
// precondition failure yields Ok=false with zero outcomes.
type BatchResult struct {
	BatchID     string         `json:"batch_id"`
	Ok          bool           `json:"ok"`
	Error       string         `json:"error,omitempty"`
	TotalFiles  int            `json:"total_files"`
	Successful  int            `json:"successful_extractions"`
	Failed      int            `json:"failed_extractions"`
	Outcomes    []BatchOutcome `json:"results"`
	TotalTime   float64        `json:"total_processing_time"`
	AverageTime float64        `json:"average_processing_time"`
}

// JobRecord is the mutable tracking record for a job. It is created at
// enqueue time, mutated only by the worker that owns the job, and purged
// by the broker once its retention TTL elapses.
type JobRecord struct {
	ID          string     `json:"job_id"`
	Status      Status     `json:"status"`
	Lane        string     `json:"lane"`
	Filename    string     `json:"filename,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Worker      string     `json:"worker,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewJobID generates a globally unique job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// FingerprintPayload generates a deterministic fingerprint of a payload
// using BLAKE2b hashing. Identical payloads produce identical fingerprints.
func FingerprintPayload(payload []byte) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
