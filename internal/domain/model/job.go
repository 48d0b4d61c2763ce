package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// OutputSuffix is appended to the input file stem to name the flashcard file.
const OutputSuffix = "_flashcards.txt"

// Job maps one input document to one generated output.
// It is mutated in place by the worker that processes it.
type Job struct {
	ID          string
	BatchID     string
	Index       int // position in the original input order
	SourcePath  string
	DisplayName string
	PromptName  string
	Prompt      string
	Header      string // written before the generated text
	OutputPath  string

	// SkipExisting reuses an existing output even when the dispatcher is set to overwrite.
	SkipExisting bool

	Status    JobStatus
	Attempts  int
	Retries   int
	LastError string
	Result    string
	Skipped   bool // output file already existed
	Cached    bool // served from the result cache
	Pages     int
	Duration  time.Duration

	CreatedAt   time.Time
	CompletedAt time.Time
}

// NewJob builds a pending job whose output is <outputDir>/<stem>_flashcards.txt.
func NewJob(index int, sourcePath, prompt, outputDir string) *Job {
	name := filepath.Base(sourcePath)
	return &Job{
		ID:          uuid.NewString(),
		Index:       index,
		SourcePath:  sourcePath,
		DisplayName: name,
		Prompt:      prompt,
		OutputPath:  filepath.Join(outputDir, Stem(name)+OutputSuffix),
		Status:      JobStatusPending,
		CreatedAt:   time.Now(),
	}
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (j *Job) Succeeded() bool { return j.Status == JobStatusSuccess }

func (j *Job) MarkSuccess(result string) {
	j.Status = JobStatusSuccess
	j.Result = result
	j.LastError = ""
	j.CompletedAt = time.Now()
}

func (j *Job) MarkFailed(err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.LastError = err.Error()
	}
	j.CompletedAt = time.Now()
}
