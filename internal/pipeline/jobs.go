package pipeline

import (
	"sync"
	"time"
)

// JobStatus represents the state of a talk transcription job.
type JobStatus string

const (
	StatusQueued           JobStatus = "queued"
	StatusDownloading      JobStatus = "downloading"
	StatusTranscribing     JobStatus = "transcribing"
	StatusExtractingFrames JobStatus = "extracting_frames"
	StatusOCR              JobStatus = "ocr"
	StatusWriting          JobStatus = "writing"
	StatusCompleted        JobStatus = "completed"
	StatusFailed           JobStatus = "failed"
	StatusPartial          JobStatus = "partial"
)

// Job tracks the state of a single talk through the pipeline.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	TalkID string `json:"talk_id"`
	URL    string `json:"url"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks how far a job has gotten.
type Progress struct {
	TotalFrames    int      `json:"total_frames"`
	FramesOCRd     int      `json:"frames_ocrd"`
	Segments       int      `json:"segments"`
	OCRExtractions int      `json:"ocr_extractions"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job for one talk URL.
func NewJob(talkID, url string) *Job {
	now := time.Now()
	return &Job{
		ID:        NewID(),
		TalkID:    talkID,
		URL:       url,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error without failing the job.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalFrames records how many frames were extracted.
func (j *Job) SetTotalFrames(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalFrames = n
	j.UpdatedAt = time.Now()
}

// IncrFramesOCRd marks one more frame as recognized.
func (j *Job) IncrFramesOCRd() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.FramesOCRd++
	j.UpdatedAt = time.Now()
}

// SetCounts records the final transcript and extraction counters.
func (j *Job) SetCounts(segments, extractions int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Segments = segments
	j.Progress.OCRExtractions = extractions
	j.UpdatedAt = time.Now()
}

// HasErrors reports whether any non-fatal errors were recorded.
func (j *Job) HasErrors() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.errors) > 0
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	TalkID   string    `json:"talk_id"`
	URL      string    `json:"url"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:        j.ID,
		TalkID:    j.TalkID,
		URL:       j.URL,
		Status:    j.Status,
		Phase:     j.Phase,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Progress: Progress{
			TotalFrames:    j.Progress.TotalFrames,
			FramesOCRd:     j.Progress.FramesOCRd,
			Segments:       j.Progress.Segments,
			OCRExtractions: j.Progress.OCRExtractions,
			Errors:         errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
