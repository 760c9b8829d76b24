// Package talk defines the transcription record written for each processed
// talk and the append-only JSONL sink those records land in.
package talk

import "time"

// Segment is a time-bounded span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the speech-recognition output for one talk.
type Transcript struct {
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// OCRExtraction is the text recovered from a single video frame.
type OCRExtraction struct {
	ImagePath string `json:"image_path"`
	Text      string `json:"text"`
	// FrameLabel is the frame's sequence label, derived from the image
	// filename, e.g. "0004" for the frame captured at 4 intervals in.
	FrameLabel string `json:"timestamp"`
}

// ProcessingInfo carries summary counters for a processed talk.
type ProcessingInfo struct {
	AudioDuration       float64 `json:"audio_duration"`
	TotalSegments       int     `json:"total_segments"`
	TotalOCRExtractions int     `json:"total_ocr_extractions"`
}

// Record is the complete result for one talk. Records are appended to the
// output file independently and never updated in place.
type Record struct {
	TalkID         string          `json:"talk_id"`
	URL            string          `json:"url"`
	Timestamp      string          `json:"timestamp"`
	Transcript     Transcript      `json:"asr_transcript"`
	OCRExtractions []OCRExtraction `json:"ocr_extractions"`
	ProcessingInfo ProcessingInfo  `json:"processing_info"`
}

// NewRecord assembles a Record from its parts, filling in the timestamp and
// summary counters.
func NewRecord(talkID, url string, tr Transcript, extractions []OCRExtraction) Record {
	duration := 0.0
	if n := len(tr.Segments); n > 0 {
		duration = tr.Segments[n-1].End
	}
	if extractions == nil {
		extractions = []OCRExtraction{}
	}
	return Record{
		TalkID:         talkID,
		URL:            url,
		Timestamp:      time.Now().Format(time.RFC3339),
		Transcript:     tr,
		OCRExtractions: extractions,
		ProcessingInfo: ProcessingInfo{
			AudioDuration:       duration,
			TotalSegments:       len(tr.Segments),
			TotalOCRExtractions: len(extractions),
		},
	}
}
