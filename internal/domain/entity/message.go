package entity

import "github.com/google/uuid"

// PoseExtractionMessage is the inbound message from the pose.extraction queue.
type PoseExtractionMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// PoseStatusMessage is the outbound message published to the pose.status queue.
type PoseStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	Status         JobStatus `json:"status"`
	VideoKey       string    `json:"video_key"`
	CSVKey         string    `json:"csv_key,omitempty"`
	FrameCount     int       `json:"frame_count,omitempty"`
	DetectedFrames int       `json:"detected_frames,omitempty"`
	Duration       float64   `json:"duration_seconds,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
