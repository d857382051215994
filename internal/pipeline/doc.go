// Package pipeline turns a video into a CSV table of per-frame pose
// landmarks.
//
// A run opens a frame source, creates one pose estimator, and then for every
// decoded frame estimates the pose, encodes it into a fixed 133-field row and
// appends that row to the table. The table is streamed to its sink as rows are
// produced, so memory use does not grow with the length of the video. A frame
// without a detected pose is still emitted, with every landmark value set to
// zero, so the table always has exactly one row per decoded frame.
//
// A frame that fails to decode ends the stream: the run completes with the
// rows produced so far.
package pipeline
