// Package opencv decodes video files with OpenCV through gocv. It is only
// compiled with the gocv build tag, since it needs the OpenCV shared libraries:
//
//	go build -tags gocv ./cmd/...
package opencv
