package main

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
)

const barTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}} {{ string . "detected" }}`

// barProgress draws a terminal progress bar for a pipeline run. The total is
// the source's frame count estimate, which some containers do not report.
type barProgress struct {
	w        io.Writer
	bar      *pb.ProgressBar
	detected int
	frames   int
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) Start(info port.SourceInfo) {
	p.bar = pb.ProgressBarTemplate(barTemplate).New(info.FrameCount)
	p.bar.SetWriter(p.w)
	p.bar.Set("prefix", "frames")
	p.bar.Start()
}

func (p *barProgress) Frame(index int, detected bool) {
	p.frames++
	if detected {
		p.detected++
	}
	if p.bar == nil {
		return
	}
	p.bar.Set("detected", detectedLabel(p.detected, p.frames))
	p.bar.Increment()
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func detectedLabel(detected, frames int) string {
	if frames == 0 {
		return ""
	}
	return fmt.Sprintf("pose in %d/%d", detected, frames)
}
