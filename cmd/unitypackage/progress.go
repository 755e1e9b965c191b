package main

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/meigma/unitypackage"
)

// progressBars renders progress events, one bar per stage.
type progressBars struct {
	w     io.Writer
	stage unitypackage.ProgressStage
	bar   *progressbar.ProgressBar
}

func newProgressBars(w io.Writer) *progressBars {
	return &progressBars{w: w}
}

// Func returns the callback to pass to a unitypackage operation.
func (p *progressBars) Func() unitypackage.ProgressFunc {
	return func(e unitypackage.ProgressEvent) {
		if p.bar == nil || e.Stage != p.stage {
			p.start(e)
		}
		_ = p.bar.Set(e.FilesDone) //nolint:errcheck // rendering only
	}
}

func (p *progressBars) start(e unitypackage.ProgressEvent) {
	p.Finish()
	total := e.FilesTotal
	if total == 0 {
		total = -1
	}
	p.stage = e.Stage
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(e.Stage.String()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// Finish completes the current bar, if any.
func (p *progressBars) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish() //nolint:errcheck // rendering only
	p.bar = nil
}

// progress returns nil bars and a nil callback when progress output is disabled.
func (g *globals) progress(w io.Writer) (*progressBars, unitypackage.ProgressFunc) {
	if g.noProgress {
		return nil, nil
	}
	bars := newProgressBars(w)
	return bars, bars.Func()
}
