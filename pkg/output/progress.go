package output

import (
	"io"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/dirmirror/pkg/mirror"
	"golang.org/x/term"
)

const (
	progressTemplate = `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{etime . }} {{string . "file"}}`

	progressRefreshRate = 200 * time.Millisecond
	progressMaxWidth    = 120
)

// Progress renders a progress bar across all actions of a cycle. It
// implements mirror.Observer.
type Progress struct {
	writer  io.Writer
	enabled bool
	bar     *pb.ProgressBar
}

// NewProgress creates a progress bar writing to w. It stays silent unless w
// is a terminal.
func NewProgress(w io.Writer) *Progress {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &Progress{writer: w, enabled: enabled}
}

// NewForcedProgress creates a progress bar that renders to any writer
func NewForcedProgress(w io.Writer) *Progress {
	return &Progress{writer: w, enabled: true}
}

// Enabled reports whether the bar renders anything
func (p *Progress) Enabled() bool {
	return p.enabled
}

// Begin starts the bar
func (p *Progress) Begin(total int, totalBytes int64) {
	if !p.enabled || total == 0 {
		return
	}

	p.bar = pb.ProgressBarTemplate(progressTemplate).New(total)
	p.bar.SetWriter(p.writer)
	p.bar.SetRefreshRate(progressRefreshRate)
	p.bar.SetMaxWidth(progressMaxWidth)
	p.bar.Set("file", "")
	p.bar.Start()
}

// Done advances the bar by one action
func (p *Progress) Done(task *mirror.FileTask) {
	if p.bar == nil {
		return
	}
	p.bar.Set("file", task.RelativePath)
	p.bar.Increment()
}

// End stops the bar and leaves its final state on screen
func (p *Progress) End() {
	if p.bar == nil {
		return
	}
	p.bar.Set("file", "")
	p.bar.Finish()
	p.bar = nil
}

var _ mirror.Observer = (*Progress)(nil)
