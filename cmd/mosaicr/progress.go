package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/ironsheep/mosaicr/internal/mosaic"
)

var (
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// progress prints one line per stage. With the spinner enabled the current
// line is redrawn in place until the stage ends.
type progress struct {
	out     io.Writer
	animate bool

	mu      sync.Mutex
	stage   mosaic.Stage
	done    int
	total   int
	spin    spinner.Model
	started bool
	stopped bool

	quit chan struct{}
	wg   sync.WaitGroup
}

func newProgress(out io.Writer, animate bool) *progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &progress{out: out, animate: animate, spin: s, quit: make(chan struct{})}
}

// update is a mosaic.ProgressFunc. It is safe for concurrent use.
func (p *progress) update(stage mosaic.Stage, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	if stage != p.stage {
		if p.stage != 0 {
			p.finishLine()
		}
		p.stage = stage
		p.done, p.total = 0, 0
		if !p.animate {
			fmt.Fprintf(p.out, "%d/%d %s...\n", int(stage), mosaic.StageCount, stage)
		}
		if p.animate && !p.started {
			p.started = true
			p.wg.Add(1)
			go p.loop()
		}
	}
	if done > p.done {
		p.done = done
	}
	if total > 0 {
		p.total = total
	}
	if p.animate {
		p.render()
	}
}

// indexed closes the source analysis line and reports the corpus size.
func (p *progress) indexed(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.stage != 0 {
		p.finishLine()
		p.stage = 0
	}
	fmt.Fprintf(p.out, "Added %d source images.\n", count)
}

// stop ends the current stage line and the spinner.
func (p *progress) stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.stage != 0 {
		p.finishLine()
	}
	started := p.started
	p.mu.Unlock()

	if started {
		close(p.quit)
		p.wg.Wait()
	}
}

func (p *progress) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.mu.Lock()
			if !p.stopped && p.stage != 0 {
				p.spin, _ = p.spin.Update(spinner.TickMsg{})
				p.render()
			}
			p.mu.Unlock()
		}
	}
}

// render redraws the current stage line. Callers hold mu.
func (p *progress) render() {
	fmt.Fprintf(p.out, "\r\033[K%s %s", p.spin.View(), p.line())
}

// finishLine marks the current stage as complete. Callers hold mu.
func (p *progress) finishLine() {
	if !p.animate {
		return
	}
	fmt.Fprintf(p.out, "\r\033[K%s %s\n", doneStyle.Render("✓"), p.line())
}

func (p *progress) line() string {
	s := fmt.Sprintf("%d/%d %s...", int(p.stage), mosaic.StageCount, p.stage)
	if p.total > 0 {
		s += " " + countStyle.Render(fmt.Sprintf("%d/%d", p.done, p.total))
	}
	return s
}
