package progress

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Reporter receives enrichment progress. Step may be called from many
// goroutines at once.
type Reporter interface {
	Start(total int)
	Step(path string)
	Finish()
}

type Bar struct {
	total      int64
	current    int64
	width      int
	writer     io.Writer
	mu         sync.Mutex
	recentDirs []string
	lastUpdate time.Time
	started    bool
}

func New(w io.Writer) *Bar {
	return &Bar{
		width:  50,
		writer: w,
	}
}

func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total = int64(total)
	b.current = 0
	b.recentDirs = b.recentDirs[:0]
	b.lastUpdate = time.Now()
	b.started = true
	b.render()
}

// Step marks one file done and remembers its directory for display.
func (b *Bar) Step(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	b.current++
	b.noteDirectory(filepath.Base(filepath.Dir(path)))

	// Update at most every 100ms to reduce flickering
	now := time.Now()
	if now.Sub(b.lastUpdate) > 100*time.Millisecond || b.current == b.total {
		b.lastUpdate = now
		b.render()
	}
}

// noteDirectory keeps the last three distinct directories, newest last.
func (b *Bar) noteDirectory(dir string) {
	for i, d := range b.recentDirs {
		if d == dir {
			b.recentDirs = append(b.recentDirs[:i], b.recentDirs[i+1:]...)
			break
		}
	}
	b.recentDirs = append(b.recentDirs, dir)
	if len(b.recentDirs) > 3 {
		b.recentDirs = b.recentDirs[len(b.recentDirs)-3:]
	}
}

// render must be called with mu already locked
func (b *Bar) render() {
	if b.total == 0 {
		return
	}

	current := b.current
	if current > b.total {
		current = b.total
	}
	percent := float64(current) / float64(b.total) * 100
	filledWidth := int(float64(b.width) * float64(current) / float64(b.total))

	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", b.width-filledWidth)

	var dirDisplay string
	if len(b.recentDirs) > 0 {
		dirDisplay = " | " + strings.Join(b.recentDirs, ", ")
	}

	// Clear the line and write progress
	fmt.Fprintf(b.writer, "\r\033[K[%s] %3d%% (%d/%d)%s",
		bar, int(percent), current, b.total, dirDisplay)
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	b.started = false
	if b.total == 0 {
		return
	}
	b.current = b.total
	b.render()
	fmt.Fprintf(b.writer, "\n")
}
