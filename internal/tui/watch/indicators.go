package watch

import (
	"strings"
	"time"

	"github.com/mattjoyce/ctlstudio/internal/tui"
)

// Ticker rotates through frames to show the watcher is alive.
// Stops rotating if no ticks arrive (indicates freeze).
type Ticker struct {
	frames   []string
	index    int
	lastTick time.Time
}

func NewTicker() Ticker {
	return Ticker{
		frames:   []string{"⟲", "⟳"},
		lastTick: time.Now(),
	}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
	t.lastTick = time.Now()
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Pulse lights up when an event or status update arrives and fades out over
// ten seconds.
type Pulse struct {
	dots     int
	lastSeen time.Time
}

func (p *Pulse) Hit(at time.Time) {
	p.dots = 5
	p.lastSeen = at
}

// Decay fades the dots based on the time since the last hit.
func (p *Pulse) Decay(now time.Time) {
	if p.dots == 0 {
		return
	}
	p.dots = max(0, 5-int(now.Sub(p.lastSeen)/(2*time.Second)))
}

func (p Pulse) Render(theme tui.Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < p.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}

func (p Pulse) LastSeen() time.Time {
	return p.lastSeen
}
