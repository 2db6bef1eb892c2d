package watch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ctlstudio/internal/events"
)

// EventsPath is the controller's server-sent event stream.
const EventsPath = "/api/v1/events"

// --- Message types ---

type eventMsg events.Event

type tickMsg time.Time

type wakeMsg struct{}

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the event stream and feeds events into ch.
// It returns sseDisconnectedMsg when the connection drops. lastID is sent as
// Last-Event-ID so a reconnect does not replay what was already seen.
func subscribeToEvents(ctx context.Context, apiURL, token string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(apiURL, "/")+EventsPath, nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Accept", "text/event-stream")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("event stream: %s", resp.Status))
		}

		_ = readSSE(resp.Body, func(ev events.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
		return sseDisconnectedMsg{}
	}
}

// readSSE parses a text/event-stream body, calling emit for every complete
// event. Comment lines are skipped.
func readSSE(body io.Reader, emit func(events.Event)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

	var current events.Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				current.At = time.Now()
				current.Data = []byte(strings.Join(data, "\n"))
				emit(current)
			}
			current = events.Event{}
			data = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			current.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = append(data, line[6:])
		}
	}
	return scanner.Err()
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func waitForWake(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return wakeMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
