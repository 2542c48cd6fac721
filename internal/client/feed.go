package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

// Subscribe opens the server-sent change stream. The channel closes when the
// stream ends or ctx is done.
func (c *Client) Subscribe(ctx context.Context, _ string) (<-chan model.ChangeEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/changes", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.authed.Do(req)
	if err != nil {
		return nil, unwrapTokenError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	events := make(chan model.ChangeEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readEvents(ctx, resp.Body, events)
	}()
	return events, nil
}

func readEvents(ctx context.Context, body io.Reader, events chan<- model.ChangeEvent) {
	sc := bufio.NewScanner(body)
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if name == "change" && data != "" {
				var ev model.ChangeEvent
				if json.Unmarshal([]byte(data), &ev) == nil {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
			name, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}
