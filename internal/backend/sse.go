package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// TitleEvent is one frame from the per-topic title stream.
type TitleEvent struct {
	Title string `json:"title"`
}

// SubscribeTopicTitles opens the long-lived SSE stream for a topic and
// decodes its frames onto the returned channel. The channel closes when
// the stream ends: on context cancellation, connection error, or the
// first malformed frame. There is no reconnect; polling remains the
// fallback finalization source.
func (c *Client) SubscribeTopicTitles(ctx context.Context, topicID string) (<-chan TitleEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sse/topic/"+topicID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build topic stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "open topic stream %s", topicID)
	}
	if resp.StatusCode != http.StatusOK {
		body := readSnippet(resp.Body)
		resp.Body.Close()
		return nil, errors.Wrapf(&StatusError{Code: resp.StatusCode, Body: body}, "open topic stream %s", topicID)
	}

	events := make(chan TitleEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				// Blank separators and comment lines carry nothing.
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}

			var event TitleEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				log.Printf("[sse] malformed frame on topic=%s, closing stream: %v", topicID, err)
				return
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
