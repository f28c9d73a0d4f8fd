package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "gradewatch/pkg/logx"
)

const DefaultNtfyServer = "https://ntfy.sh"

// Ntfy posts notifications to an ntfy topic. The message body goes in the
// request body; title, priority, and tags ride in headers.
type Ntfy struct {
	url  string
	http *http.Client
	log  logx.Logger
}

func NewNtfy(server, topic string, log logx.Logger) (*Ntfy, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = DefaultNtfyServer
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("ntfy topic is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ntfy{
		url:  server + "/" + topic,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}, nil
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Send(ctx context.Context, msg Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", string(priorityOrDefault(msg.Priority)))
	req.Header.Set("Tags", "mortar_board")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ntfy: http %d", resp.StatusCode)
	}
	return nil
}

func priorityOrDefault(p Priority) Priority {
	if p == "" {
		return PriorityDefault
	}
	return p
}
