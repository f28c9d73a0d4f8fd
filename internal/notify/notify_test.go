package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "gradewatch/pkg/logx"
)

func TestNtfyWireFormat(t *testing.T) {
	var gotTitle, gotPriority, gotTags, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/my-topic" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	n, err := NewNtfy(srv.URL, "my-topic", logx.Nop())
	if err != nil {
		t.Fatalf("NewNtfy: %v", err)
	}
	err = n.Send(context.Background(), Notification{
		Title:    "Grade Posted: Biology 101",
		Body:     "Lab Report\nAssignment: 9.5/10 (A)",
		Priority: PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTitle != "Grade Posted: Biology 101" {
		t.Fatalf("unexpected Title header %q", gotTitle)
	}
	if gotPriority != "high" {
		t.Fatalf("unexpected Priority header %q", gotPriority)
	}
	if gotTags != "mortar_board" {
		t.Fatalf("unexpected Tags header %q", gotTags)
	}
	if gotBody != "Lab Report\nAssignment: 9.5/10 (A)" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestNtfyDefaultPriority(t *testing.T) {
	var gotPriority string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPriority = r.Header.Get("Priority")
	}))
	defer srv.Close()

	n, err := NewNtfy(srv.URL, "t", logx.Nop())
	if err != nil {
		t.Fatalf("NewNtfy: %v", err)
	}
	if err := n.Send(context.Background(), Notification{Title: "x", Body: "y"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPriority != "default" {
		t.Fatalf("unexpected Priority header %q", gotPriority)
	}
}

func TestNtfyNonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n, err := NewNtfy(srv.URL, "t", logx.Nop())
	if err != nil {
		t.Fatalf("NewNtfy: %v", err)
	}
	if err := n.Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Fatalf("expected error on http 429")
	}
}

type stubChannel struct {
	name string
	err  error
	sent int
}

func (s *stubChannel) Name() string { return s.name }
func (s *stubChannel) Send(ctx context.Context, n Notification) error {
	s.sent++
	return s.err
}

func TestServiceDeliveredIfAnyChannelSucceeds(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("boom")}
	good := &stubChannel{name: "good"}
	svc := NewService([]Notifier{bad, good}, 100, logx.Nop())

	if err := svc.Send(context.Background(), Notification{Title: "t"}); err != nil {
		t.Fatalf("expected success when one channel delivers, got %v", err)
	}
	if bad.sent != 1 || good.sent != 1 {
		t.Fatalf("expected both channels attempted: bad=%d good=%d", bad.sent, good.sent)
	}
}

func TestServiceFailsWhenAllChannelsFail(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("boom")}
	svc := NewService([]Notifier{bad}, 100, logx.Nop())

	if err := svc.Send(context.Background(), Notification{Title: "t"}); err == nil {
		t.Fatalf("expected error when every channel fails")
	}
}

func TestServiceNoChannels(t *testing.T) {
	svc := NewService(nil, 100, logx.Nop())
	if err := svc.Send(context.Background(), Notification{Title: "t"}); err == nil {
		t.Fatalf("expected error with no channels")
	}
}
