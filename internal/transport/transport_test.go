package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

type stubDoer struct {
	calls []*Request
	resp  *Response
	err   error
}

func (s *stubDoer) Do(ctx context.Context, req *Request) (*Response, error) {
	s.calls = append(s.calls, req)
	return s.resp, s.err
}

func newTestClient(primary, secondary Doer, cookie string) *Client {
	return NewClient("https://quests.example.net", primary, secondary,
		func() string { return cookie }, zap.NewNop())
}

func TestSendPrimarySuccessNoFallback(t *testing.T) {
	primary := &stubDoer{resp: &Response{StatusCode: http.StatusOK, Body: []byte(`{"ok":true}`)}}
	secondary := &stubDoer{}

	client := newTestClient(primary, secondary, "")

	resp, err := client.Send(context.Background(), http.MethodGet, "/api/loyalty/rules", nil)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(primary.calls) != 1 {
		t.Fatalf("primary calls = %d, want 1", len(primary.calls))
	}
	if len(secondary.calls) != 0 {
		t.Fatalf("secondary must not be called on success")
	}
}

func TestSendFallbackOnBlockedError(t *testing.T) {
	primary := &stubDoer{err: fmt.Errorf("%w: status 403", ErrBlocked)}
	secondary := &stubDoer{resp: &Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}}

	client := newTestClient(primary, secondary, "session=abc")

	body := []byte(`{"websiteId":"w"}`)
	resp, err := client.Send(context.Background(), http.MethodPost, "/api/loyalty/rules/r1/claim", body)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(primary.calls) != 1 || len(secondary.calls) != 1 {
		t.Fatalf("calls = %d/%d, want exactly one per transport", len(primary.calls), len(secondary.calls))
	}

	// Запасная попытка повторяет запрос без изменений.
	orig, fb := primary.calls[0], secondary.calls[0]
	if fb.Method != orig.Method || fb.URL != orig.URL || string(fb.Body) != string(orig.Body) {
		t.Fatalf("fallback request differs from original: %+v vs %+v", fb, orig)
	}
	if fb.Header.Get("Cookie") != "session=abc" {
		t.Fatalf("fallback request lost cookie header")
	}
}

func TestSendFallbackOn403Status(t *testing.T) {
	primary := &stubDoer{resp: &Response{StatusCode: http.StatusForbidden}}
	secondary := &stubDoer{resp: &Response{StatusCode: http.StatusOK}}

	client := newTestClient(primary, secondary, "")

	resp, err := client.Send(context.Background(), http.MethodGet, "/api/users", nil)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(secondary.calls) != 1 {
		t.Fatalf("expected one fallback call returning 200")
	}
}

func TestSendFallbackFailurePropagatesFallbackError(t *testing.T) {
	primary := &stubDoer{err: fmt.Errorf("%w: status 403", ErrBlocked)}
	fallbackErr := errors.New("connection reset")
	secondary := &stubDoer{err: fallbackErr}

	client := newTestClient(primary, secondary, "")

	_, err := client.Send(context.Background(), http.MethodGet, "/api/users", nil)
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("error = %v, want fallback error", err)
	}
	if errors.Is(err, ErrBlocked) {
		t.Fatalf("fallback error must not carry the original block signal")
	}
	if len(primary.calls) != 1 || len(secondary.calls) != 1 {
		t.Fatalf("calls = %d/%d, want 1/1 (never loop)", len(primary.calls), len(secondary.calls))
	}
}

func TestSendOtherErrorNoFallback(t *testing.T) {
	netErr := errors.New("dial tcp: timeout")
	primary := &stubDoer{err: netErr}
	secondary := &stubDoer{}

	client := newTestClient(primary, secondary, "")

	_, err := client.Send(context.Background(), http.MethodGet, "/api/users", nil)
	if !errors.Is(err, netErr) {
		t.Fatalf("error = %v, want original", err)
	}
	if len(secondary.calls) != 0 {
		t.Fatalf("non-block errors must not trigger fallback")
	}
}

func TestSendHeaders(t *testing.T) {
	primary := &stubDoer{resp: &Response{StatusCode: http.StatusOK}}

	client := newTestClient(primary, &stubDoer{}, "token=xyz")

	if _, err := client.Send(context.Background(), http.MethodGet, "/api/auth/session", nil); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	h := primary.calls[0].Header
	wantHeaders := map[string]string{
		"Accept":       "*/*",
		"Content-Type": "application/json",
		"Referer":      "https://quests.example.net/loyalty",
		"Origin":       "https://quests.example.net",
		"Cookie":       "token=xyz",
	}
	for name, want := range wantHeaders {
		if got := h.Get(name); got != want {
			t.Fatalf("header %s = %q, want %q", name, got, want)
		}
	}
	if h.Get("User-Agent") == "" {
		t.Fatalf("user-agent header must be set")
	}
}
