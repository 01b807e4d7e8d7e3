package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/repository"
)

const testKeyHex = "0x0000000000000000000000000000000000000000000000000000000000000001"

type stubService struct {
	statusText string
	statusErr  error

	pointsText string
	tasksText  string

	completeText string
	completeErr  error

	checkinText string

	lastCred model.Credential
}

func (s *stubService) StatusReport(ctx context.Context, cred model.Credential) (string, error) {
	s.lastCred = cred
	return s.statusText, s.statusErr
}

func (s *stubService) PointsReport(ctx context.Context, cred model.Credential) (string, error) {
	s.lastCred = cred
	return s.pointsText, nil
}

func (s *stubService) TaskList(ctx context.Context, cred model.Credential) (string, error) {
	s.lastCred = cred
	return s.tasksText, nil
}

func (s *stubService) CompleteTasks(ctx context.Context, cred model.Credential) (string, error) {
	s.lastCred = cred
	return s.completeText, s.completeErr
}

func (s *stubService) DailyCheckin(ctx context.Context, cred model.Credential) (string, error) {
	s.lastCred = cred
	return s.checkinText, nil
}

func newTestServer(t *testing.T, svc Service, store repository.SessionStore) *httptest.Server {
	t.Helper()
	h := NewHandler(svc, store, zap.NewNop())
	ts := httptest.NewServer(h.SetupRouter())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestCreateSession(t *testing.T) {
	store := repository.NewMemoryStore()
	ts := newTestServer(t, &stubService{}, store)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", createSessionRequest{ID: "chat-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	resp2 := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", createSessionRequest{ID: "chat-1"})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp2.StatusCode)
	}
}

func TestSetCredentialValidatesKey(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Create(context.Background(), "chat-1")

	ts := newTestServer(t, &stubService{}, store)

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/sessions/chat-1/credential",
		setCredentialRequest{PrivateKey: "not-a-key"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp2 := doJSON(t, http.MethodPut, ts.URL+"/api/sessions/chat-1/credential",
		setCredentialRequest{PrivateKey: testKeyHex})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}

	rec, err := store.Get(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.PrivateKey != testKeyHex {
		t.Fatalf("stored key = %q", rec.PrivateKey)
	}
}

func TestSetCredentialUnknownSession(t *testing.T) {
	ts := newTestServer(t, &stubService{}, repository.NewMemoryStore())

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/sessions/missing/credential",
		setCredentialRequest{Cookie: "session=abc"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusPassesStoredCredential(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Put(context.Background(), &model.SessionRecord{ID: "chat-1", Cookie: "session=abc"})

	svc := &stubService{statusText: "📊 Account status"}
	ts := newTestServer(t, svc, store)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/chat-1/status", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "📊 Account status\n🔁 Auto mode: off" {
		t.Fatalf("body = %q", body)
	}
	if svc.lastCred.Kind != model.CredentialCookie || svc.lastCred.Cookie != "session=abc" {
		t.Fatalf("credential = %+v", svc.lastCred)
	}
}

func TestStatusServiceError(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Put(context.Background(), &model.SessionRecord{ID: "chat-1", Cookie: "session=abc"})

	svc := &stubService{statusErr: errors.New("platform down")}
	ts := newTestServer(t, svc, store)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/chat-1/status", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSetAutoMode(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Create(context.Background(), "chat-1")

	ts := newTestServer(t, &stubService{}, store)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/chat-1/auto", autoModeRequest{Enabled: true})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	rec, err := store.Get(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !rec.AutoMode {
		t.Fatalf("auto mode must be enabled")
	}
}

func TestStatusShowsAutoMode(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Put(context.Background(), &model.SessionRecord{ID: "chat-1", Cookie: "session=abc", AutoMode: true})

	ts := newTestServer(t, &stubService{statusText: "📊 Account status"}, store)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/chat-1/status", nil)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "📊 Account status\n🔁 Auto mode: on" {
		t.Fatalf("body = %q", body)
	}
}

func TestCompleteTasksEndpoint(t *testing.T) {
	store := repository.NewMemoryStore()
	_ = store.Put(context.Background(), &model.SessionRecord{ID: "chat-1", Cookie: "session=abc"})

	svc := &stubService{completeText: "✅ Follow: Completed (+100)"}
	ts := newTestServer(t, svc, store)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/chat-1/tasks/complete", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "✅ Follow: Completed (+100)" {
		t.Fatalf("body = %q", body)
	}
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, &stubService{}, repository.NewMemoryStore())

	resp := doJSON(t, http.MethodGet, ts.URL+"/", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("Quest Bot")) {
		t.Fatalf("index page missing title")
	}
}
