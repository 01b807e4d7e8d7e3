package authn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubSigner struct {
	address   string
	signature string
	signErr   error

	signedMessages []string
}

func (s *stubSigner) Address() string { return s.address }

func (s *stubSigner) SignText(message string) (string, error) {
	s.signedMessages = append(s.signedMessages, message)
	return s.signature, s.signErr
}

func newIdentityStub(t *testing.T, nonce string, setCookies []string, verifyStatus int, gotVerify *map[string]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sdk/app-1/nonce":
			_ = json.NewEncoder(w).Encode(map[string]string{"nonce": nonce})
		case r.Method == http.MethodPost && r.URL.Path == "/sdk/app-1/verify":
			if gotVerify != nil {
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("decode verify body: %v", err)
				}
				*gotVerify = body
			}
			for _, sc := range setCookies {
				w.Header().Add("Set-Cookie", sc)
			}
			w.WriteHeader(verifyStatus)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
}

func newTestAuthenticator(idpURL string) *Authenticator {
	a := New(idpURL, "app-1", "https://quests.example.net", "1", "metamask", zap.NewNop())
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestLoginSuccess(t *testing.T) {
	var verifyBody map[string]string
	ts := newIdentityStub(t, "nonce-123", []string{
		"__Secure-next-auth.session-token=tok; Path=/; HttpOnly",
		"csrf=xyz; Path=/",
	}, http.StatusOK, &verifyBody)
	defer ts.Close()

	signer := &stubSigner{address: "0xAbC", signature: "0xsig"}

	cookie, err := newTestAuthenticator(ts.URL).Login(context.Background(), signer)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	want := "__Secure-next-auth.session-token=tok; csrf=xyz"
	if cookie != want {
		t.Fatalf("cookie = %q, want %q", cookie, want)
	}

	if len(signer.signedMessages) != 1 {
		t.Fatalf("signed messages = %d, want 1", len(signer.signedMessages))
	}
	msg := signer.signedMessages[0]
	if !strings.Contains(msg, "Nonce: nonce-123") {
		t.Fatalf("message must embed the issued nonce:\n%s", msg)
	}

	if verifyBody["signedMessage"] != "0xsig" {
		t.Fatalf("signedMessage = %q", verifyBody["signedMessage"])
	}
	if verifyBody["messageToSign"] != msg {
		t.Fatalf("messageToSign must be the exact signed message")
	}
	if verifyBody["walletPublicKey"] != "0xAbC" || verifyBody["chain"] != "EVM" || verifyBody["walletName"] != "metamask" {
		t.Fatalf("unexpected verify payload: %+v", verifyBody)
	}
}

func TestLoginNoCookies(t *testing.T) {
	ts := newIdentityStub(t, "nonce-123", nil, http.StatusOK, nil)
	defer ts.Close()

	_, err := newTestAuthenticator(ts.URL).Login(context.Background(), &stubSigner{address: "0xAbC", signature: "0xsig"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
}

func TestLoginSignFailure(t *testing.T) {
	ts := newIdentityStub(t, "nonce-123", nil, http.StatusOK, nil)
	defer ts.Close()

	signer := &stubSigner{address: "0xAbC", signErr: errors.New("locked")}

	_, err := newTestAuthenticator(ts.URL).Login(context.Background(), signer)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
}

func TestLoginNonceFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	signer := &stubSigner{address: "0xAbC", signature: "0xsig"}

	_, err := newTestAuthenticator(ts.URL).Login(context.Background(), signer)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	if len(signer.signedMessages) != 0 {
		t.Fatalf("must not sign anything without a nonce")
	}
}

func TestBuildMessageDeterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := BuildMessage("quests.example.net", "0xAbC", "statement", "https://quests.example.net", "1", "nonce-1", at)
	b := BuildMessage("quests.example.net", "0xAbC", "statement", "https://quests.example.net", "1", "nonce-1", at)
	if a != b {
		t.Fatalf("same inputs must produce byte-identical messages")
	}

	c := BuildMessage("quests.example.net", "0xAbC", "statement", "https://quests.example.net", "1", "nonce-2", at)
	if a == c {
		t.Fatalf("fresh nonce must change the message")
	}

	d := BuildMessage("quests.example.net", "0xAbC", "statement", "https://quests.example.net", "1", "nonce-1", at.Add(time.Second))
	if a == d {
		t.Fatalf("fresh timestamp must change the message")
	}

	for _, part := range []string{
		"quests.example.net wants you to sign in with your Ethereum account:",
		"0xAbC",
		"URI: https://quests.example.net",
		"Version: 1",
		"Chain ID: 1",
		"Nonce: nonce-1",
		"Issued At: 2025-06-01T12:00:00.000Z",
	} {
		if !strings.Contains(a, part) {
			t.Fatalf("message missing %q:\n%s", part, a)
		}
	}
}
