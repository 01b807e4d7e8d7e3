// Package authn реализует получение cookie сессии через криптографический
// вход кошельком: одноразовый nonce, каноническое сообщение, подпись
// personal_sign и проверка у провайдера идентификации.
package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/model"
)

// ErrAuthentication возвращается при любом сбое процедуры входа:
// недоступном nonce, невозможности подписать сообщение или ответе
// проверки без cookie сессии.
var ErrAuthentication = errors.New("wallet authentication failed")

const signInStatement = "Signing is the only way we can truly know that you are the owner of the wallet you are connecting."

// Authenticator выполняет вход кошельком у провайдера идентификации.
type Authenticator struct {
	httpClient *http.Client
	idpBaseURL string
	appID      string
	siteURL    string
	chainID    string
	walletName string
	logger     *zap.Logger

	now func() time.Time
}

// New создаёт аутентификатор. siteURL — адрес интерактивной страницы
// платформы: из него берутся domain и URI канонического сообщения.
func New(idpBaseURL, appID, siteURL, chainID, walletName string, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		idpBaseURL: strings.TrimRight(idpBaseURL, "/"),
		appID:      appID,
		siteURL:    siteURL,
		chainID:    chainID,
		walletName: walletName,
		logger:     logger,
		now:        time.Now,
	}
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type verifyRequest struct {
	SignedMessage   string `json:"signedMessage"`
	MessageToSign   string `json:"messageToSign"`
	WalletPublicKey string `json:"walletPublicKey"`
	Chain           string `json:"chain"`
	WalletName      string `json:"walletName"`
}

// Login проходит полную последовательность входа и возвращает строку cookie
// сессии. Повторных попыток нет: nonce одноразовый, при сбое вызывающая
// сторона повторяет всю последовательность заново.
func (a *Authenticator) Login(ctx context.Context, signer model.Signer) (string, error) {
	nonce, err := a.fetchNonce(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetch nonce: %v", ErrAuthentication, err)
	}

	message := BuildMessage(a.domain(), signer.Address(), signInStatement, a.siteURL, a.chainID, nonce, a.now().UTC())

	signature, err := signer.SignText(message)
	if err != nil {
		return "", fmt.Errorf("%w: sign message: %v", ErrAuthentication, err)
	}

	cookie, err := a.verify(ctx, verifyRequest{
		SignedMessage:   signature,
		MessageToSign:   message,
		WalletPublicKey: signer.Address(),
		Chain:           "EVM",
		WalletName:      a.walletName,
	})
	if err != nil {
		return "", fmt.Errorf("%w: verify: %v", ErrAuthentication, err)
	}

	a.logger.Info("wallet sign-in succeeded", zap.String("address", signer.Address()))

	return cookie, nil
}

func (a *Authenticator) fetchNonce(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/sdk/%s/nonce", a.idpBaseURL, a.appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body nonceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Nonce == "" {
		return "", errors.New("empty nonce")
	}

	return body.Nonce, nil
}

func (a *Authenticator) verify(ctx context.Context, payload verifyRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/sdk/%s/verify", a.idpBaseURL, a.appID)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	cookie := joinSetCookies(resp.Header.Values("Set-Cookie"))
	if cookie == "" {
		return "", errors.New("verification response carried no session cookies")
	}

	return cookie, nil
}

// joinSetCookies собирает из заголовков Set-Cookie единую строку cookie:
// пары name=value в исходном порядке, разделённые "; ".
func joinSetCookies(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, sc := range setCookies {
		pair := strings.TrimSpace(strings.SplitN(sc, ";", 2)[0])
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		pairs = append(pairs, pair)
	}
	return strings.Join(pairs, "; ")
}

func (a *Authenticator) domain() string {
	if u, err := url.Parse(a.siteURL); err == nil && u.Host != "" {
		return u.Host
	}
	return a.siteURL
}

// BuildMessage строит каноническое сообщение входа. Результат детерминирован
// для фиксированных domain, address, nonce и issuedAt.
func BuildMessage(domain, address, statement, uri, chainID, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(
		"%s wants you to sign in with your Ethereum account:\n%s\n\n%s\n\nURI: %s\nVersion: 1\nChain ID: %s\nNonce: %s\nIssued At: %s",
		domain,
		address,
		statement,
		uri,
		chainID,
		nonce,
		issuedAt.Format("2006-01-02T15:04:05.000Z"),
	)
}
