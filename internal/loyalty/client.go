// Package loyalty предоставляет типизированный клиент квест-платформы:
// данные пользователя, список правил, статусы выполнения, клейм наград
// и баланс баллов.
package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/transport"
)

// ErrUserNotFound возвращается, когда платформа не знает пользователя
// с адресом активного кошелька.
var ErrUserNotFound = errors.New("platform user not found")

// Config содержит фиксированные идентификаторы платформы.
type Config struct {
	BaseURL           string
	WebsiteID         string
	OrganizationID    string
	LoyaltyCurrencyID string
}

// Authenticator выполняет вход кошельком и возвращает cookie сессии.
type Authenticator interface {
	Login(ctx context.Context, signer model.Signer) (string, error)
}

// ClaimResult описывает исход клейма одного правила. Бизнес-отказ платформы
// («нельзя заклеймить») — это не ошибка, а результат с причиной сервера.
type ClaimResult struct {
	Success bool
	Reason  string
}

// Client инкапсулирует HTTP-взаимодействие с квест-платформой от имени
// одного пользователя. Экземпляр не рассчитан на конкурентное использование:
// кэш userId и последовательность запросов — обязанность вызывающей стороны.
type Client struct {
	cfg       Config
	cred      model.Credential
	auth      Authenticator
	transport *transport.Client
	logger    *zap.Logger

	cookie string
	user   *model.User
}

// NewClient создаёт клиент платформы для одних учётных данных.
// Если учётные данные — cookie, он используется сразу; ключ кошелька
// используется для получения cookie при первом запросе.
func NewClient(cfg Config, cred model.Credential, auth Authenticator, primary, secondary transport.Doer, logger *zap.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		cred:   cred,
		auth:   auth,
		logger: logger,
		cookie: cred.Cookie,
	}
	c.transport = transport.NewClient(strings.TrimRight(cfg.BaseURL, "/"), primary, secondary,
		func() string { return c.cookie }, logger)
	return c
}

// ensureSession получает cookie сессии входом кошельком, если cookie ещё нет.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.cookie != "" || c.cred.Kind != model.CredentialWallet {
		return nil
	}

	cookie, err := c.auth.Login(ctx, c.cred.Wallet)
	if err != nil {
		return err
	}

	c.cookie = cookie
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*transport.Response, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = data
	}

	return c.transport.Send(ctx, method, path, body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetAuthSession запрашивает дескриптор активной сессии платформы.
func (c *Client) GetAuthSession(ctx context.Context) (*model.AuthSession, error) {
	var session model.AuthSession
	if err := c.get(ctx, "/api/auth/session", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

type usersResponse struct {
	Data []model.User `json:"data"`
}

// GetUserInfo ищет запись пользователя по адресу кошелька и кэширует её
// на время жизни экземпляра. Возвращает nil, если пользователь не найден.
func (c *Client) GetUserInfo(ctx context.Context) (*model.User, error) {
	if c.user != nil {
		return c.user, nil
	}

	address, err := c.walletAddress(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("walletAddress", address)
	q.Set("websiteId", c.cfg.WebsiteID)
	q.Set("organizationId", c.cfg.OrganizationID)
	q.Set("includeDelegation", "true")

	var body usersResponse
	if err := c.get(ctx, "/api/users?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}

	c.user = &body.Data[0]
	return c.user, nil
}

// walletAddress возвращает адрес кошелька: из ключа, если он есть,
// иначе из дескриптора сессии платформы.
func (c *Client) walletAddress(ctx context.Context) (string, error) {
	if c.cred.Kind == model.CredentialWallet {
		return c.cred.Wallet.Address(), nil
	}

	session, err := c.GetAuthSession(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve wallet address: %w", err)
	}
	if session.Address == "" {
		return "", errors.New("session carries no wallet address")
	}
	return session.Address, nil
}

type rulesResponse struct {
	Data []model.LoyaltyRule `json:"data"`
}

// GetLoyaltyRules возвращает видимые активные правила платформы.
// Любой сбой деградирует до пустого списка с записью в лог.
func (c *Client) GetLoyaltyRules(ctx context.Context, groupID string, includeSpecial bool) []model.LoyaltyRule {
	q := url.Values{}
	q.Set("limit", "1000")
	q.Set("websiteId", c.cfg.WebsiteID)
	q.Set("organizationId", c.cfg.OrganizationID)
	q.Set("excludeHidden", "true")
	q.Set("excludeExpired", "true")
	q.Set("isActive", "true")
	if !includeSpecial {
		q.Set("isSpecial", "false")
	}
	if groupID != "" {
		q.Set("loyaltyRuleGroupId", groupID)
	}

	var body rulesResponse
	if err := c.get(ctx, "/api/loyalty/rules?"+q.Encode(), &body); err != nil {
		c.logger.Error("fetch loyalty rules failed", zap.Error(err))
		return []model.LoyaltyRule{}
	}

	return body.Data
}

type statusResponse struct {
	Data []model.RuleStatus `json:"data"`
}

// GetRulesStatus возвращает снимок статусов правил текущего пользователя:
// отображение id правила в статус. Любой сбой деградирует до пустого
// отображения с записью в лог.
func (c *Client) GetRulesStatus(ctx context.Context) map[string]model.RuleStatus {
	userID, err := c.userID(ctx)
	if err != nil {
		c.logger.Error("resolve user for rules status failed", zap.Error(err))
		return map[string]model.RuleStatus{}
	}

	q := url.Values{}
	q.Set("websiteId", c.cfg.WebsiteID)
	q.Set("organizationId", c.cfg.OrganizationID)
	q.Set("userId", userID)

	var body statusResponse
	if err := c.get(ctx, "/api/loyalty/rules/status?"+q.Encode(), &body); err != nil {
		c.logger.Error("fetch rules status failed", zap.Error(err))
		return map[string]model.RuleStatus{}
	}

	statuses := make(map[string]model.RuleStatus, len(body.Data))
	for _, st := range body.Data {
		statuses[st.RuleID] = st
	}
	return statuses
}

func (c *Client) userID(ctx context.Context) (string, error) {
	user, err := c.GetUserInfo(ctx)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.ID, nil
}

type claimRequest struct {
	WebsiteID      string `json:"websiteId"`
	OrganizationID string `json:"organizationId"`
}

type claimErrorResponse struct {
	Message string `json:"message"`
}

// ClaimRule отправляет клейм одного правила. Отказ платформы возвращается
// как неуспешный результат с причиной сервера, ошибкой считаются только
// транспортные сбои.
func (c *Client) ClaimRule(ctx context.Context, ruleID string) (ClaimResult, error) {
	path := fmt.Sprintf("/api/loyalty/rules/%s/claim", ruleID)

	resp, err := c.send(ctx, http.MethodPost, path, claimRequest{
		WebsiteID:      c.cfg.WebsiteID,
		OrganizationID: c.cfg.OrganizationID,
	})
	if err != nil {
		return ClaimResult{}, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ClaimResult{Success: true}, nil
	}

	reason := fmt.Sprintf("status %d", resp.StatusCode)
	var body claimErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Message != "" {
		reason = body.Message
	}

	return ClaimResult{Success: false, Reason: reason}, nil
}

type accountsResponse struct {
	Data []model.PointsAccount `json:"data"`
}

// GetPoints возвращает текстовый баланс пользователя в фиксированной валюте
// платформы. Отсутствие счёта в этой валюте — не ошибка: возвращается "0".
func (c *Client) GetPoints(ctx context.Context) (string, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("websiteId", c.cfg.WebsiteID)
	q.Set("organizationId", c.cfg.OrganizationID)
	q.Set("userId", userID)

	var body accountsResponse
	if err := c.get(ctx, "/api/loyalty/accounts?"+q.Encode(), &body); err != nil {
		return "", err
	}

	for _, account := range body.Data {
		if account.LoyaltyCurrencyID == c.cfg.LoyaltyCurrencyID {
			return strconv.FormatFloat(account.Balance, 'f', -1, 64), nil
		}
	}

	return "0", nil
}

// Cookie возвращает активный cookie сессии (пустая строка — сессии нет).
func (c *Client) Cookie() string {
	return c.cookie
}
