// Package transport реализует доставку HTTP-запросов к квест-платформе
// с обходом анти-бот защиты: основной транспорт умеет проходить JS-челлендж,
// при сигнале блокировки выполняется ровно одна повторная попытка
// через запасной обычный транспорт.
package transport

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrBlocked сигнализирует, что запрос заблокирован анти-бот защитой.
var ErrBlocked = errors.New("request blocked by anti-bot protection")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Request описывает один HTTP-запрос к платформе.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Response содержит результат выполнения запроса.
type Response struct {
	StatusCode int
	Body       []byte
}

// Doer выполняет один HTTP-запрос.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client доставляет запросы с браузерными заголовками и политикой
// «не более одной запасной попытки» при блокировке основного транспорта.
type Client struct {
	baseURL   string
	primary   Doer
	secondary Doer
	cookie    func() string
	logger    *zap.Logger
}

// NewClient создаёт транспортный клиент. cookie возвращает активный cookie
// сессии (пустая строка — сессии ещё нет); вызывается перед каждым запросом.
func NewClient(baseURL string, primary, secondary Doer, cookie func() string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		primary:   primary,
		secondary: secondary,
		cookie:    cookie,
		logger:    logger,
	}
}

// Send выполняет запрос к path относительно базового адреса платформы.
// При блокировке основного транспорта запрос повторяется ровно один раз
// через запасной транспорт, и его результат возвращается без изменений.
func (c *Client) Send(ctx context.Context, method, path string, body []byte) (*Response, error) {
	req := &Request{
		Method: method,
		URL:    c.baseURL + path,
		Body:   body,
		Header: c.headers(),
	}

	resp, err := c.primary.Do(ctx, req)
	if !isBlocked(resp, err) {
		return resp, err
	}

	c.logger.Warn("primary transport blocked, retrying via fallback",
		zap.String("method", method), zap.String("path", path))

	return c.secondary.Do(ctx, req)
}

func isBlocked(resp *Response, err error) bool {
	if errors.Is(err, ErrBlocked) {
		return true
	}
	return err == nil && resp != nil && resp.StatusCode == http.StatusForbidden
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Content-Type", "application/json")
	h.Set("Referer", c.baseURL+"/loyalty")
	h.Set("Origin", c.baseURL)
	h.Set("User-Agent", userAgent)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")

	if cookie := c.cookie(); cookie != "" {
		h.Set("Cookie", cookie)
	}

	return h
}
