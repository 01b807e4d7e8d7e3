package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser выполняет запросы изнутри страницы headless-браузера.
// Страница открывается на адресе платформы, так что JS-челлендж анти-бот
// защиты решается самим браузером, а запросы уходят через fetch
// в контексте уже «доверенной» страницы.
type Browser struct {
	mu        sync.Mutex
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	installed []string
}

// NewBrowser запускает headless-браузер и открывает страницу платформы.
func NewBrowser(baseURL string) (*Browser, error) {
	l := launcher.New().Headless(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: baseURL + "/loyalty"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("wait page load: %w", err)
	}

	return &Browser{launcher: l, browser: browser, page: page}, nil
}

const fetchScript = `async (method, url, headers, body) => {
	const opts = { method: method, headers: headers, credentials: "include" };
	if (body) {
		opts.body = body;
	}
	const res = await fetch(url, opts);
	const text = await res.text();
	return JSON.stringify({ status: res.status, body: text });
}`

type fetchResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Do выполняет запрос через fetch на открытой странице.
// Ответ 403 означает, что защита сработала даже в браузере,
// и транслируется в ErrBlocked.
func (b *Browser) Do(ctx context.Context, req *Request) (*Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	headers := fetchHeaders(req.Header)

	// Заголовок Cookie из fetch выставить нельзя: cookie сессии
	// устанавливаются в браузер через CDP и уходят вместе с запросом.
	if err := b.syncCookies(req.URL, req.Header.Get("Cookie")); err != nil {
		return nil, err
	}

	obj, err := b.page.Context(ctx).Eval(fetchScript, req.Method, req.URL, headers, string(req.Body))
	if err != nil {
		return nil, fmt.Errorf("page fetch: %w", err)
	}

	var result fetchResult
	if err := json.Unmarshal([]byte(obj.Value.Str()), &result); err != nil {
		return nil, fmt.Errorf("decode fetch result: %w", err)
	}

	if result.Status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrBlocked, result.Status)
	}

	return &Response{StatusCode: result.Status, Body: []byte(result.Body)}, nil
}

// Заголовки, которыми управляет сам браузер: из fetch их выставить
// нельзя, браузер молча отбрасывает такие записи и подставляет свои
// значения (страница уже открыта на адресе платформы, так что его
// собственные User-Agent, Origin, Referer и Sec-Fetch-* корректны).
var browserManagedHeaders = []string{
	"Cookie",
	"Origin",
	"Referer",
	"User-Agent",
	"Sec-Fetch-Dest",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Site",
}

func fetchHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for name := range h {
		headers[name] = h.Get(name)
	}
	for _, name := range browserManagedHeaders {
		delete(headers, name)
	}
	return headers
}

// syncCookies приводит cookie браузера к cookie текущего клиента.
// Браузер один на все сессии, поэтому пары, установленные предыдущим
// вызовом и отсутствующие в текущей строке, гасятся истёкшим сроком:
// иначе fetch с credentials: "include" отправит чужой session-token.
func (b *Browser) syncCookies(rawURL, cookie string) error {
	params, names := sessionCookieParams(rawURL, cookie, b.installed)
	if len(params) > 0 {
		if err := b.page.SetCookies(params); err != nil {
			return fmt.Errorf("set cookies: %w", err)
		}
	}
	b.installed = names
	return nil
}

// sessionCookieParams строит параметры cookie для одного запроса: пары
// текущей строки устанавливаются, имена из stale без замены — истекают.
// Возвращает параметры и имена, установленные этим вызовом.
func sessionCookieParams(rawURL, cookie string, stale []string) ([]*proto.NetworkCookieParam, []string) {
	var params []*proto.NetworkCookieParam
	var names []string
	current := make(map[string]bool)

	for _, pair := range strings.Split(cookie, "; ") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:  name,
			Value: value,
			URL:   rawURL,
		})
		names = append(names, name)
		current[name] = true
	}

	for _, name := range stale {
		if current[name] {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:    name,
			Value:   "",
			URL:     rawURL,
			Expires: proto.TimeSinceEpoch(1),
		})
	}

	return params, names
}

// Close завершает работу браузера.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}
