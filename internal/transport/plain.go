package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Plain выполняет запросы обычным HTTP-клиентом без обхода защиты.
type Plain struct {
	client *http.Client
}

// NewPlain создаёт запасной транспорт.
func NewPlain() *Plain {
	return &Plain{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Do выполняет запрос и возвращает статус и тело ответа как есть.
func (p *Plain) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
