// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody 限制非 2xx 响应体读取的长度。
const maxErrorBody = 4 << 10

// StatusError 表示下游返回了非 2xx 状态码。
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// DecodeError 表示 2xx 响应体无法解析。
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
}

// NewClient 创建一个新的客户端实例。
// http.Client 不设置 Timeout，超时完全由每次请求传入的 context 控制。
func NewClient(tracer trace.Tracer) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
	}
}

// DoJSON 发送 JSON 请求并把 2xx 响应体解析到 out（out 可为 nil）。
// 非 2xx 返回 *StatusError，响应体无法解析返回 *DecodeError，其余为传输层错误。
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, body, out any) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", method, parsedURL.Path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", rawURL),
		attribute.String("http.method", method),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: errBody}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// 读 body 时 context 到期属于传输错误，不是格式错误
		if ctx.Err() != nil {
			return ctx.Err()
		}
		derr := &DecodeError{URL: rawURL, Err: err}
		span.RecordError(derr)
		span.SetStatus(codes.Error, derr.Error())
		return derr
	}
	return nil
}

// Resolver 返回下游服务的 base URL，例如 "http://inventory:8082"。
type Resolver interface {
	BaseURL(ctx context.Context) (string, error)
}

// StaticResolver 使用配置中固定的地址。
type StaticResolver string

func (s StaticResolver) BaseURL(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no base url configured")
	}
	return string(s), nil
}
