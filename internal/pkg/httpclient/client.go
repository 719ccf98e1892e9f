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

	"stockpile/internal/pkg/nacos"
)

// Client 是一个可追踪的、可注入的HTTP客户端。
// 下游地址通过 Nacos 服务发现解析，不需要在调用点写死 host:port。
type Client struct {
	Tracer     trace.Tracer
	Nacos      *nacos.Client
	HTTPClient *http.Client // 持有一个可复用的HTTP客户端实例
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer, nacosClient *nacos.Client) *Client {
	// 在这里创建 http.Client，并且不设置 Timeout 字段
	// 让其完全受控于每次请求传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		Nacos:      nacosClient,
		HTTPClient: httpClient,
	}
}

// resolve 通过 Nacos 选出一个健康实例并拼出完整 URL。
func (c *Client) resolve(serviceName, path string) (string, error) {
	ip, port, err := c.Nacos.DiscoverServiceInstance(serviceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d%s", ip, port, path), nil
}

// GetJSON 向下游服务发起 GET 请求并将响应解码到 out。
func (c *Client) GetJSON(ctx context.Context, serviceName, path string, params url.Values, out interface{}) error {
	target, err := c.resolve(serviceName, path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		target = target + "?" + params.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, serviceName, target, nil, out)
}

// PostJSON 向下游服务发起带 JSON body 的 POST 请求。
func (c *Client) PostJSON(ctx context.Context, serviceName, path string, body interface{}, out interface{}) error {
	target, err := c.resolve(serviceName, path)
	if err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	return c.doJSON(ctx, http.MethodPost, serviceName, target, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, serviceName, target string, payload []byte, out interface{}) error {
	spanName := fmt.Sprintf("call-%s", serviceName)
	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("service %s returned status %s", serviceName, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to decode response from %s: %w", serviceName, err)
		}
	}
	return nil
}
