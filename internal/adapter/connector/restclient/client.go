// Package restclient file: internal/adapter/connector/restclient/client.go
// Package restclient 是 REST 族连接器共用的出站 HTTP 客户端：
// 地址拼接、按实例附加认证头、有界超时、上游错误分类、响应体解码。
package restclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// DefaultTimeout 所有上游调用携带的默认请求级超时
const DefaultTimeout = 30 * time.Second

// Client 包装 http.Client，所有 REST 族连接器共享一个实例
type Client struct {
	http *http.Client
}

// New 创建客户端。timeout<=0 时使用默认超时。
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// JoinURL 把实例基地址与查询路径拼接成完整 URL，绝不重复插入分隔符
func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// attachAuth 按实例认证方式附加请求头。
// api_key 的请求头名称由实例配置决定，不写死。
func attachAuth(req *http.Request, inst *domain.Instance) {
	switch inst.AuthType {
	case domain.AuthBasic:
		cred := base64.StdEncoding.EncodeToString([]byte(inst.Auth.Username + ":" + inst.Auth.Password))
		req.Header.Set("Authorization", "Basic "+cred)
	case domain.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+inst.Auth.Token)
	case domain.AuthAPIKey:
		header := inst.Auth.Header
		if header == "" {
			header = "X-Api-Key"
		}
		req.Header.Set(header, inst.Auth.Key)
	case domain.AuthNone:
		// 不附加任何认证头
	}
}

// Do 对实例发出一次请求并返回统一信封。
// path 为相对路径时拼接基地址；body 非空时作为 JSON 请求体发送。
func (c *Client) Do(ctx context.Context, inst *domain.Instance, method, path, body string) (*port.ExecResult, error) {
	fullURL := JoinURL(inst.BaseURL, path)
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), fullURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	attachAuth(req, inst)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, fullURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, port.NewUpstreamError(resp.StatusCode, string(raw))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &port.ExecResult{
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      decodeBody(resp.Header.Get("Content-Type"), raw),
		Timestamp: time.Now(),
	}, nil
}

// decodeBody Content-Type 指示 JSON 时解码为结构，否则保留原始文本
func decodeBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}
	return string(raw)
}

// classifyTransportError 区分超时与不可达，便于给出友好提示
func classifyTransportError(err error, fullURL string) error {
	host := fullURL
	if u, parseErr := url.Parse(fullURL); parseErr == nil && u.Host != "" {
		host = u.Host
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &port.UpstreamTimeout{Host: host}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &port.UpstreamTimeout{Host: host}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return &port.UpstreamUnreachable{Host: host, Err: err}
	}
	return &port.UpstreamUnreachable{Host: host, Err: err}
}
