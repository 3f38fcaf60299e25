// Package ipfs 负责队伍图片的上传（Pinata pinning API）和网关地址改写。
package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// ErrNotConfigured 未配置上传凭证
var ErrNotConfigured = errors.New("ipfs: pinning JWT not configured")

const (
	DefaultPinningURL = "https://api.pinata.cloud"
	DefaultGateway    = "gateway.pinata.cloud"
)

// Pinner 上传文件并返回 ipfs:// URI
type Pinner interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Client Pinata 客户端
type Client struct {
	client *resty.Client
	jwt    string
}

// NewClient 创建客户端；jwt 为空时 Upload 直接返回 ErrNotConfigured
func NewClient(baseURL, jwt string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultPinningURL
	}
	// 上传失败不重试，由调用方决定是否降级
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{client: client, jwt: strings.TrimSpace(jwt)}
}

// Configured 是否可以上传
func (c *Client) Configured() bool {
	return c != nil && c.jwt != ""
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Upload 上传单个文件
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	var out pinResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.jwt).
		SetFileReader("file", filename, r).
		SetResult(&out).
		Post("/pinning/pinFileToIPFS")
	if err := parseHTTPError(resp, err); err != nil {
		return "", errors.Wrapf(err, "上传 %s 失败", filename)
	}
	if out.IpfsHash == "" {
		return "", errors.New("ipfs: response missing IpfsHash")
	}
	return "ipfs://" + out.IpfsHash, nil
}

func parseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return errors.Errorf("pinning unauthorized: %v", body)
	}
	return errors.Errorf("http non-2xx: %d %v", resp.StatusCode(), body)
}

// GatewayURL 把图片 URI 改写为可直接访问的 HTTP 地址：
// ipfs://X 和裸 CID（Qm.../bafy...）走网关，http(s) 原样返回，空串保持为空
func GatewayURL(gateway, uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ""
	}
	if gateway == "" {
		gateway = DefaultGateway
	}
	gateway = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(gateway, "https://"), "http://"), "/")
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "ipfs://"):
		return "https://" + gateway + "/ipfs/" + strings.TrimPrefix(uri, "ipfs://")
	case strings.HasPrefix(uri, "Qm"), strings.HasPrefix(uri, "bafy"):
		return "https://" + gateway + "/ipfs/" + uri
	default:
		return uri
	}
}
