package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultRestURL = "https://fapi.binance.com"
	DefaultWsURL   = "wss://fstream.binance.com"
)

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign 生成 HMAC-SHA256 签名
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

func (c *Credentials) empty() bool {
	return c == nil || c.apiKey == "" || c.apiSecret == ""
}

// Options USDⓈ-M 合约 REST 参数
type Options struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	Timeout         time.Duration // 单次调用上限
	MaxRetries      int           // 仅公开 GET 重试
	RecvWindow      int
	ExchangeInfoTTL time.Duration
	HTTPClient      *http.Client
}

type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	maxRetries  int
	recvWindow  int
	retryDelay  time.Duration
}

// managerDeps 在内部复用 HTTP 连接与凭证
type managerDeps struct {
	credentials *Credentials
	httpClient  *http.Client
}

func newManagerDeps(opts Options) *managerDeps {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &managerDeps{
		credentials: NewCredentials(opts.APIKey, opts.APISecret),
		httpClient:  hc,
	}
}

func (d *managerDeps) newAPIClient(opts Options) *APIClient {
	return &APIClient{
		credentials: d.credentials,
		httpClient:  d.httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		recvWindow:  opts.RecvWindow,
		retryDelay:  200 * time.Millisecond,
	}
}

// Clients 行情 / 下单 / 账户，共享一个 HTTP 连接池
type Clients struct {
	Market  *MarketClient
	Orders  *OrderClient
	Account *AccountClient
}

func applyOptionDefaults(opts *Options) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRestURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RecvWindow <= 0 {
		opts.RecvWindow = 5000
	}
	if opts.ExchangeInfoTTL <= 0 {
		opts.ExchangeInfoTTL = 5 * time.Minute
	}
}

// NewClients 通过一组凭证和 URL 创建全部客户端
func NewClients(opts Options) *Clients {
	applyOptionDefaults(&opts)
	deps := newManagerDeps(opts)
	api := deps.newAPIClient(opts)
	return &Clients{
		Market:  NewMarketClient(api, opts.ExchangeInfoTTL),
		Orders:  NewOrderClient(api),
		Account: NewAccountClient(api),
	}
}
