package partnerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/utils/httpclient"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts = 2
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxPages        = 10000
)

// Client 合作方 REST API 客户端，按页拉取grupo数据
type Client struct {
	baseURL    string
	token      string
	attempts   int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient 根据 administradora 配置创建客户端
func NewClient(cfg config.AdministratorConfig, logger *logrus.Logger) *Client {
	attempts := cfg.RetryCount
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.AuthToken,
		attempts:   attempts,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{Timeout: cfg.Timeout, Proxy: cfg.Proxy}, logger),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// statusError 非2xx响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("合作方API返回状态码%d: %s", e.code, e.body)
}

// retryable 网络错误、429 与 5xx 可重试，其余直接失败
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// FetchPage 拉取单页数据，失败按固定次数重试
func (c *Client) FetchPage(ctx context.Context, path string, page int) (*model.PartnerPageResponse, error) {
	endpoint := fmt.Sprintf("%s/%s?page=%s", c.baseURL, strings.TrimPrefix(path, "/"), strconv.Itoa(page))
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.doGet(ctx, endpoint)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == c.attempts || !retryable(err) {
			break
		}
		delay := httpclient.Backoff(initialBackoff, maxBackoff, attempt)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url":     endpoint,
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("合作方API请求失败，准备重试")
		if err := httpclient.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("合作方API请求失败（共%d次）: %w", c.attempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, endpoint string) (*model.PartnerPageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Warn("关闭合作方API响应体失败")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	var page model.PartnerPageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("解析合作方API响应失败: %w", err)
	}
	return &page, nil
}

// FetchAll 从第1页开始拉取，直到 next_page 为空
func (c *Client) FetchAll(ctx context.Context, path string) ([]model.PartnerGroupItem, error) {
	var items []model.PartnerGroupItem
	page := 1
	for i := 0; i < maxPages; i++ {
		resp, err := c.FetchPage(ctx, path, page)
		if err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
		if resp.NextPage == nil || *resp.NextPage <= page {
			c.logger.WithFields(logrus.Fields{"path": path, "pages": i + 1, "items": len(items)}).Info("合作方API数据拉取完成")
			return items, nil
		}
		page = *resp.NextPage
	}
	return nil, fmt.Errorf("合作方API分页超过%d页，已中止", maxPages)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
