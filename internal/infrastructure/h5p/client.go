// Package h5p 封装对 H5P 托管服务 REST API 的访问
package h5p

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/workflow/port"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/metrics"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/tracer"
)

// Client H5P 托管服务客户端
type Client struct {
	endpoint       string
	apiKey         string
	httpClient     *http.Client
	catalogTimeout time.Duration
}

// NewClient 创建托管服务客户端
func NewClient(cfg *config.H5PConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.SubmitTimeout,
		},
		catalogTimeout: cfg.CatalogTimeout,
	}
}

// submissionResponse 托管服务创建接口的应答体
type submissionResponse struct {
	ContentID string `json:"contentId"`
	ID        string `json:"id"`
}

// Submit 将内容文档提交到托管服务并返回访问地址
func (c *Client) Submit(ctx context.Context, doc *entity.ContentDocument) (*port.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "h5p.Submit")
	defer span.End()

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "内容文档序列化失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/h5p/new", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "构造提交请求失败")
	}
	c.setHeaders(req)

	machineName := doc.MachineName()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			metrics.SubmissionsTotal.WithLabelValues(machineName, "timeout").Inc()
			return nil, errors.Wrap(err, errors.CodeSubmissionTimeout, "托管服务提交超时")
		}
		metrics.SubmissionsTotal.WithLabelValues(machineName, "unavailable").Inc()
		return nil, errors.Wrap(err, errors.CodeSubmissionUnavailable, "托管服务不可达")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= http.StatusBadRequest {
		metrics.SubmissionsTotal.WithLabelValues(machineName, "rejected").Inc()
		logger.Warn(ctx, "托管服务拒绝了提交",
			"status", resp.StatusCode, "body", string(body))
		return nil, errors.New(errors.CodeSubmissionRejected, "托管服务拒绝了提交").
			WithDetail(fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(string(body), 256)))
	}

	var parsed submissionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.CodeSubmissionRejected, "托管服务应答解析失败").
			WithDetail(truncate(string(body), 256))
	}
	contentID := parsed.ContentID
	if contentID == "" {
		contentID = parsed.ID
	}
	if contentID == "" {
		return nil, errors.New(errors.CodeSubmissionRejected, "托管服务应答缺少 contentId")
	}

	metrics.SubmissionsTotal.WithLabelValues(machineName, "ok").Inc()
	return &port.SubmissionResult{
		ContentID:   contentID,
		PreviewURL:  c.PlayURL(contentID),
		DownloadURL: c.DownloadURL(contentID),
	}, nil
}

// FetchLibraries 拉取托管服务的内容库目录
func (c *Client) FetchLibraries(ctx context.Context) ([]entity.LibraryInfo, error) {
	ctx, span := tracer.Start(ctx, "h5p.FetchLibraries")
	defer span.End()

	if c.catalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.catalogTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/h5p/libraries", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "构造目录请求失败")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.Wrap(err, errors.CodeSubmissionTimeout, "内容库目录查询超时")
		}
		return nil, errors.Wrap(err, errors.CodeSubmissionUnavailable, "托管服务不可达")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeSubmissionUnavailable, "内容库目录查询失败").
			WithDetail(fmt.Sprintf("status=%d", resp.StatusCode))
	}

	var libraries []entity.LibraryInfo
	if err := json.NewDecoder(resp.Body).Decode(&libraries); err != nil {
		return nil, errors.Wrap(err, errors.CodeSubmissionUnavailable, "内容库目录解析失败")
	}
	return libraries, nil
}

// PlayURL 内容的在线预览地址
func (c *Client) PlayURL(contentID string) string {
	return fmt.Sprintf("%s/h5p/play/%s", c.endpoint, contentID)
}

// DownloadURL 内容包的下载地址
func (c *Client) DownloadURL(contentID string) string {
	return fmt.Sprintf("%s/h5p/download/%s", c.endpoint, contentID)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
