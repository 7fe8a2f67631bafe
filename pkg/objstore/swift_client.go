package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	swiftMaxLimit  = 10000
	swiftTimestamp = "2006-01-02T15:04:05.999999"
)

type swiftObject struct {
	Name         string `json:"name"`
	Bytes        int64  `json:"bytes"`
	Hash         string `json:"hash"`
	LastModified string `json:"last_modified"`
	ContentType  string `json:"content_type"`
}

// SwiftClient talks to an OpenStack Swift compatible storage URL with a
// pre-negotiated auth token.
type SwiftClient struct {
	httpClient *retryablehttp.Client
	storageURL string
	authToken  string
}

// NewSwiftClient creates a client. transportRetries bounds socket level
// retries done by the HTTP client itself.
func NewSwiftClient(storageURL, authToken string, transportRetries int) *SwiftClient {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = transportRetries
	httpClient.Logger = nil

	return &SwiftClient{
		httpClient: httpClient,
		storageURL: strings.TrimSuffix(storageURL, "/"),
		authToken:  authToken,
	}
}

func (c *SwiftClient) URL() string {
	return c.storageURL
}

func (c *SwiftClient) MaxPageSize() int {
	return swiftMaxLimit
}

func (c *SwiftClient) CreateContainer(ctx context.Context, container string) error {
	req, err := c.newRequest(ctx, http.MethodPut, c.containerURL(container), nil)
	if err != nil {
		return newError("create container", container, "", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError("create container", container, "", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		return newError("create container", container, "", unwrapError(resp))
	}
}

func (c *SwiftClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	var body interface{}
	if req.Body != nil {
		body = req.Body
	}
	httpReq, err := c.newRequest(ctx, http.MethodPut, c.objectURL(req.Container, req.Name), body)
	if err != nil {
		return newError("put object", req.Container, req.Name, err)
	}

	// retryablehttp does not set Content-Length for readers
	httpReq.Header.Set("Content-Length", strconv.FormatInt(req.Size, 10))
	httpReq.ContentLength = req.Size
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.MD5 != "" {
		httpReq.Header.Set("ETag", req.MD5)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return newError("put object", req.Container, req.Name, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return newError("put object", req.Container, req.Name, unwrapError(resp))
	}
	return nil
}

func (c *SwiftClient) DeleteObject(ctx context.Context, container, name string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.objectURL(container, name), nil)
	if err != nil {
		return newError("delete object", container, name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError("delete object", container, name, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return newError("delete object", container, name, ErrNotFound)
	default:
		return newError("delete object", container, name, unwrapError(resp))
	}
}

func (c *SwiftClient) ListPage(ctx context.Context, container, marker string, limit int) ([]ObjectRecord, error) {
	if limit <= 0 || limit > swiftMaxLimit {
		limit = swiftMaxLimit
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("limit", strconv.Itoa(limit))
	if marker != "" {
		query.Set("marker", marker)
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.containerURL(container)+"?"+query.Encode(), nil)
	if err != nil {
		return nil, newError("list objects", container, "", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError("list objects", container, "", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return []ObjectRecord{}, nil
	case http.StatusNotFound:
		return nil, newError("list objects", container, "", ErrNotFound)
	default:
		return nil, newError("list objects", container, "", unwrapError(resp))
	}

	var objects []swiftObject
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, newError("list objects", container, "", fmt.Errorf("decode listing: %w", err))
	}

	records := make([]ObjectRecord, 0, len(objects))
	for _, obj := range objects {
		lastModified, _ := time.Parse(swiftTimestamp, obj.LastModified)
		records = append(records, ObjectRecord{
			Name:         obj.Name,
			Size:         obj.Bytes,
			LastModified: lastModified,
			Hash:         obj.Hash,
			ContentType:  obj.ContentType,
		})
	}
	return records, nil
}

func (c *SwiftClient) newRequest(ctx context.Context, method, rawURL string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.authToken)
	return req, nil
}

func (c *SwiftClient) containerURL(container string) string {
	return c.storageURL + "/" + url.PathEscape(container)
}

func (c *SwiftClient) objectURL(container, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.containerURL(container) + "/" + strings.Join(segments, "/")
}

func unwrapError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
