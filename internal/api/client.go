// Package api is the HTTP boundary to the cloud storage server. Every
// response body is treated as an untrusted variant: results are
// classified into a closed ok/failed outcome by status and code strings
// before any shape-dependent decoding.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/alexjbarnes/media-sync/internal/errors"
	"github.com/tidwall/gjson"
)

// TokenFunc returns the current bearer token, or empty string when the
// client is unauthenticated. Called per request so token refreshes are
// picked up without rebuilding the client.
type TokenFunc func() string

// Client talks to the cloud storage REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenFunc
}

// NewClient creates an API client for the given base URL. If httpClient
// is nil, http.DefaultClient is used. token may be nil for servers that
// do not require authentication.
func NewClient(baseURL string, token TokenFunc, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
	}
}

// Error is a classified server-side failure. Code is the machine
// readable error code from the response body; callers branch on it via
// HasCode, never on the body shape.
type Error struct {
	Endpoint   string
	HTTPStatus int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API %s (%d): %s: %s", e.Endpoint, e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("API %s returned status %d: %s", e.Endpoint, e.HTTPStatus, e.Message)
}

func (e *Error) Unwrap() error { return apperrors.ErrAPIRequest }

// HasCode reports whether err is a server failure with the given code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}

// do sends the request, reads the body, and classifies the outcome. A
// non-2xx status or a body carrying a "code" field is a failure; the
// code and message are extracted with gjson so a malformed body can
// never panic the classifier.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	code := gjson.GetBytes(body, "code").Str
	message := gjson.GetBytes(body, "message").Str

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if message == "" {
			message = string(body)
		}
		return nil, &Error{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Code: code, Message: message}
	}

	// Some deployments report errors as 200 with a code field in the body.
	if code != "" {
		return nil, &Error{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Code: code, Message: message}
	}

	return body, nil
}

// postJSON sends a JSON POST request and returns the raw response body.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint)
}

// get sends a GET request with the given query and returns the raw body.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return c.do(req, endpoint)
}

// Capabilities fetches what the server allows: whether uploads are
// enabled and the advertised chunk size.
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	body, err := c.get(ctx, "/api/capabilities", nil)
	if err != nil {
		return Capabilities{}, fmt.Errorf("fetching capabilities: %w", err)
	}

	return Capabilities{
		UploadsEnabled: gjson.GetBytes(body, "uploadsEnabled").Bool(),
		ChunkSize:      gjson.GetBytes(body, "chunkSize").Int(),
	}, nil
}

type statusBatchRequest struct {
	Root  string       `json:"root"`
	Items []StatusItem `json:"items"`
}

// UploadStatusBatch asks the server to classify up to a batch of
// candidate items. Results are keyed by the explicit index field from
// the response, not by array position: the server may reorder or omit
// entries, and an absent index means the caller must fail that item.
func (c *Client) UploadStatusBatch(ctx context.Context, root string, items []StatusItem) (map[int]UploadStatus, error) {
	body, err := c.postJSON(ctx, "/api/upload/status/batch", statusBatchRequest{Root: root, Items: items})
	if err != nil {
		return nil, fmt.Errorf("requesting upload status batch: %w", err)
	}

	results := make(map[int]UploadStatus, len(items))
	for _, item := range gjson.GetBytes(body, "items").Array() {
		idx := item.Get("index")
		if !idx.Exists() {
			continue
		}
		i := int(idx.Int())
		if i < 0 || i >= len(items) {
			continue
		}
		results[i] = UploadStatus{
			Status: item.Get("status").Str,
			Offset: item.Get("offset").Int(),
		}
	}

	return results, nil
}

// UploadStatus queries the status of a single item. Used during rename
// probing, where each probe depends on the previous one being rejected.
// An "exists" failure is surfaced as UploadStatus{Status: "exists"} so
// the caller has a single classification path.
func (c *Client) UploadStatus(ctx context.Context, root string, item StatusItem) (UploadStatus, error) {
	body, err := c.get(ctx, "/api/upload/status", itemQuery(root, item, -1))
	if err != nil {
		if HasCode(err, CodeExists) {
			return UploadStatus{Status: StatusExists}, nil
		}
		return UploadStatus{}, fmt.Errorf("requesting upload status: %w", err)
	}

	return UploadStatus{
		Status: gjson.GetBytes(body, "status").Str,
		Offset: gjson.GetBytes(body, "offset").Int(),
	}, nil
}

// UploadChunk posts one chunk of raw bytes at the given offset and
// returns the server-recorded offset after the write. The item identity
// travels in query parameters; the body is the chunk itself.
func (c *Client) UploadChunk(ctx context.Context, root string, item StatusItem, offset int64, chunk []byte) (int64, error) {
	endpoint := "/api/upload/chunk"

	u := c.baseURL + endpoint + "?" + itemQuery(root, item, offset).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(chunk))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(chunk))

	body, err := c.do(req, endpoint)
	if err != nil {
		return 0, fmt.Errorf("uploading chunk: %w", err)
	}

	off := gjson.GetBytes(body, "offset")
	if !off.Exists() {
		// A 2xx chunk response without an offset leaves the upload
		// position unknown; continuing would risk writing at the wrong
		// offset.
		return 0, fmt.Errorf("chunk response missing offset: %w", apperrors.ErrAPIResponse)
	}

	return off.Int(), nil
}

// List fetches one page of a remote directory listing.
func (c *Client) List(ctx context.Context, root, path string, limit, offset int) ([]ListEntry, error) {
	query := url.Values{}
	query.Set("root", root)
	query.Set("path", path)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	body, err := c.get(ctx, "/api/list", query)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", path, err)
	}

	var entries []ListEntry
	for _, item := range gjson.GetBytes(body, "items").Array() {
		entries = append(entries, ListEntry{
			Path:   item.Get("path").Str,
			RootID: item.Get("rootId").Str,
			IsDir:  item.Get("isDir").Bool(),
		})
	}

	return entries, nil
}

type deleteRequest struct {
	Root  string   `json:"root"`
	Paths []string `json:"paths"`
}

// Delete moves the given remote paths to the server-side trash. The
// server contract is move-to-trash, not permanent erasure.
func (c *Client) Delete(ctx context.Context, root string, paths []string) error {
	if _, err := c.postJSON(ctx, "/api/delete", deleteRequest{Root: root, Paths: paths}); err != nil {
		return fmt.Errorf("deleting %d remote paths: %w", len(paths), err)
	}

	return nil
}

// itemQuery flattens a status item into query parameters for the single
// status and chunk endpoints. offset < 0 omits the offset parameter.
func itemQuery(root string, item StatusItem, offset int64) url.Values {
	q := url.Values{}
	q.Set("root", root)

	if item.Target != "" {
		q.Set("target", item.Target)
	} else {
		q.Set("path", item.Path)
		q.Set("file", item.File)
		q.Set("camera", strconv.Itoa(item.Camera))
		q.Set("cameraMonth", item.CameraMonth)
		q.Set("capturedAt", item.CapturedAt)
	}

	q.Set("size", strconv.FormatInt(item.Size, 10))
	q.Set("overwrite", strconv.FormatBool(item.Overwrite))

	if offset >= 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	return q
}
