// Package remote talks to the external conversion service that performs OCR
// as a side effect of importing an image as an editable document.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/warraq-app/warraq/constants"
	"github.com/warraq-app/warraq/internal/common"
	"github.com/warraq-app/warraq/internal/retry"
	"github.com/warraq-app/warraq/internal/textutil"
)

// convertedDocMIMEType asks the service to convert the upload into its native
// document type, which triggers OCR on image content.
const convertedDocMIMEType = "application/vnd.google-apps.document"

// APIError is a non-2xx response from the conversion service. It carries the
// structured status code the retry policy classifies on.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.StatusCode, e.Body)
}

// HTTPStatus implements retry.StatusCoder.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Client performs upload / export-as-text / delete against the conversion
// service. Every call is wrapped by the retry policy. Safe for concurrent use.
type Client struct {
	hc         *http.Client
	policy     *retry.Policy
	logger     *slog.Logger
	apiBase    string
	uploadBase string
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithBaseURLs overrides the API and upload endpoints (tests point these at
// a local server).
func WithBaseURLs(apiBase, uploadBase string) Option {
	return func(c *Client) {
		if apiBase != "" {
			c.apiBase = apiBase
		}
		if uploadBase != "" {
			c.uploadBase = uploadBase
		}
	}
}

// WithPolicy replaces the default retry policy.
func WithPolicy(p *retry.Policy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// NewClient builds a conversion service client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		hc:         &http.Client{Timeout: 90 * time.Second},
		policy:     retry.NewPolicy(),
		logger:     logger,
		apiBase:    "https://www.googleapis.com/drive/v3",
		uploadBase: "https://www.googleapis.com/upload/drive/v3",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type driveFile struct {
	ID string `json:"id"`
}

// Upload sends a page image to the service as a converted document, which
// triggers OCR remotely, and returns the remote artifact ID. The remote name
// is a random UUID; it never leaks the local file name.
func (c *Client) Upload(ctx context.Context, imagePath, token string) (string, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}
	mimeType := constants.MimeTypeForPath(imagePath)
	remoteName := uuid.New().String()

	var remoteID string
	err = c.policy.Do(ctx, func() error {
		body, contentType, err := buildMultipart(remoteName, mimeType, content)
		if err != nil {
			return err
		}
		u := c.uploadBase + "/files?uploadType=multipart&fields=id"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)

		raw, err := c.send(req, "upload")
		if err != nil {
			return err
		}
		var df driveFile
		if err := json.Unmarshal(raw, &df); err != nil {
			return fmt.Errorf("decode upload response: %w", err)
		}
		remoteID = df.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug("remote.upload.ok", "remote_id", remoteID, "bytes", len(content))
	return remoteID, nil
}

// ExportText fetches the OCR result as plain text and cleans up the
// service's document-boundary artifacts before returning it.
func (c *Client) ExportText(ctx context.Context, remoteID, token string) (string, error) {
	var text string
	err := c.policy.Do(ctx, func() error {
		u := fmt.Sprintf("%s/files/%s/export?mimeType=%s",
			c.apiBase, url.PathEscape(remoteID), url.QueryEscape("text/plain"))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		raw, err := c.send(req, "export")
		if err != nil {
			return err
		}
		text = textutil.CleanExport(string(raw))
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Delete removes the remote artifact. A 204 is the usual success response.
func (c *Client) Delete(ctx context.Context, remoteID, token string) error {
	return c.policy.Do(ctx, func() error {
		u := fmt.Sprintf("%s/files/%s", c.apiBase, url.PathEscape(remoteID))
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		_, err = c.send(req, "delete")
		return err
	})
}

// send executes the request and converts non-2xx responses into *APIError.
func (c *Client) send(req *http.Request, op string) ([]byte, error) {
	logger := c.logger
	if jobID := common.JobIDFromContext(req.Context()); jobID != "" {
		logger = logger.With("job_id", jobID)
	}
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		logger.Warn("remote.send_error", "op", op, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("remote.body_close_error", "op", op, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// buildMultipart assembles the two-part upload: JSON metadata requesting
// conversion, then the image bytes.
func buildMultipart(remoteName, mimeType string, content []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	meta := map[string]string{
		"name":     remoteName,
		"mimeType": convertedDocMIMEType,
	}
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	mp, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, "", fmt.Errorf("metadata part: %w", err)
	}
	if err := json.NewEncoder(mp).Encode(meta); err != nil {
		return nil, "", fmt.Errorf("encode metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	fp, err := w.CreatePart(fileHeader)
	if err != nil {
		return nil, "", fmt.Errorf("file part: %w", err)
	}
	if _, err := fp.Write(content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, "multipart/related; boundary=" + w.Boundary(), nil
}
