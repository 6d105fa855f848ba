// Package gcs is a thin client for the Cloud Storage JSON API scoped to one bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/firmasegura/certifications-backend/pkg/config"
	"github.com/firmasegura/certifications-backend/pkg/logger"
)

const (
	scopeReadWrite  = "https://www.googleapis.com/auth/devstorage.read_write"
	defaultEndpoint = "https://storage.googleapis.com"
	defaultTimeout  = 30 * time.Second
	pingTimeout     = 5 * time.Second
	maxErrorBody    = 2048
)

// ErrObjectNotFound is returned by Download for a missing object.
var ErrObjectNotFound = errors.New("gcs object not found")

type Client struct {
	http     *http.Client
	endpoint string
	bucket   string
}

// NewClient authenticates with inline credentials, a credentials file, or
// Application Default Credentials, in that order, then checks the bucket.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	ts, err := tokenSource(ctx, gcp)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = cfg.RequestTimeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	c := &Client{http: httpClient, endpoint: defaultEndpoint, bucket: cfg.BucketName}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs bucket %q unreachable: %w", cfg.BucketName, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client ready")
	}
	return c, nil
}

func tokenSource(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		var err error
		if raw, err = os.ReadFile(gcp.ApplicationCredentials); err != nil {
			return nil, fmt.Errorf("read gcp credentials: %w", err)
		}
	}
	if len(raw) == 0 {
		ts, err := google.DefaultTokenSource(ctx, scopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("default gcp credentials: %w", err)
		}
		return ts, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, scopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("parse gcp credentials: %w", err)
	}
	return creds.TokenSource, nil
}

func (c *Client) Bucket() string { return c.bucket }

// Ping lists at most one object, which needs the same permission as reads.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errors.New("gcs client not initialized")
	}
	if c.bucket == "" {
		return errors.New("gcs bucket not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := c.bucketURL("/storage/v1/b/%s/o") + "?maxResults=1"
	resp, err := c.call(ctx, http.MethodGet, u, nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Upload writes data with a single-request media upload.
func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) error {
	if err := checkObject(object); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	u := c.bucketURL("/upload/storage/v1/b/%s/o") + "?uploadType=media&name=" + url.QueryEscape(object)
	resp, err := c.call(ctx, http.MethodPost, u, bytes.NewReader(data), contentType, http.StatusOK, http.StatusCreated)
	if err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return resp.Body.Close()
}

// Download streams the object body. The caller closes it.
func (c *Client) Download(ctx context.Context, object string) (io.ReadCloser, error) {
	if err := checkObject(object); err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, http.MethodGet, c.objectURL(object)+"?alt=media", nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete reports false, without error, when the object was already gone.
func (c *Client) Delete(ctx context.Context, object string) (bool, error) {
	if err := checkObject(object); err != nil {
		return false, err
	}
	resp, err := c.call(ctx, http.MethodDelete, c.objectURL(object), nil, "", http.StatusOK, http.StatusNoContent)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", object, err)
	}
	return true, resp.Body.Close()
}

// call sends the request and returns the response only when its status is in ok.
// A 404 maps to ErrObjectNotFound.
func (c *Client) call(ctx context.Context, method, u string, body io.Reader, contentType string, ok ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if slices.Contains(ok, resp.StatusCode) {
		return resp, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if s := strings.TrimSpace(string(msg)); s != "" {
		return nil, fmt.Errorf("gcs %s: %s: %s", method, resp.Status, s)
	}
	return nil, fmt.Errorf("gcs %s: %s", method, resp.Status)
}

func (c *Client) bucketURL(pathFormat string) string {
	return strings.TrimRight(c.endpoint, "/") + fmt.Sprintf(pathFormat, url.PathEscape(c.bucket))
}

func (c *Client) objectURL(object string) string {
	return c.bucketURL("/storage/v1/b/%s/o") + "/" + url.PathEscape(object)
}

func checkObject(object string) error {
	if strings.TrimSpace(object) == "" {
		return errors.New("gcs object name is required")
	}
	return nil
}
