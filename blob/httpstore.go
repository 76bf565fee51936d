package blob

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/typely/certify/internal/version"
)

// HTTPStore talks to an object storage REST endpoint:
//
//	PUT    <base>/<path>        stores the request body
//	GET    <base>/<path>        returns the object
//	DELETE <base>/<path>        removes the object
//	GET    <base>/?prefix=<p>   returns a JSON array of Object
type HTTPStore struct {
	client *resty.Client
}

// HTTPStoreConfig configures an HTTPStore
type HTTPStoreConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPStore creates a new HTTPStore
func NewHTTPStore(conf HTTPStoreConfig) (*HTTPStore, error) {
	if _, err := url.ParseRequestURI(conf.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid blob base url")
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(conf.BaseURL, "/")).
		SetHeader("User-Agent", version.UserAgent())
	if conf.Timeout > 0 {
		client.SetTimeout(conf.Timeout)
	}
	if conf.APIKey != "" {
		client.SetAuthToken(conf.APIKey)
	}
	return &HTTPStore{client: client}, nil
}

func objectURL(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	segments := strings.Split(c, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/"), nil
}

func statusError(op string, resp *resty.Response) error {
	return errors.Errorf("blob %s failed: %s: %s", op, resp.Status(), strings.TrimSpace(resp.String()))
}

// Upload implements the Store interface
func (s *HTTPStore) Upload(ctx context.Context, p string, data []byte, contentType string) error {
	u, err := objectURL(p)
	if err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(u)
	if err != nil {
		return errors.Wrap(err, "blob upload failed")
	}
	if resp.IsError() {
		return statusError("upload", resp)
	}
	return nil
}

// Download implements the Store interface
func (s *HTTPStore) Download(ctx context.Context, p string) ([]byte, error) {
	u, err := objectURL(p)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		Get(u)
	if err != nil {
		return nil, errors.Wrap(err, "blob download failed")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, statusError("download", resp)
	}
	return resp.Body(), nil
}

// Delete implements the Store interface
func (s *HTTPStore) Delete(ctx context.Context, p string) error {
	u, err := objectURL(p)
	if err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		Delete(u)
	if err != nil {
		return errors.Wrap(err, "blob delete failed")
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return statusError("delete", resp)
	}
	return nil
}

// List implements the Lister interface
func (s *HTTPStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		SetResult(&objects).
		Get("/")
	if err != nil {
		return nil, errors.Wrap(err, "blob list failed")
	}
	if resp.IsError() {
		return nil, statusError("list", resp)
	}
	return objects, nil
}
