package artifact

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/typely/certify/internal/version"
)

var pdfMagic = []byte("%PDF-")

// HTTPRenderer renders certificates by posting the Request as JSON to a
// rendering service, which answers with the PDF bytes
type HTTPRenderer struct {
	client   *resty.Client
	endpoint string
}

// HTTPRendererConfig configures an HTTPRenderer
type HTTPRendererConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Retries int
}

// NewHTTPRenderer creates a new HTTPRenderer
func NewHTTPRenderer(conf HTTPRendererConfig) (*HTTPRenderer, error) {
	if conf.URL == "" {
		return nil, errors.New("renderer url must be specified")
	}
	client := resty.New().
		SetHeader("Accept", "application/pdf").
		SetHeader("User-Agent", version.UserAgent()).
		SetRetryCount(conf.Retries).
		AddRetryCondition(
			func(resp *resty.Response, err error) bool {
				return err != nil || resp.StatusCode() >= 500
			},
		)
	if conf.Timeout > 0 {
		client.SetTimeout(conf.Timeout)
	}
	if conf.Token != "" {
		client.SetAuthToken(conf.Token)
	}
	return &HTTPRenderer{
		client:   client,
		endpoint: conf.URL,
	}, nil
}

// Build implements the Builder interface
func (r *HTTPRenderer) Build(ctx context.Context, req Request) ([]byte, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(r.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "certificate rendering failed")
	}
	if resp.IsError() {
		return nil, errors.Errorf(
			"certificate rendering failed: %s: %s", resp.Status(), strings.TrimSpace(resp.String()),
		)
	}
	body := resp.Body()
	if !bytes.HasPrefix(body, pdfMagic) {
		return nil, errors.New("certificate renderer did not return a pdf")
	}
	return body, nil
}
