package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/resumeforge/internal/breaker"
	"github.com/geocoder89/resumeforge/internal/observability"
)

const (
	convertPath = "/forms/chromium/convert/html"
	provider    = "pdf_renderer"
	maxPDFBytes = 20 << 20
)

var ErrNotConfigured = errors.New("pdf: renderer not configured")

// Renderer converts HTML to PDF through a Gotenberg-compatible headless
// Chromium service.
type Renderer struct {
	client  *http.Client
	baseURL string
	breaker *breaker.Breaker
	obs     observability.ExternalObserver
}

func NewRenderer(client *http.Client, baseURL string, cfg breaker.Config, obs observability.ExternalObserver) *Renderer {
	if client == nil {
		client = observability.NewHTTPClient(60 * time.Second)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Renderer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: breaker.New(cfg),
		obs:     obs,
	}
}

func (r *Renderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	if r.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, contentType, err := convertForm(html)
	if err != nil {
		return nil, err
	}

	var out []byte
	start := time.Now()

	err = r.breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.convert(ctx, body, contentType)
		return callErr
	})

	if r.obs != nil && !errors.Is(err, breaker.ErrOpen) {
		r.obs.ObserveExternal(provider, time.Since(start), err)
	}

	return out, err
}

func convertForm(html []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(html); err != nil {
		return nil, "", err
	}

	// A4 in inches
	fields := map[string]string{
		"paperWidth":      "8.27",
		"paperHeight":     "11.7",
		"printBackground": "true",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (r *Renderer) convert(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+convertPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf: call renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pdf: renderer status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, fmt.Errorf("pdf: read renderer response: %w", err)
	}
	return out, nil
}
