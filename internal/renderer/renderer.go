// Package renderer - клиент внешнего сервиса, который превращает счёт в документ (PDF).
package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"rentora_backend/internal/models"
)

type Document struct {
	Content     []byte
	ContentType string
	Extension   string
}

// Renderer отрисовывает счёт. Внутренности рендеринга живут вне этого сервиса.
type Renderer interface {
	Render(ctx context.Context, invoice *models.Invoice) (*Document, error)
}

type HTTPRenderer struct {
	client *resty.Client
}

func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, invoice *models.Invoice) (*Document, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/pdf").
		SetBody(invoice).
		Post("/render/invoice")
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", invoice.InvoiceNumber, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("render invoice %s: http %d", invoice.InvoiceNumber, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("render invoice %s: empty document", invoice.InvoiceNumber)
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	return &Document{
		Content:     resp.Body(),
		ContentType: contentType,
		Extension:   extensionFor(contentType),
	}, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "text/html"):
		return "html"
	default:
		return "pdf"
	}
}
