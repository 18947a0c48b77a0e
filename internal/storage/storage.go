package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage keeps rendered invoice documents.
type Storage interface {
	// Save writes the document under key, overwriting an existing one.
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public link persisted on the invoice.
	URL(key string) string
}

// Config holds storage configuration
type Config struct {
	Type       string // local, s3, cloudflare_r2
	BasePath   string // local only
	BaseURL    string // public URL base
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Endpoint   string // R2 or custom S3
	PublicRead bool
}

// NewStorage creates a storage backend based on configuration
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg)
	case "s3", "cloudflare_r2":
		return NewObjectStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// InvoiceKey is the object key for an invoice document.
func InvoiceKey(invoiceNumber, extension string) string {
	return fmt.Sprintf("invoices/%s.%s", invoiceNumber, extension)
}
