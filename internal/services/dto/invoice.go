package dto

import "rentora_backend/internal/models"

type InvoiceListResponse struct {
	Invoices []models.Invoice `json:"invoices"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
