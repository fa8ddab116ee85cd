package dto

// WebhookAckResponse confirmación al proveedor de pagos.
type WebhookAckResponse struct {
	Received  bool   `json:"received"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Status    string `json:"billingStatus,omitempty"`
}
