package dto

// Límites de página por listado: valor por defecto y tope.
const (
	CampaignPageDefault = 20
	CampaignPageMax     = 100
	MovementPageDefault = 50
	MovementPageMax     = 200
	AuditPageDefault    = 100
	AuditPageMax        = 500
)

// PageRequest paginación ya normalizada.
type PageRequest struct {
	Limit  int
	Offset int
}

// NewPageRequest normaliza los valores del query: un limit fuera de (0, ceiling] toma def y un
// offset negativo queda en 0. El PageResponse refleja lo que realmente se consultó.
func NewPageRequest(limit, offset, def, ceiling int) PageRequest {
	if limit <= 0 || limit > ceiling {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return PageRequest{Limit: limit, Offset: offset}
}

// Response metadatos de la página consultada.
func (p PageRequest) Response() PageResponse {
	return PageResponse{Limit: p.Limit, Offset: p.Offset}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse cuerpo de error HTTP. Code es estable (VALIDATION, CAMPAIGN_CONFLICT...);
// Message es para humanos.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
