package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrInsufficientStock = errors.New("stock insuficiente")

	// Campañas de conteo físico.
	ErrCampaignConflict  = errors.New("ya existe una campaña activa para el tenant")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrIncompleteCount   = errors.New("hay ítems sin cantidad contada")

	// Bitácora de auditoría. Nunca se corrige automáticamente.
	ErrSignatureMismatch = errors.New("la firma del registro de auditoría no coincide")
)
