package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles reconocidos por la API de stock y auditoría.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleOperator   = "operador"
)

// ErrMissingTenant el token no trae tenant: toda operación de stock es por tenant.
var ErrMissingTenant = errors.New("jwt: token sin tenant")

// Identity datos del usuario autenticado que viajan en el token.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

// Claims claims estándar más la identidad. El rol va en el token para que RequireRole
// no consulte la base.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Generate firma un token HS256 para id con vigencia ttl. Un ttl negativo produce un token vencido.
func Generate(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   id.UserID,
		TenantID: id.TenantID,
		Role:     id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida firma, vencimiento y (si issuer no es vacío) emisor. El rol puede venir vacío;
// decidir qué hacer con eso es de RequireRole.
func Parse(secret, issuer, tokenString string) (Identity, error) {
	if secret == "" {
		return Identity{}, fmt.Errorf("jwt: secret vacío")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("jwt: claims inválidos")
	}
	if claims.TenantID == "" {
		return Identity{}, ErrMissingTenant
	}
	return Identity{UserID: claims.UserID, TenantID: claims.TenantID, Role: claims.Role}, nil
}
