package auditsig

import (
	"fmt"
	"strings"
)

// KeyProvider entrega secretos de firma por versión.
// Las versiones anteriores se conservan para verificar registros históricos tras una rotación.
type KeyProvider interface {
	Current() (version, secret string)
	Secret(version string) (string, bool)
}

// KeyRing KeyProvider estático en memoria.
type KeyRing struct {
	current string
	keys    map[string]string
}

var _ KeyProvider = (*KeyRing)(nil)

// NewKeyRing construye el anillo. current debe existir en keys.
func NewKeyRing(current string, keys map[string]string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("auditsig: al menos una llave es obligatoria")
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("auditsig: versión vigente %q no está en el anillo", current)
	}
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		if v == "" {
			return nil, fmt.Errorf("auditsig: llave %q vacía", k)
		}
		cp[k] = v
	}
	return &KeyRing{current: current, keys: cp}, nil
}

// ParseKeyRing interpreta "v1:secreto,v2:otro". Si current es vacío se usa la última versión listada.
func ParseKeyRing(raw, current string) (*KeyRing, error) {
	keys := map[string]string{}
	last := ""
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		version, secret, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(version) == "" {
			return nil, fmt.Errorf("auditsig: formato de llave inválido %q (esperado version:secreto)", part)
		}
		version = strings.TrimSpace(version)
		keys[version] = secret
		last = version
	}
	if current == "" {
		current = last
	}
	return NewKeyRing(current, keys)
}

// Current devuelve la versión y el secreto vigentes.
func (k *KeyRing) Current() (string, string) {
	return k.current, k.keys[k.current]
}

// Secret devuelve el secreto de una versión.
func (k *KeyRing) Secret(version string) (string, bool) {
	s, ok := k.keys[version]
	return s, ok
}
