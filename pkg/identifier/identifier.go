// Package identifier valida identificadores externos (tenant, documento) antes
// de que lleguen a la capa de consulta. Un identificador malformado se rechaza;
// nunca se consulta "en ancho" por un filtro vacío o inválido.
package identifier

import (
	"strings"

	"github.com/google/uuid"
)

// IsValid indica si s es un identificador bien formado (UUID).
func IsValid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Normalize recorta espacios y pasa a minúsculas la representación canónica.
// Devuelve cadena vacía si el identificador no es válido.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	id, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	return id.String()
}
