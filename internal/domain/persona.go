package domain

import (
	"fmt"
	"strings"
)

// Persona is the business role a chat session speaks as. It scopes which
// cached answers and session histories belong together.
type Persona string

const (
	PersonaWarehouseManager      Persona = "warehouse_manager"
	PersonaFieldEngineer         Persona = "field_engineer"
	PersonaProcurementSpecialist Persona = "procurement_specialist"
)

// Personas lists every supported persona in display order
func Personas() []Persona {
	return []Persona{
		PersonaWarehouseManager,
		PersonaFieldEngineer,
		PersonaProcurementSpecialist,
	}
}

// DisplayName returns the human readable role name
func (p Persona) DisplayName() string {
	switch p {
	case PersonaWarehouseManager:
		return "Warehouse Manager"
	case PersonaFieldEngineer:
		return "Field Engineer"
	case PersonaProcurementSpecialist:
		return "Procurement Specialist"
	}
	return string(p)
}

// Valid reports whether p is one of the known personas
func (p Persona) Valid() bool {
	switch p {
	case PersonaWarehouseManager, PersonaFieldEngineer, PersonaProcurementSpecialist:
		return true
	}
	return false
}

// ParsePersona accepts either the identifier ("field_engineer") or the
// display name ("Field Engineer"), case-insensitively.
func ParsePersona(s string) (Persona, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	p := Persona(normalized)
	if !p.Valid() {
		return "", fmt.Errorf("unknown persona %q", s)
	}
	return p, nil
}
