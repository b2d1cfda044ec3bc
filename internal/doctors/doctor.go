// Package doctors manages the hospital doctor roster.
package doctors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
)

// Collection is the store path doctors live under.
const Collection = "doctors"

// Type is the department a doctor consults in.
type Type string

const (
	TypeOPD  Type = "OPD"
	TypeIPD  Type = "IPD"
	TypeBoth Type = "Both"
)

// ParseType normalizes a department label case-insensitively.
func ParseType(raw string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "opd":
		return TypeOPD, true
	case "ipd":
		return TypeIPD, true
	case "both":
		return TypeBoth, true
	}
	return "", false
}

// Doctor is a roster entry. Doctors are never edited after creation.
type Doctor struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Charges   float64 `json:"charges"`
	Type      Type    `json:"type"`
	CreatedAt int64   `json:"createdAt"`
}

// document is the stored form; the id is the store key.
type document struct {
	Name      string  `json:"name"`
	Charges   float64 `json:"charges"`
	Type      Type    `json:"type"`
	CreatedAt int64   `json:"createdAt"`
}

// FromChild decodes a roster entry from a collection snapshot child.
func FromChild(child docstore.Child) (Doctor, error) {
	var doc document
	if err := json.Unmarshal(child.Value, &doc); err != nil {
		return Doctor{}, fmt.Errorf("doctors: decode %s: %w", child.Key, err)
	}
	return Doctor{
		ID:        child.Key,
		Name:      doc.Name,
		Charges:   doc.Charges,
		Type:      doc.Type,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// FindByID returns the doctor with id from roster.
func FindByID(roster []Doctor, id string) (Doctor, bool) {
	for _, d := range roster {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

// MatchName returns the first doctor, in roster order, whose name contains
// fragment case-insensitively.
func MatchName(roster []Doctor, fragment string) (Doctor, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Doctor{}, false
	}
	for _, d := range roster {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, true
		}
	}
	return Doctor{}, false
}
