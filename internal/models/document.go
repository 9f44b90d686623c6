// Package models defines the domain types for jsonvault.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier selects one of the two storage roots.
type Tier int

const (
	// Synced documents live in the cloud-mirrored root.
	Synced Tier = iota
	// Private documents live in the local-only root.
	Private
)

// Tiers lists every tier in a stable order.
var Tiers = []Tier{Synced, Private}

// String returns the canonical lowercase tier name.
func (t Tier) String() string {
	switch t {
	case Synced:
		return "synced"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t == Synced || t == Private
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier converts a tier name to a Tier. The aliases used by the mobile
// plugins ("public"/"cloud" and "nocloud") are accepted as well.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "synced", "public", "cloud":
		return Synced, nil
	case "private", "nocloud":
		return Private, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// DocumentMetadata describes a stored document without its contents.
type DocumentMetadata struct {
	Name      string    `json:"name"`
	Tier      Tier      `json:"tier"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
