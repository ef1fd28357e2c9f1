// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
	"strings"
)

// FieldDelimiter separates fields in flat backend commands.
const FieldDelimiter = ";"

// ErrInvalidCredentialField is returned when a credential field cannot be
// carried by the flat command grammar.
var ErrInvalidCredentialField = errors.New("invalid credential field")

// Credentials identify the integration against the backend.
// Values are immutable once loaded and scoped to one session.
type Credentials struct {
	Product    string
	SubProduct string
	AccessKey  string
	SecretKey  string
	TerminalID string
}

// Fields returns the credential fields in wire order.
func (c Credentials) Fields() []string {
	return []string{c.Product, c.SubProduct, c.AccessKey, c.SecretKey, c.TerminalID}
}

// FieldNames returns the canonical names matching Fields.
func FieldNames() []string {
	return []string{"product", "sub_product", "access_key", "secret_key", "terminal_id"}
}

// Validate checks that no field contains the command delimiter.
// The backend performs no escaping, so a delimiter would shift every following field.
func (c Credentials) Validate() error {
	names := FieldNames()
	for i, v := range c.Fields() {
		if strings.Contains(v, FieldDelimiter) {
			return fmt.Errorf("%w: %s contains %q", ErrInvalidCredentialField, names[i], FieldDelimiter)
		}
	}
	return nil
}

// Missing returns the names of empty fields.
func (c Credentials) Missing() []string {
	var out []string
	names := FieldNames()
	for i, v := range c.Fields() {
		if strings.TrimSpace(v) == "" {
			out = append(out, names[i])
		}
	}
	return out
}

// String masks the secrets.
func (c Credentials) String() string {
	return fmt.Sprintf("product=%s sub_product=%s access_key=%s secret_key=%s terminal_id=%s",
		c.Product, c.SubProduct, Mask(c.AccessKey), Mask(c.SecretKey), c.TerminalID)
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
