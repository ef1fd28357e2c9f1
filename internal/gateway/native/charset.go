// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package native

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is the ANSI code page the library expects on goos.
func DefaultCharset(goos string) string {
	if goos == "windows" {
		return "windows-1252"
	}
	return "utf-8"
}

// LookupCharset resolves a charset label such as "windows-1252" or "utf-8".
func LookupCharset(name string) (encoding.Encoding, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return enc, nil
}

// encodeString converts UTF-8 into the library code page. Characters the
// code page cannot represent are replaced, as ANSI marshalling does.
func encodeString(enc encoding.Encoding, s string) (string, error) {
	if enc == nil || enc == unicode.UTF8 {
		return s, nil
	}
	return encoding.ReplaceUnsupported(enc.NewEncoder()).String(s)
}

func decodeString(enc encoding.Encoding, s string) (string, error) {
	if enc == nil || enc == unicode.UTF8 {
		return s, nil
	}
	return enc.NewDecoder().String(s)
}
