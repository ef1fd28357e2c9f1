// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package native

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ManuGH/xmlembed/internal/gateway"
)

func TestLibraryPath(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"windows", "amd64", filepath.Join("lib", "win", "lib-embed-x64.dll"), false},
		{"windows", "386", filepath.Join("lib", "win", "lib-embed-x86.dll"), false},
		{"linux", "amd64", filepath.Join("lib", "lin", "lib-embed-x64.so"), false},
		{"linux", "386", filepath.Join("lib", "lin", "lib-embed-x86.so"), false},
		{"linux", "arm64", "", true},
		{"darwin", "amd64", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := LibraryPath("lib", tt.goos, tt.goarch)
			if tt.wantErr {
				require.ErrorIs(t, err, gateway.ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderMatchesLibraryPath(t *testing.T) {
	_, err := LibraryPath("lib", runtime.GOOS, "amd64")
	assert.Equal(t, loaderSupported, err == nil, "loader build and LibraryPath disagree on %s", runtime.GOOS)
}

func TestOpen_MissingLibraryIsUnavailable(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "lin", "lib-embed-x64.so"))
	require.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestCharset_Windows1252RoundTrip(t *testing.T) {
	enc, err := LookupCharset("Windows-1252")
	require.NoError(t, err)
	assert.Equal(t, charmap.Windows1252, enc)

	in := "configuração;ação"
	encoded, err := encodeString(enc, in)
	require.NoError(t, err)
	assert.Equal(t, len([]rune(in)), len(encoded), "one byte per character")
	assert.Contains(t, encoded, "\xe7\xe3o")

	decoded, err := decodeString(enc, encoded)
	require.NoError(t, err)
	assert.Equal(t, in, decoded)
}

func TestCharset_UnsupportedCharactersAreReplaced(t *testing.T) {
	enc, err := LookupCharset("windows-1252")
	require.NoError(t, err)
	out, err := encodeString(enc, "a中b")
	require.NoError(t, err)
	assert.Equal(t, 3, len(out))
}

func TestCharset_UTF8Passthrough(t *testing.T) {
	enc, err := LookupCharset("")
	require.NoError(t, err)
	out, err := encodeString(enc, "ação")
	require.NoError(t, err)
	assert.Equal(t, "ação", out)
}

func TestLookupCharset_Unknown(t *testing.T) {
	_, err := LookupCharset("klingon")
	assert.Error(t, err)
	_, err = LookupCharset("iso-8859-1")
	assert.NoError(t, err)
}

func TestDefaultCharset(t *testing.T) {
	assert.Equal(t, "windows-1252", DefaultCharset("windows"))
	assert.Equal(t, "utf-8", DefaultCharset("linux"))
}
