// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package native binds the lib-embed shared library.
//
// The library is process-global state: it keeps one configuration and one
// job at a time. All calls through any Library value are serialized by a
// single process-wide lock.
package native

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/text/encoding"

	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/log"
)

// Exported symbol names.
const (
	SymbolConfigure = "embed_configurar"
	SymbolStart     = "embed_iniciar"
	SymbolProcess   = "embed_processar"
	SymbolFinalize  = "embed_finalizar"
)

var callMu sync.Mutex

// LibraryPath resolves the library file for a platform:
// {dir}/win/lib-embed-{x64|x86}.dll or {dir}/lin/lib-embed-{x64|x86}.so.
func LibraryPath(dir, goos, goarch string) (string, error) {
	var sub, ext string
	switch goos {
	case "windows":
		sub, ext = "win", ".dll"
	case "linux":
		sub, ext = "lin", ".so"
	default:
		return "", fmt.Errorf("%w: unsupported operating system %q", gateway.ErrUnavailable, goos)
	}

	var arch string
	switch goarch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "x86"
	default:
		return "", fmt.Errorf("%w: unsupported architecture %q", gateway.ErrUnavailable, goarch)
	}
	return filepath.Join(dir, sub, "lib-embed-"+arch+ext), nil
}

// Option configures a Library.
type Option func(*Library)

// WithCharset selects the code page strings are transcoded to at the boundary.
func WithCharset(enc encoding.Encoding) Option {
	return func(l *Library) { l.enc = enc }
}

// Library is a loaded lib-embed implementing gateway.Port.
type Library struct {
	path   string
	handle uintptr
	enc    encoding.Encoding

	configure func(string) string
	start     func(string) string
	process   func(string) string
	finalize  func(string) string
}

// OpenDir loads the library matching the running platform from dir.
func OpenDir(dir string, opts ...Option) (*Library, error) {
	path, err := LibraryPath(dir, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return nil, err
	}
	return Open(path, opts...)
}

// Open loads the library at path and resolves the four primitives.
// Any failure is reported as gateway.ErrUnavailable.
func Open(path string, opts ...Option) (lib *Library, err error) {
	enc, _ := LookupCharset(DefaultCharset(runtime.GOOS))
	l := &Library{path: path, enc: enc}
	for _, opt := range opts {
		opt(l)
	}

	handle, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", gateway.ErrUnavailable, path, err)
	}
	l.handle = handle

	defer func() {
		// bindFunc panics on unsupported signatures or platforms.
		if r := recover(); r != nil {
			_ = closeLibrary(handle)
			lib, err = nil, fmt.Errorf("%w: bind %s: %v", gateway.ErrUnavailable, path, r)
		}
	}()

	bind := []struct {
		symbol string
		fn     *func(string) string
	}{
		{SymbolConfigure, &l.configure},
		{SymbolStart, &l.start},
		{SymbolProcess, &l.process},
		{SymbolFinalize, &l.finalize},
	}
	for _, b := range bind {
		addr, err := lookupSymbol(handle, b.symbol)
		if err != nil {
			_ = closeLibrary(handle)
			return nil, fmt.Errorf("%w: resolve %s in %s: %v", gateway.ErrUnavailable, b.symbol, path, err)
		}
		bindFunc(b.fn, addr)
	}

	logger := log.WithComponent("gateway")
	logger.Info().
		Str(log.FieldEvent, "gateway.library_loaded").
		Str(log.FieldPath, path).
		Msg("backend library loaded")
	return l, nil
}

// Path returns the loaded file.
func (l *Library) Path() string { return l.path }

// Close unloads the library.
func (l *Library) Close() error {
	callMu.Lock()
	defer callMu.Unlock()
	if l.handle == 0 {
		return nil
	}
	err := closeLibrary(l.handle)
	l.handle = 0
	return err
}

func (l *Library) call(fn func(string) string, input string) (string, error) {
	in, err := encodeString(l.enc, input)
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}

	callMu.Lock()
	if l.handle == 0 {
		callMu.Unlock()
		return "", fmt.Errorf("%w: library closed", gateway.ErrUnavailable)
	}
	raw := fn(in)
	callMu.Unlock()

	out, err := decodeString(l.enc, raw)
	if err != nil {
		return "", fmt.Errorf("decode output: %w", err)
	}
	return out, nil
}

func (l *Library) Configure(_ context.Context, input string) (string, error) {
	return l.call(l.configure, input)
}

func (l *Library) Start(_ context.Context, input string) (string, error) {
	return l.call(l.start, input)
}

func (l *Library) Process(_ context.Context, input string) (string, error) {
	return l.call(l.process, input)
}

func (l *Library) Finalize(_ context.Context, input string) (string, error) {
	return l.call(l.finalize, input)
}

var _ gateway.Port = (*Library)(nil)
