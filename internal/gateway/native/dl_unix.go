// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build linux

package native

import "github.com/ebitengine/purego"

// loaderSupported mirrors the operating systems LibraryPath accepts.
const loaderSupported = true

func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func closeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}

func bindFunc(fn *func(string) string, addr uintptr) {
	purego.RegisterFunc(fn, addr)
}
