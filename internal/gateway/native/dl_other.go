// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !linux && !windows

package native

import (
	"errors"
	"runtime"
)

// The backend ships only Windows and Linux builds.
const loaderSupported = false

var errNoLoader = errors.New("no library loader for " + runtime.GOOS)

func openLibrary(string) (uintptr, error) { return 0, errNoLoader }

func lookupSymbol(uintptr, string) (uintptr, error) { return 0, errNoLoader }

func closeLibrary(uintptr) error { return nil }

func bindFunc(*func(string) string, uintptr) { panic(errNoLoader) }
