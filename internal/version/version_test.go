// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	t.Cleanup(func() { Version = old })

	s := String()
	assert.Contains(t, s, "v9.9.9")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
