// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !windows

package inbox

import "github.com/google/renameio/v2"

// writeAtomic writes data through a fsynced temp file renamed over path.
func writeAtomic(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
