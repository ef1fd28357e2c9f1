// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package inbox

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

// Subdirectories that receive processed files.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// ReceiptSuffix is appended to a processed file name for its receipt.
const ReceiptSuffix = ".receipt.json"

// Extensions lists the file extensions the inbox picks up.
var Extensions = []string{".zip", ".rar", ".xml"}

// KindFor maps a file name onto a submit kind by extension.
// XML files are submitted by path unless inlineXML is set.
func KindFor(path string, inlineXML bool) (model.SubmitKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return model.SubmitArchive, true
	case ".rar":
		return model.SubmitCompressedArchive, true
	case ".xml":
		if inlineXML {
			return model.SubmitInlineContent, true
		}
		return model.SubmitFilePath, true
	default:
		return model.SubmitUnknown, false
	}
}

// candidate reports whether name is a file the inbox should submit.
// Hidden files cover in-progress atomic writes.
func candidate(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ReceiptSuffix) {
		return false
	}
	_, ok := KindFor(base, false)
	return ok
}

// skipDir reports whether a directory below root holds processed output.
func skipDir(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return false
	}
	first := strings.Split(filepath.ToSlash(rel), "/")[0]
	return first == DoneDir || first == FailedDir || strings.HasPrefix(first, ".")
}

// ListFiles returns every submittable file below dir, recursively, in lexical order.
// The done and failed output directories are skipped.
func ListFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(dir, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && candidate(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
