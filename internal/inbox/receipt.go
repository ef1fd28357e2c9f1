// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package inbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/xmlembed/internal/fsutil"
)

// Receipt records the result of one inbox file.
type Receipt struct {
	SubmissionID string    `json:"submission_id"`
	File         string    `json:"file"`
	Kind         string    `json:"kind"`
	Outcome      string    `json:"outcome"`
	States       []string  `json:"states,omitempty"`
	SubmitStatus int       `json:"submit_status"`
	LastStatus   int       `json:"last_status"`
	Polls        int       `json:"polls"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// WriteReceipt writes r as indented JSON next to path.
// The write is atomic: readers never observe a partial receipt.
func WriteReceipt(path string, r Receipt) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	target := path + ReceiptSuffix
	if err := writeAtomic(target, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write receipt %s: %w", target, err)
	}
	return target, nil
}

// ReadReceipt loads a receipt written by WriteReceipt.
func ReadReceipt(path string) (Receipt, error) {
	var r Receipt
	data, err := os.ReadFile(path) // #nosec G304 -- receipts live under the configured inbox
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(data, &r)
	return r, err
}

// moveInto moves src into destDir keeping its path relative to root.
// An existing file at the destination is never overwritten; a timestamp suffix is added instead.
func moveInto(root, src, destDir string, now time.Time) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", err
	}
	dst, err := fsutil.ConfineRelPath(destDir, filepath.ToSlash(rel))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", err
	}
	if _, err := os.Lstat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = fmt.Sprintf("%s.%s%s", strings.TrimSuffix(dst, ext), now.Format("20060102T150405.000"), ext)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}
