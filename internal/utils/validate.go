package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFileType is returned for files outside the extension allow-list.
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrFileTooLarge is returned for files over the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ValidateFileType checks name against an allow-list of extensions such as
// ".docx". Matching is case-insensitive.
func ValidateFileType(name string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if ext != "" && ext == strings.ToLower(a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (allowed: %s)", ErrInvalidFileType, filepath.Base(name), strings.Join(allowed, ", "))
}

// ValidateFileSize rejects sizes strictly greater than max bytes.
func ValidateFileSize(size, max int64) error {
	if size > max {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge, FormatFileSize(size), FormatFileSize(max))
	}
	return nil
}
