package upload

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// File is a local file chosen for upload.
type File struct {
	Path string
	Name string
	Size int64
}

// Selection is the normalised set of files picked by any entry point.
type Selection struct {
	Files []File
}

// Empty reports whether nothing usable was selected.
func (s Selection) Empty() bool {
	return len(s.Files) == 0
}

// FromInput builds a selection from a path typed or picked in the file input.
func FromInput(path string) (Selection, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Selection{}, errors.New("no file selected")
	}
	f, err := statFile(expandHome(path))
	if err != nil {
		return Selection{}, err
	}
	return Selection{Files: []File{f}}, nil
}

// FromDrop builds a selection from paths pasted into the terminal, which is
// what terminals deliver when files are dragged onto them. Unreadable paths
// are reported in the error; readable ones are still returned.
func FromDrop(pasted string) (Selection, error) {
	paths := ParsePaths(pasted)
	if len(paths) == 0 {
		return Selection{}, errors.New("no file paths found in dropped text")
	}

	var (
		sel  Selection
		errs []error
		seen = make(map[string]bool, len(paths))
	)
	for _, p := range paths {
		p = expandHome(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		f, err := statFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sel.Files = append(sel.Files, f)
	}
	return sel, errors.Join(errs...)
}

func statFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ParsePaths splits pasted text into paths. It understands single and
// double quotes, backslash-escaped spaces, file:// URIs, and any mix of
// spaces and newlines between paths.
func ParsePaths(text string) []string {
	var (
		out     []string
		cur     strings.Builder
		inToken bool
		quote   rune
	)
	flush := func() {
		if inToken {
			out = append(out, fromURI(cur.String()))
		}
		cur.Reset()
		inToken = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			if quote == '"' && r == '\\' && i+1 < len(runes) && runes[i+1] == '"' {
				i++
				r = '"'
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == '\\' && i+1 < len(runes) && isEscapable(runes[i+1]):
			i++
			cur.WriteRune(runes[i])
			inToken = true
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	flush()

	paths := out[:0]
	for _, p := range out {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func isEscapable(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(`'"\()&;`, r)
}

func fromURI(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimPrefix(s, "file://")
	}
	return filepath.FromSlash(u.Path)
}
