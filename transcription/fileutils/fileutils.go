package fileutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Truncate trims s and cuts it to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}

const maxFilenameLen = 120

var (
	invalidFileRunes = regexp.MustCompile(`[<>"/\\|?*\x00-\x1F]`)
	multiSpace       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a transcript title into a portable file name stem.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, ":", "-")
	clean := invalidFileRunes.ReplaceAllString(name, " ")
	clean = multiSpace.ReplaceAllString(strings.TrimSpace(clean), " ")
	clean = strings.TrimRight(clean, ".")
	if clean == "" {
		return "transcript"
	}
	if utf8.RuneCountInString(clean) > maxFilenameLen {
		clean = strings.TrimSpace(string([]rune(clean)[:maxFilenameLen]))
	}
	return clean
}

// WriteFileAtomicSameDir writes data to a temp file next to path and renames it into place.
func WriteFileAtomicSameDir(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_export_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
