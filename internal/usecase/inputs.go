package usecase

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
)

// CollectInputs walks dir recursively and returns every supported document in
// lexical order. Unreadable sub-directories are logged and skipped.
func CollectInputs(dir string, log *zerolog.Logger) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "collect", Path: dir, Err: domain.ErrInvalidArgument}
	}

	var out []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				if log != nil {
					log.Warn().Err(err).Str("dir", path).Msg("skipping unreadable directory")
				}
				return fs.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() && model.IsSupportedDocument(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNoValidInputs
	}
	return out, nil
}

// FilterInputs keeps the paths that are existing regular files with a supported
// extension, preserving order and dropping duplicates.
func FilterInputs(paths []string) ([]string, error) {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !model.IsSupportedDocument(p) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoValidInputs
	}
	return out, nil
}
