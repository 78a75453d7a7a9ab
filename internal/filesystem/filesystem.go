// Package filesystem implements the FilesystemService contract: scoped path
// construction over three roots, a media-file allow-list filter, and
// succeed-or-error move/delete primitives.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// videoExtensions is the allow-list of video container extensions that
// survive strip_non_media.
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".ts": true,
	".wmv": true, ".mov": true, ".webm": true, ".flv": true, ".mpg": true,
	".mpeg": true, ".m2ts": true, ".vob": true, ".iso": true,
}

// subtitleExtensions is the allow-list of subtitle extensions that also
// survive strip_non_media, per spec §4.8 ("video container ∪ subtitle").
var subtitleExtensions = map[string]bool{
	".srt": true, ".sub": true, ".ssa": true, ".ass": true,
	".idx": true, ".vtt": true, ".smi": true,
}

// IsMediaFile reports whether filename's extension is in the combined
// video-or-subtitle allow-list.
func IsMediaFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return videoExtensions[ext] || subtitleExtensions[ext]
}

// Config holds the three configured roots.
type Config struct {
	QuarantineRoot string
	MovieRoot      string
	ShowRoot       string
}

// Service implements the FilesystemService contract over Config's roots.
type Service struct {
	cfg    Config
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Service {
	return &Service{cfg: cfg, logger: logger.With().Str("component", "filesystem").Logger()}
}

// QuarantinePath returns the path of name inside the quarantine root.
func (s *Service) QuarantinePath(name string) string {
	return filepath.Join(s.cfg.QuarantineRoot, name)
}

// LibraryDestination returns the path of name inside the library root for kind.
func (s *Service) LibraryDestination(kind domain.Kind, name string) string {
	root := s.cfg.MovieRoot
	if kind == domain.KindShow {
		root = s.cfg.ShowRoot
	}
	return filepath.Join(root, name)
}

// StripNonMedia walks path (file or directory) and deletes every file whose
// extension is outside the video ∪ subtitle allow-list. It executes before
// scanning so sample/NFO/executable files never influence the verdict.
// Returns the number of files removed.
func (s *Service) StripNonMedia(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %v", domain.ErrFilesystem, path, err)
	}

	if !info.IsDir() {
		if IsMediaFile(path) {
			return 0, nil
		}
		if err := os.Remove(path); err != nil {
			return 0, fmt.Errorf("%w: remove %s: %v", domain.ErrFilesystem, path, err)
		}
		return 1, nil
	}

	removed := 0
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if IsMediaFile(p) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: strip non-media under %s: %v", domain.ErrFilesystem, path, err)
	}

	s.logger.Info().Str("path", path).Int("removed", removed).Msg("stripped non-media files")
	return removed, nil
}

// Move relocates src to dst, creating dst's parent directory first. It
// attempts an atomic os.Rename and falls back to a recursive copy+delete on
// a cross-device error. Callers see either a complete move or an error;
// there is no partial-move state visible to later steps.
func (s *Service) Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("%w: create destination parent: %v", domain.ErrFilesystem, err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDeviceError(err) {
		return fmt.Errorf("%w: rename %s -> %s: %v", domain.ErrFilesystem, src, dst, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: stat source: %v", domain.ErrFilesystem, err)
	}

	if info.IsDir() {
		if err := copyDirRecursive(src, dst); err != nil {
			return fmt.Errorf("%w: copy directory: %v", domain.ErrFilesystem, err)
		}
	} else if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("%w: copy file: %v", domain.ErrFilesystem, err)
	}

	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("%w: remove source after copy: %v", domain.ErrFilesystem, err)
	}
	return nil
}

// Delete removes path, file or directory, tolerating its absence.
func (s *Service) Delete(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrFilesystem, path, err)
	}
	return nil
}

// Exists reports whether path is present.
func (s *Service) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsFile reports whether path exists and is a regular file.
func (s *Service) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDirectory reports whether path exists and is a directory.
func (s *Service) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := dest.ReadFrom(source); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}

func copyDirRecursive(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, relPath)
		if d.IsDir() {
			return os.MkdirAll(destPath, 0o750)
		}
		return copyFile(path, destPath)
	})
}

func isCrossDeviceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	switch runtime.GOOS {
	case "windows":
		return strings.Contains(errStr, "not on the same disk") || strings.Contains(errStr, "not same device")
	default:
		return strings.Contains(errStr, "cross-device") || strings.Contains(errStr, "invalid cross-device link")
	}
}
