package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/models"
)

const (
	videosDir      = "videos"
	previewsDir    = "previews"
	thumbnailsDir  = "thumbnails"
	screenshotsDir = "screenshots"
	tempDir        = "tmp"
)

// Mirror copies finished artifacts to remote object storage.
type Mirror interface {
	Upload(ctx context.Context, key, localPath, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Storage lays out lead artifacts under a base directory:
//
//	{base}/videos/{lead}.mp4
//	{base}/previews/{lead}_preview.mp4
//	{base}/thumbnails/{lead}.jpg
//	{base}/screenshots/{lead}.png
//	{base}/tmp/{lead}/            per-job workspace
type Storage struct {
	baseDir string
	mirror  Mirror
	log     *logrus.Entry
}

// New creates the directory layout under baseDir. mirror may be nil.
func New(baseDir string, mirror Mirror, log *logrus.Entry) (*Storage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	for _, dir := range []string{videosDir, previewsDir, thumbnailsDir, screenshotsDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s dir: %w", dir, err)
		}
	}
	return &Storage{baseDir: abs, mirror: mirror, log: log}, nil
}

func (s *Storage) BaseDir() string      { return s.baseDir }
func (s *Storage) OutputDir() string    { return filepath.Join(s.baseDir, videosDir) }
func (s *Storage) PreviewDir() string   { return filepath.Join(s.baseDir, previewsDir) }
func (s *Storage) ThumbnailDir() string { return filepath.Join(s.baseDir, thumbnailsDir) }
func (s *Storage) ScreenshotDir() string {
	return filepath.Join(s.baseDir, screenshotsDir)
}

// TempDir is the workspace path for one lead's job.
func (s *Storage) TempDir(leadID uuid.UUID) string {
	return filepath.Join(s.baseDir, tempDir, leadID.String())
}

func (s *Storage) VideoPath(leadID uuid.UUID) string {
	return filepath.Join(s.OutputDir(), leadID.String()+".mp4")
}

func (s *Storage) PreviewPath(leadID uuid.UUID) string {
	return filepath.Join(s.PreviewDir(), leadID.String()+"_preview.mp4")
}

func (s *Storage) ThumbnailPath(leadID uuid.UUID) string {
	return filepath.Join(s.ThumbnailDir(), leadID.String()+".jpg")
}

func (s *Storage) ScreenshotPath(leadID uuid.UUID) string {
	return filepath.Join(s.ScreenshotDir(), leadID.String()+".png")
}

// PrepareWorkspace returns an empty workspace for leadID, removing anything
// left behind by an earlier run.
func (s *Storage) PrepareWorkspace(leadID uuid.UUID) (string, error) {
	dir := s.TempDir(leadID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// RemoveWorkspace deletes the workspace for leadID.
func (s *Storage) RemoveWorkspace(leadID uuid.UUID) error {
	return os.RemoveAll(s.TempDir(leadID))
}

// RemoveLeadArtifacts deletes the lead's workspace and every artifact path
// a run would write, whether or not a record points at them.
func (s *Storage) RemoveLeadArtifacts(leadID uuid.UUID) {
	paths := []string{s.VideoPath(leadID), s.PreviewPath(leadID), s.ThumbnailPath(leadID), s.ScreenshotPath(leadID)}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("path", path).Warn("failed to delete artifact")
		}
	}
	if err := s.RemoveWorkspace(leadID); err != nil {
		s.log.WithError(err).WithField("lead_id", leadID).Warn("failed to remove workspace")
	}
}

// Publish mirrors the finished artifacts when a mirror is configured.
func (s *Storage) Publish(ctx context.Context, artifacts map[string]string) error {
	if s.mirror == nil {
		return nil
	}
	kinds := lo.Keys(artifacts)
	sort.Strings(kinds)
	for _, kind := range kinds {
		path := artifacts[kind]
		key, err := s.ObjectKey(path)
		if err != nil {
			return err
		}
		if err := s.mirror.Upload(ctx, key, path, contentType(path)); err != nil {
			return fmt.Errorf("failed to mirror %s: %w", kind, err)
		}
	}
	return nil
}

// DeleteFilesForRecord removes the record's artifacts and returns the kinds
// that were actually deleted. Missing files are skipped.
func (s *Storage) DeleteFilesForRecord(ctx context.Context, rec *models.VideoRecord) []string {
	deleted := make([]string, 0, 4)
	paths := rec.Paths()
	kinds := lo.Keys(paths)
	sort.Strings(kinds)

	for _, kind := range kinds {
		path := paths[kind]
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.log.WithError(err).WithField("path", path).Warn("failed to delete artifact")
			}
		} else {
			deleted = append(deleted, kind)
		}

		if s.mirror == nil {
			continue
		}
		key, err := s.ObjectKey(path)
		if err != nil {
			continue
		}
		if err := s.mirror.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("failed to delete mirrored artifact")
		}
	}
	return deleted
}

// UsageBytes is the total size of all persisted artifacts. Workspaces are
// not counted.
func (s *Storage) UsageBytes() (int64, error) {
	var sizes []int64
	for _, dir := range []string{videosDir, previewsDir, thumbnailsDir, screenshotsDir} {
		err := filepath.WalkDir(filepath.Join(s.baseDir, dir), func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			sizes = append(sizes, info.Size())
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to measure %s: %w", dir, err)
		}
	}
	return lo.Sum(sizes), nil
}

// FileSize returns the size of path, or 0 if it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ObjectKey maps a local artifact path to its mirror key.
func (s *Storage) ObjectKey(path string) (string, error) {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside the data dir", path)
	}
	return filepath.ToSlash(rel), nil
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}
