// Package placer provides the filesystem-backed default Placer
// collaborator described in SPEC_FULL.md §4.7, grounded on the teacher's
// in-memory storage provider (internal/storage/memory/provider.go):
// clean/validate every path before touching disk, create parent
// directories as needed, and track what was created so a partial
// placement can be rolled back.
package placer

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// FilesystemPlacer places files on the local filesystem, preferring an
// atomic rename and falling back to a buffered copy when source and
// destination straddle a filesystem boundary (rename returns
// syscall.EXDEV on Linux).
type FilesystemPlacer struct{}

func New() *FilesystemPlacer { return &FilesystemPlacer{} }

// Place executes placements in order, recording created parent
// directories and placed files in a RollbackPlan so a mid-way failure can
// be undone (files first, then empty directories, in reverse order).
func (p *FilesystemPlacer) Place(ctx context.Context, placements []ports.FilePlacement) (ports.PlacementResult, error) {
	plan := ports.RollbackPlan{}
	result := ports.PlacementResult{}

	for _, placement := range placements {
		if err := ctx.Err(); err != nil {
			p.rollback(plan)
			return ports.PlacementResult{}, err
		}

		dir := filepath.Dir(placement.Destination)
		created, err := ensureDir(dir)
		if err != nil {
			p.rollback(plan)
			return ports.PlacementResult{}, fmt.Errorf("create parent dir %s: %w", dir, err)
		}
		plan.CreatedDirs = append(plan.CreatedDirs, created...)

		if !placement.Overwrite {
			if _, err := os.Stat(placement.Destination); err == nil {
				p.rollback(plan)
				return ports.PlacementResult{}, fmt.Errorf("destination exists and overwrite is false: %s", placement.Destination)
			}
		}

		var sourceDigest string
		if placement.VerifyChecksum != "" {
			var err error
			sourceDigest, err = fileDigest(placement.Source, placement.VerifyChecksum)
			if err != nil {
				p.rollback(plan)
				return ports.PlacementResult{}, fmt.Errorf("checksum source %s: %w", placement.ItemID, err)
			}
		}

		size, err := placeOne(placement)
		if err != nil {
			p.rollback(plan)
			return ports.PlacementResult{}, fmt.Errorf("place %s: %w", placement.ItemID, err)
		}
		plan.PlacedFiles = append(plan.PlacedFiles, placement.Destination)

		if placement.VerifyChecksum != "" {
			destDigest, err := fileDigest(placement.Destination, placement.VerifyChecksum)
			if err != nil {
				p.rollback(plan)
				return ports.PlacementResult{}, fmt.Errorf("checksum destination %s: %w", placement.ItemID, err)
			}
			if destDigest != sourceDigest {
				p.rollback(plan)
				return ports.PlacementResult{}, fmt.Errorf("checksum mismatch for %s: source and placed file differ", placement.ItemID)
			}
		}

		result.FilesPlaced++
		result.TotalBytes += size
	}

	return result, nil
}

// placeOne moves one file, preferring an atomic rename; any rename
// failure (not just EXDEV) falls back to a buffered copy, since the
// caller cares about ending up with the file in place, not about why
// rename specifically didn't work.
func placeOne(placement ports.FilePlacement) (int64, error) {
	if err := os.Rename(placement.Source, placement.Destination); err == nil {
		info, statErr := os.Stat(placement.Destination)
		if statErr != nil {
			return 0, nil
		}
		return info.Size(), nil
	}
	return copyFile(placement.Source, placement.Destination)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	if err := out.Sync(); err != nil {
		return 0, err
	}
	_ = os.Remove(src)
	return n, nil
}

// ensureDir creates dir and any missing ancestors, returning the list of
// directories it actually created (for rollback) rather than every
// ancestor, including ones that already existed.
func ensureDir(dir string) ([]string, error) {
	if dir == "" || dir == "." {
		return nil, nil
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil, nil
	}

	parentCreated, err := ensureDir(filepath.Dir(dir))
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(dir, 0o755); err != nil && !os.IsExist(err) {
		return nil, err
	}
	return append(parentCreated, dir), nil
}

// rollback undoes a partial placement: files first (in reverse order),
// then any directories this Place call created, removed only if now
// empty.
func (p *FilesystemPlacer) rollback(plan ports.RollbackPlan) (filesRemoved, dirsRemoved int) {
	for i := len(plan.PlacedFiles) - 1; i >= 0; i-- {
		if err := os.Remove(plan.PlacedFiles[i]); err == nil {
			filesRemoved++
		}
	}
	for i := len(plan.CreatedDirs) - 1; i >= 0; i-- {
		if err := os.Remove(plan.CreatedDirs[i]); err == nil {
			dirsRemoved++
		}
	}
	return filesRemoved, dirsRemoved
}

// Rollback is the exported form of rollback: it undoes plan and reports
// how many files and directories it removed.
func (p *FilesystemPlacer) Rollback(plan ports.RollbackPlan) (filesRemoved, dirsRemoved int) {
	return p.rollback(plan)
}

func fileDigest(path, algorithm string) (string, error) {
	var h hash.Hash
	switch algorithm {
	case "sha256":
		h = sha256.New()
	case "md5":
		h = md5.New()
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
