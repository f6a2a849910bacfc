package placer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestFilesystemPlacer_PlacesFilesAndCreatesParentDirs(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()

	src := writeTempFile(t, srcDir, "track1.flac", "audio-bytes")
	dest := filepath.Join(destRoot, "Artist", "Album", "01 Track.flac")

	p := New()
	result, err := p.Place(context.Background(), []ports.FilePlacement{
		{ItemID: "1", Source: src, Destination: dest},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if result.FilesPlaced != 1 {
		t.Fatalf("expected 1 file placed, got %d", result.FilesPlaced)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected destination to exist: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone after move")
	}
}

func TestFilesystemPlacer_RollsBackOnFailure(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()

	src1 := writeTempFile(t, srcDir, "ok.flac", "data")
	dest1 := filepath.Join(destRoot, "sub", "ok.flac")
	dest2 := filepath.Join(destRoot, "sub", "missing.flac") // source doesn't exist -> fails

	p := New()
	_, err := p.Place(context.Background(), []ports.FilePlacement{
		{ItemID: "1", Source: src1, Destination: dest1},
		{ItemID: "2", Source: filepath.Join(srcDir, "does-not-exist.flac"), Destination: dest2},
	})
	if err == nil {
		t.Fatal("expected an error from the missing second source")
	}
	if _, statErr := os.Stat(dest1); !os.IsNotExist(statErr) {
		t.Fatal("expected first placed file to be rolled back")
	}
	if _, statErr := os.Stat(filepath.Join(destRoot, "sub")); !os.IsNotExist(statErr) {
		t.Fatal("expected created parent dir to be rolled back")
	}
}

func TestFilesystemPlacer_VerifiesChecksum(t *testing.T) {
	srcDir := t.TempDir()
	destRoot := t.TempDir()

	src := writeTempFile(t, srcDir, "a.flac", "checksum-me")
	dest := filepath.Join(destRoot, "a.flac")

	p := New()
	_, err := p.Place(context.Background(), []ports.FilePlacement{
		{ItemID: "1", Source: src, Destination: dest, VerifyChecksum: "sha256"},
	})
	if err != nil {
		t.Fatalf("place with checksum: %v", err)
	}
}
