// Package converter provides the default Converter collaborator,
// SPEC_FULL.md §4.6. A real ffmpeg-backed encoder is explicitly out of
// scope (§1); NopConverter makes the daemon runnable without one by
// copying source bytes through unchanged.
package converter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// NopConverter probes nothing and converts by copying. It always reports
// the output format equal to the input format (re-encoding never
// happens) and advertises no hardware-accelerated formats, since it does
// no encoding at all.
type NopConverter struct{}

func New() *NopConverter { return &NopConverter{} }

func (c *NopConverter) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("probe: %w", err)
	}
	return ports.MediaInfo{}, nil
}

func (c *NopConverter) Convert(ctx context.Context, job ports.ConversionJob) (ports.ConversionResult, error) {
	started := time.Now()
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return ports.ConversionResult{}, fmt.Errorf("create output dir: %w", err)
	}

	in, err := os.Open(job.SourcePath)
	if err != nil {
		return ports.ConversionResult{}, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(job.OutputPath)
	if err != nil {
		return ports.ConversionResult{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, in)
	if err != nil {
		return ports.ConversionResult{}, fmt.Errorf("copy: %w", err)
	}

	format := extOf(job.SourcePath)
	return ports.ConversionResult{
		JobID:        job.ItemID,
		OutputPath:   job.OutputPath,
		OutputBytes:  written,
		DurationSecs: time.Since(started).Seconds(),
		InputFormat:  format,
		OutputFormat: format,
	}, nil
}

func (c *NopConverter) ConvertWithProgress(ctx context.Context, job ports.ConversionJob, progress chan<- ports.ConversionProgress) (ports.ConversionResult, error) {
	if progress != nil {
		select {
		case progress <- ports.ConversionProgress{JobID: job.ItemID, Percent: 0}:
		case <-ctx.Done():
			return ports.ConversionResult{}, ctx.Err()
		}
	}
	result, err := c.Convert(ctx, job)
	if err != nil {
		return result, err
	}
	if progress != nil {
		select {
		case progress <- ports.ConversionProgress{JobID: job.ItemID, Percent: 100, DurationSecs: &result.DurationSecs}:
		case <-ctx.Done():
		}
	}
	return result, nil
}

// Validate is a no-op: NopConverter requires no external binaries.
func (c *NopConverter) Validate(ctx context.Context) error { return nil }

func extOf(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 {
		return ext[1:]
	}
	return ""
}
