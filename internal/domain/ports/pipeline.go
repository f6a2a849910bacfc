package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// PipelineJob is submitted once a ticket's download completes (§4.4
// "Pipeline trigger", §4.5).
type PipelineJob struct {
	TicketID          domain.TicketID
	SourcePath        string // torrent client's reported save_path
	DestDir           string
	FileMappings      []domain.FileMapping
	OutputConstraints *domain.OutputConstraints
}

// PipelineProgressEvent is a tagged variant pushed on the optional
// progress channel passed to Pipeline.Process (§4.5).
type PipelineProgressEvent interface{ isPipelineProgress() }

type ProgressConverting struct {
	Current         int
	Total           int
	CurrentFileName string
	Percent         float64
}

func (ProgressConverting) isPipelineProgress() {}

type ProgressPlacing struct {
	FilesPlaced int
	TotalFiles  int
	Bytes       int64
	CurrentFile string
}

func (ProgressPlacing) isPipelineProgress() {}

type ProgressPipelineCompleted struct {
	Files int
	Bytes int64
}

func (ProgressPipelineCompleted) isPipelineProgress() {}

type ProgressPipelineFailed struct {
	Error       error
	FailedPhase string // "conversion" | "placement"
}

func (ProgressPipelineFailed) isPipelineProgress() {}

// Pipeline is the conversion + placement stage, §4.5.
type Pipeline interface {
	// Process submits job for processing. It is non-blocking: it refuses
	// submission (returning an error) if the processor is not running or
	// a job for the same ticket is already in flight; otherwise it
	// returns immediately and does the work asynchronously, reporting
	// through progress if non-nil.
	Process(ctx context.Context, job PipelineJob, progress chan<- PipelineProgressEvent) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// MediaInfo is a Converter.Probe result, §4.6.
type MediaInfo struct {
	DurationSecs float64
	VideoCodec   string
	AudioCodec   string
	Width        int
	Height       int
	Fps          float64
}

// ConversionJob describes one file to convert, §4.5.
type ConversionJob struct {
	ItemID            string
	SourcePath        string
	OutputPath        string
	OutputConstraints *domain.OutputConstraints
	CoverArtPath      string
}

// ConversionResult is Converter.Convert's output, §4.6.
type ConversionResult struct {
	JobID        string
	OutputPath   string
	OutputBytes  int64
	DurationSecs float64
	InputFormat  string
	OutputFormat string
}

// ConversionProgress is streamed by Converter.ConvertWithProgress, §4.6.
type ConversionProgress struct {
	JobID        string
	Percent      float64
	TimeSecs     float64
	DurationSecs *float64
	Speed        *float64
}

// Converter is the out-of-scope collaborator §4.6 specifies the contract
// for. internal/pipeline/converter ships a NopConverter default.
type Converter interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
	Convert(ctx context.Context, job ConversionJob) (ConversionResult, error)
	ConvertWithProgress(ctx context.Context, job ConversionJob, progress chan<- ConversionProgress) (ConversionResult, error)
	Validate(ctx context.Context) error
}

// FilePlacement is one file to place, §4.7.
type FilePlacement struct {
	ItemID          string
	Source          string
	Destination     string
	Overwrite       bool
	VerifyChecksum  string // "" | "sha256" | "md5"
}

// RollbackPlan records what a Placer created so it can undo a partial
// placement, §4.7.
type RollbackPlan struct {
	CreatedDirs  []string
	PlacedFiles  []string
}

// PlacementResult is Placer.Place's output.
type PlacementResult struct {
	FilesPlaced int
	TotalBytes  int64
}

// Placer is the out-of-scope collaborator §4.7 specifies the contract
// for. internal/pipeline/placer ships a filesystem-backed default.
type Placer interface {
	Place(ctx context.Context, placements []FilePlacement) (PlacementResult, error)
}
