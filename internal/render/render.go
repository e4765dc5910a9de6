// Package render drives the external face-swap engine. The engine is a black
// box that loads one shared model instance; calls must be serialized, which
// Pool enforces.
package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/logx"
)

// Renderer produces a rendered video at outputPath from a source face image
// and a target video. Substantial wall-clock time per call is expected.
type Renderer interface {
	Render(ctx context.Context, sourceImage, targetVideo, outputPath string) error
}

// Command shells out to a roop-style CLI:
//
//	<argv...> -s <sourceImage> -t <targetVideo> -o <outputPath>
//
// Engine output is folded into the structured log line by line.
type Command struct {
	argv []string
}

func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("render command not configured")
	}
	return &Command{argv: argv}, nil
}

func (c *Command) Render(ctx context.Context, sourceImage, targetVideo, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	args := append(append([]string(nil), c.argv[1:]...),
		"-s", sourceImage,
		"-t", targetVideo,
		"-o", outputPath,
	)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	fields := map[string]string{"engine": filepath.Base(c.argv[0])}
	outDone := logx.NewLineWriter(fields, zerolog.InfoLevel).PipeAsync(stdout)
	errDone := logx.NewLineWriter(fields, zerolog.ErrorLevel).PipeAsync(stderr)

	log.Info().Str("source", sourceImage).Str("target", targetVideo).Str("output", outputPath).
		Msg("render starting")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start render: %w", err)
	}
	<-outDone
	<-errDone
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(outputPath), err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("render finished but %s missing: %w", outputPath, err)
	}
	log.Info().Str("output", outputPath).Msg("render done")
	return nil
}
