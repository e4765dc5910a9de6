// Package batch expands an image-set × video-set request into combination
// jobs, skips combinations already recorded in the ledger, renders the rest
// through the shared engine and records confirmed deliveries. One failed
// combination never aborts the others.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/ledger"
	"github.com/you/tg-faceswap/internal/logx"
	"github.com/you/tg-faceswap/internal/notify"
	"github.com/you/tg-faceswap/internal/render"
)

// Downloader fetches assets to local disk; media.Files in production.
type Downloader interface {
	ImagePath(ctx context.Context, assetID string) (string, error)
	VideoPath(ctx context.Context, assetID string) (string, error)
}

type Runner struct {
	Ledger *ledger.Client
	Files  Downloader
	Render render.Renderer
	Pool   *render.Pool
	Notify notify.Notifier

	OutputDir    string
	ReportChatID int64 // chat carrying the progress message
	ReportThread int
	LogThread    int // per-failure notices
}

// Report aggregates one run. Counters start at zero per run and only grow.
type Report struct {
	Total    int
	Done     int
	Success  int
	Skipped  int
	Failures []string // combination labels
}

func (rep *Report) progressText(current string) string {
	s := fmt.Sprintf("📊 Progress: %d/%d\n✅ Success: %d | ⚡ Skip: %d | ❌ Fail: %d",
		rep.Done, rep.Total, rep.Success, rep.Skipped, len(rep.Failures))
	if current != "" {
		s += "\n🔄 Current: " + current
	}
	return s
}

func (rep *Report) summaryText() string {
	s := fmt.Sprintf("🏁 Batch done: %d/%d\n✅ Success: %d | ⚡ Skip: %d | ❌ Fail: %d",
		rep.Done, rep.Total, rep.Success, rep.Skipped, len(rep.Failures))
	if len(rep.Failures) > 0 {
		s += "\n\n❌ Failed items:\n" + strings.Join(rep.Failures, "\n")
	}
	return s
}

// Run processes the full cross product in input order: outer loop over
// images, inner over videos. The ledger is snapshot once up front; a
// concurrently recorded duplicate elsewhere costs at worst one re-render,
// which the engine tolerates.
func (r *Runner) Run(ctx context.Context, batchID string, imageNames, videoNames []string) (Report, error) {
	ctx = logx.WithBatchID(ctx, batchID)
	l := logx.FromCtx(ctx)

	rep := Report{Total: len(imageNames) * len(videoNames)}
	l.Info().Int("images", len(imageNames)).Int("videos", len(videoNames)).Int("total", rep.Total).
		Msg("batch starting")

	imageMap, videoMap, existing, err := r.snapshot(ctx)
	if err != nil {
		return rep, err
	}

	progressID, err := r.Notify.Send(r.ReportChatID, r.ReportThread,
		fmt.Sprintf("🎬 Starting batch render: %d images × %d videos = %d combinations",
			len(imageNames), len(videoNames), rep.Total))
	if err != nil {
		log.Warn().Err(err).Msg("progress message send failed, continuing without edits")
	}

	for _, imgName := range imageNames {
		for _, vidName := range videoNames {
			rep.Done++
			label := imgName + "_" + vidName

			skipped, err := r.runOne(ctx, imageMap, videoMap, existing, imgName, vidName, label)
			switch {
			case err != nil:
				l.Error().Err(err).Str("combo", label).Msg("combination failed")
				rep.Failures = append(rep.Failures, label)
				if _, nerr := r.Notify.Send(r.ReportChatID, r.LogThread,
					fmt.Sprintf("❌ %s failed: %v", label, err)); nerr != nil {
					log.Debug().Err(nerr).Msg("failure notice send failed")
				}
			case skipped:
				rep.Skipped++
			default:
				rep.Success++
			}

			if progressID != 0 {
				if err := r.Notify.Edit(r.ReportChatID, progressID, rep.progressText(label)); err != nil {
					log.Debug().Err(err).Msg("progress edit failed")
				}
			}
		}
	}

	if progressID != 0 {
		if err := r.Notify.Edit(r.ReportChatID, progressID, rep.summaryText()); err != nil {
			log.Debug().Err(err).Msg("summary edit failed")
		}
	}
	l.Info().Int("success", rep.Success).Int("skip", rep.Skipped).Int("fail", len(rep.Failures)).
		Msg("batch done")
	return rep, nil
}

// snapshot reads all three tables once. The output set is reused for
// existence checks across the whole run.
func (r *Runner) snapshot(ctx context.Context) (map[string]ledger.ImageRow, map[string]string, map[string]bool, error) {
	images, err := r.Ledger.Images(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	imageMap := make(map[string]ledger.ImageRow, len(images))
	for _, row := range images {
		if _, dup := imageMap[row.DisplayName]; !dup { // first row wins
			imageMap[row.DisplayName] = row
		}
	}

	videos, err := r.Ledger.Videos(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	videoMap := make(map[string]string, len(videos))
	for _, row := range videos {
		videoMap[row.DisplayName] = row.AssetID
	}

	outputs, err := r.Ledger.Outputs(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	existing := make(map[string]bool, len(outputs))
	for _, row := range outputs {
		existing[row.Key.String()] = true
	}
	return imageMap, videoMap, existing, nil
}

func (r *Runner) runOne(ctx context.Context, imageMap map[string]ledger.ImageRow, videoMap map[string]string,
	existing map[string]bool, imgName, vidName, label string) (skipped bool, err error) {

	img, ok := imageMap[ledger.NormalizeName(imgName)]
	if !ok {
		return false, fmt.Errorf("image %q not in ledger", imgName)
	}
	videoID, ok := videoMap[ledger.NormalizeName(vidName)]
	if !ok {
		return false, fmt.Errorf("video %q not in ledger", vidName)
	}

	key := ledger.OutputKey{ImageID: img.AssetID, VideoID: videoID}
	if existing[key.String()] {
		log := logx.FromCtx(ctx)
		log.Info().Str("combo", label).Msg("output exists, skipping")
		return true, nil
	}

	srcImage, err := r.Files.ImagePath(ctx, img.AssetID)
	if err != nil {
		return false, fmt.Errorf("download image: %w", err)
	}
	srcVideo, err := r.Files.VideoPath(ctx, videoID)
	if err != nil {
		return false, fmt.Errorf("download video: %w", err)
	}

	outPath := filepath.Join(r.OutputDir, key.String()+".mp4")
	if _, statErr := os.Stat(outPath); statErr != nil {
		release, err := r.Pool.Acquire(ctx)
		if err != nil {
			return false, err
		}
		err = r.Render.Render(ctx, srcImage, srcVideo, outPath)
		release()
		if err != nil {
			return false, err
		}
	} else {
		log := logx.FromCtx(ctx)
		log.Info().Str("combo", label).Msg("output file already rendered, delivering")
	}

	chatID, threadID := r.deliveryTarget(img)
	if err := r.Notify.SendVideo(chatID, threadID, outPath, label); err != nil {
		return false, fmt.Errorf("deliver output: %w", err)
	}

	// Recorded only after confirmed delivery; that is the invariant the
	// skip check above relies on.
	if err := r.Ledger.AppendOutput(ctx, key, label); err != nil {
		return false, fmt.Errorf("record output: %w", err)
	}
	return false, nil
}

// deliveryTarget resolves where the rendered video goes: the image's forum
// topic in its output chat, falling back to the reporting thread when the
// row is degraded.
func (r *Runner) deliveryTarget(img ledger.ImageRow) (int64, int) {
	chatID := r.ReportChatID
	if v, err := strconv.ParseInt(img.OutputChatID, 10, 64); err == nil && v != 0 {
		chatID = v
	}
	threadID := r.ReportThread
	if img.TopicID.Valid {
		if v, err := strconv.Atoi(img.TopicID.Value); err == nil {
			threadID = v
		}
	}
	return chatID, threadID
}
