// Package media keeps local copies of submitted assets, content-addressed by
// asset id. The Telegram file_id needed to (re)download an asset is recorded
// in redis at registration time, because the Bot API cannot fetch historic
// messages later.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Index maps asset ids to Telegram file ids.
type Index interface {
	SaveFileID(ctx context.Context, assetID, fileID string) error
	FileID(ctx context.Context, assetID string) (string, bool, error)
}

// RedisIndex stores the mapping with no expiry; assets stay downloadable for
// the lifetime of the registration.
type RedisIndex struct {
	rdb *redis.Client
}

func NewRedisIndex(rdb *redis.Client) *RedisIndex { return &RedisIndex{rdb: rdb} }

func fileKey(assetID string) string { return "asset:file:" + assetID }

func (i *RedisIndex) SaveFileID(ctx context.Context, assetID, fileID string) error {
	return i.rdb.Set(ctx, fileKey(assetID), fileID, 0).Err()
}

func (i *RedisIndex) FileID(ctx context.Context, assetID string) (string, bool, error) {
	v, err := i.rdb.Get(ctx, fileKey(assetID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Files downloads assets on demand. A file that already exists locally is
// reused without a network round-trip; content addressing is by asset id, not
// content hash, so an edited photo under the same id keeps its first bytes
// until the cache entry is removed.
type Files struct {
	bot      *tgbotapi.BotAPI
	index    Index
	imageDir string
	videoDir string
	httpc    *http.Client
}

func NewFiles(bot *tgbotapi.BotAPI, index Index, imageDir, videoDir string) (*Files, error) {
	for _, d := range []string{imageDir, videoDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	return &Files{bot: bot, index: index, imageDir: imageDir, videoDir: videoDir, httpc: http.DefaultClient}, nil
}

// ImagePath returns the local path of an image asset, downloading if needed.
func (f *Files) ImagePath(ctx context.Context, assetID string) (string, error) {
	return f.fetch(ctx, assetID, f.imageDir, "jpg")
}

// VideoPath returns the local path of a video asset, downloading if needed.
func (f *Files) VideoPath(ctx context.Context, assetID string) (string, error) {
	return f.fetch(ctx, assetID, f.videoDir, "mp4")
}

// RecordImage indexes a freshly submitted image and eagerly downloads it so
// the bytes are available as a channel avatar. Returns the local path.
func (f *Files) RecordImage(ctx context.Context, assetID, fileID string) (string, error) {
	if err := f.index.SaveFileID(ctx, assetID, fileID); err != nil {
		return "", fmt.Errorf("index image %s: %w", assetID, err)
	}
	// An edit may carry new bytes under the same asset id; drop the stale copy.
	path := filepath.Join(f.imageDir, assetID+".jpg")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("stale image remove failed")
	}
	return f.ImagePath(ctx, assetID)
}

// RecordVideo indexes a submitted video; download is deferred until a batch
// needs it.
func (f *Files) RecordVideo(ctx context.Context, assetID, fileID string) error {
	if err := f.index.SaveFileID(ctx, assetID, fileID); err != nil {
		return fmt.Errorf("index video %s: %w", assetID, err)
	}
	return nil
}

func (f *Files) fetch(ctx context.Context, assetID, dir, ext string) (string, error) {
	path := filepath.Join(dir, assetID+"."+ext)
	if _, err := os.Stat(path); err == nil {
		log.Debug().Str("path", path).Msg("asset already local, skipping download")
		return path, nil
	}

	fileID, ok, err := f.index.FileID(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("file index lookup %s: %w", assetID, err)
	}
	if !ok {
		return "", fmt.Errorf("no file reference for asset %s", assetID)
	}

	tf, err := f.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", assetID, err)
	}
	url := tf.Link(f.bot.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", assetID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %s", assetID, resp.Status)
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	log.Info().Str("asset", assetID).Str("path", path).Msg("asset downloaded")
	return path, nil
}
