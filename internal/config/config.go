package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is loaded once at process start and handed to the components that
// need it. No package-level state.
type Config struct {
	BotToken  string
	RedisAddr string

	// Google Sheets ledger
	SheetID   string
	CredsFile string

	// MTProto client (provisioner)
	AppID       int
	AppHash     string
	SessionFile string

	// Chats and forum threads
	InputChatID    int64
	GroupChatID    int64
	OutputChatID   int64
	OutputChatHash int64 // access hash for the output chat, from the operator session
	FacesThreadID  int
	VideosThreadID int
	OutputThreadID int
	LogThreadID    int

	FolderName string

	// Render command, e.g. "python /opt/roop/run.py"
	RenderCmd string

	DataDir      string
	Concurrency  int
	DismissAfter time.Duration
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func mustInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// Load reads the environment. Callers run godotenv.Load() first.
func Load() Config {
	return Config{
		BotToken:  os.Getenv("BOT_TOKEN"),
		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),

		SheetID:   os.Getenv("SHEET_ID"),
		CredsFile: getenv("GOOGLE_CREDS_FILE", "./service_account.json"),

		AppID:       mustInt("TG_APP_ID", 0),
		AppHash:     os.Getenv("TG_APP_HASH"),
		SessionFile: getenv("TG_SESSION_FILE", "./ssclient.session.json"),

		InputChatID:    mustInt64("INPUT_CHAT_ID", 0),
		GroupChatID:    mustInt64("GROUP_CHAT_ID", 0),
		OutputChatID:   mustInt64("OUTPUT_CHAT_ID", 0),
		OutputChatHash: mustInt64("OUTPUT_CHAT_HASH", 0),
		FacesThreadID:  mustInt("FACES_THREAD_ID", 2),
		VideosThreadID: mustInt("VIDEOS_THREAD_ID", 3),
		OutputThreadID: mustInt("OUTPUT_THREAD_ID", 4),
		LogThreadID:    mustInt("LOG_THREAD_ID", 7),

		FolderName: getenv("CHANNEL_FOLDER", "ODF"),

		RenderCmd: getenv("RENDER_CMD", "roop"),

		DataDir:      getenv("DATA_DIR", "./data"),
		Concurrency:  mustInt("CONCURRENCY", 1),
		DismissAfter: time.Duration(mustInt("DISMISS_AFTER_SEC", 2)) * time.Second,
	}
}

// ImageDir, VideoDir and OutputDir are the content-addressed asset caches
// under DataDir. Batch downloads skip files that already exist there.
func (c Config) ImageDir() string  { return filepath.Join(c.DataDir, "image") }
func (c Config) VideoDir() string  { return filepath.Join(c.DataDir, "video") }
func (c Config) OutputDir() string { return filepath.Join(c.DataDir, "output") }

// RenderCommand splits RenderCmd into argv form.
func (c Config) RenderCommand() []string {
	return strings.Fields(c.RenderCmd)
}
