package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/batch"
	"github.com/you/tg-faceswap/internal/config"
	"github.com/you/tg-faceswap/internal/jobs"
	"github.com/you/tg-faceswap/internal/ledger"
	"github.com/you/tg-faceswap/internal/logx"
	"github.com/you/tg-faceswap/internal/media"
	"github.com/you/tg-faceswap/internal/notify"
	"github.com/you/tg-faceswap/internal/render"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logx.Setup(logx.FromEnv("worker"))
	log.Info().Msg("worker starting")

	if cfg.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}
	if cfg.SheetID == "" {
		log.Fatal().Msg("SHEET_ID is required")
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
		log.Fatal().Err(err).Msg("output dir init failed")
	}

	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
		log.Info().Msg("worker health on :8081/health")
		log.Error().Err(http.ListenAndServe(":8081", nil)).Msg("health endpoint stopped")
	}()

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("bot auth failed")
	}
	bot.Debug = false

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	ctx := context.Background()
	store, err := ledger.NewSheetsStore(ctx, cfg.CredsFile, cfg.SheetID)
	if err != nil {
		log.Fatal().Err(err).Msg("sheets ledger init failed")
	}

	files, err := media.NewFiles(bot, media.NewRedisIndex(rdb), cfg.ImageDir(), cfg.VideoDir())
	if err != nil {
		log.Fatal().Err(err).Msg("asset dirs init failed")
	}

	renderer, err := render.NewCommand(cfg.RenderCommand())
	if err != nil {
		log.Fatal().Err(err).Msg("render command invalid")
	}

	runner := &batch.Runner{
		Ledger:       ledger.NewClient(store),
		Files:        files,
		Render:       renderer,
		Pool:         render.NewPool(1),
		Notify:       notify.NewTelegram(bot, cfg.DismissAfter),
		OutputDir:    cfg.OutputDir(),
		ReportChatID: cfg.GroupChatID,
		ReportThread: cfg.OutputThreadID,
		LogThread:    cfg.LogThreadID,
	}

	// The engine holds one model instance; concurrency stays at 1 unless the
	// deployment runs one engine per slot.
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: cfg.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskRunBatch, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.RunBatchPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		if p.BatchID == "" {
			p.BatchID = ulid.Make().String()
		}
		// Progress goes back to where the command was issued.
		rn := *runner
		if p.ChatID != 0 {
			rn.ReportChatID = p.ChatID
			rn.ReportThread = p.ThreadID
		}
		rep, err := rn.Run(ctx, p.BatchID, p.ImageNames, p.VideoNames)
		if err != nil {
			return err
		}
		log.Info().Str("batch", p.BatchID).Int("success", rep.Success).
			Int("skip", rep.Skipped).Int("fail", len(rep.Failures)).Msg("batch finished")
		return nil
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
