package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/uploader"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/config"
	"github.com/you/tg-faceswap/internal/dispatch"
	"github.com/you/tg-faceswap/internal/jobs"
	"github.com/you/tg-faceswap/internal/ledger"
	"github.com/you/tg-faceswap/internal/logx"
	"github.com/you/tg-faceswap/internal/media"
	"github.com/you/tg-faceswap/internal/notify"
	"github.com/you/tg-faceswap/internal/provision"
	"github.com/you/tg-faceswap/internal/registry"
)

type server struct {
	cfg  config.Config
	bot  *tgbotapi.BotAPI
	disp *dispatch.Dispatcher
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logx.Setup(logx.FromEnv("bot"))
	log.Info().Msg("bot starting")

	if cfg.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}
	if cfg.SheetID == "" {
		log.Fatal().Msg("SHEET_ID is required")
	}

	// health endpoint
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
		log.Info().Msg("bot health on :8080/health")
		log.Error().Err(http.ListenAndServe(":8080", nil)).Msg("health endpoint stopped")
	}()

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("bot auth failed")
	}
	bot.Debug = false
	log.Info().Str("username", bot.Self.UserName).Msg("bot authorized")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	queue := jobs.NewQueue(cfg.RedisAddr)
	defer queue.Close()

	ctx := context.Background()
	store, err := ledger.NewSheetsStore(ctx, cfg.CredsFile, cfg.SheetID)
	if err != nil {
		log.Fatal().Err(err).Msg("sheets ledger init failed")
	}
	lc := ledger.NewClient(store)

	files, err := media.NewFiles(bot, media.NewRedisIndex(rdb), cfg.ImageDir(), cfg.VideoDir())
	if err != nil {
		log.Fatal().Err(err).Msg("asset dirs init failed")
	}

	// Channel and topic provisioning needs an operator MTProto session; the
	// Bot API cannot create channels. The event loop runs inside the client
	// callback because the raw API is only valid there.
	mt := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	if err := mt.Run(ctx, func(ctx context.Context) error {
		status, err := mt.Auth().Status(ctx)
		if err != nil {
			return err
		}
		if !status.Authorized {
			return errors.New("operator session not authorized; log it in first")
		}
		log.Info().Msg("operator session ready")

		prov := provision.NewTelegram(mt.API(), uploader.NewUploader(mt.API()),
			provision.NewRedisHashCache(rdb), cfg.OutputChatHash)
		reg := registry.New(lc, prov, cfg.OutputChatID, cfg.FolderName)

		s := &server{
			cfg: cfg,
			bot: bot,
			disp: &dispatch.Dispatcher{
				Assets: reg,
				Files:  files,
				Queue:  queue,
				Notify: notify.NewTelegram(bot, cfg.DismissAfter),
				Ledger: lc,
			},
		}
		s.loop(ctx)
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("mtproto client stopped")
	}
}

func (s *server) loop(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case upd.Message != nil:
				s.onMessage(ctx, upd.Message, false)
			case upd.EditedMessage != nil:
				s.onMessage(ctx, upd.EditedMessage, true)
			}
		}
	}
}

func (s *server) onMessage(ctx context.Context, m *tgbotapi.Message, edited bool) {
	if m.IsCommand() {
		s.onCommand(ctx, m)
		return
	}
	if m.Chat.ID != s.cfg.InputChatID {
		return
	}

	sub, ok := s.extractSubmission(m, edited)
	if !ok {
		return
	}
	log.Info().Str("asset", sub.AssetID).Bool("edited", edited).Msg("submission received")
	if err := s.disp.HandleSubmission(ctx, sub); err != nil {
		log.Error().Err(err).Str("asset", sub.AssetID).Msg("submission handling failed")
	}
}

func (s *server) onCommand(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat.ID != s.cfg.InputChatID && m.Chat.ID != s.cfg.GroupChatID {
		return
	}
	cmd := dispatch.Command{
		Name:      m.Command(),
		Args:      m.CommandArguments(),
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		ThreadID:  messageThread(m),
	}
	log.Info().Str("command", cmd.Name).Int64("chat_id", cmd.ChatID).Msg("command received")
	if err := s.disp.HandleCommand(ctx, cmd); err != nil {
		log.Error().Err(err).Str("command", cmd.Name).Msg("command failed")
	}
}

// extractSubmission decides what a media message is by the forum thread it
// arrived in: faces thread takes photos, videos thread takes videos.
func (s *server) extractSubmission(m *tgbotapi.Message, edited bool) (dispatch.Submission, bool) {
	sub := dispatch.Submission{
		AssetID:   strconv.Itoa(m.MessageID),
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Caption:   m.Caption,
		Edited:    edited,
	}

	switch messageThread(m) {
	case s.cfg.FacesThreadID:
		fileID, ok := photoFileID(m)
		if !ok {
			return dispatch.Submission{}, false
		}
		sub.Kind = dispatch.KindImage
		sub.FileID = fileID
	case s.cfg.VideosThreadID:
		fileID, ok := videoFileID(m)
		if !ok {
			return dispatch.Submission{}, false
		}
		sub.Kind = dispatch.KindVideo
		sub.FileID = fileID
	default:
		return dispatch.Submission{}, false
	}
	return sub, true
}

// messageThread maps a forum message to its topic id. Messages in a topic
// arrive as replies to the topic's root service message.
func messageThread(m *tgbotapi.Message) int {
	if m.ReplyToMessage != nil {
		return m.ReplyToMessage.MessageID
	}
	return 0
}

func photoFileID(m *tgbotapi.Message) (string, bool) {
	if len(m.Photo) > 0 {
		return m.Photo[len(m.Photo)-1].FileID, true
	}
	if m.Document != nil && strings.HasPrefix(strings.ToLower(m.Document.MimeType), "image/") {
		return m.Document.FileID, true
	}
	return "", false
}

func videoFileID(m *tgbotapi.Message) (string, bool) {
	if m.Video != nil {
		return m.Video.FileID, true
	}
	if m.Document != nil && strings.HasPrefix(strings.ToLower(m.Document.MimeType), "video/") {
		return m.Document.FileID, true
	}
	return "", false
}
