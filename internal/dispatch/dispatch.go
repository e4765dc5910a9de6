// Package dispatch translates incoming chat events into registry, media and
// queue calls, and words the user-facing replies. It owns no state beyond its
// collaborators, so the event loop in cmd/bot stays a thin mapping layer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/jobs"
	"github.com/you/tg-faceswap/internal/ledger"
	"github.com/you/tg-faceswap/internal/logx"
	"github.com/you/tg-faceswap/internal/notify"
	"github.com/you/tg-faceswap/internal/registry"
)

type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

// Submission is a new or edited media message in one of the intake threads.
type Submission struct {
	AssetID   string
	ChatID    int64
	MessageID int
	Caption   string
	Kind      Kind
	FileID    string
	Edited    bool
}

// Deletion carries the asset ids of removed messages.
type Deletion struct {
	AssetIDs []string
}

// Command is a parsed operator command.
type Command struct {
	Name      string
	Args      string
	ChatID    int64
	MessageID int
	ThreadID  int
}

// Assets is the registry surface the dispatcher needs.
type Assets interface {
	RegisterOrUpdateImage(ctx context.Context, assetID, text, avatarPath string) (registry.ImageOutcome, error)
	RegisterVideo(ctx context.Context, assetID, text string) (string, error)
	HandleDeletedAssets(ctx context.Context, assetIDs []string) []registry.DeleteReport
	DeleteImageByName(ctx context.Context, name string) (registry.DeleteReport, error)
	DeleteVideoByName(ctx context.Context, name string) (registry.DeleteReport, error)
}

// Recorder indexes submitted files for later download.
type Recorder interface {
	RecordImage(ctx context.Context, assetID, fileID string) (string, error)
	RecordVideo(ctx context.Context, assetID, fileID string) error
}

// Enqueuer hands batch requests to the worker.
type Enqueuer interface {
	EnqueueRunBatch(ctx context.Context, p jobs.RunBatchPayload) error
}

type Dispatcher struct {
	Assets Assets
	Files  Recorder
	Queue  Enqueuer
	Notify notify.Notifier
	Ledger *ledger.Client
}

// HandleSubmission runs the full intake path for one media message. The
// returned error is for logging; every user-visible consequence has already
// been replied by the time it returns.
func (d *Dispatcher) HandleSubmission(ctx context.Context, s Submission) error {
	ctx = logx.WithAssetID(ctx, s.AssetID)
	if s.Kind == KindVideo {
		return d.handleVideo(ctx, s)
	}
	return d.handleImage(ctx, s)
}

func (d *Dispatcher) handleImage(ctx context.Context, s Submission) error {
	avatarPath, err := d.Files.RecordImage(ctx, s.AssetID, s.FileID)
	if err != nil {
		// Registration still proceeds; the channel just gets no avatar.
		log.Warn().Err(err).Str("asset", s.AssetID).Msg("image fetch failed, registering without avatar")
		avatarPath = ""
	}

	out, err := d.Assets.RegisterOrUpdateImage(ctx, s.AssetID, s.Caption, avatarPath)
	if errors.Is(err, registry.ErrNoCaption) {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, "✍️ Please update the caption: this face needs a name.")
		return nil
	}
	if err != nil {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, "⚠️ Registration failed, try again.")
		return err
	}

	switch out.Status {
	case registry.ImageCreated:
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, fmt.Sprintf("✅ Face %q registered.", out.Name))
	case registry.ImageUpdated:
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID,
			fmt.Sprintf("✏️ Face %q renamed to %q.", out.OldName, out.Name))
	case registry.ImageReused:
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID,
			fmt.Sprintf("♻️ Face %q already registered, entry refreshed.", out.Name))
	case registry.ImageNoChannel:
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID,
			fmt.Sprintf("✅ Face %q noted. No channel exists for it, so nothing was renamed.", out.Name))
	}
	return nil
}

func (d *Dispatcher) handleVideo(ctx context.Context, s Submission) error {
	if err := d.Files.RecordVideo(ctx, s.AssetID, s.FileID); err != nil {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, "⚠️ Could not index the video, try again.")
		return err
	}

	name, err := d.Assets.RegisterVideo(ctx, s.AssetID, s.Caption)
	if errors.Is(err, registry.ErrNoCaption) {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, "✍️ Please update the caption: this video needs a name.")
		return nil
	}
	var dup *registry.DuplicateNameError
	if errors.As(err, &dup) {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID,
			fmt.Sprintf("⚠️ Video name %q is already taken.", dup.Name))
		return nil
	}
	if err != nil {
		d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, "⚠️ Registration failed, try again.")
		return err
	}
	d.Notify.ReplyEphemeral(s.ChatID, s.MessageID, fmt.Sprintf("✅ Video %q registered.", name))
	return nil
}

// HandleDeletion reconciles removed messages against the ledger. Untracked
// ids are ignored inside the registry.
func (d *Dispatcher) HandleDeletion(ctx context.Context, del Deletion) []registry.DeleteReport {
	reports := d.Assets.HandleDeletedAssets(ctx, del.AssetIDs)
	for _, rep := range reports {
		if rep.Kind == registry.KindImage && rep.OutputsDeleted > 0 {
			log.Info().Str("name", rep.Name).Int("outputs", rep.OutputsDeleted).
				Msg("deletion cascaded to outputs")
		}
	}
	return reports
}

// HandleCommand parses and executes one operator command.
func (d *Dispatcher) HandleCommand(ctx context.Context, c Command) error {
	switch c.Name {
	case "domany":
		return d.cmdDoMany(ctx, c)
	case "get_chat_id":
		return d.Notify.Reply(c.ChatID, c.MessageID,
			fmt.Sprintf("Chat ID: %d\nThread ID: %d", c.ChatID, c.ThreadID))
	case "getres":
		return d.cmdGetRes(ctx, c)
	case "delete_image":
		return d.cmdDelete(ctx, c, true)
	case "delete_video":
		return d.cmdDelete(ctx, c, false)
	default:
		return d.Notify.Reply(c.ChatID, c.MessageID, "Unknown command.")
	}
}

// cmdDoMany queues a cross-product render: /domany img1,img2 vid1,vid2
func (d *Dispatcher) cmdDoMany(ctx context.Context, c Command) error {
	fields := strings.Fields(c.Args)
	if len(fields) != 2 {
		return d.Notify.Reply(c.ChatID, c.MessageID,
			"Usage: /domany face1,face2 video1,video2")
	}
	images := splitList(fields[0])
	videos := splitList(fields[1])
	if len(images) == 0 || len(videos) == 0 {
		return d.Notify.Reply(c.ChatID, c.MessageID,
			"Usage: /domany face1,face2 video1,video2")
	}

	p := jobs.RunBatchPayload{
		BatchID:    ulid.Make().String(),
		ChatID:     c.ChatID,
		ThreadID:   c.ThreadID,
		ImageNames: images,
		VideoNames: videos,
	}
	if err := d.Queue.EnqueueRunBatch(ctx, p); err != nil {
		_ = d.Notify.Reply(c.ChatID, c.MessageID, "⚠️ Could not queue the batch.")
		return err
	}
	log.Info().Str("batch", p.BatchID).Int("images", len(images)).Int("videos", len(videos)).
		Msg("batch queued")
	return d.Notify.Reply(c.ChatID, c.MessageID,
		fmt.Sprintf("🚀 Batch %s queued: %d combinations.", p.BatchID, len(images)*len(videos)))
}

func (d *Dispatcher) cmdGetRes(ctx context.Context, c Command) error {
	images, err := d.Ledger.Images(ctx)
	if err != nil {
		_ = d.Notify.Reply(c.ChatID, c.MessageID, "⚠️ Could not read the ledger.")
		return err
	}
	videos, err := d.Ledger.Videos(ctx)
	if err != nil {
		_ = d.Notify.Reply(c.ChatID, c.MessageID, "⚠️ Could not read the ledger.")
		return err
	}

	var imgNames, vidNames []string
	for _, r := range images {
		imgNames = append(imgNames, r.DisplayName)
	}
	for _, r := range videos {
		vidNames = append(vidNames, r.DisplayName)
	}
	return d.Notify.Reply(c.ChatID, c.MessageID, fmt.Sprintf("🖼 Faces (%d): %s\n🎞 Videos (%d): %s",
		len(imgNames), joinOrDash(imgNames), len(vidNames), joinOrDash(vidNames)))
}

func (d *Dispatcher) cmdDelete(ctx context.Context, c Command, image bool) error {
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return d.Notify.Reply(c.ChatID, c.MessageID, "Usage: /delete_image name or /delete_video name")
	}

	var (
		rep registry.DeleteReport
		err error
	)
	if image {
		rep, err = d.Assets.DeleteImageByName(ctx, name)
	} else {
		rep, err = d.Assets.DeleteVideoByName(ctx, name)
	}
	if errors.Is(err, registry.ErrNotFound) {
		return d.Notify.Reply(c.ChatID, c.MessageID, fmt.Sprintf("Nothing named %q found.", name))
	}
	if err != nil {
		_ = d.Notify.Reply(c.ChatID, c.MessageID, "⚠️ Delete failed.")
		return err
	}

	if rep.Kind == registry.KindImage {
		return d.Notify.Reply(c.ChatID, c.MessageID,
			fmt.Sprintf("🗑 Face %q deleted along with %d rendered outputs.", rep.Name, rep.OutputsDeleted))
	}
	return d.Notify.Reply(c.ChatID, c.MessageID, fmt.Sprintf("🗑 Video %q deleted.", rep.Name))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
