// Package registry owns the per-asset lifecycle: registration, rename
// reconciliation, dedup and deletion. Every operation re-reads the ledger
// before deciding; the store has no locking, so read-then-decide-then-write
// against a fresh snapshot is the whole consistency model.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/you/tg-faceswap/internal/ledger"
	"github.com/you/tg-faceswap/internal/provision"
)

type Registry struct {
	ledger       *ledger.Client
	prov         provision.Provisioner
	outputChatID int64
	folder       string
}

func New(lc *ledger.Client, prov provision.Provisioner, outputChatID int64, folder string) *Registry {
	return &Registry{ledger: lc, prov: prov, outputChatID: outputChatID, folder: folder}
}

// ImageStatus tells the dispatcher what actually happened so it can word the
// user-facing reply.
type ImageStatus int

const (
	// ImageCreated: new name, topic/channel provisioned, row appended.
	ImageCreated ImageStatus = iota
	// ImageUpdated: known asset id, channel refreshed, name columns rewritten.
	ImageUpdated
	// ImageReused: name collision; the existing row now carries the new id.
	ImageReused
	// ImageNoChannel: known asset id but nothing to update (no channel was
	// ever provisioned). Degraded, not an error.
	ImageNoChannel
)

type ImageOutcome struct {
	Status    ImageStatus
	Name      string
	OldName   string
	TopicID   ledger.OptionalID
	ChannelID ledger.OptionalID
}

// RegisterOrUpdateImage reconciles one image submission or edit.
func (r *Registry) RegisterOrUpdateImage(ctx context.Context, assetID, text, avatarPath string) (ImageOutcome, error) {
	name := ledger.NormalizeName(text)
	if name == "" {
		return ImageOutcome{}, ErrNoCaption
	}

	// Known asset id means this is an edit, not a new registration.
	row, ok, err := r.ledger.FindImageByAssetID(ctx, assetID)
	if err != nil {
		return ImageOutcome{}, err
	}
	if ok {
		return r.applyEdit(ctx, row, name, avatarPath)
	}

	// Unknown id but known name: a resubmission under a fresh message.
	// Reuse the row instead of duplicating the name.
	existing, ok, err := r.ledger.FindImageByName(ctx, name)
	if err != nil {
		return ImageOutcome{}, err
	}
	if ok {
		if err := r.ledger.ReassignImageAssetID(ctx, existing.Index, assetID); err != nil {
			return ImageOutcome{}, fmt.Errorf("reassign %q to %s: %w", name, assetID, err)
		}
		log.Info().Str("asset", assetID).Str("name", name).Msg("existing topic reused, id rewritten")
		return ImageOutcome{Status: ImageReused, Name: name, TopicID: existing.TopicID, ChannelID: existing.ChannelID}, nil
	}

	return r.createImage(ctx, assetID, name, avatarPath)
}

func (r *Registry) applyEdit(ctx context.Context, row ledger.ImageRow, name, avatarPath string) (ImageOutcome, error) {
	if !row.ChannelID.Valid {
		log.Warn().Str("asset", row.AssetID).Msg("edit without provisioned channel, nothing to update")
		return ImageOutcome{Status: ImageNoChannel, Name: name, OldName: row.DisplayName}, nil
	}
	if err := r.prov.UpdateChannel(ctx, row.ChannelID.Value, name, avatarPath, row.PriorName); err != nil {
		return ImageOutcome{}, fmt.Errorf("update channel for %q: %w", row.DisplayName, err)
	}
	if err := r.ledger.RenameImage(ctx, row.Index, name); err != nil {
		return ImageOutcome{}, fmt.Errorf("rename %q: %w", row.DisplayName, err)
	}
	return ImageOutcome{
		Status:    ImageUpdated,
		Name:      name,
		OldName:   row.PriorName,
		TopicID:   row.TopicID,
		ChannelID: row.ChannelID,
	}, nil
}

func (r *Registry) createImage(ctx context.Context, assetID, name, avatarPath string) (ImageOutcome, error) {
	// The only deliberate fan-out in the system: topic and channel creation
	// are independent, so they run side by side and are joined here. Either
	// may fail without aborting the other; the row records what succeeded.
	var (
		wg                sync.WaitGroup
		topicID, chanID   string
		topicErr, chanErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		topicID, topicErr = r.prov.CreateDiscussionTopic(ctx, name, r.outputChatID)
	}()
	go func() {
		defer wg.Done()
		chanID, chanErr = r.prov.CreateDedicatedChannel(ctx, name, avatarPath, r.folder)
	}()
	wg.Wait()

	if topicErr != nil {
		log.Error().Err(topicErr).Str("name", name).Msg("topic provisioning failed, continuing degraded")
	}
	if chanErr != nil {
		log.Error().Err(chanErr).Str("name", name).Msg("channel provisioning failed, continuing degraded")
	}

	row := ledger.ImageRow{
		AssetID:      assetID,
		DisplayName:  name,
		OutputChatID: fmt.Sprint(r.outputChatID),
		TopicID:      ledger.SomeID(topicID),
		PriorName:    name,
		ChannelID:    ledger.SomeID(chanID),
	}
	if err := r.ledger.AppendImage(ctx, row); err != nil {
		return ImageOutcome{}, fmt.Errorf("append image %q: %w", name, err)
	}
	log.Info().Str("asset", assetID).Str("name", name).
		Str("topic", row.TopicID.StringOrEmpty()).Str("channel", row.ChannelID.StringOrEmpty()).
		Msg("image registered")
	return ImageOutcome{Status: ImageCreated, Name: name, TopicID: row.TopicID, ChannelID: row.ChannelID}, nil
}

// RegisterVideo registers a target video. Dedup is purely by display name;
// videos get no side-effect provisioning.
func (r *Registry) RegisterVideo(ctx context.Context, assetID, text string) (string, error) {
	name := ledger.NormalizeName(text)
	if name == "" {
		return "", ErrNoCaption
	}
	existing, ok, err := r.ledger.FindVideoByName(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		return "", &DuplicateNameError{Name: existing.DisplayName}
	}
	if err := r.ledger.AppendVideo(ctx, ledger.VideoRow{AssetID: assetID, DisplayName: name}); err != nil {
		return "", fmt.Errorf("append video %q: %w", name, err)
	}
	log.Info().Str("asset", assetID).Str("name", name).Msg("video registered")
	return name, nil
}

// AssetKind says which table a deletion hit.
type AssetKind int

const (
	KindImage AssetKind = iota
	KindVideo
)

type DeleteReport struct {
	Kind           AssetKind
	AssetID        string
	Name           string
	OutputsDeleted int
	DeletedLabels  []string
}

// DeleteAsset removes the asset with the given id, trying images first, then
// videos. Image deletion cascades to every output rendered from it.
func (r *Registry) DeleteAsset(ctx context.Context, assetID string) (DeleteReport, error) {
	img, ok, err := r.ledger.FindImageByAssetID(ctx, assetID)
	if err != nil {
		return DeleteReport{}, err
	}
	if ok {
		return r.deleteImageRow(ctx, img)
	}

	vid, ok, err := r.ledger.FindVideoByAssetID(ctx, assetID)
	if err != nil {
		return DeleteReport{}, err
	}
	if ok {
		return r.deleteVideoRow(ctx, vid)
	}
	return DeleteReport{}, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
}

// DeleteImageByName serves the operator command.
func (r *Registry) DeleteImageByName(ctx context.Context, name string) (DeleteReport, error) {
	img, ok, err := r.ledger.FindImageByName(ctx, name)
	if err != nil {
		return DeleteReport{}, err
	}
	if !ok {
		return DeleteReport{}, fmt.Errorf("image %q: %w", name, ErrNotFound)
	}
	return r.deleteImageRow(ctx, img)
}

// DeleteVideoByName serves the operator command.
func (r *Registry) DeleteVideoByName(ctx context.Context, name string) (DeleteReport, error) {
	vid, ok, err := r.ledger.FindVideoByName(ctx, name)
	if err != nil {
		return DeleteReport{}, err
	}
	if !ok {
		return DeleteReport{}, fmt.Errorf("video %q: %w", name, ErrNotFound)
	}
	return r.deleteVideoRow(ctx, vid)
}

// HandleDeletedAssets processes a deletion event batch. Ids that match no
// row are untracked messages, not errors.
func (r *Registry) HandleDeletedAssets(ctx context.Context, assetIDs []string) []DeleteReport {
	var reports []DeleteReport
	for _, id := range assetIDs {
		rep, err := r.DeleteAsset(ctx, id)
		if err != nil {
			log.Info().Err(err).Str("asset", id).Msg("deleted message not tracked")
			continue
		}
		reports = append(reports, rep)
	}
	return reports
}

func (r *Registry) deleteImageRow(ctx context.Context, img ledger.ImageRow) (DeleteReport, error) {
	// img.Index came from a fetch inside this call chain with no writes in
	// between, so it is still valid here.
	if err := r.ledger.DeleteImageRow(ctx, img.Index); err != nil {
		return DeleteReport{}, fmt.Errorf("delete image row %q: %w", img.DisplayName, err)
	}
	count, labels, err := r.cascadeOutputs(ctx, img.AssetID)
	if err != nil {
		log.Error().Err(err).Str("asset", img.AssetID).Msg("output cascade incomplete")
	}
	log.Info().Str("asset", img.AssetID).Str("name", img.DisplayName).Int("outputs", count).
		Msg("image deleted")
	return DeleteReport{
		Kind:           KindImage,
		AssetID:        img.AssetID,
		Name:           img.DisplayName,
		OutputsDeleted: count,
		DeletedLabels:  labels,
	}, nil
}

func (r *Registry) deleteVideoRow(ctx context.Context, vid ledger.VideoRow) (DeleteReport, error) {
	if err := r.ledger.DeleteVideoRow(ctx, vid.Index); err != nil {
		return DeleteReport{}, fmt.Errorf("delete video row %q: %w", vid.DisplayName, err)
	}
	log.Info().Str("asset", vid.AssetID).Str("name", vid.DisplayName).Msg("video deleted")
	return DeleteReport{Kind: KindVideo, AssetID: vid.AssetID, Name: vid.DisplayName}, nil
}
