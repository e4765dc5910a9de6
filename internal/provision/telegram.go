package provision

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

// rawAPI is the slice of the MTProto surface we call. *tg.Client satisfies
// it; tests substitute a fake.
type rawAPI interface {
	ChannelsCreateChannel(ctx context.Context, request *tg.ChannelsCreateChannelRequest) (tg.UpdatesClass, error)
	ChannelsCreateForumTopic(ctx context.Context, request *tg.ChannelsCreateForumTopicRequest) (tg.UpdatesClass, error)
	ChannelsEditTitle(ctx context.Context, request *tg.ChannelsEditTitleRequest) (tg.UpdatesClass, error)
	ChannelsEditPhoto(ctx context.Context, request *tg.ChannelsEditPhotoRequest) (tg.UpdatesClass, error)
	MessagesGetDialogFilters(ctx context.Context) ([]tg.DialogFilterClass, error)
	MessagesUpdateDialogFilter(ctx context.Context, request *tg.MessagesUpdateDialogFilterRequest) (bool, error)
}

// fileUploader matches uploader.Uploader.
type fileUploader interface {
	FromPath(ctx context.Context, path string) (tg.InputFileClass, error)
}

// Telegram implements Provisioner over an authorized MTProto session.
// Channel access hashes are only handed out once (at creation or resolution
// time), so they are kept in a cache keyed by channel id; UpdateChannel for a
// channel created in an earlier process lifetime needs that cache populated.
type Telegram struct {
	api        rawAPI
	up         fileUploader
	hashes     HashCache
	parentHash int64 // access hash of the fixed output chat
}

func NewTelegram(api rawAPI, up fileUploader, hashes HashCache, parentChatHash int64) *Telegram {
	return &Telegram{api: api, up: up, hashes: hashes, parentHash: parentChatHash}
}

func (t *Telegram) CreateDiscussionTopic(ctx context.Context, name string, parentChatID int64) (string, error) {
	parent, err := t.inputChannel(ctx, parentChatID, t.parentHash)
	if err != nil {
		return "", err
	}
	u, err := t.api.ChannelsCreateForumTopic(ctx, &tg.ChannelsCreateForumTopicRequest{
		Channel:  parent,
		Title:    name,
		RandomID: rand.Int63(),
	})
	if err != nil {
		return "", fmt.Errorf("create forum topic %q: %w", name, err)
	}
	id, ok := topicIDFromUpdates(u)
	if !ok {
		return "", fmt.Errorf("create forum topic %q: no topic id in response", name)
	}
	return strconv.Itoa(id), nil
}

func (t *Telegram) CreateDedicatedChannel(ctx context.Context, name, avatarPath, folderName string) (string, error) {
	u, err := t.api.ChannelsCreateChannel(ctx, &tg.ChannelsCreateChannelRequest{
		Title:     name,
		About:     "Chat for " + name,
		Broadcast: true,
	})
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", name, err)
	}
	ch, ok := firstChannel(u)
	if !ok {
		return "", fmt.Errorf("create channel %q: no channel in response", name)
	}
	if err := t.hashes.Put(ctx, ch.ID, ch.AccessHash); err != nil {
		log.Warn().Err(err).Int64("channel", ch.ID).Msg("access hash cache write failed")
	}
	input := &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}

	// Avatar and folder are best-effort: the channel stays usable without
	// either, and the ledger row is written regardless.
	if avatarPath != "" {
		if err := t.setPhoto(ctx, input, avatarPath); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("channel avatar failed")
		}
	}
	if folderName != "" {
		if err := t.addToFolder(ctx, ch, folderName); err != nil {
			log.Warn().Err(err).Str("name", name).Str("folder", folderName).Msg("folder attach failed")
		}
	}
	return strconv.FormatInt(ch.ID, 10), nil
}

func (t *Telegram) UpdateChannel(ctx context.Context, channelID, newName, avatarPath, previousName string) error {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("channel id %q: %w", channelID, err)
	}
	input, err := t.inputChannel(ctx, id, 0)
	if err != nil {
		return err
	}

	if newName != previousName {
		if _, err := t.api.ChannelsEditTitle(ctx, &tg.ChannelsEditTitleRequest{
			Channel: input,
			Title:   newName,
		}); err != nil {
			return fmt.Errorf("edit title of %s: %w", channelID, err)
		}
	}
	if avatarPath != "" {
		if err := t.setPhoto(ctx, input, avatarPath); err != nil {
			return fmt.Errorf("edit photo of %s: %w", channelID, err)
		}
	}
	return nil
}

func (t *Telegram) setPhoto(ctx context.Context, ch *tg.InputChannel, path string) error {
	f, err := t.up.FromPath(ctx, path)
	if err != nil {
		return fmt.Errorf("upload avatar: %w", err)
	}
	_, err = t.api.ChannelsEditPhoto(ctx, &tg.ChannelsEditPhotoRequest{
		Channel: ch,
		Photo:   &tg.InputChatUploadedPhoto{File: f},
	})
	return err
}

func (t *Telegram) addToFolder(ctx context.Context, ch *tg.Channel, folderName string) error {
	filters, err := t.api.MessagesGetDialogFilters(ctx)
	if err != nil {
		return fmt.Errorf("get dialog filters: %w", err)
	}
	for _, fc := range filters {
		f, ok := fc.(*tg.DialogFilter)
		if !ok || f.Title != folderName {
			continue
		}
		f.IncludePeers = append(f.IncludePeers, &tg.InputPeerChannel{
			ChannelID:  ch.ID,
			AccessHash: ch.AccessHash,
		})
		if _, err := t.api.MessagesUpdateDialogFilter(ctx, &tg.MessagesUpdateDialogFilterRequest{
			ID:     f.ID,
			Filter: f,
		}); err != nil {
			return fmt.Errorf("update dialog filter %d: %w", f.ID, err)
		}
		return nil
	}
	return fmt.Errorf("folder %q not found, create it in Telegram first", folderName)
}

// inputChannel builds an InputChannel, preferring the cached access hash and
// falling back to the supplied one.
func (t *Telegram) inputChannel(ctx context.Context, id, fallbackHash int64) (*tg.InputChannel, error) {
	if hash, ok, err := t.hashes.Get(ctx, id); err == nil && ok {
		return &tg.InputChannel{ChannelID: id, AccessHash: hash}, nil
	} else if err != nil {
		log.Warn().Err(err).Int64("channel", id).Msg("access hash cache read failed")
	}
	if fallbackHash == 0 {
		return nil, fmt.Errorf("no access hash known for channel %d", id)
	}
	return &tg.InputChannel{ChannelID: id, AccessHash: fallbackHash}, nil
}

func firstChannel(u tg.UpdatesClass) (*tg.Channel, bool) {
	updates, ok := u.(*tg.Updates)
	if !ok {
		return nil, false
	}
	for _, c := range updates.Chats {
		if ch, ok := c.(*tg.Channel); ok {
			return ch, true
		}
	}
	return nil, false
}

// topicIDFromUpdates digs the service-message id out of the create-topic
// response; that id is the forum topic id.
func topicIDFromUpdates(u tg.UpdatesClass) (int, bool) {
	updates, ok := u.(*tg.Updates)
	if !ok {
		return 0, false
	}
	for _, upd := range updates.Updates {
		m, ok := upd.(*tg.UpdateNewChannelMessage)
		if !ok {
			continue
		}
		switch msg := m.Message.(type) {
		case *tg.MessageService:
			return msg.ID, true
		case *tg.Message:
			return msg.ID, true
		}
	}
	return 0, false
}
