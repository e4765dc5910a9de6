package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/you/tg-faceswap/internal/ledger"
)

type provCall struct {
	name, avatar, prev, channelID string
}

type fakeProv struct {
	topicID    string
	topicErr   error
	channelID  string
	channelErr error
	updateErr  error

	topicCalls   []provCall
	channelCalls []provCall
	updateCalls  []provCall
}

func (f *fakeProv) CreateDiscussionTopic(_ context.Context, name string, _ int64) (string, error) {
	f.topicCalls = append(f.topicCalls, provCall{name: name})
	return f.topicID, f.topicErr
}

func (f *fakeProv) CreateDedicatedChannel(_ context.Context, name, avatarPath, _ string) (string, error) {
	f.channelCalls = append(f.channelCalls, provCall{name: name, avatar: avatarPath})
	return f.channelID, f.channelErr
}

func (f *fakeProv) UpdateChannel(_ context.Context, channelID, newName, avatarPath, previousName string) error {
	f.updateCalls = append(f.updateCalls, provCall{
		channelID: channelID, name: newName, avatar: avatarPath, prev: previousName,
	})
	return f.updateErr
}

func newTestRegistry(prov *fakeProv) (*Registry, *ledger.MemStore) {
	st := ledger.NewMemStore()
	return New(ledger.NewClient(st), prov, 2001, "ODF"), st
}

func TestRegisterImage_NewName(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{topicID: "42", channelID: "9001"}
	r, st := newTestRegistry(prov)

	out, err := r.RegisterOrUpdateImage(ctx, "100", "Alice", "/tmp/100.jpg")
	require.NoError(t, err)
	require.Equal(t, ImageCreated, out.Status)
	require.Equal(t, "alice", out.Name, "name is case-normalized")
	require.Equal(t, "42", out.TopicID.Value)
	require.Equal(t, "9001", out.ChannelID.Value)

	rows := st.Rows(ledger.TableImages)
	require.Len(t, rows, 1)
	require.Equal(t, []string{"100", "alice", "2001", "42", "alice", "9001"}, rows[0])

	require.Len(t, prov.topicCalls, 1)
	require.Len(t, prov.channelCalls, 1)
	require.Equal(t, "/tmp/100.jpg", prov.channelCalls[0].avatar)
}

func TestRegisterImage_ProvisioningFailuresAreIndependent(t *testing.T) {
	ctx := context.Background()

	t.Run("topic fails", func(t *testing.T) {
		prov := &fakeProv{topicErr: errors.New("flood"), channelID: "9001"}
		r, st := newTestRegistry(prov)

		out, err := r.RegisterOrUpdateImage(ctx, "100", "alice", "")
		require.NoError(t, err, "degraded record, not a failure")
		require.False(t, out.TopicID.Valid)
		require.True(t, out.ChannelID.Valid)
		require.Equal(t, []string{"100", "alice", "2001", "", "alice", "9001"}, st.Rows(ledger.TableImages)[0])
	})

	t.Run("channel fails", func(t *testing.T) {
		prov := &fakeProv{topicID: "42", channelErr: errors.New("flood")}
		r, st := newTestRegistry(prov)

		out, err := r.RegisterOrUpdateImage(ctx, "100", "alice", "")
		require.NoError(t, err)
		require.True(t, out.TopicID.Valid)
		require.False(t, out.ChannelID.Valid)
		require.Equal(t, []string{"100", "alice", "2001", "42", "alice", ""}, st.Rows(ledger.TableImages)[0])
	})
}

func TestRegisterImage_TwiceWithSameIDAndText_NoDuplicates(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{topicID: "42", channelID: "9001"}
	r, st := newTestRegistry(prov)

	_, err := r.RegisterOrUpdateImage(ctx, "100", "alice", "")
	require.NoError(t, err)
	out, err := r.RegisterOrUpdateImage(ctx, "100", "alice", "")
	require.NoError(t, err)
	require.Equal(t, ImageUpdated, out.Status)

	require.Len(t, st.Rows(ledger.TableImages), 1, "no duplicate row")
	require.Len(t, prov.topicCalls, 1, "no second topic")
	require.Len(t, prov.channelCalls, 1, "no second channel")
	require.Equal(t, []string{"100", "alice", "2001", "42", "alice", "9001"}, st.Rows(ledger.TableImages)[0])
}

func TestRegisterImage_NameCollisionReusesRow(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{}
	r, st := newTestRegistry(prov)
	st.Seed(ledger.TableImages, [][]string{
		{"200", "alicia", "2001", "55", "alicia", "8000"},
	})

	// Renaming "alice" (id 100) to "alicia" arrives as a fresh submission
	// with a caption that collides with the existing row.
	out, err := r.RegisterOrUpdateImage(ctx, "100", "alicia", "")
	require.NoError(t, err)
	require.Equal(t, ImageReused, out.Status)

	rows := st.Rows(ledger.TableImages)
	require.Len(t, rows, 1, "no duplicate alicia row")
	require.Equal(t, "100", rows[0][0], "existing row rewritten to the new id")
	require.Empty(t, prov.topicCalls)
	require.Empty(t, prov.channelCalls)
}

func TestRegisterImage_EditUpdatesChannelAndNames(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{}
	r, st := newTestRegistry(prov)
	st.Seed(ledger.TableImages, [][]string{
		{"100", "alice", "2001", "42", "alice", "9001"},
	})

	out, err := r.RegisterOrUpdateImage(ctx, "100", "alicia", "/tmp/new.jpg")
	require.NoError(t, err)
	require.Equal(t, ImageUpdated, out.Status)
	require.Equal(t, "alice", out.OldName)

	require.Len(t, prov.updateCalls, 1)
	call := prov.updateCalls[0]
	require.Equal(t, "9001", call.channelID)
	require.Equal(t, "alicia", call.name)
	require.Equal(t, "alice", call.prev, "prior name passed so the title skip can work")
	require.Equal(t, "/tmp/new.jpg", call.avatar)

	row := st.Rows(ledger.TableImages)[0]
	require.Equal(t, "alicia", row[1])
	require.Equal(t, "alicia", row[4])
}

func TestRegisterImage_EditWithoutChannelIsDegradedNotFatal(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{}
	r, st := newTestRegistry(prov)
	st.Seed(ledger.TableImages, [][]string{
		{"100", "alice", "2001", "42", "alice"}, // legacy row, no channel
	})

	out, err := r.RegisterOrUpdateImage(ctx, "100", "alicia", "")
	require.NoError(t, err)
	require.Equal(t, ImageNoChannel, out.Status)
	require.Empty(t, prov.updateCalls)
	require.Equal(t, "alice", st.Rows(ledger.TableImages)[0][1], "ledger untouched")
}

func TestRegisterImage_ChannelUpdateFailureAbortsLedgerWrite(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProv{updateErr: errors.New("FLOOD_WAIT")}
	r, st := newTestRegistry(prov)
	st.Seed(ledger.TableImages, [][]string{
		{"100", "alice", "2001", "42", "alice", "9001"},
	})

	_, err := r.RegisterOrUpdateImage(ctx, "100", "alicia", "")
	require.Error(t, err)
	require.Equal(t, "alice", st.Rows(ledger.TableImages)[0][1])
}

func TestRegisterImage_NoCaption(t *testing.T) {
	prov := &fakeProv{}
	r, st := newTestRegistry(prov)

	_, err := r.RegisterOrUpdateImage(context.Background(), "100", "   ", "")
	require.ErrorIs(t, err, ErrNoCaption)
	require.Empty(t, st.Rows(ledger.TableImages))
	require.Empty(t, prov.topicCalls)
}

func TestRegisterVideo(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})

	name, err := r.RegisterVideo(ctx, "300", "V1")
	require.NoError(t, err)
	require.Equal(t, "v1", name)
	require.Equal(t, [][]string{{"300", "v1"}}, st.Rows(ledger.TableVideos))

	// Same name under a different id is rejected with no mutation.
	_, err = r.RegisterVideo(ctx, "301", "v1")
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "v1", dup.Name)
	require.Len(t, st.Rows(ledger.TableVideos), 1)

	_, err = r.RegisterVideo(ctx, "302", "")
	require.ErrorIs(t, err, ErrNoCaption)
}

func TestDeleteAsset_ImageCascades(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableImages, [][]string{
		{"100", "alice", "2001", "42", "alice", ""},
		{"101", "bob", "2001", "43", "bob", ""},
	})
	st.Seed(ledger.TableOutputs, [][]string{
		{"100_1", "alice_v1"},
		{"101_1", "bob_v1"},
		{"100_2", "alice_v2"},
		{"1000_1", "carol_v1"}, // shares the digit prefix, different asset
	})

	rep, err := r.DeleteAsset(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, KindImage, rep.Kind)
	require.Equal(t, "alice", rep.Name)
	require.Equal(t, 2, rep.OutputsDeleted)
	require.ElementsMatch(t, []string{"alice_v1", "alice_v2"}, rep.DeletedLabels)

	require.Equal(t, [][]string{{"101", "bob", "2001", "43", "bob", ""}}, st.Rows(ledger.TableImages))
	require.ElementsMatch(t, [][]string{{"101_1", "bob_v1"}, {"1000_1", "carol_v1"}},
		st.Rows(ledger.TableOutputs), "only the deleted image's outputs are removed")
}

func TestDeleteAsset_VideoHasNoCascade(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableVideos, [][]string{{"300", "v1"}})
	st.Seed(ledger.TableOutputs, [][]string{{"100_300", "alice_v1"}})

	rep, err := r.DeleteAsset(ctx, "300")
	require.NoError(t, err)
	require.Equal(t, KindVideo, rep.Kind)
	require.Empty(t, st.Rows(ledger.TableVideos))
	require.Len(t, st.Rows(ledger.TableOutputs), 1, "outputs only cascade from images")
}

func TestDeleteAsset_UnknownIDIsNotFoundWithoutWrites(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableImages, [][]string{{"100", "alice", "2001", "42", "alice", ""}})
	st.Seed(ledger.TableVideos, [][]string{{"300", "v1"}})

	_, err := r.DeleteAsset(ctx, "555")
	require.ErrorIs(t, err, ErrNotFound)
	require.Len(t, st.Rows(ledger.TableImages), 1)
	require.Len(t, st.Rows(ledger.TableVideos), 1)
}

func TestHandleDeletedAssets_MixedBatch(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableImages, [][]string{{"100", "alice", "2001", "42", "alice", ""}})
	st.Seed(ledger.TableVideos, [][]string{{"300", "v1"}})

	reports := r.HandleDeletedAssets(ctx, []string{"100", "555", "300"})
	require.Len(t, reports, 2, "untracked ids are skipped silently")
	require.Empty(t, st.Rows(ledger.TableImages))
	require.Empty(t, st.Rows(ledger.TableVideos))
}

func TestDeleteByName(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableImages, [][]string{{"100", "alice", "2001", "42", "alice", ""}})
	st.Seed(ledger.TableVideos, [][]string{{"300", "v1"}})
	st.Seed(ledger.TableOutputs, [][]string{{"100_300", "alice_v1"}})

	rep, err := r.DeleteImageByName(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, "100", rep.AssetID)
	require.Equal(t, 1, rep.OutputsDeleted)

	_, err = r.DeleteVideoByName(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	rep, err = r.DeleteVideoByName(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, KindVideo, rep.Kind)
}
