package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOutputKey(t *testing.T) {
	k, err := ParseOutputKey("100_200")
	require.NoError(t, err)
	require.Equal(t, OutputKey{ImageID: "100", VideoID: "200"}, k)
	require.Equal(t, "100_200", k.String())
	require.True(t, k.HasImage("100"))
	require.False(t, k.HasImage("10"))

	for _, bad := range []string{"", "_", "100_", "_200", "100"} {
		_, err := ParseOutputKey(bad)
		require.Error(t, err, "key %q", bad)
	}
}

func TestImages_LegacyRowWithoutChannelColumn(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableImages, [][]string{
		{"100", "alice", "2001", "42", "alice"}, // pre-channel row
		{"101", "bob", "2001", "43", "bob", "9001"},
	})
	c := NewClient(st)

	rows, err := c.Images(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.False(t, rows[0].ChannelID.Valid)
	require.Equal(t, "", rows[0].ChannelID.StringOrEmpty())
	require.True(t, rows[1].ChannelID.Valid)
	require.Equal(t, "9001", rows[1].ChannelID.Value)
}

func TestImages_EmptyPriorNameFallsBackToDisplayName(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableImages, [][]string{{"100", "alice", "2001", "42", ""}})
	c := NewClient(st)

	rows, err := c.Images(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", rows[0].PriorName)
}

func TestFindImageByName_CaseNormalized(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableImages, [][]string{{"100", "alice", "2001", "42", "alice", ""}})
	c := NewClient(st)

	row, ok, err := c.FindImageByName(ctx, "  ALICE ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", row.AssetID)
}

func TestRenameImage_UpdatesBothNameColumns(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableImages, [][]string{{"100", "alice", "2001", "42", "alice", "9001"}})
	c := NewClient(st)

	require.NoError(t, c.RenameImage(ctx, 0, "alicia"))

	row := st.Rows(TableImages)[0]
	require.Equal(t, "alicia", row[1])
	require.Equal(t, "alicia", row[4])
	require.Equal(t, "100", row[0], "asset id untouched")
}

func TestReassignImageAssetID(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableImages, [][]string{{"200", "alicia", "2001", "42", "alicia", ""}})
	c := NewClient(st)

	require.NoError(t, c.ReassignImageAssetID(ctx, 0, "100"))
	require.Equal(t, "100", st.Rows(TableImages)[0][0])
}

func TestMemStore_DeleteShiftsIndices(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	st.Seed(TableOutputs, [][]string{
		{"1_1", "a_x"},
		{"1_2", "a_y"},
		{"1_3", "a_z"},
	})

	// Deleting row 0 shifts everything up: the old row 1 is now row 0.
	require.NoError(t, st.DeleteRow(ctx, TableOutputs, 0))
	rows := st.Rows(TableOutputs)
	require.Equal(t, "1_2", rows[0][0])
	require.Len(t, rows, 2)
}

func TestClient_AppendAndReadBack(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	c := NewClient(st)

	img := ImageRow{
		AssetID:      "100",
		DisplayName:  "alice",
		OutputChatID: "2001",
		TopicID:      SomeID("42"),
		PriorName:    "alice",
		// channel provisioning failed: column written as empty
	}
	require.NoError(t, c.AppendImage(ctx, img))
	require.NoError(t, c.AppendVideo(ctx, VideoRow{AssetID: "300", DisplayName: "v1"}))
	require.NoError(t, c.AppendOutput(ctx, OutputKey{ImageID: "100", VideoID: "300"}, "alice_v1"))

	got, ok, err := c.FindImageByAssetID(ctx, "100")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.ChannelID.Valid)
	require.Equal(t, "42", got.TopicID.Value)

	outs, err := c.Outputs(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Equal(t, "alice_v1", outs[0].Label)
	require.Equal(t, OutputKey{ImageID: "100", VideoID: "300"}, outs[0].Key)
}
