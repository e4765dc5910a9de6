package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/you/tg-faceswap/internal/ledger"
)

// Consecutive matching rows are the case a forward scan over one snapshot
// gets wrong: each delete shifts the rest up and every second row survives.
func TestCascade_ConsecutiveRowsAllDeleted(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableOutputs, [][]string{
		{"100_1", "alice_v1"},
		{"100_2", "alice_v2"},
		{"100_3", "alice_v3"},
		{"100_4", "alice_v4"},
		{"200_1", "bob_v1"},
	})

	count, labels, err := r.cascadeOutputs(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.ElementsMatch(t, []string{"alice_v1", "alice_v2", "alice_v3", "alice_v4"}, labels)
	require.Equal(t, [][]string{{"200_1", "bob_v1"}}, st.Rows(ledger.TableOutputs))
}

func TestCascade_NoMatches(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableOutputs, [][]string{{"200_1", "bob_v1"}})

	count, labels, err := r.cascadeOutputs(ctx, "100")
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, labels)
	require.Len(t, st.Rows(ledger.TableOutputs), 1)
}

func TestCascade_MalformedKeysAreSkipped(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableOutputs, [][]string{
		{"garbage", "??"},
		{"100_1", "alice_v1"},
	})

	count, _, err := r.cascadeOutputs(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, [][]string{{"garbage", "??"}}, st.Rows(ledger.TableOutputs))
}

func TestCascade_WriteFailureIsReportedButScanContinues(t *testing.T) {
	ctx := context.Background()
	r, st := newTestRegistry(&fakeProv{})
	st.Seed(ledger.TableOutputs, [][]string{
		{"100_1", "alice_v1"},
		{"100_2", "alice_v2"},
	})
	st.DeleteErr = errors.New("remote store rejected write")

	count, _, err := r.cascadeOutputs(ctx, "100")
	require.Error(t, err)
	require.Zero(t, count)
	require.Len(t, st.Rows(ledger.TableOutputs), 2)
}
