package eventstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gigchain/core/events"
	"gigchain/core/types"
)

func record(seq uint64, typ, jobID string) events.Record {
	attrs := map[string]string{"amount": "100"}
	if jobID != "" {
		attrs["jobId"] = jobID
	}
	return events.Record{Sequence: seq, Event: types.Event{Type: typ, Attributes: attrs}}
}

func TestStorePublishAndQuery(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer store.Close()

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	require.Zero(t, last)

	require.NoError(t, store.Publish(ctx, []events.Record{
		record(1, "token.transfer", ""),
		record(2, "escrow.custody.created", "7"),
		record(3, "escrow.custody.funded", "7"),
		record(4, "escrow.custody.created", "8"),
	}))
	// Replays are ignored.
	require.NoError(t, store.Publish(ctx, []events.Record{record(3, "escrow.custody.funded", "7")}))

	last, err = store.LastSequence(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, last)

	byJob, err := store.ByJob(ctx, 7)
	require.NoError(t, err)
	require.Len(t, byJob, 2)
	require.EqualValues(t, 2, byJob[0].Sequence)
	require.Equal(t, "escrow.custody.funded", byJob[1].Event.Type)
	require.Equal(t, "100", byJob[1].Event.Attributes["amount"])

	created, err := store.ByType(ctx, "escrow.custody.created", 3, 10)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.EqualValues(t, 4, created[0].Sequence)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}
