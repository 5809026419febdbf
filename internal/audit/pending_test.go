package audit_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/internal/audit"
	"github.com/calvinalkan/confdb/pkg/confdb"
)

func Test_Pending_Writes_Nothing_Until_Flushed(t *testing.T) {
	t.Parallel()

	j, _ := openJournal(t)
	ctx := t.Context()
	p := audit.NewPending(j)

	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, p.Record(ctx, confdb.Mutation{Kind: confdb.MutationDelete, Model: notificationModel.ID, ObjectID: id}))
	}

	assert.Equal(t, 3, p.Len())

	entries, err := j.List(ctx, audit.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, 0, p.Len())

	entries, err = j.List(ctx, audit.ListOptions{})
	require.NoError(t, err)

	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.ObjectID)
	}

	if diff := cmp.Diff([]string{"u3", "u2", "u1"}, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func Test_Pending_Drops_Mutations_When_Discarded(t *testing.T) {
	t.Parallel()

	j, _ := openJournal(t)
	ctx := t.Context()
	p := audit.NewPending(j)

	require.NoError(t, p.Record(ctx, confdb.Mutation{Kind: confdb.MutationSet, Model: "m", ObjectID: "x"}))
	p.Discard()

	require.NoError(t, p.Flush(ctx))

	entries, err := j.List(ctx, audit.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_Pending_Fails_With_ErrJournal_When_Journal_Closed(t *testing.T) {
	t.Parallel()

	j, _ := openJournal(t)
	ctx := t.Context()
	p := audit.NewPending(j)

	require.NoError(t, p.Record(ctx, confdb.Mutation{Kind: confdb.MutationSet, Model: "m", ObjectID: "x"}))
	require.NoError(t, j.Close())

	err := p.Flush(ctx)
	require.ErrorIs(t, err, confdb.ErrJournal)
	assert.Equal(t, 0, p.Len())
}

func Test_Pending_Does_Nothing_When_Nil(t *testing.T) {
	t.Parallel()

	var p *audit.Pending

	require.NoError(t, p.Record(t.Context(), confdb.Mutation{Kind: confdb.MutationSet, Model: "m"}))
	require.NoError(t, p.Flush(t.Context()))
	p.Discard()
	assert.Equal(t, 0, p.Len())
}
