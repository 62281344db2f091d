package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/testutil"
)

func TestRecordAndRecent(t *testing.T) {
	svc := New(testutil.SetupTestCache(t), zap.NewNop())

	svc.Record(Entry{VictimID: 1, VictimName: "Drifter", KillerID: 2, ZoneID: "coast"})
	svc.Record(Entry{VictimID: 2, VictimName: "Scout", ZoneID: "coast"})

	got, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Scout", got[0].VictimName, "newest entry first")
	assert.Equal(t, "Drifter", got[1].VictimName)
	assert.NotZero(t, got[0].At)
}

func TestRecent_Empty(t *testing.T) {
	svc := New(testutil.SetupTestCache(t), zap.NewNop())

	got, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
