package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/world"
	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/resource"
)

func TestSaver_FlushWritesLiveState(t *testing.T) {
	svc := testService(t)
	mc := seedCharacter(t, svc)

	defs := testDefs()
	defs.Zones = map[string]*resource.ZoneDef{
		"coast": {ID: "coast", Name: "Coast", SpawnPoint: geo.Vec3{X: 1, Y: 1}},
	}
	zm := world.NewManager(config.GameConfig{ZoneTickMs: 10}, defs, zap.NewNop())
	defer zm.StopAll()

	z := zm.GetOrCreate("coast")
	require.NotNil(t, z)

	c := svc.Build(mc, nil)
	joined := make(chan struct{})
	z.Do(func() {
		z.Join(c, nil)
		c.SetTransform(geo.Vec3{X: 33, Y: -2}, 180)
		close(joined)
	})
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("zone did not process join")
	}

	saver := NewSaver(svc, zm, time.Minute, zap.NewNop())
	saver.Flush()

	var got model.Character
	require.NoError(t, svc.db.First(&got, mc.ID).Error)
	assert.Equal(t, 33.0, got.PosX)
	assert.Equal(t, -2.0, got.PosY)
	assert.Equal(t, 180.0, got.Yaw)
	assert.Equal(t, "coast", got.ZoneID)
}

func TestSaver_DefaultInterval(t *testing.T) {
	svc := testService(t)
	zm := world.NewManager(config.GameConfig{}, testDefs(), zap.NewNop())
	saver := NewSaver(svc, zm, 0, zap.NewNop())
	assert.Equal(t, 5*time.Minute, saver.Interval())
}
