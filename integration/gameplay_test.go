package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mireska/ashfall/server/model"
)

func charDeletePath(charID int64) string {
	return fmt.Sprintf("/api/characters/%d", charID)
}

// findItemByDef scans an inventory_sync "items" array for a def id and
// returns the stack's id and quantity.
func findItemByDef(t *testing.T, items []interface{}, defID string) (int64, int) {
	t.Helper()
	for _, raw := range items {
		m := raw.(map[string]interface{})
		if m["def_id"] == defID {
			return int64(m["id"].(float64)), int(m["quantity"].(float64))
		}
	}
	t.Fatalf("def %s not in inventory snapshot", defID)
	return 0, 0
}

func TestEnterWorld_InitialSync(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	_, charID, ws := ts.LoginAndEnter(t, UniqueID("sync"), UniqueID("Drifter"))
	defer ws.Close()

	// First inventory pass sends the full stack list: the starter kit.
	inv := PayloadMap(t, ws.RecvType("inventory_sync", 5*time.Second))
	items, ok := inv["items"].([]interface{})
	require.True(t, ok, "first inventory sync must carry the full item list")
	_, qty := findItemByDef(t, items, "berries")
	assert.Equal(t, 5, qty)
	findItemByDef(t, items, "water_bottle")
	findItemByDef(t, items, "rusty_knife")

	// Vitals arrive once, at full.
	vitals := PayloadMap(t, ws.RecvType("vitals_sync", 5*time.Second))
	assert.Equal(t, float64(100), vitals["health"])
	assert.Equal(t, float64(100), vitals["hunger"])

	// The zone roster includes us.
	chars := PayloadMap(t, ws.RecvType("chars_sync", 5*time.Second))
	found := false
	for _, raw := range chars["chars"].([]interface{}) {
		if int64(raw.(map[string]interface{})["id"].(float64)) == charID {
			found = true
		}
	}
	assert.True(t, found, "own character missing from roster sync")

	// Coast places one lootable container.
	containers := PayloadMap(t, ws.RecvType("containers_sync", 5*time.Second))
	assert.Len(t, containers["containers"], 1)
}

func TestUseItem_ConsumesStack(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	_, _, ws := ts.LoginAndEnter(t, UniqueID("eat"), UniqueID("Eater"))
	defer ws.Close()

	inv := PayloadMap(t, ws.RecvType("inventory_sync", 5*time.Second))
	items := inv["items"].([]interface{})
	berriesID, qty := findItemByDef(t, items, "berries")
	require.Equal(t, 5, qty)

	ws.Send("use_item", map[string]interface{}{"item_id": berriesID})

	// The next inventory delta carries only the changed stack.
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no inventory delta after use_item")
		delta := PayloadMap(t, ws.RecvType("inventory_sync", 5*time.Second))
		changed, ok := delta["changed"].([]interface{})
		if !ok {
			continue
		}
		id, newQty := findItemByDef(t, changed, "berries")
		assert.Equal(t, berriesID, id)
		assert.Equal(t, 4, newQty)
		return
	}
}

func TestMove_ReplicatesToOtherPlayers(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	_, moverID, wsA := ts.LoginAndEnter(t, UniqueID("mova"), UniqueID("Runner"))
	defer wsA.Close()
	_, _, wsB := ts.LoginAndEnter(t, UniqueID("movb"), UniqueID("Watcher"))
	defer wsB.Close()

	// Wait for B's initial roster sync, then move A.
	wsB.RecvType("chars_sync", 5*time.Second)

	wsA.Send("move",map[string]interface{}{
		"pos": map[string]float64{"x": 25, "y": 9, "z": 0},
		"yaw": 45,
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "observer never saw the move")
		pkt := PayloadMap(t, wsB.RecvType("chars_sync", 5*time.Second))
		for _, raw := range pkt["chars"].([]interface{}) {
			m := raw.(map[string]interface{})
			if int64(m["id"].(float64)) != moverID {
				continue
			}
			pos := m["pos"].(map[string]interface{})
			if pos["x"].(float64) == 25 {
				assert.Equal(t, float64(45), m["yaw"])
				return
			}
		}
	}
}

func TestLeaveWorld_PersistsCharacter(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	_, charID, ws := ts.LoginAndEnter(t, UniqueID("save"), UniqueID("Saver"))
	defer ws.Close()

	ws.Send("move", map[string]interface{}{
		"pos": map[string]float64{"x": -7, "y": 18, "z": 0},
		"yaw": 270,
	})
	// Give the zone a tick to apply the move.
	time.Sleep(100 * time.Millisecond)

	ws.Send("leave_world", nil)
	ws.RecvType("world_left", 5*time.Second)

	// The snapshot write is asynchronous; poll the row.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var mc model.Character
		require.NoError(t, ts.DB.First(&mc, charID).Error)
		if mc.PosX == -7 && mc.PosY == 18 {
			assert.Equal(t, 270.0, mc.Yaw)
			assert.Equal(t, "coast", mc.ZoneID)
			return
		}
		require.True(t, time.Now().Before(deadline), "character row never updated: %+v", mc)
		time.Sleep(50 * time.Millisecond)
	}
}

func TestEnterWorld_RejectsForeignCharacter(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	// Owner creates the character.
	ownerToken, _ := ts.Login(t, UniqueID("own"), "ownerpass1")
	charID := ts.CreateCharacter(t, ownerToken, UniqueID("Mine"))

	// A different account tries to enter with it.
	thiefToken, _ := ts.Login(t, UniqueID("thief"), "thiefpass1")
	ws := ts.ConnectWS(t, thiefToken)
	defer ws.Close()

	ws.Send("enter_world", map[string]interface{}{"char_id": charID})
	pkt := PayloadMap(t, ws.RecvType("error", 5*time.Second))
	assert.Equal(t, "invalid character", pkt["error"])
}
