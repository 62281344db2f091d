package world

import (
	"fmt"

	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
)

// Wire snapshots. Full snapshots go out when membership changes; otherwise
// only entities whose revision moved are resent.

type itemSnapshot struct {
	ID       int64  `json:"id"`
	DefID    string `json:"def_id"`
	Quantity int    `json:"quantity"`
	Equipped bool   `json:"equipped"`
	Slot     string `json:"slot,omitempty"`
}

type pickupSnapshot struct {
	ID       int64    `json:"id"`
	DefID    string   `json:"def_id"`
	Quantity int      `json:"quantity"`
	Pos      geo.Vec3 `json:"pos"`
}

type containerSnapshot struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Pos      geo.Vec3 `json:"pos"`
	HoldTime float64  `json:"hold_time"`
}

type charSnapshot struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Pos  geo.Vec3 `json:"pos"`
	Yaw  float64  `json:"yaw"`
	Dead bool     `json:"dead"`
}

func snapshotItem(it *item.Item) itemSnapshot {
	return itemSnapshot{
		ID:       it.SyncID(),
		DefID:    it.Def().ID,
		Quantity: it.Quantity(),
		Equipped: it.Equipped(),
		Slot:     string(it.Def().Slot),
	}
}

func itemSnapshots(ts []replication.Tracked) []itemSnapshot {
	out := make([]itemSnapshot, 0, len(ts))
	for _, t := range ts {
		if it, ok := t.(*item.Item); ok {
			out = append(out, snapshotItem(it))
		}
	}
	return out
}

// syncSessions runs the per-observer replication pass at the end of every
// tick. Each session's view remembers what it has seen; only deltas go out.
func (z *Zone) syncSessions() {
	for id, sess := range z.sessions {
		me := z.chars[id]
		if me == nil {
			continue
		}
		z.syncSession(me, sess)
	}
}

func (z *Zone) syncSession(me *character.Character, sess Session) {
	v := sess.View()

	z.syncInventory(me, v, sess)
	z.syncVitals(me, v, sess)
	z.syncCharacters(v, sess)
	z.syncPickups(v, sess)
	z.syncContainers(v, sess)
	z.syncLootSource(me, v, sess)
	z.syncWeapons(me, v, sess)
}

func (z *Zone) syncInventory(me *character.Character, v *replication.View, sess Session) {
	inv := me.Inventory()
	delta := v.SyncList(inv.SyncName(), inv.ListKey(), inv.Tracked())
	if delta.Empty() {
		return
	}
	payload := map[string]any{
		"capacity":        inv.Capacity(),
		"weight_capacity": inv.WeightCapacity(),
		"weight":          inv.CurrentWeight(),
	}
	if delta.MembershipChanged {
		payload["items"] = itemSnapshots(delta.Members)
	} else {
		payload["changed"] = itemSnapshots(delta.Changed)
	}
	sess.Push("inventory_sync", payload)
}

func (z *Zone) syncVitals(me *character.Character, v *replication.View, sess Session) {
	health, stamina, hunger, thirst := me.Vitals()
	changed := map[string]float64{}
	if v.SyncField("vital:health", health.Key()) {
		changed["health"] = health.Get()
	}
	if v.SyncField("vital:stamina", stamina.Key()) {
		changed["stamina"] = stamina.Get()
	}
	if v.SyncField("vital:hunger", hunger.Key()) {
		changed["hunger"] = hunger.Get()
	}
	if v.SyncField("vital:thirst", thirst.Key()) {
		changed["thirst"] = thirst.Get()
	}
	if len(changed) > 0 {
		sess.Push("vitals_sync", changed)
	}
}

func (z *Zone) syncCharacters(v *replication.View, sess Session) {
	var moved []charSnapshot
	roster := v.SyncField("zone:chars", z.charList.Key())
	for _, c := range z.chars {
		field := fmt.Sprintf("char:%d:pos", c.ID())
		if v.SyncField(field, c.Position().Key()) || roster {
			moved = append(moved, charSnapshot{
				ID:   c.ID(),
				Name: c.Name(),
				Pos:  c.Position().Get(),
				Yaw:  c.Yaw(),
				Dead: c.Dead(),
			})
		}
	}
	if roster || len(moved) > 0 {
		payload := map[string]any{"chars": moved}
		if roster {
			payload["full"] = true
		}
		sess.Push("chars_sync", payload)
	}
}

func (z *Zone) syncPickups(v *replication.View, sess Session) {
	tracked := make([]replication.Tracked, 0, len(z.pickups))
	for _, p := range z.pickups {
		tracked = append(tracked, p)
	}
	delta := v.SyncList("zone:pickups", z.pickupList.Key(), tracked)
	if delta.Empty() {
		return
	}
	snapshot := func(ts []replication.Tracked) []pickupSnapshot {
		out := make([]pickupSnapshot, 0, len(ts))
		for _, t := range ts {
			if p, ok := t.(*Pickup); ok {
				out = append(out, pickupSnapshot{
					ID:       p.ID(),
					DefID:    p.Item().Def().ID,
					Quantity: p.Item().Quantity(),
					Pos:      p.Position(),
				})
			}
		}
		return out
	}
	payload := map[string]any{}
	if delta.MembershipChanged {
		payload["pickups"] = snapshot(delta.Members)
		payload["full"] = true
	} else {
		payload["changed"] = snapshot(delta.Changed)
	}
	sess.Push("pickups_sync", payload)
}

func (z *Zone) syncContainers(v *replication.View, sess Session) {
	if !v.SyncField("zone:containers", z.containerList.Key()) {
		return
	}
	out := make([]containerSnapshot, 0, len(z.containers))
	for _, ct := range z.containers {
		out = append(out, containerSnapshot{
			ID:       ct.ID(),
			Name:     ct.Name(),
			Pos:      ct.Position(),
			HoldTime: ct.Interactable().Config().HoldTime,
		})
	}
	sess.Push("containers_sync", map[string]any{"containers": out})
}

// syncLootSource streams the open container's contents to the looter only.
// Other observers never see inside a container.
func (z *Zone) syncLootSource(me *character.Character, v *replication.View, sess Session) {
	src := me.LootSource()
	if src == nil {
		return
	}
	delta := v.SyncList(src.SyncName(), src.ListKey(), src.Tracked())
	if delta.Empty() {
		return
	}
	payload := map[string]any{"inventory": src.SyncName()}
	if delta.MembershipChanged {
		payload["items"] = itemSnapshots(delta.Members)
	} else {
		payload["changed"] = itemSnapshots(delta.Changed)
	}
	sess.Push("loot_sync", payload)
}

// syncWeapons sends magazine state to the weapon's owner only, and the
// burst counter to everyone else. Remote clients replay one shot effect per
// counter increment.
func (z *Zone) syncWeapons(me *character.Character, v *replication.View, sess Session) {
	if ctrl := me.WeaponCtrl(); ctrl != nil {
		field := fmt.Sprintf("weapon:%d:ammo", ctrl.Weapon().SyncID())
		if v.SyncField(field, ctrl.Ammo().Key()) {
			sess.Push("ammo_sync", map[string]any{
				"weapon_id": ctrl.Weapon().SyncID(),
				"in_mag":    ctrl.AmmoInMag(),
				"reserve":   ctrl.AmmoReserve(),
				"state":     ctrl.State().String(),
			})
		}
	}

	for _, other := range z.chars {
		if other.ID() == me.ID() {
			continue
		}
		ctrl := other.WeaponCtrl()
		if ctrl == nil {
			continue
		}
		field := fmt.Sprintf("char:%d:burst", other.ID())
		if v.SyncField(field, ctrl.BurstCounter().Key()) {
			sess.Push("burst_sync", map[string]any{
				"char_id": other.ID(),
				"burst":   ctrl.BurstCounter().Get(),
			})
		}
	}
}
