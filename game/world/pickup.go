package world

import (
	"sync/atomic"
	"time"

	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/interact"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
)

var nextEntityID atomic.Int64

// Pickup is a dropped or spawned item stack lying in the world. Taking it
// is an instant interaction; a partial take (inventory nearly full) leaves
// the remainder on the ground.
type Pickup struct {
	id      int64
	pos     geo.Vec3
	it      *item.Item
	inter   *interact.Interactable
	expires time.Time

	// onTaken fires after the stack is emptied so the zone can despawn
	// and the owning spawner can schedule a respawn.
	onTaken []func(p *Pickup)
}

func NewPickup(def *item.Def, quantity int, pos geo.Vec3, lifetime time.Duration) *Pickup {
	p := &Pickup{
		id:  nextEntityID.Add(1),
		pos: pos,
		it:  item.New(def, quantity),
		inter: interact.New(interact.Config{
			HoldTime:   0,
			Distance:   2.5,
			Name:       def.Name,
			ActionText: "Take",
		}),
	}
	if lifetime > 0 {
		p.expires = time.Now().Add(lifetime)
	}
	return p
}

// SyncID and SyncKey make pickups trackable in an observer's view; the
// revision follows the stack quantity.
func (p *Pickup) SyncID() int64               { return p.id }
func (p *Pickup) SyncKey() replication.Key    { return p.it.SyncKey() }

func (p *Pickup) ID() int64                          { return p.id }
func (p *Pickup) Position() geo.Vec3                 { return p.pos }
func (p *Pickup) Item() *item.Item                   { return p.it }
func (p *Pickup) Interactable() *interact.Interactable { return p.inter }

// Expired reports whether the pickup's ground lifetime has lapsed.
func (p *Pickup) Expired(now time.Time) bool {
	return !p.expires.IsZero() && now.After(p.expires)
}

// OnTaken registers an emptied callback.
func (p *Pickup) OnTaken(fn func(*Pickup)) { p.onTaken = append(p.onTaken, fn) }

// Take moves as much of the stack as fits into the character's inventory.
// Returns how many units transferred.
func (p *Pickup) Take(c *character.Character) int {
	if p.it.Quantity() <= 0 {
		return 0
	}
	res := c.Inventory().TryAddItem(p.it)
	if res.Given <= 0 {
		return 0
	}
	p.it.SetQuantity(p.it.Quantity() - res.Given)
	if p.it.Quantity() == 0 {
		p.inter.Deactivate()
		for _, fn := range p.onTaken {
			fn(p)
		}
	}
	return res.Given
}
