package world

import (
	"time"

	"github.com/mireska/ashfall/server/game/action"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/item"
)

// lootRange is how far a character may drift from an open container before
// a loot request is refused.
const lootRange = 4.0

type moveReq struct {
	Pos geo.Vec3 `json:"pos"`
	Yaw float64  `json:"yaw"`
}

type itemReq struct {
	ItemID int64 `json:"item_id"`
}

type dropReq struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type equipReq struct {
	ItemID int64 `json:"item_id"`
	Equip  bool  `json:"equip"`
}

type fireReq struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// registerEndpoints wires every gameplay verb into the zone's router. Each
// Apply runs on the zone goroutine against the authoritative entities.
func (z *Zone) registerEndpoints() {
	// actor resolves the requesting character; a vanished character makes
	// the request structurally invalid.
	actor := func(ctx *action.Ctx) (*character.Character, error) {
		c := z.chars[ctx.ActorID]
		if c == nil {
			return nil, action.Invalid("character %d not in zone", ctx.ActorID)
		}
		return c, nil
	}

	z.router.Register(&action.Endpoint{
		Verb: "move",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			if c.Dead() {
				return action.Reject("you are dead")
			}
			var req moveReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			c.SetTransform(req.Pos, req.Yaw)
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "begin_interact",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			return c.BeginInteract()
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "end_interact",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			c.EndInteract()
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "loot_item",
		Validate: func(ctx *action.Ctx) error {
			var req itemReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			if req.ItemID == 0 {
				return action.Invalid("missing item id")
			}
			return nil
		},
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			var req itemReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			if src := c.LootSource(); src != nil {
				if ct := z.containerFor(src); ct != nil &&
					distance2D(c.Position().Get(), ct.Position()) > lootRange {
					c.SetLootSource(nil)
					return action.Reject("too far from the container")
				}
			}
			given, err := c.LootItem(req.ItemID)
			if err != nil {
				return err
			}
			ctx.Notice("looted", map[string]any{"item_id": req.ItemID, "quantity": given})
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "close_loot",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			c.SetLootSource(nil)
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "use_item",
		Validate: requireItemID,
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			var req itemReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			return c.UseItem(req.ItemID)
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "drop_item",
		Validate: func(ctx *action.Ctx) error {
			var req dropReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			if req.ItemID == 0 || req.Quantity <= 0 {
				return action.Invalid("bad drop request")
			}
			return nil
		},
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			var req dropReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			def, consumed, err := c.DropItem(req.ItemID, req.Quantity)
			if err != nil {
				return err
			}
			lifetime := time.Duration(z.cfg.PickupLifetimeS) * time.Second
			z.SpawnPickup(def, consumed, c.Position().Get(), lifetime)
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "equip_item",
		Validate: requireItemID,
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			var req equipReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			it := c.Inventory().FindItemByID(req.ItemID)
			if it == nil {
				return action.Invalid("item %d not in inventory", req.ItemID)
			}
			if !c.SetEquipped(it, req.Equip) {
				return action.Reject("cannot equip that")
			}
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "start_fire",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			var req fireReq
			if err := ctx.Bind(&req); err != nil {
				return err
			}
			c.SetTransform(c.Position().Get(), req.Yaw)
			z.aimPitch[c.ID()] = req.Pitch
			return c.StartFire()
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "stop_fire",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			c.StopFire()
			return nil
		},
	})

	z.router.Register(&action.Endpoint{
		Verb: "reload",
		Apply: func(ctx *action.Ctx) error {
			c, err := actor(ctx)
			if err != nil {
				return err
			}
			return c.Reload()
		},
	})
}

func requireItemID(ctx *action.Ctx) error {
	var req itemReq
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if req.ItemID == 0 {
		return action.Invalid("missing item id")
	}
	return nil
}

// containerFor maps an open loot inventory back to its container, nil for
// unplaced sources.
func (z *Zone) containerFor(src *item.Inventory) *LootContainer {
	for _, ct := range z.containers {
		if ct.inv == src {
			return ct
		}
	}
	return nil
}
