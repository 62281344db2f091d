package character

import (
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
)

const (
	MaxHealth  = 100.0
	MaxStamina = 100.0
	MaxHunger  = 100.0
	MaxThirst  = 100.0
)

func (c *Character) Health() float64  { return c.health.Get() }
func (c *Character) Stamina() float64 { return c.stamina.Get() }
func (c *Character) Hunger() float64  { return c.hunger.Get() }
func (c *Character) Thirst() float64  { return c.thirst.Get() }

func (c *Character) Dead() bool { return c.dead }

func clampVital(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// ModifyHealth applies a delta clamped to [0, MaxHealth]. Reaching zero
// kills the character; the instigator is whoever dealt the final blow.
func (c *Character) ModifyHealth(delta float64, instigator int64) {
	if c.dead {
		return
	}
	next := clampVital(c.health.Get()+delta, MaxHealth)
	if next == c.health.Get() {
		return
	}
	c.health.Set(next)
	if next == 0 {
		c.die(instigator)
	}
}

func (c *Character) ModifyStamina(delta float64) {
	c.stamina.Set(clampVital(c.stamina.Get()+delta, MaxStamina))
}

func (c *Character) ModifyHunger(delta float64) {
	c.hunger.Set(clampVital(c.hunger.Get()+delta, MaxHunger))
}

func (c *Character) ModifyThirst(delta float64) {
	c.thirst.Set(clampVital(c.thirst.Get()+delta, MaxThirst))
}

// RestoreVitals satisfies item.User; consuming food comes through here.
func (c *Character) RestoreVitals(f item.FoodSpec) {
	c.ModifyHealth(f.Health, 0)
	c.ModifyStamina(f.Stamina)
	c.ModifyHunger(f.Hunger)
	c.ModifyThirst(f.Thirst)
}

// TakeDamage satisfies weapon.Damageable. Equipped gear absorbs its share
// before the health change lands.
func (c *Character) TakeDamage(amount float64, instigator int64) {
	if amount <= 0 || c.dead {
		return
	}
	amount *= 1 - c.equipment.DamageReduction()
	c.ModifyHealth(-amount, instigator)
}

// DrainVitals is the survival tick: hunger and thirst decay, and an empty
// stomach or throat chips health away.
func (c *Character) DrainVitals(hungerDrain, thirstDrain, starveDamage float64) {
	if c.dead {
		return
	}
	c.ModifyHunger(-hungerDrain)
	c.ModifyThirst(-thirstDrain)
	if c.hunger.Get() == 0 || c.thirst.Get() == 0 {
		c.ModifyHealth(-starveDamage, 0)
	}
}

// RestoreVitalState applies persisted vitals on load, bypassing death
// handling.
func (c *Character) RestoreVitalState(health, stamina, hunger, thirst float64) {
	c.health.Set(clampVital(health, MaxHealth))
	c.stamina.Set(clampVital(stamina, MaxStamina))
	c.hunger.Set(clampVital(hunger, MaxHunger))
	c.thirst.Set(clampVital(thirst, MaxThirst))
	c.dead = c.health.Get() == 0
}

// Respawn resets the character to full vitals. The zone handles placement
// and inventory policy.
func (c *Character) Respawn() {
	c.dead = false
	c.health.Set(MaxHealth)
	c.stamina.Set(MaxStamina)
	c.hunger.Set(MaxHunger)
	c.thirst.Set(MaxThirst)
}

func (c *Character) die(instigator int64) {
	c.dead = true
	c.holdTimer.Cancel()
	if c.focused != nil {
		c.focused.StopFocus(c)
		c.focused = nil
	}
	if c.weapon != nil {
		c.weapon.StopFire()
	}
	c.lootSource = nil
	for _, fn := range c.onDeath {
		fn(c, instigator)
	}
}

// Vitals exposes the replicated vitals for the session sync pass.
func (c *Character) Vitals() (health, stamina, hunger, thirst *replication.Value[float64]) {
	return c.health, c.stamina, c.hunger, c.thirst
}
