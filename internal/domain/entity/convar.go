package entity

// Movement convar names the modifier pipeline overrides per player
const (
	CvarAirAccelerate     = "sv_airaccelerate"
	CvarStandableNormal   = "sv_standable_normal"
	CvarWalkableNormal    = "sv_walkable_normal"
	CvarJumpSpamPenalty   = "sv_jump_spam_penalty_time"
	CvarAutoBunnyhopping  = "sv_autobunnyhopping"
	CvarJumpImpulse       = "sv_jump_impulse"
	CvarStaminaJumpCost   = "sv_staminajumpcost"
	CvarGravity           = "sv_gravity"
	CvarFriction          = "sv_friction"
	CvarAccelerate        = "sv_accelerate"
	CvarMaxSpeed          = "sv_maxspeed"
	CvarAirMaxWishSpeed   = "sv_air_max_wishspeed"
	CvarStaminaMax        = "sv_staminamax"
	CvarStaminaLandCost   = "sv_staminalandcost"
	CvarStaminaRecoveryRt = "sv_staminarecoveryrate"
	CvarMaxVelocity       = "sv_maxvelocity"
	CvarTimeBetweenDucks  = "sv_timebetweenducks"
)

// ConVars is one player's view of the movement convars. Values set here
// override the mode/style baseline; replicated sets would be sent to the
// client.
type ConVars struct {
	values     map[string]float64
	replicated map[string]int

	// OnReplicate is called for every replicated set, if non-nil
	OnReplicate func(name string, value float64)
}

// NewConVars creates an empty convar table
func NewConVars() *ConVars {
	return &ConVars{
		values:     make(map[string]float64),
		replicated: make(map[string]int),
	}
}

// Set stores a value, optionally replicating it
func (c *ConVars) Set(name string, value float64, replicate bool) {
	c.values[name] = value
	if !replicate {
		return
	}
	c.replicated[name]++
	if c.OnReplicate != nil {
		c.OnReplicate(name, value)
	}
}

// SetBool stores a boolean as 0/1
func (c *ConVars) SetBool(name string, value bool, replicate bool) {
	v := 0.0
	if value {
		v = 1
	}
	c.Set(name, v, replicate)
}

// Get returns the stored value and whether it was set
func (c *ConVars) Get(name string) (float64, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Float returns the stored value or fallback
func (c *ConVars) Float(name string, fallback float64) float64 {
	if v, ok := c.values[name]; ok {
		return v
	}
	return fallback
}

// ReplicateCount returns how many times name was replicated
func (c *ConVars) ReplicateCount(name string) int {
	return c.replicated[name]
}

// Reset clears all overrides
func (c *ConVars) Reset() {
	c.values = make(map[string]float64)
	c.replicated = make(map[string]int)
}
