package ecs

import (
	"strconv"
	"strings"

	"github.com/younwookim/surftimer/internal/domain/geom"
)

// Transform is an entity's world placement
type Transform struct {
	Origin geom.Vector
	Angles geom.QAngle
}

// Collision is an entity's bounds relative to its origin
type Collision struct {
	Bounds geom.BBox
}

// AbsBox returns the collision bounds in world space
func (c Collision) AbsBox(origin geom.Vector) geom.BBox {
	return c.Bounds.Abs(origin)
}

// Class holds the naming data every map entity carries
type Class struct {
	Classname  string
	Targetname string
}

// Keyvalues is the raw string keyvalue block an entity was spawned with.
// Keys are case-insensitive.
type Keyvalues map[string]string

// NewKeyvalues copies kv, lowercasing keys
func NewKeyvalues(kv map[string]string) Keyvalues {
	out := make(Keyvalues, len(kv))
	for k, v := range kv {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Has reports whether the key is present
func (kv Keyvalues) Has(key string) bool {
	_, ok := kv[strings.ToLower(key)]
	return ok
}

// String returns the value for key or fallback
func (kv Keyvalues) String(key, fallback string) string {
	if v, ok := kv[strings.ToLower(key)]; ok {
		return v
	}
	return fallback
}

// Int returns the value for key parsed as an int, or fallback
func (kv Keyvalues) Int(key string, fallback int) int {
	v, ok := kv[strings.ToLower(key)]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			return fallback
		}
		return int(f)
	}
	return n
}

// Float returns the value for key parsed as a float, or fallback
func (kv Keyvalues) Float(key string, fallback float64) float64 {
	v, ok := kv[strings.ToLower(key)]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Bool returns the value for key as a bool ("1", "true", "yes"), or fallback
func (kv Keyvalues) Bool(key string, fallback bool) bool {
	v, ok := kv[strings.ToLower(key)]
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no", "":
		return false
	}
	return fallback
}

// Vector parses a space separated "x y z" triple, or returns fallback
func (kv Keyvalues) Vector(key string, fallback geom.Vector) geom.Vector {
	v, ok := kv[strings.ToLower(key)]
	if !ok {
		return fallback
	}
	parts := strings.Fields(v)
	if len(parts) != 3 {
		return fallback
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fallback
		}
		out[i] = f
	}
	return geom.Vec(out[0], out[1], out[2])
}
