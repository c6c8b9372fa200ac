// Package presets ships a small library of built-in sound programs so the
// engine is playable out of the box and the control API has something to
// list.
package presets

import "sort"

// Preset is one named built-in sound program.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"-"`
}

var registry = map[string]Preset{
	"sine": {
		Name:        "sine",
		Description: "440Hz sine, both channels",
		Source: `
function sound(t)
	local v = 0.4 * math.sin(2 * math.pi * 440 * t)
	return v, v
end
`,
	},
	"detune": {
		Name:        "detune",
		Description: "two slightly detuned sines, one per channel",
		Source: `
function sound(t)
	local l = 0.35 * math.sin(2 * math.pi * 220 * t)
	local r = 0.35 * math.sin(2 * math.pi * 221.5 * t)
	return l, r
end
`,
	},
	"fmbell": {
		Name:        "fmbell",
		Description: "FM bell retriggered every two seconds",
		Source: `
function sound(t)
	local p = t % 2
	local env = math.exp(-3 * p)
	local mod = math.sin(2 * math.pi * 392 * p) * 4 * env
	local v = 0.5 * env * math.sin(2 * math.pi * 196 * p + mod)
	return v, v
end
`,
	},
	"pulse": {
		Name:        "pulse",
		Description: "slow pulse wave with a drifting duty cycle",
		Source: `
function sound(t)
	local duty = 0.5 + 0.4 * math.sin(2 * math.pi * 0.1 * t)
	local phase = (t * 110) % 1
	local v = phase < duty and 0.25 or -0.25
	return v, v
end
`,
	},
	"chord": {
		Name:        "chord",
		Description: "A minor chord, slightly wider on the right",
		Source: `
function sound(t)
	local a = math.sin(2 * math.pi * 220 * t)
	local c = math.sin(2 * math.pi * 261.63 * t)
	local e = math.sin(2 * math.pi * 329.63 * t)
	local l = 0.15 * (a + c + e)
	local r = 0.15 * (a + c + 1.2 * e)
	return l, r
end
`,
	},
}

// Get looks up a preset by name.
func Get(name string) (Preset, bool) {
	p, ok := registry[name]
	return p, ok
}

// All returns every preset sorted by name.
func All() []Preset {
	out := make([]Preset, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Default is the preset loaded when no program is supplied.
const Default = "sine"
