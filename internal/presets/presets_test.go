package presets

import (
	"testing"

	"github.com/waveforge/waveforge/internal/kernel"
)

func TestDefaultExists(t *testing.T) {
	if _, ok := Get(Default); !ok {
		t.Fatalf("default preset %q missing", Default)
	}
}

func TestGetUnknown(t *testing.T) {
	if _, ok := Get("no-such-preset"); ok {
		t.Error("Get returned a preset for an unknown name")
	}
}

func TestAllSortedAndComplete(t *testing.T) {
	all := All()
	if len(all) != len(registry) {
		t.Fatalf("All returned %d presets, registry has %d", len(all), len(registry))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Errorf("presets not sorted: %q before %q", all[i-1].Name, all[i].Name)
		}
	}
}

// Every shipped preset must compile and produce finite samples.
func TestPresetsCompileAndRender(t *testing.T) {
	for _, p := range All() {
		e, err := kernel.NewLuaEvaluator(0)
		if err != nil {
			t.Fatalf("evaluator: %v", err)
		}
		if err := e.Compile(p.Source); err != nil {
			t.Errorf("%s: compile: %v", p.Name, err)
			e.Close()
			continue
		}
		out, err := e.Evaluate(256, 48000, 0)
		if err != nil {
			t.Errorf("%s: evaluate: %v", p.Name, err)
		}
		for i, s := range out {
			if s > 1 || s < -1 {
				t.Errorf("%s: sample %d out of range: %v", p.Name, i, s)
				break
			}
		}
		e.Close()
	}
}
