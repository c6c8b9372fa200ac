package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waveforge/waveforge/internal/config"
	"github.com/waveforge/waveforge/internal/device"
	"github.com/waveforge/waveforge/internal/engine"
	"github.com/waveforge/waveforge/internal/kernel"
	"github.com/waveforge/waveforge/internal/presets"
	"github.com/waveforge/waveforge/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("waveforge starting up...")

	source, err := initialProgram(cfg)
	if err != nil {
		log.Fatalf("program: %v", err)
	}

	eval, err := kernel.NewLuaEvaluator(cfg.MaxWidth)
	if err != nil {
		log.Fatalf("kernel: %v", err)
	}

	// Broadcaster: fan out played frames to all listeners
	broadcaster := stream.NewBroadcaster()

	out, err := openDevice(ctx, cfg, broadcaster)
	if err != nil {
		log.Fatalf("audio device: %v", err)
	}

	eng := engine.New(eval, out, engine.Config{
		SampleRate:   cfg.SampleRate,
		Lookahead:    cfg.Lookahead,
		SafetyMargin: cfg.SafetyMargin,
		HardCap:      cfg.HardCap,
		TickInterval: cfg.TickInterval,
		SwapTimeout:  cfg.SwapTimeout,
	})
	defer eng.Close()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err = eng.Initialize(initCtx, source)
	initCancel()
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}
	log.Printf("kernel ready (max evaluation width: %d)", eng.MaxWidth())

	go eng.Run(ctx)
	eng.Start()

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	mux := http.NewServeMux()

	// Audio streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster))
	mux.Handle("/offer", webrtcHandler)

	// API endpoints
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		st := eng.Status()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"running":          st.Running,
			"current_time":     st.CurrentTime,
			"scheduled_until":  st.ScheduledUntil,
			"buffered_time":    st.BufferedTime,
			"active_units":     st.ActiveUnits,
			"max_width":        st.MaxWidth,
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"config": map[string]any{
				"sample_rate":   cfg.SampleRate,
				"lookahead":     cfg.Lookahead,
				"safety_margin": cfg.SafetyMargin,
				"hard_cap":      cfg.HardCap,
			},
		})
	})

	mux.HandleFunc("/api/program", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		src, err := readProgram(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		setProgram(w, r, eng, src)
	})

	mux.HandleFunc("/api/presets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(presets.All())
	})

	mux.HandleFunc("/api/preset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "invalid preset request", http.StatusBadRequest)
			return
		}
		p, ok := presets.Get(req.Name)
		if !ok {
			http.Error(w, "unknown preset", http.StatusBadRequest)
			return
		}
		setProgram(w, r, eng, p.Source)
	})

	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		eng.Start()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": eng.Status().Running})
	})

	mux.HandleFunc("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		eng.Stop()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("waveforge live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// initialProgram picks the startup program: an explicit file wins over the
// configured preset.
func initialProgram(cfg config.Config) (string, error) {
	if cfg.ProgramPath != "" {
		data, err := os.ReadFile(cfg.ProgramPath)
		if err != nil {
			return "", err
		}
		log.Printf("loaded program from %s", cfg.ProgramPath)
		return string(data), nil
	}
	p, ok := presets.Get(cfg.Preset)
	if !ok {
		return "", fmt.Errorf("unknown preset %q", cfg.Preset)
	}
	log.Printf("using preset %q", p.Name)
	return p.Source, nil
}

// openDevice opens the sound card, or a self-advancing fake when running
// headless so network listeners still receive real-time audio.
func openDevice(ctx context.Context, cfg config.Config, b *stream.Broadcaster) (device.Output, error) {
	if cfg.Headless {
		fake := device.NewFake()
		fake.SetTap(b.Push)
		go func() {
			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fake.Advance(0.02)
				}
			}
		}()
		log.Println("running headless (no sound card)")
		return fake, nil
	}

	out, err := device.NewOto(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	out.SetTap(b.Push)
	return out, nil
}

func readProgram(r *http.Request) (string, error) {
	if r.Header.Get("Content-Type") == "application/json" {
		var req struct {
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
			return "", errors.New("invalid program request")
		}
		return req.Source, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		return "", errors.New("empty program body")
	}
	return string(body), nil
}

// setProgram applies a hot swap and maps the error taxonomy onto HTTP
// status codes: compile failures are the client's problem, timeouts are
// ours.
func setProgram(w http.ResponseWriter, r *http.Request, eng *engine.Engine, src string) {
	err := eng.SetProgram(r.Context(), src)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case err == nil:
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": eng.Status().Running})
	default:
		var ce *kernel.CompileError
		status := http.StatusInternalServerError
		if errors.As(err, &ce) {
			status = http.StatusUnprocessableEntity
		} else if errors.Is(err, engine.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
		log.Printf("program swap rejected: %v", err)
	}
}
