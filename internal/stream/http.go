package stream

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/exec"

	"github.com/waveforge/waveforge/internal/audio"
)

// HTTPHandler serves the live output as a chunked MP3 stream. Each
// connection gets its own listener and its own FFmpeg process encoding PCM
// to MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
}

// NewHTTPHandler creates an HTTP stream handler fed by b.
func NewHTTPHandler(b *Broadcaster) *HTTPHandler {
	return &HTTPHandler{broadcaster: b}
}

// mp3Encoder starts an FFmpeg process that reads raw PCM on stdin and
// writes MP3 on stdout.
func mp3Encoder(ctx context.Context) (cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, err error) {
	cmd = exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	if stdin, err = cmd.StdinPipe(); err != nil {
		return nil, nil, nil, err
	}
	if stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, nil, nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdin, stdout, nil
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "waveforge live")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd, stdin, stdout, err := mp3Encoder(ctx)
	if err != nil {
		log.Printf("HTTP stream: encoder start: %v", err)
		return
	}
	defer cmd.Wait()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	log.Printf("HTTP listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer log.Printf("HTTP listener disconnected")

	// Feed PCM frames into the encoder.
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.done:
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	// Relay MP3 to the response as it comes out.
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("HTTP stream: encoder read: %v", err)
			}
			return
		}
	}
}
