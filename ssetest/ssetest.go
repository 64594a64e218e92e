// Package ssetest provides a scripted Server-Sent-Events server for
// exercising stream decoding against controlled chunk boundaries and
// timing.
package ssetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"
)

// Chunk is one write to the response body, flushed immediately. Data
// is raw wire bytes; a chunk may carry several frames or cut a frame
// (even a multi-byte rune) anywhere.
type Chunk struct {
	Delay time.Duration
	Data  string
}

// Config configures the scripted server.
type Config struct {
	Status     int
	Headers    map[string]string
	FinalDelay time.Duration
}

// NewServer returns an httptest server that plays back the chunks in
// order with their delays.
func NewServer(chunks []Chunk, cfg Config) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := cfg.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for k, v := range cfg.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			if chunk.Delay > 0 {
				time.Sleep(chunk.Delay)
			}
			_, _ = w.Write([]byte(chunk.Data))
			if flusher != nil {
				flusher.Flush()
			}
		}
		if cfg.FinalDelay > 0 {
			time.Sleep(cfg.FinalDelay)
		}
	}))
}

// Script turns whole frames into one chunk each, no delays.
func Script(frames ...string) []Chunk {
	chunks := make([]Chunk, 0, len(frames))
	for _, frame := range frames {
		chunks = append(chunks, Chunk{Data: frame})
	}
	return chunks
}

// SplitEvery re-chunks wire text into pieces of at most n bytes,
// ignoring frame and rune boundaries.
func SplitEvery(wire string, n int) []Chunk {
	if n <= 0 {
		return []Chunk{{Data: wire}}
	}
	var chunks []Chunk
	for len(wire) > n {
		chunks = append(chunks, Chunk{Data: wire[:n]})
		wire = wire[n:]
	}
	if len(wire) > 0 {
		chunks = append(chunks, Chunk{Data: wire})
	}
	return chunks
}

// DeltaFrame renders a delta frame carrying the text fragment.
func DeltaFrame(text string) string {
	payload, _ := json.Marshal(map[string]string{"delta": text})
	return "event: delta\ndata: " + string(payload) + "\n\n"
}

// DoneFrame renders the terminal completion frame.
func DoneFrame() string {
	return "event: done\ndata: {}\n\n"
}

// ErrorFrame renders a server-reported failure frame.
func ErrorFrame(message string) string {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return "event: error\ndata: " + string(payload) + "\n\n"
}

// Frame renders an arbitrary named event with a raw data payload.
func Frame(name, data string) string {
	return "event: " + name + "\ndata: " + data + "\n\n"
}

// Comment renders an SSE comment line, which decoders skip.
func Comment(text string) string {
	return ": " + text + "\n"
}
