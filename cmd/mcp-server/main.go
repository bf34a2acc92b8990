// Command mcp-server is a standalone HTTP tool server for gograd.
//
// Exposes gograd tools as an HTTP endpoint for agent frameworks.
//
// Usage:
//   go run ./cmd/mcp-server -port 8080 -log-level debug
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ugorji/go/codec"

	"github.com/njchilds90/gograd"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var jsonHandle = &codec.JsonHandle{}

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	level := flag.String("log-level", "info", "Log level: debug, info, warn, error, crit")
	flag.Parse()

	lvl, err := log15.LvlFromString(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %s\n", *level, err)
		os.Exit(1)
	}
	handler := log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat()))
	log := log15.New("svc", "mcp-server")
	log.SetHandler(handler)
	gograd.SetLogHandler(handler)

	addr := fmt.Sprintf(":%d", *port)
	log.Info("listening", "addr", addr)
	log.Info("  POST /tool    execute a tool call")
	log.Info("  GET  /schema  tool schema for agent registration")
	log.Info("  GET  /health  health check")

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Crit("server stopped", "err", err)
		os.Exit(1)
	}
}

func newMux(log log15.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// POST /tool: handle a tool call
	mux.HandleFunc("/tool", func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in /tool", "panic", rec, "stack", string(debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		defer r.Body.Close()

		var req gograd.ToolRequest
		if err := codec.NewDecoder(r.Body, jsonHandle).Decode(&req); err != nil {
			log.Warn("bad request", "err", err)
			writeJSON(w, http.StatusBadRequest, gograd.ToolResponse{Error: "invalid JSON: " + err.Error()})
			return
		}

		start := time.Now()
		resp := gograd.HandleToolCall(req)
		log.Info("tool call", "tool", req.Tool, "ok", resp.Error == "", "took", time.Since(start))
		writeJSON(w, http.StatusOK, resp)
	})

	// GET /schema: tool schema for agent registration
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tools": gograd.ToolSpec()})
	})

	// GET /health: liveness check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w, jsonHandle).Encode(v)
}
