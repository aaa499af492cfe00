// Package internal serves the operator-facing debug endpoints.
package internal

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/repositories"
	"context"
	"embed"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

//go:embed inspect.html
var templatesFS embed.FS

const scanLimit = 500

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type StatsProvider func() map[string]any

// Scanner reads raw entries of the store by key prefix.
type Scanner interface {
	Scan(ctx context.Context, prefix string, limit int) ([]repositories.KV, error)
}

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// DebugServer serves the HTML key inspector, the JSON stats and the room history.
// It runs as a supervised worker.
type DebugServer struct {
	log     *slog.Logger
	addr    string
	scanner Scanner
	history contract.History
	stats   StatsProvider
	tmpl    *template.Template
}

func NewDebugServer(log *slog.Logger, addr string, scanner Scanner, history contract.History,
	stats StatsProvider) *DebugServer {
	return &DebugServer{
		log:     log,
		addr:    addr,
		scanner: scanner,
		history: history,
		stats:   stats,
		tmpl:    template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
}

func (d *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", d.inspect)
	mux.HandleFunc("/stats", d.serveStats)
	mux.HandleFunc("/messages", d.messages)
	return mux
}

func (d *DebugServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              d.addr,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		d.log.Info("Starting debug server", "address", d.addr)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (d *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "msg:"
	}
	entries, err := d.scanner.Scan(r.Context(), prefix, scanLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := PageData{
		Prefix: prefix,
		Items: lo.Map(entries, func(kv repositories.KV, _ int) InspectRow {
			return DefaultMapper(kv.Key, kv.Value)
		}),
		Stats: d.stats(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = d.tmpl.Execute(w, data)
}

func (d *DebugServer) serveStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, d.stats())
}

func (d *DebugServer) messages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := d.history.GetMessages(r.Context(), domain.RoomID(room), cursor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"messages": messages, "cursor": next})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// DefaultMapper describes a raw key. Message keys are "msg:{room}:{nanos}:{id}".
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch {
	case len(parts) >= 4 && parts[0] == "msg":
		row.Namespace = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = shorten(parts[3])
	case len(parts) == 3:
		row.Namespace = shorten(parts[1])
		row.EntityID = shorten(parts[2])
	case len(parts) == 2:
		row.EntityID = shorten(parts[1])
	}
	return row
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
