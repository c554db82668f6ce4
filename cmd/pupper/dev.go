package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/config"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/ui"
)

// reloadPath is the live reload websocket endpoint
const reloadPath = "/__pupper/ws"

type devServer struct {
	p         *project
	wsClients map[*websocket.Conn]bool
	wsMutex   sync.RWMutex
	upgrader  websocket.Upgrader

	// lastError is the failure of the most recent build
	lastError string
	errMutex  sync.RWMutex
}

func newDevCommand(flags *projectFlags) *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Serves the server-rendered entry component, the compiled modules and the
style bundle, rebuilding on change and reloading connected browsers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags, func(cfg *config.Config) {
				// CLI takes precedence
				if port != 0 {
					cfg.Dev.Port = port
				}
				if host != "" {
					cfg.Dev.Host = host
				}
			})
			if err != nil {
				return err
			}
			defer p.Close()
			return runDev(cmd.Context(), p)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the dev server on")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind the dev server to")

	return cmd
}

func newDevServer(p *project) *devServer {
	return &devServer{
		p:         p,
		wsClients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins in dev mode
				return true
			},
		},
	}
}

func runDev(ctx context.Context, p *project) error {
	s := newDevServer(p)

	w, err := newWatcher(p, p.cfg.Dev.Debounce)
	if err != nil {
		return err
	}
	defer w.Close()
	go w.Run(ctx, s.onBuild)

	addr := net.JoinHostPort(p.cfg.Dev.Host, strconv.Itoa(p.cfg.Dev.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Dev server running at http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *devServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.HandleFunc("GET /render/{path...}", s.servePage)
	mux.HandleFunc("GET /styles.css", s.serveStyles)
	mux.Handle("GET /modules/", http.StripPrefix("/modules/", http.FileServer(http.Dir(s.p.cfg.OutDir))))
	mux.HandleFunc(reloadPath, s.handleWebSocket)
	return mux
}

// onBuild reports a finished build to the connected browsers
func (s *devServer) onBuild(e buildEvent) {
	logBuild(e)
	if e.started || e.watchErr != nil {
		return
	}

	var msg string
	switch {
	case e.err != nil:
		msg = e.err.Error()
	case len(e.report.Failed()) > 0:
		var parts []string
		for _, f := range e.report.Failed() {
			parts = append(parts, f.Err.Error())
		}
		msg = strings.Join(parts, "\n\n")
	}

	s.errMutex.Lock()
	s.lastError = msg
	s.errMutex.Unlock()

	if msg != "" {
		s.notifyClients("error", map[string]interface{}{"message": msg})
		return
	}
	s.notifyClients("reload", nil)
}

func (s *devServer) servePage(w http.ResponseWriter, r *http.Request) {
	file := s.p.cfg.EntryPath()
	if rel := r.PathValue("path"); rel != "" {
		clean := filepath.Clean(filepath.FromSlash(rel))
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			http.Error(w, "invalid component path", http.StatusBadRequest)
			return
		}
		file = filepath.Join(s.p.cfg.SrcDir, clean)
	}

	var body string
	s.errMutex.RLock()
	buildErr := s.lastError
	s.errMutex.RUnlock()

	status := http.StatusOK
	markup, err := s.p.builder.Render(file, nil)
	switch {
	case err != nil:
		status = http.StatusInternalServerError
		body = errorOverlay(ui.PlainError(err))
	case buildErr != "":
		body = markup + errorOverlay(buildErr)
	default:
		body = markup
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, page(filepath.Base(file), body))
}

func (s *devServer) serveStyles(w http.ResponseWriter, r *http.Request) {
	if s.p.cfg.Compile.Styles == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(s.p.cfg.OutDir, s.p.cfg.Compile.Styles))
}

func (s *devServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		switch msg["type"] {
		case "HELLO":
			s.wsMutex.Lock()
			conn.WriteJSON(map[string]interface{}{"type": "ACK"})
			s.wsMutex.Unlock()
		default:
			log.Printf("Unknown WebSocket message type: %v", msg["type"])
		}
	}
}

// notifyClients sends a message to every browser. Writes hold the write
// lock since a connection allows one writer at a time.
func (s *devServer) notifyClients(msgType string, data map[string]interface{}) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	message := map[string]interface{}{
		"type": strings.ToUpper(msgType),
	}
	for k, v := range data {
		message[k] = v
	}

	for client := range s.wsClients {
		if err := client.WriteJSON(message); err != nil {
			log.Printf("Failed to send message to client: %v", err)
		}
	}
}

func errorOverlay(msg string) string {
	return `<pre id="pupper-error" style="position:fixed;inset:auto 0 0 0;margin:0;padding:1em;background:#1f1f1f;color:#ef4444;white-space:pre-wrap">` +
		html.EscapeString(msg) + `</pre>`
}

func page(title, body string) string {
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>` + html.EscapeString(title) + `</title>
<link rel="stylesheet" href="/styles.css">
</head>
<body>
` + body + `
<script>
(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + reloadPath + `");
  ws.onopen = function () { ws.send(JSON.stringify({ type: "HELLO" })); };
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "RELOAD" || msg.type === "ERROR") location.reload();
  };
})();
</script>
</body>
</html>
`
}
