// Package server orchestrates all components: NATS client, DB, Core Service, dispatcher, HTTP health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/morezero/woodchuck/internal/config"
	"github.com/morezero/woodchuck/pkg/commsutil"
	"github.com/morezero/woodchuck/pkg/db"
	"github.com/morezero/woodchuck/pkg/dispatcher"
	"github.com/morezero/woodchuck/pkg/events"
	"github.com/morezero/woodchuck/pkg/metrics"
	"github.com/morezero/woodchuck/pkg/woodchuck"
)

const logPrefix = "server:server"

const shutdownTimeout = 10 * time.Second

// coreForServer is what the HTTP pages need from the Core Service.
type coreForServer interface {
	Health(ctx context.Context) (*woodchuck.HealthOutput, error)
	ListManagers(ctx context.Context, parentID string, recurse bool) (woodchuck.TupleList, error)
}

// Server is the woodchuckd orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	core       coreForServer
	disp       *dispatcher.Dispatcher
	info       *dispatcher.ServiceInfo
	subs       []*comms.Subscription
	httpServer *http.Server
}

// NewServerParams holds parameters for NewServer.
type NewServerParams struct {
	Config     *config.Config
	Conn       *comms.Conn
	Core       coreForServer
	Dispatcher *dispatcher.Dispatcher
}

// NewServer creates a new Server. Nothing is subscribed until Subscribe.
func NewServer(params NewServerParams) *Server {
	cfg := params.Config
	return &Server{
		cfg:  cfg,
		nc:   params.Conn,
		core: params.Core,
		disp: params.Dispatcher,
		info: params.Dispatcher.Introspect(cfg.COMMSName, cfg.CallSubject),
	}
}

// Run starts the daemon, blocks until a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting woodchuckd", logPrefix))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 1: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	defer nc.Drain()
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Connect to database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	defer pool.Close()

	// Step 2b: Run migrations if enabled
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if _, err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	// Step 3: Core Service with upcalls over NATS
	publisher := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.UpcallPrefix})
	svc := woodchuck.NewService(woodchuck.NewServiceParams{
		Repo:      db.NewRepository(pool),
		Publisher: publisher,
	})

	// Step 4: Dispatcher and subscriptions
	s := NewServer(NewServerParams{
		Config:     cfg,
		Conn:       nc,
		Core:       svc,
		Dispatcher: dispatcher.NewDispatcher(svc),
	})
	if err := s.Subscribe(ctx); err != nil {
		return err
	}
	defer s.Unsubscribe()

	slog.Info(fmt.Sprintf("%s - woodchuckd is ready", logPrefix))

	// Step 5: HTTP until signalled
	if err := s.Serve(ctx, fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// Subscribe starts answering method calls and introspection requests.
// ctx is the parent of every per-call context.
func (s *Server) Subscribe(ctx context.Context) error {
	callSub, err := s.nc.Subscribe(s.cfg.CallSubject, s.handleCall(ctx))
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.cfg.CallSubject, err)
	}
	s.subs = append(s.subs, callSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.cfg.CallSubject))

	introspectSub, err := s.nc.Subscribe(s.cfg.IntrospectSubject, s.handleIntrospect())
	if err != nil {
		s.Unsubscribe()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.cfg.IntrospectSubject, err)
	}
	s.subs = append(s.subs, introspectSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.cfg.IntrospectSubject))
	return nil
}

// Unsubscribe stops all bus subscriptions.
func (s *Server) Unsubscribe() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", logPrefix, sub.Subject, err))
		}
	}
	s.subs = nil
}

func (s *Server) handleCall(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var call dispatcher.MethodCall
		if err := commsutil.DecodePayload(msg.Data, &call); err != nil {
			if diag, derr := commsutil.Diagnose(msg.Data); derr == nil {
				slog.Error(fmt.Sprintf("%s - failed to decode call: %v (payload %s)", logPrefix, err, diag))
			} else {
				slog.Error(fmt.Sprintf("%s - failed to decode call: %v", logPrefix, err))
			}
			s.respond(msg, dispatcher.ErrorReply(call.ID, err))
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CoreCallTimeout)
		defer cancel()
		s.respond(msg, s.disp.Dispatch(callCtx, &call))
	}
}

func (s *Server) respond(msg *comms.Msg, reply *dispatcher.Reply) {
	data, err := commsutil.EncodePayload(reply)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply %s: %v", logPrefix, reply.ID, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - reply %s not sent: %v", logPrefix, reply.ID, err))
	}
}

func (s *Server) handleIntrospect() comms.MsgHandler {
	return func(msg *comms.Msg) {
		data, err := commsutil.EncodePayload(s.info)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - introspection encode: %v", logPrefix, err))
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Warn(fmt.Sprintf("%s - introspection reply not sent: %v", logPrefix, err))
		}
	}
}

// Handler returns the HTTP routes: home page, health, readiness and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", metrics.Handler())
	return metrics.InstrumentHandler(mux)
}

// Serve runs the HTTP server on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info(fmt.Sprintf("%s - shutting down HTTP server", logPrefix))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h, err := s.core.Health(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

// homePageTemplate is the HTML for the woodchuckd home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Woodchuck</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
    code { font-size: 0.9rem; }
  </style>
</head>
<body>
  <h1>Woodchuck</h1>
  <p class="meta">Calls on <code>{{.Info.Subject}}</code>, protocol {{.Info.ProtocolVersion}}.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Database: {{if .Health.Checks.Database}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Managers</h2>
    {{if .ManagersError}}
    <p class="error">Could not list managers: {{.ManagersError}}</p>
    {{else if not .Managers}}
    <p>No managers registered.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Id</th><th>Cookie</th><th>Name</th></tr>
      </thead>
      <tbody>
        {{range .Managers}}
        <tr><td><code>{{index . 0}}</code></td><td>{{index . 1}}</td><td>{{index . 2}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Interfaces</h2>
    {{range .Info.Interfaces}}
    <h3>{{.Name}}</h3>
    <table>
      <thead>
        <tr><th>Method</th><th>Signatures</th><th>Reply</th></tr>
      </thead>
      <tbody>
        {{range .Methods}}
        <tr><td>{{.Name}}</td><td>{{range .Signatures}}<code>{{.}}</code> {{end}}</td><td><code>{{.ReplySignature}}</code></td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health        *woodchuck.HealthOutput
	Info          *dispatcher.ServiceInfo
	Managers      woodchuck.TupleList
	ManagersError string
}

// handleHome returns an HTTP handler for the home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Info: s.info}
		h, err := s.core.Health(ctx)
		if err != nil {
			h = &woodchuck.HealthOutput{Status: "unhealthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		}
		data.Health = h

		managers, err := s.core.ListManagers(ctx, "", false)
		if err != nil {
			data.ManagersError = err.Error()
		} else {
			data.Managers = managers
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
