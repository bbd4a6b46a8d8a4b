package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"pathsim/grid_world"
	"pathsim/server/cell_views"
	"pathsim/server/fastview"
	"pathsim/server/root_view"
	"pathsim/simulator"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Player is the part of the simulator the server drives.
type Player interface {
	Dispatch(ctx context.Context, cmd simulator.Command) error
	Latest() simulator.Frame
}

// Server serves the simulator page, one websocket per open page, and a small json api.
// Every page gets its own view pipeline fed from the hub, so pages never share or steal
// each other's updates.
type Server struct {
	addr            string
	publishInterval time.Duration
	player          Player
	hub             *Hub
	logger          *zap.Logger

	page     *template.Template
	pageName string
	router   *mux.Router
}

// NewServer parses the page template and sets up the routes. The views parsed for the
// page template are bound to ctx.
func NewServer(
	ctx context.Context,
	addr string,
	publishInterval time.Duration,
	player Player,
	hub *Hub,
	logger *zap.Logger,
) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		addr:            addr,
		publishInterval: publishInterval,
		player:          player,
		hub:             hub,
		logger:          logger,
	}

	// The page template only needs the views' definitions; it is executed with the
	// latest frame on every request.
	rootView, err := root_view.NewRootView(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}
	server.page = template.New("index.html")
	if server.pageName, err = rootView.Parse(server.page); err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/frame", server.serveFrame).Methods(http.MethodGet)
	api.HandleFunc("/scenarios", server.serveScenarios).Methods(http.MethodGet)
	api.HandleFunc("/commands", server.serveCommand).Methods(http.MethodPost)
	server.router = router

	return server, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		server.logger.Info("serving", zap.String("addr", server.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Serve the index.html main page, rendered with the latest frame.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	arena := cell_views.Convert(server.player.Latest())
	if err := server.page.ExecuteTemplate(w, server.pageName, arena); err != nil {
		server.logger.Error("render page", zap.Error(err))
		_, _ = w.Write([]byte(err.Error()))
	}
}

// serveWebsocket keeps one page in sync with the simulator and forwards the page's
// commands to the player. It returns when the page disconnects or the hub closes.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id, frames := server.hub.Subscribe()
	defer server.hub.Unsubscribe(id)
	logger := server.logger.With(zap.String("client", id))

	rootView, err := root_view.NewRootView(ctx, frames)
	if err != nil {
		logger.Error("build views", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, err.Error(), logger)
		return
	}

	cli, err := fastview.NewClient(
		rootView.Updates(), w, r,
		fastview.WithPublishInterval(server.publishInterval),
		fastview.WithClientLogger(logger),
		fastview.WithMessageHandler(server.onMessage))
	if err != nil {
		// The upgrader has already replied.
		logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	logger.Debug("client connected")
	if err := cli.Sync(); err != nil {
		logger.Info("client sync ended", zap.Error(err))
		return
	}
	logger.Debug("client disconnected")
}

// onMessage applies a command sent over a page's websocket.
func (server *Server) onMessage(ctx context.Context, msg []byte) error {
	var cmd simulator.Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	return server.player.Dispatch(ctx, cmd)
}

func (server *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.player.Latest(), server.logger)
}

func (server *Server) serveScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, grid_world.Scenarios(), server.logger)
}

// serveCommand applies a command and replies with the resulting frame.
func (server *Server) serveCommand(w http.ResponseWriter, r *http.Request) {
	var cmd simulator.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid command: "+err.Error(), server.logger)
		return
	}

	if err := server.player.Dispatch(r.Context(), cmd); err != nil {
		writeJSONError(w, commandStatus(err), err.Error(), server.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, server.player.Latest(), server.logger)
}

// commandStatus maps a refused command to its http status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, simulator.ErrBusy),
		errors.Is(err, simulator.ErrPlaying),
		errors.Is(err, simulator.ErrNoSequence),
		errors.Is(err, simulator.ErrOccupied),
		errors.Is(err, simulator.ErrNoObstacle):
		return http.StatusConflict
	case errors.Is(err, simulator.ErrUnknownCommand),
		errors.Is(err, simulator.ErrUnknownScenario),
		errors.Is(err, simulator.ErrOffArena):
		return http.StatusBadRequest
	case errors.Is(err, simulator.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
