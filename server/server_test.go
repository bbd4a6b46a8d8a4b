package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pathsim/grid_world"
	"pathsim/server/fastview"
	"pathsim/simulator"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context, _ []grid_world.Obstacle, _ string) (*grid_world.Sequence, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (idleRunner) Health(context.Context) error {
	return nil
}

// startServer runs a player, a hub and the server's routes behind httptest.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	player, err := simulator.NewPlayer(simulator.Config{
		Scenario:  grid_world.CustomScenario,
		AlgoType:  "Exhaustive Astar",
		StepDelay: 10 * time.Millisecond,
	}, idleRunner{}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(player.Latest())
	playerDone := make(chan error, 1)
	go func() { playerDone <- player.Run(ctx) }()
	go hub.Run(ctx, player.Frames())

	// Websocket handlers may still be winding down after the test returns.
	server, err := NewServer(ctx, ":0", 10*time.Millisecond, player, hub, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
		require.NoError(t, <-playerDone)
	})
	return ts
}

func postCommand(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServeScenarios(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/api/scenarios")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scenarios []grid_world.Scenario
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scenarios))
	require.NotEmpty(t, scenarios)
	require.Equal(t, grid_world.CustomScenario, scenarios[0].Name)
}

func TestServeFrame(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/api/frame")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var frame map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frame))
	require.Equal(t, "idle", frame["phase"])
	require.Equal(t, grid_world.CustomScenario, frame["scenario"])
}

func TestServeCommand(t *testing.T) {
	ts := startServer(t)

	t.Run("accepted commands reply with the new frame", func(t *testing.T) {
		resp, body := postCommand(t, ts, `{"kind":"cell","x":10,"y":10}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var frame struct {
			Obstacles []grid_world.Obstacle `json:"obstacles"`
		}
		require.NoError(t, json.Unmarshal(body, &frame))
		require.Equal(t, []grid_world.Obstacle{{ID: 1, X: 10, Y: 10, D: grid_world.FacingNorth}}, frame.Obstacles)
	})

	t.Run("malformed json", func(t *testing.T) {
		resp, body := postCommand(t, ts, `{"kind":`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, string(body), "invalid command")
	})

	t.Run("unknown command", func(t *testing.T) {
		resp, _ := postCommand(t, ts, `{"kind":"fly"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("off the arena", func(t *testing.T) {
		resp, _ := postCommand(t, ts, `{"kind":"cell","x":25,"y":3}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("nothing to play", func(t *testing.T) {
		resp, body := postCommand(t, ts, `{"kind":"play"}`)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Contains(t, string(body), simulator.ErrNoSequence.Error())
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/commands")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestServeCommandWhileLoading(t *testing.T) {
	ts := startServer(t)

	resp, _ := postCommand(t, ts, `{"kind":"run"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	for _, kind := range []string{"play", "toggle", "run"} {
		resp, body := postCommand(t, ts, `{"kind":"`+kind+`"}`)
		require.Equal(t, http.StatusConflict, resp.StatusCode, kind)
		require.Contains(t, string(body), simulator.ErrBusy.Error(), kind)
	}
}

func TestServeIndex(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.Contains(page, []byte(`id="arena"`)))
	require.True(t, bytes.Contains(page, []byte(`id="run-button"`)))
}

func TestWebsocketRoundTrip(t *testing.T) {
	ts := startServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// The first batch syncs the page with the current frame.
	var updates []fastview.EleUpdate
	require.NoError(t, conn.ReadJSON(&updates))
	require.NotEmpty(t, updates)

	require.NoError(t, conn.WriteJSON(simulator.Command{Kind: simulator.CmdClickCell, X: 3, Y: 12}))

	for {
		updates = nil
		require.NoError(t, conn.ReadJSON(&updates))
		for _, update := range updates {
			if update.EleId != "cell-3-12-glyph" {
				continue
			}
			require.Equal(t, []fastview.Op{{Key: fastview.TextContent, Value: "▲"}}, update.Ops)
			return
		}
	}
}

func TestCommandStatus(t *testing.T) {
	require.Equal(t, http.StatusConflict, commandStatus(simulator.ErrBusy))
	require.Equal(t, http.StatusConflict, commandStatus(simulator.ErrPlaying))
	require.Equal(t, http.StatusBadRequest, commandStatus(simulator.ErrUnknownScenario))
	require.Equal(t, http.StatusServiceUnavailable, commandStatus(simulator.ErrStopped))
	require.Equal(t, http.StatusRequestTimeout, commandStatus(context.Canceled))
	require.Equal(t, http.StatusInternalServerError, commandStatus(io.ErrUnexpectedEOF))
}
