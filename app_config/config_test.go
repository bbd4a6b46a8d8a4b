package app_config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFromYaml(t *testing.T) {
	path := writeConfig(t, `
kind: simulator
def:
  server:
    addr: ":9090"
  algoServer:
    url: http://10.0.0.5:5000
    algoType: Euclidean Astar
  animation:
    stepDelay: 150ms
    playbackDeadline: "0"
  arena:
    defaultScenario: 5 Obstacles
`)

	cfg, err := FromYaml(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "http://10.0.0.5:5000", cfg.AlgoServer.URL)
	require.Equal(t, "Euclidean Astar", cfg.AlgoServer.AlgoType)
	require.Equal(t, "5 Obstacles", cfg.Arena.DefaultScenario)

	// Keys absent from the file keep their defaults.
	require.Equal(t, 2, cfg.AlgoServer.BlockSizeMultiplier)
	require.Equal(t, 10, cfg.AlgoServer.CellSizeCm)
	require.Equal(t, "200ms", cfg.Animation.TurnPenalty)

	timing, err := cfg.Timing()
	require.NoError(t, err)
	require.Equal(t, 150*time.Millisecond, timing.StepDelay)
	require.Equal(t, 200*time.Millisecond, timing.TurnPenalty)
	require.Equal(t, time.Duration(0), timing.PlaybackDeadline)
	require.Equal(t, 100*time.Millisecond, timing.PublishInterval)
}

func TestFromYamlRejectsBadConfigs(t *testing.T) {
	cases := map[string]string{
		"bad duration": `
kind: simulator
def:
  animation:
    stepDelay: soon
`,
		"negative duration": `
kind: simulator
def:
  animation:
    turnPenalty: -1s
`,
		"unknown scenario": `
kind: simulator
def:
  arena:
    defaultScenario: Moon Base
`,
		"zero multiplier": `
kind: simulator
def:
  algoServer:
    blockSizeMultiplier: 0
`,
		"relative url": `
kind: simulator
def:
  algoServer:
    url: localhost
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYaml(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestFromYamlWrongKind(t *testing.T) {
	_, err := FromYaml(writeConfig(t, "kind: training\ndef: {}\n"))
	require.True(t, errors.Is(err, ErrWrongKind))
}

func TestFromYamlMissingFile(t *testing.T) {
	_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	timing, err := cfg.Timing()
	require.NoError(t, err)
	require.Equal(t, 300*time.Millisecond, timing.StepDelay)
	require.Equal(t, 2*time.Minute, timing.PlaybackDeadline)
}
