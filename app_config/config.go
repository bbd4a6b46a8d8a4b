package app_config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"pathsim/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only config kind this binary accepts.
const Kind = "simulator"

var ErrWrongKind = errors.New("unexpected config kind")

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// AppConfig holds everything the simulator reads from config.yaml. Durations are
// kept as strings in the file and parsed on use.
//
// Viper lowercases every key it reads, so the inner yaml tags are lowercase too.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	AlgoServer AlgoServerConfig `yaml:"algoserver"`
	Animation  AnimationConfig  `yaml:"animation"`
	Arena      ArenaConfig      `yaml:"arena"`
}

type ServerConfig struct {
	// Addr is the host:port the web ui listens on.
	Addr string `yaml:"addr"`
	// PublishInterval rate limits websocket pushes to each browser.
	PublishInterval string `yaml:"publishinterval"`
}

type AlgoServerConfig struct {
	URL string `yaml:"url"`
	// AlgoType is passed through verbatim as the request's algo_type.
	AlgoType       string `yaml:"algotype"`
	RequestTimeout string `yaml:"requesttimeout"`
	HealthInterval string `yaml:"healthinterval"`
	// BlockSizeMultiplier scales obstacle cell coordinates into the server's grid units.
	BlockSizeMultiplier int `yaml:"blocksizemultiplier"`
	// CellSizeCm is the edge length of one arena cell in the server's centimetre positions.
	CellSizeCm int `yaml:"cellsizecm"`
}

type AnimationConfig struct {
	StepDelay   string `yaml:"stepdelay"`
	TurnPenalty string `yaml:"turnpenalty"`
	// PlaybackDeadline aborts a playback that runs longer than this; "0" disables it.
	PlaybackDeadline string `yaml:"playbackdeadline"`
}

type ArenaConfig struct {
	DefaultScenario string `yaml:"defaultscenario"`
}

// Default returns the configuration used when no file is given. File values are
// decoded on top of it, so a file only needs the keys it changes.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			PublishInterval: "100ms",
		},
		AlgoServer: AlgoServerConfig{
			URL:                 "http://localhost:5000",
			AlgoType:            "Exhaustive Astar",
			RequestTimeout:      "60s",
			HealthInterval:      "5s",
			BlockSizeMultiplier: 2,
			CellSizeCm:          10,
		},
		Animation: AnimationConfig{
			StepDelay:        "300ms",
			TurnPenalty:      "200ms",
			PlaybackDeadline: "2m",
		},
		Arena: ArenaConfig{
			DefaultScenario: grid_world.CustomScenario,
		},
	}
}

// FromYaml reads a kind/def config envelope and decodes its def section over Default().
func FromYaml(path string) (*AppConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config envelope: %w", err)
	}
	if outerConfig.Kind != Kind {
		return nil, fmt.Errorf("%w: %q", ErrWrongKind, outerConfig.Kind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("encode config def: %w", err)
	}

	innerConfig := Default()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config def: %w", err)
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}

// Validate reports the first invalid setting.
func (cfg *AppConfig) Validate() error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	if _, err := url.ParseRequestURI(cfg.AlgoServer.URL); err != nil {
		return fmt.Errorf("algoServer.url: %w", err)
	}
	if cfg.AlgoServer.BlockSizeMultiplier <= 0 {
		return fmt.Errorf("algoServer.blockSizeMultiplier must be positive, got %d", cfg.AlgoServer.BlockSizeMultiplier)
	}
	if cfg.AlgoServer.CellSizeCm <= 0 {
		return fmt.Errorf("algoServer.cellSizeCm must be positive, got %d", cfg.AlgoServer.CellSizeCm)
	}
	if _, ok := grid_world.ScenarioByName(cfg.Arena.DefaultScenario); !ok {
		return fmt.Errorf("arena.defaultScenario: unknown scenario %q", cfg.Arena.DefaultScenario)
	}

	durations := map[string]string{
		"server.publishInterval":     cfg.Server.PublishInterval,
		"algoServer.requestTimeout":  cfg.AlgoServer.RequestTimeout,
		"algoServer.healthInterval":  cfg.AlgoServer.HealthInterval,
		"animation.stepDelay":        cfg.Animation.StepDelay,
		"animation.turnPenalty":      cfg.Animation.TurnPenalty,
		"animation.playbackDeadline": cfg.Animation.PlaybackDeadline,
	}
	for key, val := range durations {
		if _, err := parseDuration(key, val); err != nil {
			return err
		}
	}
	return nil
}

// Timing is the parsed set of durations the player and server run on.
type Timing struct {
	PublishInterval  time.Duration
	RequestTimeout   time.Duration
	HealthInterval   time.Duration
	StepDelay        time.Duration
	TurnPenalty      time.Duration
	PlaybackDeadline time.Duration
}

// Timing parses every duration setting. Validate has normally been called already,
// but the errors are still returned for configs built in code.
func (cfg *AppConfig) Timing() (t Timing, err error) {
	if t.PublishInterval, err = parseDuration("server.publishInterval", cfg.Server.PublishInterval); err != nil {
		return
	}
	if t.RequestTimeout, err = parseDuration("algoServer.requestTimeout", cfg.AlgoServer.RequestTimeout); err != nil {
		return
	}
	if t.HealthInterval, err = parseDuration("algoServer.healthInterval", cfg.AlgoServer.HealthInterval); err != nil {
		return
	}
	if t.StepDelay, err = parseDuration("animation.stepDelay", cfg.Animation.StepDelay); err != nil {
		return
	}
	if t.TurnPenalty, err = parseDuration("animation.turnPenalty", cfg.Animation.TurnPenalty); err != nil {
		return
	}
	t.PlaybackDeadline, err = parseDuration("animation.playbackDeadline", cfg.Animation.PlaybackDeadline)
	return
}

func parseDuration(key, val string) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, val)
	}
	return d, nil
}
