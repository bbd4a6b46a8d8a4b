/*
Pathsim is a single page simulator for the robot path planner: pick or draw an obstacle
layout, ask the algorithm server for a path, and watch the robot drive it step by step in
the browser. The server renders the arena and the control panel once, then pushes element
updates over a websocket as the playback advances, so the page stays dumb and every open
tab sees the same simulation. The replay command prints the same playback in a terminal,
which is handy when checking a saved server response without a browser.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pathsim/algo_client"
	"pathsim/app_config"
	"pathsim/grid_world"
	"pathsim/server"
	"pathsim/simulator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "./config.yaml"

// app holds the global flags and the logger shared by every command.
type app struct {
	configPath string
	addr       string
	algoURL    string
	debug      bool

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "pathsim",
		Short: "Robot path simulator for the algorithm server",
		Long: `pathsim serves a browser ui for placing obstacles on the 20x20 arena, running
the path planning algorithm and animating the robot along the returned path.

Run without arguments to start the web server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.debug {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: a.runServe,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfigPath, "path to the config file")
	flags.StringVar(&a.addr, "addr", "", "listen address, overrides server.addr")
	flags.StringVar(&a.algoURL, "algo-url", "", "algorithm server url, overrides algoServer.url")
	flags.BoolVar(&a.debug, "debug", false, "debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator ui",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}

	var (
		file     string
		scenario string
		algoType string
	)
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Print a playback to the terminal",
		Long: `Prints the arena for every step of a playback. The sequence is read from a
saved algorithm server response when --file is given; otherwise the algorithm server
is asked to plan a path around the scenario's obstacles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReplay(cmd.Context(), cmd.OutOrStdout(), file, scenario, algoType)
		},
	}
	replayCmd.Flags().StringVar(&file, "file", "", "saved algorithm server response (json)")
	replayCmd.Flags().StringVar(&scenario, "scenario", "", "obstacle scenario, defaults to arena.defaultScenario")
	replayCmd.Flags().StringVar(&algoType, "algo", "", "algorithm type, defaults to algoServer.algoType")

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the preset obstacle layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(serveCmd, replayCmd, scenariosCmd)
	return rootCmd
}

// loadConfig reads the config file, falling back to the defaults when the default
// path does not exist, and applies the flag overrides.
func (a *app) loadConfig() (*app_config.AppConfig, error) {
	cfg := app_config.Default()
	if _, err := os.Stat(a.configPath); err == nil || a.configPath != defaultConfigPath {
		if cfg, err = app_config.FromYaml(a.configPath); err != nil {
			return nil, err
		}
	} else {
		a.logger.Info("no config file, using defaults", zap.String("path", a.configPath))
	}

	if a.addr != "" {
		cfg.Server.Addr = a.addr
	}
	if a.algoURL != "" {
		cfg.AlgoServer.URL = a.algoURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) newAlgoClient(cfg *app_config.AppConfig) *algo_client.Client {
	return algo_client.NewClient(
		cfg.AlgoServer.URL,
		algo_client.WithScale(cfg.AlgoServer.BlockSizeMultiplier, cfg.AlgoServer.CellSizeCm),
		algo_client.WithLogger(a.logger.Named("algo")))
}

// runServe starts the player, the frame hub and the web server, and runs them until
// interrupted.
func (a *app) runServe(cmd *cobra.Command, args []string) (err error) {
	var cfg *app_config.AppConfig
	if cfg, err = a.loadConfig(); err != nil {
		return
	}
	var timing app_config.Timing
	if timing, err = cfg.Timing(); err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	player, err := simulator.NewPlayer(simulator.Config{
		Scenario:         cfg.Arena.DefaultScenario,
		AlgoType:         cfg.AlgoServer.AlgoType,
		StepDelay:        timing.StepDelay,
		TurnPenalty:      timing.TurnPenalty,
		PlaybackDeadline: timing.PlaybackDeadline,
		RequestTimeout:   timing.RequestTimeout,
		HealthInterval:   timing.HealthInterval,
	}, a.newAlgoClient(cfg), a.logger.Named("player"))
	if err != nil {
		return
	}

	group, groupCtx := errgroup.WithContext(appCtx)
	hub := server.NewHub(player.Latest())
	srv, err := server.NewServer(
		groupCtx,
		cfg.Server.Addr,
		timing.PublishInterval,
		player,
		hub,
		a.logger.Named("server"))
	if err != nil {
		return
	}

	a.logger.Info("starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("algo_server", cfg.AlgoServer.URL),
		zap.String("scenario", cfg.Arena.DefaultScenario))

	group.Go(func() error {
		return player.Run(groupCtx)
	})
	group.Go(func() error {
		hub.Run(groupCtx, player.Frames())
		return nil
	})
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Info("stopped")
	return nil
}

// runReplay prints every step of a sequence, the way the browser would show it.
func (a *app) runReplay(
	ctx context.Context,
	out io.Writer,
	file, scenario, algoType string,
) (err error) {
	var cfg *app_config.AppConfig
	if cfg, err = a.loadConfig(); err != nil {
		return
	}
	if scenario == "" {
		scenario = cfg.Arena.DefaultScenario
	}
	if algoType == "" {
		algoType = cfg.AlgoServer.AlgoType
	}

	state, err := simulator.NewState(scenario, algoType)
	if err != nil {
		return
	}

	client := a.newAlgoClient(cfg)
	var seq *grid_world.Sequence
	if file != "" {
		seq, err = decodeFile(client, file)
	} else {
		seq, err = fetchSequence(ctx, client, cfg, scenario, algoType)
	}
	if err != nil {
		return
	}

	if err = state.LoadSequence(seq); err != nil {
		return
	}
	fmt.Fprintf(out, "%s, %s, runtime %s\n", scenario, algoType, seq.Runtime)
	lastNotice := 0
	for i := 0; i < seq.Len(); i++ {
		if err = state.SetManualStep(i); err != nil {
			return
		}
		frame := state.Render()
		fmt.Fprintf(out, "\nStep: %d / %d %s\n", i+1, frame.Total, seq.Poses[i])
		if frame.Notice != nil && frame.Notice.ID != lastNotice {
			lastNotice = frame.Notice.ID
			fmt.Fprintln(out, frame.Notice.Message)
		}
		if err = grid_world.ShowBoard(out, &frame.Board); err != nil {
			return
		}
	}
	return nil
}

func decodeFile(client *algo_client.Client, path string) (*grid_world.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return client.Decode(f)
}

func fetchSequence(
	ctx context.Context,
	client *algo_client.Client,
	cfg *app_config.AppConfig,
	scenario, algoType string,
) (*grid_world.Sequence, error) {
	preset, ok := grid_world.ScenarioByName(scenario)
	if !ok {
		return nil, fmt.Errorf("%w: %q", simulator.ErrUnknownScenario, scenario)
	}
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	if timing.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timing.RequestTimeout)
		defer cancel()
	}
	return client.Run(ctx, preset.Obstacles, algoType)
}

func listScenarios(out io.Writer) error {
	for _, sc := range grid_world.Scenarios() {
		if _, err := fmt.Fprintf(out, "%-20s %d obstacles\n", sc.Name, len(sc.Obstacles)); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
