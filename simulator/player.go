package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pathsim/grid_world"

	channerics "github.com/niceyeti/channerics/channels"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrStopped        = errors.New("player stopped")
)

// Runner performs algorithm runs and server health checks; algo_client.Client is one.
type Runner interface {
	Run(ctx context.Context, obstacles []grid_world.Obstacle, algoType string) (*grid_world.Sequence, error)
	Health(ctx context.Context) error
}

type Config struct {
	// Scenario and AlgoType are the initial selections.
	Scenario string
	AlgoType string

	StepDelay   time.Duration
	TurnPenalty time.Duration
	// PlaybackDeadline aborts any single playback running longer than this. Zero disables it.
	PlaybackDeadline time.Duration
	// RequestTimeout bounds each algorithm run. Zero leaves it to the caller's context.
	RequestTimeout time.Duration
	// HealthInterval is the server polling period. Zero disables polling.
	HealthInterval time.Duration
}

type CommandKind string

const (
	CmdSelectScenario CommandKind = "scenario"
	CmdResetObstacles CommandKind = "reset"
	CmdClickCell      CommandKind = "cell"
	CmdSetAlgorithm   CommandKind = "algo"
	CmdRun            CommandKind = "run"
	CmdPlay           CommandKind = "play"
	CmdPause          CommandKind = "pause"
	CmdToggle         CommandKind = "toggle"
	CmdSeek           CommandKind = "seek"
	CmdStep           CommandKind = "step"
)

// Command is a user action, as sent by the browser.
type Command struct {
	Kind     CommandKind `json:"kind"`
	X        int         `json:"x"`
	Y        int         `json:"y"`
	Step     int         `json:"step"`
	Delta    int         `json:"delta"`
	Scenario string      `json:"scenario"`
	Algo     string      `json:"algo"`
}

type request struct {
	cmd   Command
	reply chan error
}

type runResult struct {
	id  string
	seq *grid_world.Sequence
	err error
}

// Player owns a State and applies every event to it from one goroutine: commands, run
// results, health checks and timers. Each applied event publishes a new Frame.
type Player struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
	state  *State

	commands chan request
	results  chan runResult
	health   chan bool
	frames   chan Frame
	done     chan struct{}

	mu     sync.RWMutex
	latest Frame
}

func NewPlayer(cfg Config, runner Runner, logger *zap.Logger) (*Player, error) {
	state, err := NewState(cfg.Scenario, cfg.AlgoType)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Player{
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		state:    state,
		commands: make(chan request),
		results:  make(chan runResult),
		health:   make(chan bool),
		frames:   make(chan Frame, 1),
		done:     make(chan struct{}),
	}
	p.latest = state.Render()
	return p, nil
}

// Frames delivers rendered frames. Only the most recent unread frame is kept, so a slow
// reader skips frames rather than stalling playback. The channel closes when Run returns.
func (p *Player) Frames() <-chan Frame {
	return p.frames
}

// Latest returns the most recently rendered frame.
func (p *Player) Latest() Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Dispatch hands cmd to the event loop and waits for it to be applied. Refused commands
// return their reason, which is also shown to the user as a notice.
func (p *Player) Dispatch(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrStopped
	case p.commands <- req:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.reply:
		return err
	}
}

// Run drives the player until ctx is cancelled. It must be called once.
func (p *Player) Run(ctx context.Context) error {
	defer close(p.done)
	group, groupCtx := errgroup.WithContext(ctx)

	if p.cfg.HealthInterval > 0 {
		group.Go(func() error {
			return p.pollHealth(groupCtx)
		})
	}
	group.Go(func() error {
		return p.loop(groupCtx, group)
	})

	err := group.Wait()
	close(p.frames)
	return err
}

func (p *Player) loop(ctx context.Context, group *errgroup.Group) error {
	var (
		stepTimer      *time.Timer
		stepC          <-chan time.Time
		playbackDone   <-chan struct{}
		cancelPlayback context.CancelFunc = func() {}
	)
	defer func() {
		stopTimer(stepTimer)
		cancelPlayback()
	}()

	p.publish()
	for {
		before := p.state.Cursor()
		var (
			reply    chan error
			replyErr error
		)

		select {
		case <-ctx.Done():
			return nil
		case req := <-p.commands:
			reply = req.reply
			replyErr = p.apply(ctx, group, req.cmd)
			if replyErr != nil {
				p.state.Reject(replyErr)
				p.logger.Debug("command refused",
					zap.String("kind", string(req.cmd.Kind)),
					zap.Error(replyErr))
			}
		case res := <-p.results:
			p.settle(res)
		case online := <-p.health:
			p.state.SetServerOnline(online)
		case <-stepC:
			stepC = nil
			p.state.AdvanceStep()
		case <-playbackDone:
			playbackDone = nil
			if ctx.Err() != nil {
				return nil
			}
			p.state.AbortPlayback()
			p.logger.Warn("playback deadline exceeded",
				zap.Duration("deadline", p.cfg.PlaybackDeadline),
				zap.Int("step", p.state.Step()))
		}

		// Any change of phase, step or sequence cancels the pending step and schedules
		// the next one from scratch.
		after := p.state.Cursor()
		if after != before {
			stopTimer(stepTimer)
			stepC = nil

			if after.Phase == Playing {
				if before.Phase != Playing {
					var playbackCtx context.Context
					playbackCtx, cancelPlayback = p.withPlaybackDeadline(ctx)
					playbackDone = playbackCtx.Done()
				}
				stepTimer = time.NewTimer(p.nextDelay())
				stepC = stepTimer.C
			} else if before.Phase == Playing {
				cancelPlayback()
				playbackDone = nil
			}
		}

		p.publish()
		// Replying after publishing lets the caller observe the new frame via Latest.
		if reply != nil {
			reply <- replyErr
		}
	}
}

func (p *Player) apply(ctx context.Context, group *errgroup.Group, cmd Command) error {
	s := p.state
	switch cmd.Kind {
	case CmdSelectScenario:
		return s.SelectScenario(cmd.Scenario)
	case CmdResetObstacles:
		return s.ResetObstacles()
	case CmdClickCell:
		return s.ClickCell(cmd.X, cmd.Y)
	case CmdSetAlgorithm:
		return s.SetAlgorithm(cmd.Algo)
	case CmdRun:
		req, err := s.StartRun()
		if err != nil {
			return err
		}
		group.Go(func() error {
			p.run(ctx, req)
			return nil
		})
		return nil
	case CmdPlay:
		return s.Play()
	case CmdPause:
		s.Pause()
		return nil
	case CmdToggle:
		if s.Phase() == Playing {
			s.Pause()
			return nil
		}
		return s.Play()
	case CmdSeek:
		return s.SetManualStep(cmd.Step)
	case CmdStep:
		return s.StepBy(cmd.Delta)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

// run performs one algorithm call and posts the outcome back to the loop.
// There are no retries.
func (p *Player) run(ctx context.Context, req RunRequest) {
	runCtx, cancel := p.withRequestTimeout(ctx)
	defer cancel()

	start := time.Now()
	seq, err := p.runner.Run(runCtx, req.Obstacles, req.AlgoType)
	p.logger.Info("algorithm run finished",
		zap.String("run_id", req.ID),
		zap.String("algo_type", req.AlgoType),
		zap.Int("obstacles", len(req.Obstacles)),
		zap.Int("poses", seq.Len()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	select {
	case <-ctx.Done():
	case p.results <- runResult{id: req.ID, seq: seq, err: err}:
	}
}

func (p *Player) settle(res runResult) {
	var applied bool
	if res.err != nil {
		applied = p.state.RunFailed(res.id, res.err)
	} else {
		applied = p.state.RunSucceeded(res.id, res.seq)
	}
	if !applied {
		p.logger.Debug("dropped stale run result", zap.String("run_id", res.id))
	}
}

func (p *Player) pollHealth(ctx context.Context) error {
	check := func() {
		healthCtx, cancel := context.WithTimeout(ctx, p.cfg.HealthInterval)
		err := p.runner.Health(healthCtx)
		cancel()
		if err != nil {
			p.logger.Debug("algorithm server unreachable", zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case p.health <- err == nil:
		}
	}

	check()
	ticker := channerics.NewTicker(ctx.Done(), p.cfg.HealthInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker:
			if !ok {
				return nil
			}
			check()
		}
	}
}

func (p *Player) publish() {
	frame := p.state.Render()

	p.mu.Lock()
	p.latest = frame
	p.mu.Unlock()

	select {
	case <-p.frames:
	default:
	}
	p.frames <- frame
}

func (p *Player) nextDelay() time.Duration {
	if p.state.TurningAhead() {
		return p.cfg.StepDelay + p.cfg.TurnPenalty
	}
	return p.cfg.StepDelay
}

// withPlaybackDeadline returns a context extended by the playback deadline, if one is set.
func (p *Player) withPlaybackDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.PlaybackDeadline > 0 {
		return context.WithTimeout(ctx, p.cfg.PlaybackDeadline)
	}
	return context.WithCancel(ctx)
}

func (p *Player) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func stopTimer(t *time.Timer) {
	if t != nil && !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
