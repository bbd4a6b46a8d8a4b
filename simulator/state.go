// Package simulator holds the run and playback state of the arena ui. State is a plain
// reducer with one method per transition; Player drives it from a single event loop.
package simulator

import (
	"errors"
	"fmt"

	"pathsim/grid_world"
	"pathsim/turning"

	"github.com/google/uuid"
)

type Phase int

const (
	// No sequence loaded.
	Idle Phase = iota
	// Sequence loaded, nothing played yet.
	Ready
	Playing
	Paused
	// The user is scrubbing or stepping by hand.
	Manual
	// Playback reached the last pose.
	Finished
)

func (ph Phase) String() string {
	switch ph {
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Manual:
		return "manual"
	case Finished:
		return "finished"
	}
	return "idle"
}

func (ph Phase) MarshalText() ([]byte, error) {
	return []byte(ph.String()), nil
}

var (
	ErrBusy            = errors.New("a run is loading or playback is active")
	ErrPlaying         = errors.New("manual stepping is disabled while playing")
	ErrNoSequence      = errors.New("no sequence loaded")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrOffArena        = errors.New("cell is off the arena")
	ErrOccupied        = errors.New("cell is occupied")
	ErrNoObstacle      = errors.New("no obstacle at cell")
)

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	}
	return "info"
}

func (l NoticeLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Notice is a transient message for the user. IDs increase, so a client shows each
// notice once no matter how many frames carry it.
type Notice struct {
	ID      int         `json:"id"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

const (
	msgScanning    = "Scanning image..."
	msgScanned     = "Image scanned!"
	msgRunOK       = "Algorithm ran successfully."
	msgRunFailed   = "Failed to run algorithm. Server error: "
	msgPlaybackCap = "Playback stopped: time limit reached."
)

// RunRequest is everything a runner needs for one algorithm call.
type RunRequest struct {
	ID        string
	Obstacles []grid_world.Obstacle
	AlgoType  string
}

type State struct {
	// scenario holds the selected preset's name and the live, possibly edited, obstacles.
	scenario grid_world.Scenario
	algoType string
	phase    Phase
	// runID is set while a run is outstanding.
	runID   string
	runtime string

	seq     *grid_world.Sequence
	turning [][]grid_world.Point
	step    int
	robot   grid_world.Pose
	trail   grid_world.Trail

	serverOnline bool
	notice       *Notice
	noticeSeq    int
}

func NewState(scenario, algoType string) (*State, error) {
	s := &State{algoType: algoType}
	if err := s.SelectScenario(scenario); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) Phase() Phase {
	return s.phase
}

func (s *State) Step() int {
	return s.step
}

func (s *State) Total() int {
	return s.seq.Len()
}

func (s *State) Loading() bool {
	return s.runID != ""
}

// Editable reports whether obstacles may be changed.
func (s *State) Editable() bool {
	return !s.Loading() && s.phase != Playing
}

// Cursor identifies the playback position; the player reschedules its step timer
// whenever it changes.
type Cursor struct {
	Phase Phase
	Step  int
	Seq   *grid_world.Sequence
}

func (s *State) Cursor() Cursor {
	return Cursor{Phase: s.phase, Step: s.step, Seq: s.seq}
}

// SelectScenario switches preset and drops every piece of run state, including any
// outstanding run whose result would now be stale.
func (s *State) SelectScenario(name string) error {
	sc, ok := grid_world.ScenarioByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	s.scenario = sc
	s.runID = ""
	s.runtime = ""
	s.unload()
	return nil
}

func (s *State) unload() {
	s.seq = nil
	s.turning = nil
	s.step = 0
	s.robot = grid_world.InitialPose
	s.trail = grid_world.Trail{}
	s.phase = Idle
}

// ResetObstacles restores the selected preset's obstacles, discarding edits.
func (s *State) ResetObstacles() error {
	if !s.Editable() {
		return ErrBusy
	}
	preset, _ := grid_world.ScenarioByName(s.scenario.Name)
	s.scenario.Obstacles = preset.Obstacles
	return nil
}

// ClickCell adds a north-facing obstacle on an empty cell or rotates the obstacle on
// an obstacle cell. Robot, turning and trail cells are not clickable.
func (s *State) ClickCell(x, y int) error {
	if !s.Editable() {
		return ErrBusy
	}
	p := grid_world.Point{X: x, Y: y}
	if !p.InBounds() {
		return fmt.Errorf("%w: %v", ErrOffArena, p)
	}
	board, _ := grid_world.Classify(s.scene(), s.trail)
	switch board.At(x, y).Kind {
	case grid_world.Empty:
		return s.AddObstacle(x, y)
	case grid_world.ObstacleCell:
		return s.RotateObstacle(x, y)
	}
	return fmt.Errorf("%w: %v", ErrOccupied, p)
}

// AddObstacle places a north-facing obstacle with the next free id.
func (s *State) AddObstacle(x, y int) error {
	if !s.Editable() {
		return ErrBusy
	}
	p := grid_world.Point{X: x, Y: y}
	if !p.InBounds() {
		return fmt.Errorf("%w: %v", ErrOffArena, p)
	}
	nextID := 1
	for _, o := range s.scenario.Obstacles {
		if o.Point() == p {
			return fmt.Errorf("%w: %v", ErrOccupied, p)
		}
		if o.ID >= nextID {
			nextID = o.ID + 1
		}
	}
	s.scenario.Obstacles = append(s.scenario.Obstacles, grid_world.Obstacle{
		ID: nextID,
		X:  x,
		Y:  y,
		D:  grid_world.FacingNorth,
	})
	return nil
}

// RotateObstacle turns the obstacle at x, y a quarter clockwise.
func (s *State) RotateObstacle(x, y int) error {
	if !s.Editable() {
		return ErrBusy
	}
	p := grid_world.Point{X: x, Y: y}
	for i := range s.scenario.Obstacles {
		if s.scenario.Obstacles[i].Point() == p {
			s.scenario.Obstacles[i].D = s.scenario.Obstacles[i].D.Next()
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrNoObstacle, p)
}

// SetAlgorithm selects the algo_type sent with the next run.
func (s *State) SetAlgorithm(algoType string) error {
	if algoType == "" {
		return errors.New("algorithm type is empty")
	}
	s.algoType = algoType
	return nil
}

// StartRun issues a new run, refusing while one is outstanding or playback is active.
func (s *State) StartRun() (RunRequest, error) {
	if s.Loading() || s.phase == Playing {
		return RunRequest{}, ErrBusy
	}
	s.runID = uuid.NewString()
	s.runtime = ""
	return RunRequest{
		ID:        s.runID,
		Obstacles: append([]grid_world.Obstacle(nil), s.scenario.Obstacles...),
		AlgoType:  s.algoType,
	}, nil
}

// RunSucceeded loads the result of run id. It returns false, changing nothing, when
// the run is no longer the outstanding one.
func (s *State) RunSucceeded(id string, seq *grid_world.Sequence) bool {
	if id == "" || id != s.runID {
		return false
	}
	s.runID = ""
	if err := s.LoadSequence(seq); err != nil {
		s.raise(NoticeError, msgRunFailed+err.Error())
		return true
	}
	s.raise(NoticeSuccess, msgRunOK)
	return true
}

// RunFailed ends run id with an error notice, leaving any loaded sequence and
// playback position untouched. Stale ids are ignored.
func (s *State) RunFailed(id string, err error) bool {
	if id == "" || id != s.runID {
		return false
	}
	s.runID = ""
	s.raise(NoticeError, msgRunFailed+err.Error())
	return true
}

// LoadSequence replaces the sequence wholesale and rewinds to its first pose.
func (s *State) LoadSequence(seq *grid_world.Sequence) error {
	if seq.Len() == 0 {
		return ErrNoSequence
	}
	s.unload()
	s.seq = seq
	s.turning = turning.Synthesize(*seq)
	s.runtime = seq.Runtime
	s.robot = s.poseAt(0)
	s.phase = Ready
	return nil
}

// Play starts auto-advancing. From the last pose it rewinds to the first one.
func (s *State) Play() error {
	if s.Loading() {
		return ErrBusy
	}
	total := s.Total()
	if total == 0 {
		return ErrNoSequence
	}
	if s.phase == Playing {
		return nil
	}
	if s.step >= total-1 {
		s.step = 0
		s.trail = grid_world.Trail{}
		s.robot = s.poseAt(0)
	}
	if total == 1 {
		s.phase = Finished
		return nil
	}
	s.phase = Playing
	return nil
}

func (s *State) Pause() {
	if s.phase == Playing {
		s.phase = Paused
	}
}

// AdvanceStep moves playback one pose forward. It reports false when nothing moved.
func (s *State) AdvanceStep() bool {
	if s.phase != Playing {
		return false
	}
	if s.step+1 >= s.Total() {
		s.phase = Finished
		return false
	}
	s.enter(s.step + 1)
	if s.step == s.Total()-1 {
		s.phase = Finished
	}
	return true
}

// SetManualStep jumps to pose i, clamped to the sequence.
func (s *State) SetManualStep(i int) error {
	total := s.Total()
	if total == 0 {
		return ErrNoSequence
	}
	if s.phase == Playing {
		return ErrPlaying
	}
	if i < 0 {
		i = 0
	}
	if i > total-1 {
		i = total - 1
	}
	s.phase = Manual
	if i != s.step {
		s.enter(i)
	}
	return nil
}

// StepBy moves delta poses from the current one, clamped to the sequence.
func (s *State) StepBy(delta int) error {
	return s.SetManualStep(s.step + delta)
}

// AbortPlayback stops a playback that has run past its time limit.
func (s *State) AbortPlayback() {
	if s.phase != Playing {
		return
	}
	s.phase = Paused
	s.raise(NoticeError, msgPlaybackCap)
}

func (s *State) SetServerOnline(online bool) {
	s.serverOnline = online
}

// Reject surfaces a refused command to the user.
func (s *State) Reject(err error) {
	s.raise(NoticeInfo, err.Error())
}

// enter makes pose i current. Scan poses raise a notice and leave the robot where
// the last physical pose put it.
func (s *State) enter(i int) {
	s.step = i
	pose := s.seq.Poses[i]
	if pose.IsScan() {
		if pose.Theta == grid_world.ScanComplete {
			s.raise(NoticeSuccess, msgScanned)
		} else {
			s.raise(NoticeInfo, msgScanning)
		}
	}
	s.robot = s.poseAt(i)
}

// poseAt returns the last physical pose at or before i.
func (s *State) poseAt(i int) grid_world.Pose {
	for ; i >= 0; i-- {
		if p := s.seq.Poses[i]; !p.IsScan() {
			return p
		}
	}
	return grid_world.InitialPose
}

func (s *State) raise(level NoticeLevel, msg string) {
	s.noticeSeq++
	s.notice = &Notice{ID: s.noticeSeq, Level: level, Message: msg}
}

func (s *State) currentTurning() []grid_world.Point {
	if s.step < len(s.turning) {
		return s.turning[s.step]
	}
	return nil
}

// TurningAhead reports whether the next pose is reached by a turn.
func (s *State) TurningAhead() bool {
	next := s.step + 1
	return next < len(s.turning) && len(s.turning[next]) > 0
}

func (s *State) scene() grid_world.Scene {
	return grid_world.Scene{
		Robot:     s.robot,
		Turning:   s.currentTurning(),
		Obstacles: s.scenario.Obstacles,
	}
}
