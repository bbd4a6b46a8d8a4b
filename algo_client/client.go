// Package algo_client talks to the external path-planning server: it submits the
// arena's obstacles and converts the returned plan into a cell-space sequence.
package algo_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pathsim/grid_world"

	"go.uber.org/zap"
)

const (
	simulatorPath = "/algo/simulator"
	healthPath    = "/"
	// Bytes of a failed response kept for the error message.
	maxErrBody = 512
)

var ErrMalformedResponse = errors.New("malformed algorithm response")

// HTTPClient is the subset of *http.Client the client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("algorithm server returned %d", e.Code)
	}
	return fmt.Sprintf("algorithm server returned %d: %s", e.Code, e.Body)
}

type obstacleInput struct {
	ID int              `json:"id"`
	X  int              `json:"x"`
	Y  int              `json:"y"`
	D  grid_world.Facing `json:"d"`
}

type algoInputValue struct {
	Mode      int             `json:"mode"`
	Obstacles []obstacleInput `json:"obstacles"`
}

type algoInput struct {
	Cat        string         `json:"cat"`
	Value      algoInputValue `json:"value"`
	ServerMode string         `json:"server_mode"`
	AlgoType   string         `json:"algo_type"`
}

// Every field is a pointer so an absent key can be told apart from an empty one.
type algoOutput struct {
	Positions *[]grid_world.Pose `json:"positions"`
	Vert      *[]int             `json:"vert"`
	Steer     *[]int             `json:"steer"`
	Runtime   string             `json:"runtime"`
}

type Client struct {
	baseURL    string
	http       HTTPClient
	multiplier int
	cellSizeCm int
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

// WithScale sets the obstacle block-size multiplier and the cell edge in centimetres.
func WithScale(multiplier, cellSizeCm int) Option {
	return func(cl *Client) {
		cl.multiplier = multiplier
		cl.cellSizeCm = cellSizeCm
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func NewClient(baseURL string, opts ...Option) *Client {
	cl := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       http.DefaultClient,
		multiplier: 2,
		cellSizeCm: 10,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Run posts the obstacles to the simulator endpoint and returns the plan in cell
// coordinates. Scan sentinels are passed through unchanged. Nothing is returned
// unless the whole response is well formed.
func (cl *Client) Run(
	ctx context.Context,
	obstacles []grid_world.Obstacle,
	algoType string,
) (*grid_world.Sequence, error) {
	input := algoInput{
		Cat: "obstacles",
		Value: algoInputValue{
			Mode:      0,
			Obstacles: make([]obstacleInput, 0, len(obstacles)),
		},
		ServerMode: "simulator",
		AlgoType:   algoType,
	}
	for _, o := range obstacles {
		input.Value.Obstacles = append(input.Value.Obstacles, obstacleInput{
			ID: o.ID,
			X:  o.X * cl.multiplier,
			Y:  o.Y * cl.multiplier,
			D:  o.D,
		})
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode algorithm input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.baseURL+simulatorPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build algorithm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	cl.logger.Debug("requesting path",
		zap.Int("obstacles", len(obstacles)),
		zap.String("algo_type", algoType))

	resp, err := cl.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("algorithm request: %w", err)
	}
	defer resp.Body.Close()

	if err = checkStatus(resp); err != nil {
		return nil, err
	}

	return cl.Decode(resp.Body)
}

// Decode reads an algorithm server response body, for example one saved to a file,
// into a sequence of grid poses.
func (cl *Client) Decode(r io.Reader) (*grid_world.Sequence, error) {
	var out algoOutput
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return cl.toSequence(&out)
}

func (cl *Client) toSequence(out *algoOutput) (*grid_world.Sequence, error) {
	switch {
	case out.Positions == nil:
		return nil, fmt.Errorf("%w: missing positions", ErrMalformedResponse)
	case out.Vert == nil:
		return nil, fmt.Errorf("%w: missing vert", ErrMalformedResponse)
	case out.Steer == nil:
		return nil, fmt.Errorf("%w: missing steer", ErrMalformedResponse)
	}

	positions, vert, steer := *out.Positions, *out.Vert, *out.Steer
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: no positions", ErrMalformedResponse)
	}
	if len(vert) != len(positions) || len(steer) != len(positions) {
		return nil, fmt.Errorf("%w: %d positions, %d vert, %d steer",
			ErrMalformedResponse, len(positions), len(vert), len(steer))
	}

	seq := &grid_world.Sequence{
		Poses:   make([]grid_world.Pose, len(positions)),
		Vert:    grid_world.Commands(vert),
		Steer:   grid_world.Commands(steer),
		Runtime: out.Runtime,
	}
	for i, p := range positions {
		seq.Poses[i] = grid_world.CentimetresToCells(p, cl.cellSizeCm)
	}
	return seq, nil
}

// Health reports whether the server answers its root route with a 2xx.
func (cl *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cl.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := cl.http.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return &StatusError{
		Code: resp.StatusCode,
		Body: strings.TrimSpace(string(excerpt)),
	}
}
