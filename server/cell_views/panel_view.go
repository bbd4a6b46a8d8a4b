package cell_views

import (
	"fmt"
	"html/template"
	"slices"

	"pathsim/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// PanelView holds the run and playback controls, the robot readout and the notice
// element the page turns into toasts.
type PanelView struct {
	id      string
	updates <-chan []fastview.EleUpdate
	last    map[string][]fastview.Op
}

func NewPanelView(
	done <-chan struct{},
	arenas <-chan Arena,
) (pv *PanelView) {
	pv = &PanelView{id: "panel"}
	pv.updates = channerics.Convert(done, arenas, pv.onUpdate)
	return
}

func (pv *PanelView) Updates() <-chan []fastview.EleUpdate {
	return pv.updates
}

func disabled(cond bool) string {
	return fmt.Sprint(cond)
}

func (p Panel) PlayDisabled() bool {
	return !p.HasSequence || p.Loading
}

func (p Panel) StepDisabled() bool {
	return !p.HasSequence || p.Loading || p.Playing
}

// elements returns every element of the panel with the ops that describe its state.
func (p Panel) elements() []fastview.EleUpdate {
	editLocked := disabled(!p.Editable)
	return []fastview.EleUpdate{
		{EleId: "scenario-select", Ops: []fastview.Op{
			{Key: fastview.Value, Value: p.Scenario},
			{Key: fastview.Disabled, Value: editLocked},
		}},
		{EleId: "reset-button", Ops: []fastview.Op{
			{Key: fastview.Disabled, Value: editLocked},
		}},
		{EleId: "algo-input", Ops: []fastview.Op{
			{Key: fastview.Value, Value: p.AlgoType},
			{Key: fastview.Disabled, Value: editLocked},
		}},
		{EleId: "run-button", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.RunLabel},
			{Key: fastview.Disabled, Value: editLocked},
		}},
		{EleId: "runtime", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.Runtime},
		}},
		{EleId: "play-button", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.PlayLabel},
			{Key: fastview.Disabled, Value: disabled(p.PlayDisabled())},
		}},
		{EleId: "step-slider", Ops: []fastview.Op{
			{Key: "max", Value: fmt.Sprint(p.MaxStep)},
			{Key: fastview.Value, Value: fmt.Sprint(p.Step)},
			{Key: fastview.Disabled, Value: disabled(p.StepDisabled())},
		}},
		{EleId: "step-back", Ops: []fastview.Op{
			{Key: fastview.Disabled, Value: disabled(p.StepDisabled())},
		}},
		{EleId: "step-forward", Ops: []fastview.Op{
			{Key: fastview.Disabled, Value: disabled(p.StepDisabled())},
		}},
		{EleId: "step-label", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.StepLabel},
		}},
		{EleId: "phase", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.Phase},
		}},
		{EleId: "robot-x", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.RobotX},
		}},
		{EleId: "robot-y", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.RobotY},
		}},
		{EleId: "server-status", Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: p.ServerStatus},
		}},
		{EleId: "server-dot", Ops: []fastview.Op{
			{Key: "fill", Value: p.ServerFill},
		}},
		// The notice goes last: the page raises a toast once the rest of the panel is current.
		{EleId: "notice", Ops: []fastview.Op{
			{Key: "data-level", Value: p.Notice.Level.String()},
			{Key: "data-id", Value: fmt.Sprint(p.Notice.ID)},
			{Key: fastview.TextContent, Value: p.Notice.Message},
		}},
	}
}

// Returns the updates for the panel elements whose state changed since the last arena.
func (pv *PanelView) onUpdate(arena Arena) (ops []fastview.EleUpdate) {
	next := map[string][]fastview.Op{}
	for _, ele := range arena.Panel.elements() {
		next[ele.EleId] = ele.Ops
		if prev, ok := pv.last[ele.EleId]; ok && slices.Equal(prev, ele.Ops) {
			continue
		}
		ops = append(ops, ele)
	}
	pv.last = next
	return
}

// Parse returns the control panel. Controls post their commands through the page's
// sendCommand function.
func (pv *PanelView) Parse(
	t *template.Template,
) (name string, err error) {
	name = pv.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		{{ $panel := .Panel }}
		<div id="` + pv.id + `" style="padding:20px; font-family:sans-serif; display:flex; flex-direction:column; gap:8px;">
			<div>
				<svg width="12" height="12"><circle id="server-dot" cx="6" cy="6" r="5" fill="{{ $panel.ServerFill }}"/></svg>
				<span id="server-status">{{ $panel.ServerStatus }}</span>
			</div>
			<div>
				<select id="scenario-select" {{ if not $panel.Editable }}disabled{{ end }}
					onchange="sendCommand({kind: 'scenario', scenario: this.value})">
					{{ range $name := $panel.Scenarios }}
					<option value="{{ $name }}" {{ if eq $name $panel.Scenario }}selected{{ end }}>{{ $name }}</option>
					{{ end }}
				</select>
				<button id="reset-button" {{ if not $panel.Editable }}disabled{{ end }}
					onclick="sendCommand({kind: 'reset'})">Reset Obstacles</button>
			</div>
			<div>
				<input id="algo-input" type="text" value="{{ $panel.AlgoType }}" {{ if not $panel.Editable }}disabled{{ end }}
					onchange="sendCommand({kind: 'algo', algo: this.value})"/>
				<button id="run-button" {{ if not $panel.Editable }}disabled{{ end }}
					onclick="sendCommand({kind: 'run'})">{{ $panel.RunLabel }}</button>
			</div>
			<div id="runtime">{{ $panel.Runtime }}</div>
			<div>
				<button id="play-button" {{ if $panel.PlayDisabled }}disabled{{ end }}
					onclick="sendCommand({kind: 'toggle'})">{{ $panel.PlayLabel }}</button>
			</div>
			<div>
				<button id="step-back" {{ if $panel.StepDisabled }}disabled{{ end }}
					onclick="sendCommand({kind: 'step', delta: -1})">&lt;</button>
				<input id="step-slider" type="range" min="0" max="{{ $panel.MaxStep }}" value="{{ $panel.Step }}"
					{{ if $panel.StepDisabled }}disabled{{ end }}
					oninput="sendCommand({kind: 'seek', step: parseInt(this.value, 10)})"/>
				<button id="step-forward" {{ if $panel.StepDisabled }}disabled{{ end }}
					onclick="sendCommand({kind: 'step', delta: 1})">&gt;</button>
				<span id="step-label">{{ $panel.StepLabel }}</span>
			</div>
			<div>Phase: <span id="phase">{{ $panel.Phase }}</span></div>
			<div>
				Robot Position: x <span id="robot-x">{{ $panel.RobotX }}</span>,
				y <span id="robot-y">{{ $panel.RobotY }}</span>
			</div>
			<div id="notice" hidden
				data-level="{{ $panel.Notice.Level }}"
				data-id="{{ $panel.Notice.ID }}">{{ $panel.Notice.Message }}</div>
		</div>
		{{ end }}`)
	return
}
