package cell_views

import (
	"fmt"
	"html/template"

	"pathsim/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// cellDim is the cell height/width size in pixels.
const cellDim = 30

// ArenaView draws the arena as an svg grid of cells. Clicking a cell the user may edit
// sends a cell command over the page's websocket.
type ArenaView struct {
	id      string
	updates <-chan []fastview.EleUpdate
	// last holds the cells most recently sent, so only changed cells are updated.
	last [][]Cell
}

func NewArenaView(
	done <-chan struct{},
	arenas <-chan Arena,
) (av *ArenaView) {
	// Hyphenated ids interfere with html/template's `template` directive.
	av = &ArenaView{id: "arena"}
	av.updates = channerics.Convert(done, arenas, av.onUpdate)
	return
}

func (av *ArenaView) Updates() <-chan []fastview.EleUpdate {
	return av.updates
}

// Returns the set of view updates needed for the view to reflect the current arena.
func (av *ArenaView) onUpdate(arena Arena) (ops []fastview.EleUpdate) {
	for ri, row := range arena.Cells {
		for ci, cell := range row {
			if av.last != nil && av.last[ri][ci] == cell {
				continue
			}
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cell.Id(),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
						{Key: "data-kind", Value: cell.Kind},
						{Key: "data-clickable", Value: fmt.Sprint(cell.Clickable)},
					},
				},
				fastview.EleUpdate{
					EleId: cell.Id() + "-glyph",
					Ops: []fastview.Op{
						{Key: fastview.TextContent, Value: cell.Glyph},
					},
				})
		}
	}
	av.last = arena.Cells
	return
}

// Parse returns the svg arena. Rows run top to bottom, so the arena's origin is drawn
// at the bottom left.
func (av *ArenaView) Parse(
	t *template.Template,
) (name string, err error) {
	name = av.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			{{ $cell_width := ` + fmt.Sprint(cellDim) + ` }}
			{{ $cell_height := $cell_width }}
			{{ $rows := len .Cells }}
			{{ $cols := len (index .Cells 0) }}
			{{ $width := mult $cell_width $cols }}
			{{ $height := mult $cell_height $rows }}
			{{ $half_width := div $cell_width 2 }}
			{{ $half_height := div $cell_height 2 }}
			<svg id="` + av.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{ $cell.Id }}"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="#7c2d12"
							stroke-width="1"
							data-x="{{ $cell.GX }}"
							data-y="{{ $cell.GY }}"
							data-kind="{{ $cell.Kind }}"
							data-clickable="{{ $cell.Clickable }}"/>
						<text id="{{ $cell.Id }}-glyph"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) $half_height }}"
							dominant-baseline="central" text-anchor="middle"
							font-size="14" pointer-events="none"
							>{{ $cell.Glyph }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
