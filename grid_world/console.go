package grid_world

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console palette, roughly the browser colours.
var (
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("94"))
	bodyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214"))
	cameraStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("33"))
	centerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160"))
	turningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	obstacleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Background(lipgloss.Color("220")).Bold(true)
	visitedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	labelStyle    = lipgloss.NewStyle().Bold(true)
)

// Returns a two-character glyph for the cell.
func glyph(c CellState) string {
	switch c.Kind {
	case RobotBody:
		return bodyStyle.Render("  ")
	case RobotCamera:
		return cameraStyle.Render("[]")
	case RobotCenter:
		return centerStyle.Render("<>")
	case Turning:
		return turningStyle.Render("::")
	case ObstacleCell:
		return obstacleStyle.Render(faceGlyph(c.Face))
	case VisitedCenter:
		return visitedStyle.Render("()")
	}
	return emptyStyle.Render(" .")
}

func faceGlyph(f Facing) string {
	switch f {
	case FacingNorth:
		return "^^"
	case FacingSouth:
		return "vv"
	case FacingEast:
		return ">>"
	case FacingWest:
		return "<<"
	}
	return "##"
}

// ShowBoard prints the board with y labels on the left and x labels underneath,
// for visual reference in a terminal.
func ShowBoard(w io.Writer, b *Board) error {
	var sb strings.Builder
	for row := range b {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%3d ", b[row][0].Y)))
		for _, cell := range b[row] {
			sb.WriteString(glyph(cell))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("    ")
	for x := 0; x < GridWidth; x++ {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%2d", x)))
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
