package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"showseed/internal/engine"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var (
	kindLabels = map[statusKind]string{
		statusInfo:  "INFO",
		statusOK:    "OK",
		statusWarn:  "WARN",
		statusError: "ERROR",
	}
	kindColors = map[statusKind]text.Colors{
		statusInfo:  {text.FgBlue},
		statusOK:    {text.FgGreen},
		statusWarn:  {text.FgYellow},
		statusError: {text.FgRed},
	}
	phaseColors = map[engine.Phase]text.Colors{
		engine.PhaseSeeding:         {text.FgGreen},
		engine.PhaseFinished:        {text.FgGreen},
		engine.PhaseError:           {text.FgRed},
		engine.PhaseAdded:           {text.FgYellow},
		engine.PhaseMetadataPending: {text.FgYellow},
	}
)

// renderStatusLine formats "  Label:   [KIND] message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + kindLabels[kind] + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if colors, ok := kindColors[kind]; ok && colorize {
		return colors.Sprint(line)
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = kindColors[statusInfo].Sprint(lines[i])
		}
	}
	return lines
}

func colorPhase(phase engine.Phase, colorize bool) string {
	if colors, ok := phaseColors[phase]; ok && colorize {
		return colors.Sprint(string(phase))
	}
	return string(phase)
}

// shouldColorize reports whether writer is an interactive terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
