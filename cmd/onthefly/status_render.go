package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"onthefly/internal/daemon"
	"onthefly/internal/deps"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatus(status *daemon.Status, baseURL string, colorize bool) []string {
	lines := renderSectionHeader("Server", colorize)
	if status == nil || !status.Running {
		lines = append(lines, renderStatusLine("Server", statusWarn, "Not running ("+baseURL+")", colorize))
		return lines
	}

	lines = append(lines,
		renderStatusLine("Server", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
		renderStatusLine("Address", statusInfo, "http://"+status.Address, colorize),
	)
	if status.UptimeSeconds > 0 {
		uptime := (time.Duration(status.UptimeSeconds) * time.Second).String()
		lines = append(lines, renderStatusLine("Uptime", statusInfo, uptime, colorize))
	}
	lines = append(lines,
		renderStatusLine("Model", statusInfo, status.Provider+" / "+status.Model, colorize),
		renderStatusLine("Store", statusInfo, status.StoreDriver, colorize),
	)
	embeddings := statusWarn
	if status.Embeddings {
		embeddings = statusOK
	}
	lines = append(lines, renderStatusLine("Embeddings", embeddings, yesNo(status.Embeddings), colorize))

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		for _, dep := range status.Dependencies {
			lines = append(lines, dependencyLine(dep, colorize))
		}
	}

	if capture := status.Capture; capture != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Capture", colorize)...)
		state := statusInfo
		detail := "Finished"
		if capture.Running {
			state, detail = statusOK, "Running"
		}
		lines = append(lines,
			renderStatusLine("Source", state, fmt.Sprintf("%s (%s)", capture.Source, detail), colorize),
			renderStatusLine("Frames", statusInfo, formatCount(capture.Frames), colorize),
			renderStatusLine("Offset", statusInfo, formatOffset(time.Duration(capture.OffsetSec*float64(time.Second))), colorize),
		)
		if capture.Failures > 0 {
			lines = append(lines, renderStatusLine("Failures", statusError,
				fmt.Sprintf("%d (last: %s)", capture.Failures, capture.LastError), colorize))
		}
	}
	return lines
}

func dependencyLine(dep deps.Status, colorize bool) string {
	switch {
	case dep.Available:
		return renderStatusLine(dep.Name, statusOK, dep.Path, colorize)
	case dep.Optional:
		return renderStatusLine(dep.Name, statusWarn, dep.Detail+" (optional)", colorize)
	default:
		return renderStatusLine(dep.Name, statusError, dep.Detail, colorize)
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
