package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"gatewarden/internal/api"
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
	statusLabelWidth  = 16
	statusIndent      = "  "
	displayTimeLayout = "2006-01-02 15:04:05"
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
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

// barrierLine summarizes the barrier. An open barrier is a warning so it
// stands out on a terminal.
func barrierLine(b api.BarrierView, colorize bool) string {
	switch b.State {
	case "OPEN":
		detail := "open"
		if b.OpenedFor != "" {
			detail += " for " + b.OpenedFor
		}
		if b.AutoCloseAt != "" {
			detail += ", closes at " + displayTime(b.AutoCloseAt)
		}
		return renderStatusLine("Barrier", statusWarn, detail, colorize)
	case "CLOSED":
		return renderStatusLine("Barrier", statusOK, "closed", colorize)
	default:
		return renderStatusLine("Barrier", statusInfo, "unknown (daemon not running)", colorize)
	}
}

func checkLines(checks []api.CheckResult, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func relayLine(relay *api.RelayStatus, colorize bool) string {
	if relay == nil {
		return renderStatusLine("Relay", statusInfo, "disabled", colorize)
	}
	if !relay.Online {
		detail := relay.Device + " offline"
		if relay.LastError != "" {
			detail += ": " + relay.LastError
		}
		return renderStatusLine("Relay", statusError, detail, colorize)
	}
	detail := relay.Device + " online"
	if relay.Applied != "" {
		detail += ", applied " + relay.Applied
	}
	return renderStatusLine("Relay", statusOK, detail, colorize)
}

// displayTime renders an API timestamp in local time, returning the raw
// value when it does not parse.
func displayTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	t, err := api.ParseTime(value)
	if err != nil || t.IsZero() {
		return value
	}
	return t.Local().Format(displayTimeLayout)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
