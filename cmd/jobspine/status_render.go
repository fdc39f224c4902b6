package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type checkKind int

const (
	checkInfo checkKind = iota
	checkPass
	checkFail
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

const (
	checkLabelWidth = 22
	checkIndent     = "  "
)

func renderCheckLine(label string, kind checkKind, detail string, colorize bool) string {
	status := fmt.Sprintf("[%s]", checkKindLabel(kind))
	if detail != "" {
		status += " " + detail
	}
	line := fmt.Sprintf("%s%-*s %s", checkIndent, checkLabelWidth, label+":", status)
	if colorize {
		if color := checkKindColor(kind); color != "" {
			return color + line + ansiReset
		}
	}
	return line
}

func checkKindLabel(kind checkKind) string {
	switch kind {
	case checkPass:
		return "PASS"
	case checkFail:
		return "FAIL"
	default:
		return "INFO"
	}
}

func checkKindColor(kind checkKind) string {
	switch kind {
	case checkPass:
		return ansiGreen
	case checkFail:
		return ansiRed
	case checkInfo:
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
