package fixer

import (
	"runtime"
	"strings"
)

// SplitLines splits source into lines and reports the line terminator to
// use when joining them back: CRLF when the source already used it or on
// Windows, LF otherwise.
func SplitLines(source string) (lines []string, eol string) {
	eol = "\n"
	if strings.Contains(source, "\r\n") || runtime.GOOS == "windows" {
		eol = "\r\n"
	}
	return strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n"), eol
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string, eol string) string {
	return strings.Join(lines, eol)
}
