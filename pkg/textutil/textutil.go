// Package textutil holds byte-level helpers for source file content.
package textutil

import "bytes"

// sniffLength bounds the prefix searched for NUL bytes, as git does.
const sniffLength = 8000

// LooksBinary reports whether content has a NUL byte near its start.
func LooksBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), sniffLength)], 0) >= 0
}

// CountLines counts newline-terminated lines plus a trailing partial line.
func CountLines(content []byte) int {
	n := bytes.Count(content, []byte{'\n'})
	if len(content) > 0 && content[len(content)-1] != '\n' {
		n++
	}

	return n
}
