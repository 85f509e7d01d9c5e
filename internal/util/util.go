package util

import (
	"bufio"
	"bytes"
	"strconv"
)

// ScanUntil returns a bufio.SplitFunc that breaks tokens on any of the given
// delimiters. scp redraws its progress meter with '\r', so splitting on
// newlines alone would buffer a whole transfer into one token.
func ScanUntil(delims ...byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexAny(data, string(delims)); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// FormatSize renders a byte count with binary prefixes, keeping one decimal
// below ten units: 512B, 9.5KiB, 10KiB.
func FormatSize(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + "B"
	}
	const prefixes = "KMGTPE"
	value, exp := float64(n)/1024, 0
	for value >= 1024 && exp < len(prefixes)-1 {
		value /= 1024
		exp++
	}
	precision := 1
	if value >= 10 {
		precision = 0
	}
	return strconv.FormatFloat(value, 'f', precision, 64) + prefixes[exp:exp+1] + "iB"
}
