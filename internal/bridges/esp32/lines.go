package esp32

import "bytes"

// maxLineLength caps a single device line. Longer input is discarded up to
// the next newline.
const maxLineLength = 64 * 1024

// lineBuffer splits a byte stream into newline-terminated lines.
//
// bufio.Scanner is not used because a serial read that times out returns
// 0, nil, which the scanner treats as a broken reader after a few rounds.
type lineBuffer struct {
	buf      []byte
	overflow bool // discarding until the next newline
}

// Feed appends p and returns every complete line, without the newline.
// The second result is true if an oversized line was discarded.
func (b *lineBuffer) Feed(p []byte) ([]string, bool) {
	var (
		lines   []string
		dropped bool
	)

	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !b.overflow {
				b.buf = append(b.buf, p...)
				if len(b.buf) > maxLineLength {
					b.buf = b.buf[:0]
					b.overflow = true
					dropped = true
				}
			}
			break
		}

		if b.overflow {
			b.overflow = false
		} else {
			b.buf = append(b.buf, p[:i]...)
			if len(b.buf) > maxLineLength {
				dropped = true
			} else {
				lines = append(lines, string(b.buf))
			}
		}
		b.buf = b.buf[:0]
		p = p[i+1:]
	}

	return lines, dropped
}

// Reset discards any partial line.
func (b *lineBuffer) Reset() {
	b.buf = b.buf[:0]
	b.overflow = false
}
