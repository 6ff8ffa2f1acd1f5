package stream

import (
	"bufio"
	"bytes"
	"io"
)

// decoder splits a text/event-stream body into message data. Only data
// fields are kept; comments and the event, id and retry fields are skipped.
type decoder struct {
	scanner *bufio.Scanner
}

func newDecoder(r io.Reader, maxLine int) *decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)
	return &decoder{scanner: s}
}

// next returns the data of the next complete message. A message still open
// when the body ends is dropped and io.EOF returned.
func (d *decoder) next() ([]byte, error) {
	var (
		data    []byte
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Bytes()

		if len(line) == 0 {
			if hasData {
				return data, nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, found := bytes.Cut(line, []byte(":"))
		if found {
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		if string(field) != "data" {
			continue
		}

		if hasData {
			data = append(data, '\n')
		}
		data = append(data, value...)
		hasData = true
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
