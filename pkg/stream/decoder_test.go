package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, body string) []string {
	t.Helper()
	d := newDecoder(strings.NewReader(body), 1024)
	var out []string
	for {
		data, err := d.next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, string(data))
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"single frame", "data: {\"a\":1}\n\n", []string{`{"a":1}`}},
		{"no space after colon", "data:{\"a\":1}\n\n", []string{`{"a":1}`}},
		{"multi data lines joined", "data: {\"a\":\ndata: 1}\n\n", []string{"{\"a\":\n1}"}},
		{"comments and fields ignored", ": ping\nevent: update\nid: 7\nretry: 100\ndata: x\n\n", []string{"x"}},
		{"crlf line endings", "data: x\r\n\r\ndata: y\r\n\r\n", []string{"x", "y"}},
		{"blank lines between frames", "\n\ndata: x\n\n\n\ndata: y\n\n", []string{"x", "y"}},
		{"partial frame at eof dropped", "data: x\n\ndata: y\n", []string{"x"}},
		{"empty body", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, tt.body))
		})
	}
}

func TestDecoderLineTooLong(t *testing.T) {
	d := newDecoder(strings.NewReader("data: "+strings.Repeat("x", 2048)+"\n\n"), 1024)
	_, err := d.next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}
