package cli

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer

	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleText_PartialLineAtEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	got, err := GetSimpleText(in, "Name?", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
}

func TestGetSimpleText_EmptyEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader(""))
	_, err := GetSimpleText(in, "Name?", io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetSecret_FallsBackWithoutTerminal(t *testing.T) {
	// go test does not attach a terminal to stdin.
	in := bufio.NewReader(strings.NewReader("  tok-123 \n"))
	got, err := GetSecret(in, "Token", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)
}
