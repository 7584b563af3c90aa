package main

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalFormatsChatLines(t *testing.T) {
	var buf bytes.Buffer
	out := newTerminal(&buf)

	out.OnMessage("alice: hello: world")
	out.OnMessage("no prefix here")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "] alice: hello: world"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "] * no prefix here"), lines[1])
}

func TestTerminalRecordsLoss(t *testing.T) {
	var buf bytes.Buffer
	out := newTerminal(&buf)
	assert.False(t, out.lost())

	out.OnConnectionLost(errors.New("EOF"))

	assert.True(t, out.lost())
	assert.Contains(t, buf.String(), "Disconnected from server: EOF")
}

func TestResolveNicknameFromFlag(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader(""))

	nick, err := resolveNickname("  carol ", in)
	require.NoError(t, err)
	assert.Equal(t, "carol", nick)
}
