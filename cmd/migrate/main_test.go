package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, "up", cmd.name)

	cmd, err = parseCommand([]string{"DOWN"})
	require.NoError(t, err)
	assert.Equal(t, "down", cmd.name)

	cmd, err = parseCommand([]string{"force", "2"})
	require.NoError(t, err)
	assert.Equal(t, command{name: "force", version: 2}, cmd)
}

func TestParseCommandErrors(t *testing.T) {
	for _, args := range [][]string{{"force"}, {"force", "two"}, {"sideways"}} {
		_, err := parseCommand(args)
		assert.Error(t, err, "args %v", args)
	}
}
