package attlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(0x01)
	require.NoError(t, err)
	assert.Equal(t, CommandSetAttitude, cmd)
	assert.Equal(t, SetAttitude, cmd.MessageType())
	assert.Equal(t, "set-attitude", cmd.String())
}

func TestParseCommandRejects(t *testing.T) {
	for _, b := range []byte{0x00, 0x02, 0x03, 0xff} {
		_, err := ParseCommand(b)
		assert.ErrorIs(t, err, ErrUnknownCommand, "byte 0x%02x", b)
	}
}
