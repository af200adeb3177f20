package attlink

import (
	"errors"
	"fmt"
)

var ErrUnknownCommand = errors.New("attlink: unknown command")

// Command is an outbound request kind.
type Command uint8

const CommandSetAttitude Command = 0x01

// ParseCommand maps a command number to a Command.
func ParseCommand(b byte) (Command, error) {
	switch Command(b) {
	case CommandSetAttitude:
		return CommandSetAttitude, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownCommand, b)
	}
}

// MessageType returns the frame type that carries the command.
func (c Command) MessageType() MessageType {
	return SetAttitude
}

func (c Command) String() string {
	if c == CommandSetAttitude {
		return "set-attitude"
	}
	return fmt.Sprintf("command(0x%02x)", uint8(c))
}
