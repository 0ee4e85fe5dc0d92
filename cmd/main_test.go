package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatCommand(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{input: "/history", want: cmdHistory},
		{input: "  /HISTORY ", want: cmdHistory},
		{input: "/exit", want: cmdExit},
		{input: "exit", want: cmdExit},
		{input: "quit", want: cmdExit},
		{input: "history", want: cmdNone},
		{input: "What history does the speaker mention?", want: cmdNone},
		{input: "", want: cmdNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, chatCommand(tt.input))
		})
	}
}
