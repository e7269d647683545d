package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{nil, CommandServe},
		{[]string{}, CommandServe},
		{[]string{"serve"}, CommandServe},
		{[]string{"worker"}, CommandWorker},
		{[]string{"migrate"}, CommandMigrate},
		{[]string{"healthcheck"}, CommandHealthcheck},
		{[]string{"worker", "--extra"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) unexpected error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_Unknown(t *testing.T) {
	_, err := ParseCommand([]string{"seed"})
	if err == nil {
		t.Fatal("ParseCommand([seed]) should return error")
	}
	if !strings.Contains(err.Error(), "usage:") {
		t.Errorf("error should include usage, got %q", err.Error())
	}
}
