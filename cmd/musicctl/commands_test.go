package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestClock(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{59999, "0:59"},
		{61000, "1:01"},
		{3600000, "60:00"},
	}
	for _, tt := range tests {
		if got := clock(tt.ms); got != tt.want {
			t.Errorf("clock(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestIntArgs(t *testing.T) {
	got, err := intArgs([]string{"3", "0"}, 2)
	if err != nil {
		t.Fatalf("intArgs failed: %v", err)
	}
	if got[0] != 3 || got[1] != 0 {
		t.Errorf("Expected [3 0], got %v", got)
	}

	for _, args := range [][]string{{"1"}, {"a", "1"}, {"-1", "2"}} {
		if _, err := intArgs(args, 2); !errors.Is(err, errUsage) {
			t.Errorf("intArgs(%v) error = %v, want usage error", args, err)
		}
	}
}

func TestArgumentValidation(t *testing.T) {
	ctx := context.Background()
	e := &env{}

	cases := map[string][]string{
		"repeat":  {"sometimes"},
		"headset": {"maybe"},
		"seek":    {"-5"},
		"load":    nil,
		"play":    {"extra"},
	}
	for name, args := range cases {
		if err := commands[name](ctx, e, args); !errors.Is(err, errUsage) {
			t.Errorf("%s %v: error = %v, want usage error", name, args, err)
		}
	}
}

func TestAbsPaths(t *testing.T) {
	paths, err := absPaths([]string{"song.mp3"})
	if err != nil {
		t.Fatalf("absPaths failed: %v", err)
	}
	if len(paths) != 1 || !filepath.IsAbs(paths[0]) {
		t.Errorf("Expected an absolute path, got %v", paths)
	}
}
