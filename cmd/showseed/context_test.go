package main

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestDescribeDialError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("dial: %w", syscall.ENOENT), "showseed start"},
		{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), "refused the connection"},
		{errors.New("boom"), "connect to daemon: boom"},
	}
	for _, tc := range cases {
		got := describeDialError(tc.err, "/tmp/x.sock").Error()
		if !strings.Contains(got, tc.want) {
			t.Fatalf("describeDialError(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
}

func TestShouldSkipConfigInheritsAnnotation(t *testing.T) {
	root := newRootCommand()
	initCmd, _, err := root.Find([]string{"config", "init"})
	if err != nil {
		t.Fatalf("find config init: %v", err)
	}
	if !shouldSkipConfig(initCmd) {
		t.Fatal("config init should skip config loading")
	}
	listCmd, _, err := root.Find([]string{"list"})
	if err != nil {
		t.Fatalf("find list: %v", err)
	}
	if shouldSkipConfig(listCmd) {
		t.Fatal("list should load config")
	}
}
