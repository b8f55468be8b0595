package main

import (
	"testing"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
)

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"debug", "json", false},
		{"info", "text", false},
		{"warn", "json", false},
		{"error", "text", false},
		{"trace", "json", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := buildLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestApplyPathOverrides(t *testing.T) {
	p := config.Paths{Devices: "d", Defaults: "def", DeviceGroups: "dg", ObjectGroups: "og", Objects: "o"}
	applyPathOverrides(&p, "/x/devices", "", "", "/x/og", "")

	want := config.Paths{Devices: "/x/devices", Defaults: "def", DeviceGroups: "dg", ObjectGroups: "/x/og", Objects: "o"}
	if p != want {
		t.Errorf("paths = %+v, want %+v", p, want)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"stage", "trigger", "queues"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (%v)", name, err)
		}
	}
}

func TestRoleList(t *testing.T) {
	if got := roleList(); got != "supervisor, walker, annotator, summary" {
		t.Errorf("roleList() = %q", got)
	}
}
