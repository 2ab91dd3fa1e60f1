package config

import "testing"

func TestNewBuildInfo_Defaults(t *testing.T) {
	info := NewBuildInfo()
	if info.Version != "dev" || info.Commit != "none" || info.BuildTime != "unknown" {
		t.Errorf("unexpected default build info: %+v", info)
	}
}

func TestNewBuildInfo_LinkerValues(t *testing.T) {
	origV, origC, origT := version, commit, buildTime
	t.Cleanup(func() { version, commit, buildTime = origV, origC, origT })

	version, commit, buildTime = "1.4.0", "abc1234", "2026-03-10T12:00:00Z"
	info := NewBuildInfo()
	if info.Version != "1.4.0" || info.Commit != "abc1234" || info.BuildTime != "2026-03-10T12:00:00Z" {
		t.Errorf("linker values not propagated: %+v", info)
	}
}
