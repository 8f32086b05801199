package version

import (
	"regexp"
	"testing"
)

func TestCurrentFormat(t *testing.T) {
	semver := regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)
	if !semver.MatchString(Current) {
		t.Fatalf("Current=%q, want bare <major>.<minor>.<patch>", Current)
	}
}
