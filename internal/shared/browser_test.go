package shared

import (
	"os/exec"
	"testing"
)

func TestOpenURL(t *testing.T) {
	origRuntime, origLaunch := getRuntime, launch
	t.Cleanup(func() { getRuntime, launch = origRuntime, origLaunch })

	t.Run("Uses Platform Opener", func(t *testing.T) {
		var got *exec.Cmd
		getRuntime = func() string { return "linux" }
		launch = func(cmd *exec.Cmd) error { got = cmd; return nil }

		if err := OpenURL("http://localhost/videos/v1/stream?quality=720p"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.Args[0] != "xdg-open" {
			t.Fatalf("expected xdg-open command, got %v", got)
		}
		if got.Args[1] != "http://localhost/videos/v1/stream?quality=720p" {
			t.Errorf("unexpected url argument %q", got.Args[1])
		}
	})

	t.Run("Unsupported Platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		launch = func(cmd *exec.Cmd) error { t.Fatal("should not launch"); return nil }

		if err := OpenURL("http://localhost"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}
