package media

import "testing"

func TestFrameLabel(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/tmp/work/talk_01_frame_0004.png", "0004"},
		{"talk_02_frame_0000.png", "0000"},
		{"noseparator.png", "noseparator"},
	}
	for _, c := range cases {
		if got := FrameLabel(c.path); got != c.want {
			t.Errorf("FrameLabel(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestDownloader_AvailableWithBogusBinary(t *testing.T) {
	d := &Downloader{YtDlpPath: "definitely-not-a-real-binary-12345"}
	if d.Available() {
		t.Error("expected Available to be false for a missing binary")
	}
}

func TestFrameExtractor_AvailableWithBogusBinary(t *testing.T) {
	f := &FrameExtractor{FFmpegPath: "definitely-not-a-real-binary-12345"}
	if f.Available() {
		t.Error("expected Available to be false for a missing binary")
	}
}
