package segment

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/parley/pkg/audio"
)

// ring of 8 frames at 20 ms with the default ratio: onset needs 7 speech
// frames, offset needs 7 silent frames.
var eight = Config{Padding: 160 * time.Millisecond, FrameDuration: 20 * time.Millisecond, Ratio: 0.75}

// feed pushes a pattern ('v' speech, '.' silence) starting at frame index
// offset. Each frame's single sample carries its index so segment contents
// can be decoded back into frame indices.
func feed(t *testing.T, h *Hysteresis, pattern string, offset int) (segs []audio.Segment, at []int) {
	t.Helper()
	for i, c := range pattern {
		idx := offset + i
		cf := ClassifiedFrame{
			Frame: audio.Frame{
				Data:       []byte{byte(idx), 0},
				SampleRate: audio.SampleRate,
				Timestamp:  time.Duration(idx) * 20 * time.Millisecond,
			},
			Speech: c == 'v',
		}
		if seg, ok := h.Push(cf); ok {
			segs = append(segs, seg)
			at = append(at, idx)
		}
	}
	return segs, at
}

func frameIndices(seg audio.Segment) []int {
	out := make([]int, 0, len(seg.PCM)/2)
	for i := 0; i < len(seg.PCM); i += 2 {
		out = append(out, int(seg.PCM[i]))
	}
	return out
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestConfig_Capacity(t *testing.T) {
	tests := []struct {
		padding time.Duration
		want    int
	}{
		{300 * time.Millisecond, 15},
		{900 * time.Millisecond, 45},
		{160 * time.Millisecond, 8},
		{10 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		c := Config{Padding: tt.padding, FrameDuration: 20 * time.Millisecond, Ratio: 0.75}
		if got := c.Capacity(); got != tt.want {
			t.Errorf("Capacity(%v) = %d, want %d", tt.padding, got, tt.want)
		}
	}
}

func TestNewHysteresis_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero frame", Config{Padding: time.Second, Ratio: 0.75}},
		{"padding below one frame", Config{Padding: 10 * time.Millisecond, FrameDuration: 20 * time.Millisecond, Ratio: 0.75}},
		{"ratio zero", Config{Padding: time.Second, FrameDuration: 20 * time.Millisecond}},
		{"ratio one", Config{Padding: time.Second, FrameDuration: 20 * time.Millisecond, Ratio: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHysteresis(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHysteresis_OnsetNeedsSevenOfEight(t *testing.T) {
	h, err := NewHysteresis(eight)
	if err != nil {
		t.Fatal(err)
	}
	feed(t, h, "vvvvvv", 0)
	if h.State() != Untriggered {
		t.Fatalf("triggered after 6 speech frames")
	}
	feed(t, h, "v", 6)
	if h.State() != Triggered {
		t.Fatalf("not triggered after 7 speech frames")
	}
}

func TestHysteresis_SixOfEightNeverTriggers(t *testing.T) {
	h, _ := NewHysteresis(eight)
	segs, _ := feed(t, h, strings.Repeat("vvvvvv..", 50), 0)
	if len(segs) != 0 {
		t.Fatalf("emitted %d segments", len(segs))
	}
	if h.State() != Untriggered {
		t.Fatalf("state = %v, want UNTRIGGERED", h.State())
	}
}

func TestHysteresis_ExactRatioDoesNotTrigger(t *testing.T) {
	// Capacity 4, ratio 0.75: three of four is exactly the ratio.
	h, _ := NewHysteresis(Config{Padding: 80 * time.Millisecond, FrameDuration: 20 * time.Millisecond, Ratio: 0.75})
	feed(t, h, strings.Repeat("vvv.", 30), 0)
	if h.State() != Untriggered {
		t.Fatalf("triggered at ratio equality")
	}
}

func TestHysteresis_NoEmissionWhileUntriggered(t *testing.T) {
	h, _ := NewHysteresis(eight)
	segs, _ := feed(t, h, "........v.v.vv..vvv...vvvvv...v", 0)
	if len(segs) != 0 {
		t.Fatalf("emitted %v", segs)
	}
}

func TestHysteresis_EndToEnd(t *testing.T) {
	h, _ := NewHysteresis(eight)

	// Frames 0-4 silent, 5-12 speech, 13-17 silent. A five-frame silent tail
	// leaves the segment open: with eight buffered frames offset needs seven
	// unvoiced ones.
	segs, _ := feed(t, h, ".....vvvvvvvv.....", 0)
	if len(segs) != 0 {
		t.Fatalf("emitted before offset: %d segments", len(segs))
	}
	if h.State() != Triggered {
		t.Fatalf("state = %v, want TRIGGERED", h.State())
	}

	// Offset needs more than six of eight buffered frames silent; frames 18
	// and 19 complete it.
	segs, at := feed(t, h, "..", 18)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if at[0] != 19 {
		t.Errorf("segment closed at frame %d, want 19", at[0])
	}
	if h.State() != Untriggered {
		t.Errorf("state = %v, want UNTRIGGERED", h.State())
	}

	// Onset fires at frame 11 with frames 4-11 buffered; the segment then runs
	// through the closing frame.
	seg := segs[0]
	if diff := cmp.Diff(seq(4, 19), frameIndices(seg)); diff != "" {
		t.Errorf("segment frames mismatch (-want +got):\n%s", diff)
	}
	if seg.Frames != 16 {
		t.Errorf("Frames = %d, want 16", seg.Frames)
	}
	if seg.Start != 80*time.Millisecond {
		t.Errorf("Start = %v, want 80ms", seg.Start)
	}
	if seg.ID == "" {
		t.Error("segment has no ID")
	}
	if seg.SampleRate != audio.SampleRate {
		t.Errorf("SampleRate = %d, want %d", seg.SampleRate, audio.SampleRate)
	}
}

func TestHysteresis_OffsetNeedsSevenSilent(t *testing.T) {
	h, _ := NewHysteresis(eight)
	feed(t, h, "vvvvvvv", 0)
	if h.State() != Triggered {
		t.Fatal("not triggered")
	}
	// Six silent frames after onset do not close the segment.
	if segs, _ := feed(t, h, "......", 7); len(segs) != 0 {
		t.Fatal("closed after six silent frames")
	}
	segs, _ := feed(t, h, ".", 13)
	if len(segs) != 1 {
		t.Fatal("did not close after seven silent frames")
	}
	if diff := cmp.Diff(seq(0, 13), frameIndices(segs[0])); diff != "" {
		t.Errorf("segment frames mismatch (-want +got):\n%s", diff)
	}
}

func TestHysteresis_BriefPauseDoesNotSplit(t *testing.T) {
	h, _ := NewHysteresis(eight)
	segs, _ := feed(t, h, "vvvvvvv"+"...vvv..."+"vvvv"+".......", 0)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
}

func TestHysteresis_ConsecutiveSegments(t *testing.T) {
	h, _ := NewHysteresis(eight)
	segs, _ := feed(t, h, "vvvvvvv......."+"vvvvvvv.......", 0)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].ID == segs[1].ID {
		t.Error("segments share an ID")
	}
	if diff := cmp.Diff(seq(14, 27), frameIndices(segs[1])); diff != "" {
		t.Errorf("second segment mismatch (-want +got):\n%s", diff)
	}
}

func TestHysteresis_Reset(t *testing.T) {
	h, _ := NewHysteresis(eight)
	feed(t, h, "vvvvvvvvv", 0)
	h.Reset()
	if h.State() != Untriggered {
		t.Fatalf("state after reset = %v", h.State())
	}
	// The partial utterance is gone: seven silent frames emit nothing.
	if segs, _ := feed(t, h, ".......", 9); len(segs) != 0 {
		t.Fatalf("emitted %d segments after reset", len(segs))
	}
}

func TestState_String(t *testing.T) {
	if Untriggered.String() != "UNTRIGGERED" || Triggered.String() != "TRIGGERED" {
		t.Errorf("got %q/%q", Untriggered, Triggered)
	}
	if got := State(7).String(); got != "State(7)" {
		t.Errorf("got %q", got)
	}
}
