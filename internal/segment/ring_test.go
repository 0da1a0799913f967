package segment

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/parley/pkg/audio"
)

func tagged(i int, speech bool) ClassifiedFrame {
	return ClassifiedFrame{Frame: audio.Frame{Data: []byte{byte(i), 0}}, Speech: speech}
}

func tags(frames []ClassifiedFrame) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = int(f.Frame.Data[0])
	}
	return out
}

func TestRing_EvictsOldest(t *testing.T) {
	r := newRing(3)
	for i := range 5 {
		r.push(tagged(i, i%2 == 0))
	}
	if r.len() != 3 || r.capacity() != 3 {
		t.Fatalf("len/cap = %d/%d, want 3/3", r.len(), r.capacity())
	}
	if diff := cmp.Diff([]int{2, 3, 4}, tags(r.frames())); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	// Frames 2 and 4 are speech.
	if r.speech() != 2 || r.silence() != 1 {
		t.Errorf("speech/silence = %d/%d, want 2/1", r.speech(), r.silence())
	}
}

func TestRing_Clear(t *testing.T) {
	r := newRing(4)
	r.push(tagged(1, true))
	r.push(tagged(2, true))
	r.clear()
	if r.len() != 0 || r.speech() != 0 {
		t.Fatalf("after clear len=%d speech=%d", r.len(), r.speech())
	}
	r.push(tagged(3, false))
	if diff := cmp.Diff([]int{3}, tags(r.frames())); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}
