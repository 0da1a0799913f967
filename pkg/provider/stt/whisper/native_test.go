package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads WHISPER_MODEL_PATH and skips the test when it is unset.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath(t *testing.T) {
	if _, err := whisper.NewNative("/nonexistent/path/to/model.bin"); err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNative_EmptySegmentNotUnderstood(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	_, err = n.Transcribe(context.Background(), audio.Segment{SampleRate: audio.SampleRate})
	if !errors.Is(err, stt.ErrNotUnderstood) {
		t.Fatalf("err = %v, want ErrNotUnderstood", err)
	}
}

func TestNative_TranscribesTone(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t), whisper.WithNativeLanguage("en"))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	seg := audio.Segment{PCM: speechPCM(audio.SampleRate), SampleRate: audio.SampleRate}
	res, err := n.Transcribe(context.Background(), seg)
	switch {
	case errors.Is(err, stt.ErrNotUnderstood):
		t.Log("model heard nothing in a pure tone")
	case err != nil:
		t.Fatalf("Transcribe: %v", err)
	default:
		if res.Provider != "whisper-native" {
			t.Errorf("Provider = %q, want whisper-native", res.Provider)
		}
		t.Logf("transcribed text: %q", res.Text)
	}
}

func TestNative_CancelledContext(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seg := audio.Segment{PCM: speechPCM(1600), SampleRate: audio.SampleRate}
	if _, err := n.Transcribe(ctx, seg); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNative_CloseIdempotent(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
