package health

import (
	"context"
	"errors"
	"testing"
)

// fakeSource answers CheckSource with fixed values and counts calls.
type fakeSource struct {
	busy  bool
	err   error
	calls *int
}

func (f fakeSource) CheckSource(context.Context) (bool, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.busy, f.err
}

type fakeBackends []string

func (f fakeBackends) Available() []string { return f }

func TestSourceCheck(t *testing.T) {
	tests := []struct {
		name       string
		src        fakeSource
		wantStatus Status
		wantErr    bool
	}{
		{name: "idle source opens", wantStatus: StatusOK},
		{name: "held by session", src: fakeSource{busy: true}, wantStatus: StatusBusy},
		{name: "open fails", src: fakeSource{err: errors.New("no such device")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			tt.src.calls = &calls
			c := SourceCheck(tt.src)
			if c.Name != "audio" {
				t.Errorf("Name = %q, want audio", c.Name)
			}

			rep, err := c.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && rep.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", rep.Status, tt.wantStatus)
			}
			if calls != 1 {
				t.Errorf("CheckSource called %d times, want 1", calls)
			}
		})
	}
}

func TestBackendsCheck(t *testing.T) {
	tests := []struct {
		name       string
		available  fakeBackends
		wantDetail string
		wantErr    bool
	}{
		{name: "all up", available: fakeBackends{"deepgram", "whisper"}, wantDetail: "deepgram,whisper"},
		{name: "fallback only", available: fakeBackends{"whisper"}, wantDetail: "whisper"},
		{name: "none", available: fakeBackends{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := BackendsCheck(tt.available).Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if rep.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", rep.Detail, tt.wantDetail)
			}
		})
	}
}
