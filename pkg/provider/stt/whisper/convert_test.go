package whisper

import (
	"encoding/binary"
	"testing"
)

func le16(vals ...int16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestPCMToFloat32(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want []float32
	}{
		{name: "empty", pcm: nil, want: []float32{}},
		{name: "silence", pcm: le16(0, 0), want: []float32{0, 0}},
		{name: "extremes", pcm: le16(32767, -32768), want: []float32{32767.0 / 32768.0, -1}},
		{name: "half scale", pcm: le16(16384, -16384), want: []float32{0.5, -0.5}},
		{name: "odd trailing byte", pcm: append(le16(16384), 0x7f), want: []float32{0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pcmToFloat32(tt.pcm)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
				if got[i] < -1 || got[i] > 1 {
					t.Errorf("sample %d = %v out of [-1, 1]", i, got[i])
				}
			}
		})
	}
}
