package config_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/parley/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

const diffBaseYAML = `
server:
  log_level: info
transcription:
  primary:
    name: deepgram
chat:
  name: openai
  model: gpt-4o-mini
  quit_phrase: please quit now
`

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		edit    func(*config.Config)
		want    config.ConfigDiff
		changed bool
	}{
		{
			name: "no change",
			edit: func(*config.Config) {},
			want: config.ConfigDiff{},
		},
		{
			name:    "log level",
			edit:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			want:    config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug},
			changed: true,
		},
		{
			name:    "quit phrase",
			edit:    func(c *config.Config) { c.Chat.QuitPhrase = "stop now" },
			want:    config.ConfigDiff{QuitPhraseChanged: true, NewQuitPhrase: "stop now"},
			changed: true,
		},
		{
			name: "restart sections",
			edit: func(c *config.Config) {
				c.Server.ListenAddr = ":9000"
				c.VAD.Padding *= 2
				c.Transcription.Primary.Languages = []string{"de-DE"}
				c.Chat.Model = "gpt-4o"
			},
			want:    config.ConfigDiff{Restart: []string{"server", "vad", "transcription", "chat"}},
			changed: true,
		},
		{
			name: "aggressiveness compares by value",
			edit: func(c *config.Config) {
				a := *c.VAD.Aggressiveness
				c.VAD.Aggressiveness = &a
			},
			want: config.ConfigDiff{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := mustLoad(t, diffBaseYAML)
			updated := mustLoad(t, diffBaseYAML)
			tt.edit(updated)

			got := config.Diff(old, updated)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Diff mismatch (-want +got):\n%s", diff)
			}
			if got.Changed() != tt.changed {
				t.Errorf("Changed() = %v, want %v", got.Changed(), tt.changed)
			}
		})
	}
}
