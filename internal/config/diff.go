package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only LogLevel and QuitPhrase are applied live; changes to any other section
// are listed in Restart and take effect on the next start.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	QuitPhraseChanged bool
	NewQuitPhrase     string

	// Restart names the top-level sections whose other changes need a restart.
	Restart []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.QuitPhraseChanged || len(d.Restart) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Chat.QuitPhrase != new.Chat.QuitPhrase {
		d.QuitPhraseChanged = true
		d.NewQuitPhrase = new.Chat.QuitPhrase
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	oldChat, newChat := old.Chat, new.Chat
	oldChat.QuitPhrase, newChat.QuitPhrase = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"audio", old.Audio, new.Audio},
		{"vad", old.VAD, new.VAD},
		{"transcription", old.Transcription, new.Transcription},
		{"chat", oldChat, newChat},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.Restart = append(d.Restart, s.name)
		}
	}
	return d
}
