package health

import (
	"context"
	"errors"
	"strings"
)

// SourceChecker opens and closes the audio source unless a session holds it.
// session.Controller implements it.
type SourceChecker interface {
	CheckSource(ctx context.Context) (busy bool, err error)
}

// SourceCheck reports whether the audio source can be opened. A source held
// by a listening session is reported busy.
func SourceCheck(s SourceChecker) Checker {
	return Checker{
		Name: "audio",
		Check: func(ctx context.Context) (Report, error) {
			busy, err := s.CheckSource(ctx)
			switch {
			case err != nil:
				return Report{}, err
			case busy:
				return Report{Status: StatusBusy, Detail: "held by a listening session"}, nil
			}
			return Report{Status: StatusOK}, nil
		},
	}
}

// Backends lists the transcription backends currently accepting calls.
type Backends interface {
	Available() []string
}

// BackendsCheck fails when every transcription backend's circuit is open.
// The detail names the backends still accepting calls.
func BackendsCheck(b Backends) Checker {
	return Checker{
		Name: "transcription",
		Check: func(context.Context) (Report, error) {
			names := b.Available()
			if len(names) == 0 {
				return Report{}, errors.New("every backend circuit is open")
			}
			return Report{Detail: strings.Join(names, ",")}, nil
		},
	}
}
