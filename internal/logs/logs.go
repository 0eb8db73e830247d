// Package logs assembles the process logger: a text handler on the terminal
// fanned out to the systemd journal when one is reachable.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Level is shared by every handler built here.
var Level = new(slog.LevelVar)

// ParseLevel maps debug, info, warn or error to a level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// New builds a logger writing text to w and, when journal is set, to the
// systemd journal as well. A journal that cannot be opened is reported on
// the text handler and skipped.
func New(w io.Writer, journal bool) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level})
	handlers := []slog.Handler{text}

	if journal {
		jh, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: JournalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = JournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			slog.New(text).Warn("systemd journal unavailable", "error", err)
		} else {
			handlers = append(handlers, jh)
		}
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Setup installs New as the default logger at the named level.
func Setup(w io.Writer, level string, journal bool) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	Level.Set(l)
	slog.SetDefault(New(w, journal))
	return nil
}

// JournalKey maps an attribute key onto the journal's field alphabet:
// upper case letters, digits and underscores.
func JournalKey(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(s))
}
