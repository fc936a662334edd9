package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"sort"
	"strings"
	"sync"
)

var facilities = map[string]syslog.Priority{
	"auth":     syslog.LOG_AUTH,
	"authpriv": syslog.LOG_AUTHPRIV,
	"cron":     syslog.LOG_CRON,
	"daemon":   syslog.LOG_DAEMON,
	"ftp":      syslog.LOG_FTP,
	"kern":     syslog.LOG_KERN,
	"local0":   syslog.LOG_LOCAL0,
	"local1":   syslog.LOG_LOCAL1,
	"local2":   syslog.LOG_LOCAL2,
	"local3":   syslog.LOG_LOCAL3,
	"local4":   syslog.LOG_LOCAL4,
	"local5":   syslog.LOG_LOCAL5,
	"local6":   syslog.LOG_LOCAL6,
	"local7":   syslog.LOG_LOCAL7,
	"lpr":      syslog.LOG_LPR,
	"mail":     syslog.LOG_MAIL,
	"news":     syslog.LOG_NEWS,
	"syslog":   syslog.LOG_SYSLOG,
	"user":     syslog.LOG_USER,
	"uucp":     syslog.LOG_UUCP,
}

// ParseFacility maps a syslog facility name to its priority bits. The
// empty string means "daemon".
func ParseFacility(name string) (syslog.Priority, error) {
	if name == "" {
		return syslog.LOG_DAEMON, nil
	}
	p, ok := facilities[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown syslog facility %q (valid: %s)", name, strings.Join(FacilityNames(), ", "))
	}
	return p, nil
}

// FacilityNames lists the accepted facility names in sorted order.
func FacilityNames() []string {
	names := make([]string, 0, len(facilities))
	for name := range facilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// syslogWriter is the subset of *syslog.Writer used by syslogHandler.
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Close() error
}

// syslogHandler formats records as text without a timestamp and sends
// each one at the syslog severity matching its level. Handlers derived
// through WithAttrs and WithGroup share the buffer and its lock.
type syslogHandler struct {
	w     syslogWriter
	inner slog.Handler
	mu    *sync.Mutex
	buf   *bytes.Buffer
}

func newSyslogHandler(facility, tag string, opts *slog.HandlerOptions) (*syslogHandler, error) {
	prio, err := ParseFacility(facility)
	if err != nil {
		return nil, err
	}
	w, err := syslog.New(prio|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, fmt.Errorf("connect to syslog: %w", err)
	}
	return newSyslogHandlerWriter(w, opts), nil
}

func newSyslogHandlerWriter(w syslogWriter, opts *slog.HandlerOptions) *syslogHandler {
	buf := &bytes.Buffer{}
	inner := *opts
	replace := opts.ReplaceAttr
	inner.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
			return slog.Attr{}
		}
		if replace != nil {
			return replace(groups, a)
		}
		return a
	}
	return &syslogHandler{
		w:     w,
		inner: slog.NewTextHandler(buf, &inner),
		mu:    &sync.Mutex{},
		buf:   buf,
	}
}

func (h *syslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *syslogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	msg := strings.TrimSuffix(h.buf.String(), "\n")

	switch {
	case r.Level >= slog.LevelError:
		return h.w.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.w.Warning(msg)
	case r.Level >= slog.LevelInfo:
		return h.w.Info(msg)
	default:
		return h.w.Debug(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &syslogHandler{w: h.w, inner: h.inner.WithAttrs(attrs), mu: h.mu, buf: h.buf}
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	return &syslogHandler{w: h.w, inner: h.inner.WithGroup(name), mu: h.mu, buf: h.buf}
}

func (h *syslogHandler) Close() error {
	return h.w.Close()
}
