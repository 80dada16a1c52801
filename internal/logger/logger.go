package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(LevelInfo)
	l.SetFormatter(&textFormatter{})
	return l
}

func SetLevel(level Level) {
	log.SetLevel(level)
}

// ParseLevel принимает debug, info, warn, error
func ParseLevel(s string) (Level, error) {
	return logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func SetFormat(format string) error {
	switch format {
	case FormatText, "":
		log.SetFormatter(&textFormatter{})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("неизвестный формат логов: %q", format)
	}
	return nil
}

func Debug(ctx context.Context, msg string, kv ...any) {
	entry(ctx, kv).Debug(msg)
}

func Info(ctx context.Context, msg string, kv ...any) {
	entry(ctx, kv).Info(msg)
}

func Warn(ctx context.Context, msg string, kv ...any) {
	entry(ctx, kv).Warn(msg)
}

// Error пишет сообщение вместе с текстом ошибки, если она есть.
func Error(ctx context.Context, err error, msg string, kv ...any) {
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func entry(ctx context.Context, kv []any) *logrus.Entry {
	fields := logrus.Fields{}
	if ctx != nil {
		if id := middleware.GetReqID(ctx); id != "" {
			fields["request_id"] = id
		}
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fields[key] = "(MISSING)"
			break
		}
		fields[key] = kv[i+1]
	}
	return log.WithFields(fields)
}

// textFormatter печатает строку вида
// 2006-01-02T15:04:05Z [INFO] сообщение: ошибка key=value
type textFormatter struct{}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString("] ")
	b.WriteString(e.Message)

	if err, ok := e.Data[logrus.ErrorKey]; ok {
		fmt.Fprintf(&b, ": %v", err)
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == logrus.ErrorKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
