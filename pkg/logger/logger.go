package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/visitrewards-backend/pkg/env"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Field names shared by every binary so dashboards can filter on them.
const (
	FieldRequestID    = "request_id"
	FieldStaffActorID = "staff_actor_id"
	FieldActorRole    = "actor_role"
	FieldProgramID    = "program_id"
	FieldMembershipID = "membership_id"
	FieldCustomerID   = "customer_id"
)

type Options struct {
	ServiceName string
	// InstanceID tags every line with the process that wrote it.
	InstanceID string
	Level      zerolog.Level
	// Format defaults to LOG_FORMAT, then json.
	Format    Format
	WarnStack bool
	Output    io.Writer
}

// Logger carries request-scoped fields through context.Context so services
// never thread a logger instance alongside ctx.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopedKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = Format(strings.ToLower(env.Get("LOG_FORMAT", string(FormatJSON))))
	}
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	fields := zerolog.New(out).With().Timestamp().Str("service", opts.ServiceName)
	if opts.InstanceID != "" {
		fields = fields.Str("instance", opts.InstanceID)
	}
	return &Logger{
		root:      fields.Logger().Level(opts.Level),
		warnStack: opts.WarnStack,
	}
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(scopedKey{}).(zerolog.Logger); ok {
			return entry
		}
	}
	return l.root
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := l.scoped(ctx).With().Fields(fields).Logger()
	return context.WithValue(ctx, scopedKey{}, entry)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, FieldRequestID, requestID)
}

func (l *Logger) WithStaffActorID(ctx context.Context, actorID string) context.Context {
	return l.WithField(ctx, FieldStaffActorID, actorID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, FieldActorRole, role)
}

func (l *Logger) WithProgramID(ctx context.Context, programID string) context.Context {
	return l.WithField(ctx, FieldProgramID, programID)
}

func (l *Logger) WithMembershipID(ctx context.Context, membershipID string) context.Context {
	return l.WithField(ctx, FieldMembershipID, membershipID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	entry.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	entry.Info().Msg(msg)
}

// Warn attaches a stack only when WarnStack is set.
func (l *Logger) Warn(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	event := entry.Warn()
	if l.warnStack {
		event = event.Str("stack", callerStack())
	}
	event.Msg(msg)
}

// Error always attaches a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	entry := l.scoped(ctx)
	entry.Error().Err(err).Str("stack", callerStack()).Msg(msg)
}

func callerStack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
