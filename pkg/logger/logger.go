package logger

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "time"
    
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"
)

// Field type
type Field = zapcore.Field

// Level type
type Level = zapcore.Level

const (
    // DebugLevel level
    DebugLevel Level = zapcore.DebugLevel
    // InfoLevel level
    InfoLevel Level = zapcore.InfoLevel
    // WarnLevel level
    WarnLevel Level = zapcore.WarnLevel
    // ErrorLevel level
    ErrorLevel Level = zapcore.ErrorLevel
    // FatalLevel level
    FatalLevel Level = zapcore.FatalLevel
)

// Logger interface
type Logger interface {
    Debug(msg string, fields ...Field)
    Info(msg string, fields ...Field)
    Warn(msg string, fields ...Field)
    Error(msg string, fields ...Field)
    Fatal(msg string, fields ...Field)
    With(fields ...Field) Logger
    Named(name string) Logger
    Sync() error
}

// Config defines logger configuration
type Config struct {
    Level        string `json:"level" yaml:"level"`
    Encoding     string `json:"encoding" yaml:"encoding"`
    OutputPaths  []string `json:"outputPaths" yaml:"outputPaths"`
    ErrorPaths   []string `json:"errorPaths" yaml:"errorPaths"`
    MaxSize      int      `json:"maxSize" yaml:"maxSize"`         // MB
    MaxBackups   int      `json:"maxBackups" yaml:"maxBackups"`
    MaxAge       int      `json:"maxAge" yaml:"maxAge"`           // days
    Compress     bool     `json:"compress" yaml:"compress"`
    Development  bool     `json:"development" yaml:"development"`
    InitialFields map[string]interface{} `json:"initialFields" yaml:"initialFields"`
}

type logger struct {
    zap *zap.Logger
}

// Option defines logger option function
type Option func(*Config)

// WithLevel sets logger level
func WithLevel(level string) Option {
    return func(c *Config) {
        c.Level = level
    }
}

// WithEncoding sets logger encoding
func WithEncoding(encoding string) Option {
    return func(c *Config) {
        c.Encoding = encoding
    }
}

// WithOutputPaths sets logger output paths
func WithOutputPaths(paths []string) Option {
    return func(c *Config) {
        c.OutputPaths = paths
    }
}

// WithErrorPaths sets where error level entries are duplicated
func WithErrorPaths(paths []string) Option {
    return func(c *Config) {
        c.ErrorPaths = paths
    }
}

// WithDevelopment toggles zap development mode
func WithDevelopment(dev bool) Option {
    return func(c *Config) {
        c.Development = dev
    }
}

// WithFileRotation sets lumberjack rotation limits for file outputs
func WithFileRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
    return func(c *Config) {
        if maxSizeMB > 0 {
            c.MaxSize = maxSizeMB
        }
        if maxBackups > 0 {
            c.MaxBackups = maxBackups
        }
        if maxAgeDays > 0 {
            c.MaxAge = maxAgeDays
        }
    }
}

// WithInitialFields adds fields attached to every entry
func WithInitialFields(fields map[string]interface{}) Option {
    return func(c *Config) {
        for k, v := range fields {
            c.InitialFields[k] = v
        }
    }
}

// DefaultConfig returns the config NewLogger starts from
func DefaultConfig() *Config {
    return &Config{
        Level:      "info",
        Encoding:   "json",
        OutputPaths: []string{"stdout", "logs/app.log"},
        ErrorPaths:  []string{"stderr", "logs/error.log"},
        MaxSize:    100,
        MaxBackups: 3,
        MaxAge:     7,
        Compress:   true,
        Development: false,
        InitialFields: make(map[string]interface{}),
    }
}

// NewLogger creates a new logger instance
func NewLogger(opts ...Option) (Logger, error) {
    cfg := DefaultConfig()

    // Apply options
    for _, opt := range opts {
        opt(cfg)
    }

    // Create directories if needed
    for _, path := range append(cfg.OutputPaths, cfg.ErrorPaths...) {
        if path != "stdout" && path != "stderr" {
            if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
                return nil, fmt.Errorf("can't create log directory: %w", err)
            }
        }
    }

    // Create core encoder
    encoderConfig := zapcore.EncoderConfig{
        TimeKey:        "timestamp",
        LevelKey:       "level",
        NameKey:        "logger",
        CallerKey:      "caller",
        FunctionKey:    zapcore.OmitKey,
        MessageKey:     "message",
        StacktraceKey:  "stacktrace",
        LineEnding:     zapcore.DefaultLineEnding,
        EncodeLevel:    zapcore.LowercaseLevelEncoder,
        EncodeTime:     zapcore.ISO8601TimeEncoder,
        EncodeDuration: zapcore.SecondsDurationEncoder,
        EncodeCaller:   zapcore.ShortCallerEncoder,
    }

    // Parse log level
    level := zap.NewAtomicLevel()
    if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
        return nil, fmt.Errorf("can't parse log level: %w", err)
    }

    newEncoder := func() zapcore.Encoder {
        if cfg.Encoding == "json" {
            return zapcore.NewJSONEncoder(encoderConfig)
        }
        return zapcore.NewConsoleEncoder(encoderConfig)
    }

    // Create writers for each output path; error paths only receive error and above
    var cores []zapcore.Core
    for _, path := range cfg.OutputPaths {
        cores = append(cores, zapcore.NewCore(newEncoder(), cfg.writerFor(path), level))
    }
    errorLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
        return l >= zapcore.ErrorLevel && level.Enabled(l)
    })
    for _, path := range cfg.ErrorPaths {
        cores = append(cores, zapcore.NewCore(newEncoder(), cfg.writerFor(path), errorLevel))
    }

    // Create options
    options := []zap.Option{
        zap.AddCaller(),
        zap.AddCallerSkip(1),
    }

    if cfg.Development {
        options = append(options, zap.Development())
    }

    // Add initial fields
    if len(cfg.InitialFields) > 0 {
        fields := make([]zap.Field, 0, len(cfg.InitialFields))
        for k, v := range cfg.InitialFields {
            fields = append(fields, zap.Any(k, v))
        }
        options = append(options, zap.Fields(fields...))
    }

    // Create logger
    zapLogger := zap.New(
        zapcore.NewTee(cores...),
        options...,
    )

    return &logger{zap: zapLogger}, nil
}

func (c *Config) writerFor(path string) zapcore.WriteSyncer {
    switch path {
    case "stdout":
        return zapcore.AddSync(os.Stdout)
    case "stderr":
        return zapcore.AddSync(os.Stderr)
    default:
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   path,
            MaxSize:    c.MaxSize,
            MaxBackups: c.MaxBackups,
            MaxAge:     c.MaxAge,
            Compress:   c.Compress,
        })
    }
}

// Various field constructors
func String(key string, val string) Field        { return zap.String(key, val) }
func Int(key string, val int) Field             { return zap.Int(key, val) }
func Int64(key string, val int64) Field         { return zap.Int64(key, val) }
func Float64(key string, val float64) Field     { return zap.Float64(key, val) }
func Bool(key string, val bool) Field           { return zap.Bool(key, val) }
func Any(key string, val interface{}) Field     { return zap.Any(key, val) }
func Error(err error) Field                     { return zap.Error(err) }
func Time(key string, val time.Time) Field      { return zap.Time(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Stack() Field                              { return zap.Stack("stacktrace") }

// Logger implementation
func (l *logger) Debug(msg string, fields ...Field) {
    l.zap.Debug(msg, fields...)
}

func (l *logger) Info(msg string, fields ...Field) {
    l.zap.Info(msg, fields...)
}

func (l *logger) Warn(msg string, fields ...Field) {
    l.zap.Warn(msg, fields...)
}

func (l *logger) Error(msg string, fields ...Field) {
    l.zap.Error(msg, fields...)
}

func (l *logger) Fatal(msg string, fields ...Field) {
    l.zap.Fatal(msg, fields...)
}

func (l *logger) With(fields ...Field) Logger {
    return &logger{zap: l.zap.With(fields...)}
}

func (l *logger) Named(name string) Logger {
    return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
    return l.zap.Sync()
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
    return &logger{zap: zap.NewNop()}
}

type contextKey string

const (
    requestIDKey  contextKey = "request_id"
    documentIDKey contextKey = "document_id"
)

// WithRequestID stores a request id for FromContext
func WithRequestID(ctx context.Context, id string) context.Context {
    return context.WithValue(ctx, requestIDKey, id)
}

// WithDocumentID stores the document being worked on for FromContext
func WithDocumentID(ctx context.Context, id string) context.Context {
    return context.WithValue(ctx, documentIDKey, id)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
    id, _ := ctx.Value(requestIDKey).(string)
    return id
}

// ContextLogger adds context support
type ContextLogger interface {
    Logger
    FromContext(ctx context.Context) Logger
}

type contextLogger struct {
    Logger
}

// NewContextLogger creates a new context logger
func NewContextLogger(l Logger) ContextLogger {
    return &contextLogger{Logger: l}
}

// FromContext creates a new logger with context values
func (l *contextLogger) FromContext(ctx context.Context) Logger {
    fields := make([]Field, 0, 2)
    if requestID, ok := ctx.Value(requestIDKey).(string); ok {
        fields = append(fields, String("request_id", requestID))
    }
    if documentID, ok := ctx.Value(documentIDKey).(string); ok {
        fields = append(fields, String("document_id", documentID))
    }
    if len(fields) == 0 {
        return l.Logger
    }
    return l.With(fields...)
}