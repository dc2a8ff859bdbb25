package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Builder assembles a zerolog logger writing to stdout, a buffer or a file.
type Builder struct {
	writer io.Writer
	path   string
	level  string
}

type Log struct {
	File   *os.File
	Logger zerolog.Logger
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// WithLevel sets the minimum level by name ("debug", "info", ...). Unknown names keep info.
func (b *Builder) WithLevel(level string) *Builder {
	b.level = level
	return b
}

func (b *Builder) Make() (*Log, error) {
	log := new(Log)
	writer := b.writer
	if writer == nil {
		writer = os.Stdout
	}
	if b.path != "" {
		file, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		log.File = file
		writer = zerolog.SyncWriter(file)
	}

	level, err := zerolog.ParseLevel(b.level)
	if err != nil || b.level == "" {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return log, nil
}

func (l *Log) Close() error {
	if l.File == nil {
		return nil
	}
	return l.File.Close()
}
