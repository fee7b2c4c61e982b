package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
)

// stopGrace is how long a recorder gets to flush after an interrupt.
const stopGrace = 2 * time.Second

// Microphone records by running a command that writes audio to stdout.
type Microphone struct {
	cfg DeviceConfig
}

// NewMicrophone creates a microphone backed by cfg.
func NewMicrophone(cfg DeviceConfig) *Microphone {
	return &Microphone{cfg: cfg}
}

// Open starts the recorder. The recording runs until the stream is closed,
// independent of ctx.
func (m *Microphone) Open(ctx context.Context) (ports.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create audio pipe: %w", err)
	}

	cmd := exec.Command(m.cfg.Command, m.cfg.Args...)
	cmd.Env = m.cfg.environ(cmd.Environ())
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMicrophoneDenied, m.cfg.Command, err)
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	s := &commandStream{
		cmd:    cmd,
		pipe:   pr,
		mime:   m.cfg.MimeType,
		exited: make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()
	return s, nil
}

// commandStream reads the recorder output. Close stops the recorder; reads
// then drain what it flushed and end with io.EOF.
type commandStream struct {
	cmd     *exec.Cmd
	pipe    *os.File
	mime    string
	exited  chan struct{}
	waitErr error
	once    sync.Once
}

func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.pipe.Read(p)
	if errors.Is(err, io.EOF) {
		_ = s.pipe.Close()
	}
	return n, err
}

func (s *commandStream) MimeType() string {
	if s.mime == "" {
		return domain.DefaultRecordingMIME
	}
	return s.mime
}

func (s *commandStream) Close() error {
	s.once.Do(func() {
		_ = s.cmd.Process.Signal(os.Interrupt)
		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	})
	return nil
}
