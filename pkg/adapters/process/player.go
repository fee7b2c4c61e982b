package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// Player plays audio by piping it into a command's stdin.
type Player struct {
	cfg DeviceConfig
}

// NewPlayer creates a player backed by cfg.
func NewPlayer(cfg DeviceConfig) *Player {
	return &Player{cfg: cfg}
}

// Play blocks until the command exits. A non-zero exit is a rejected playback.
func (p *Player) Play(ctx context.Context, audio ports.Audio) error {
	cmd := exec.CommandContext(ctx, p.cfg.Command, p.cfg.Args...)
	cmd.Env = p.cfg.environ(cmd.Environ())
	cmd.Stdin = bytes.NewReader(audio.Data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
