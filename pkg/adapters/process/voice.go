package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// espeak-ng speaks 175 words per minute at rate 1 and uses pitch 50 of 0-99.
const (
	baseWordsPerMinute = 175
	basePitch          = 50
)

// Voice is an on-device synthesizer driven by espeak-ng (or a compatible CLI).
// The text goes through stdin so it can never be read as a flag.
type Voice struct {
	cfg DeviceConfig

	mu      sync.Mutex
	current *exec.Cmd
}

var _ ports.LocalVoice = (*Voice)(nil)

// NewVoice creates a voice backed by cfg.
func NewVoice(cfg DeviceConfig) *Voice {
	return &Voice{cfg: cfg}
}

// Voices lists the installed voices.
func (v *Voice) Voices(ctx context.Context) ([]ports.Voice, error) {
	args := append(append([]string{}, v.cfg.Args...), "--voices")
	cmd := exec.CommandContext(ctx, v.cfg.Command, args...)
	cmd.Env = v.cfg.environ(cmd.Environ())
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return ParseVoices(out), nil
}

// Speak blocks until the utterance ends or is cancelled. Cancel makes it
// return nil.
func (v *Voice) Speak(ctx context.Context, u ports.LocalUtterance) error {
	args := append([]string{}, v.cfg.Args...)
	if u.Voice.Name != "" {
		args = append(args, "-v", voiceID(u.Voice))
	}
	if u.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(int(baseWordsPerMinute*u.Rate)))
	}
	if u.Pitch > 0 {
		args = append(args, "-p", strconv.Itoa(min(99, int(basePitch*u.Pitch))))
	}
	args = append(args, "--stdin")

	cmd := exec.CommandContext(ctx, v.cfg.Command, args...)
	cmd.Env = v.cfg.environ(cmd.Environ())
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	v.mu.Lock()
	if err := cmd.Start(); err != nil {
		v.mu.Unlock()
		return fmt.Errorf("failed to start voice: %w", err)
	}
	v.current = cmd
	v.mu.Unlock()

	err := cmd.Wait()

	v.mu.Lock()
	cancelled := v.current != cmd
	if !cancelled {
		v.current = nil
	}
	v.mu.Unlock()

	if err != nil && !cancelled && ctx.Err() == nil {
		return fmt.Errorf("voice failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Cancel stops the utterance in progress, if any.
func (v *Voice) Cancel() error {
	v.mu.Lock()
	cmd := v.current
	v.current = nil
	v.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to cancel voice: %w", err)
	}
	return nil
}

// ParseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/F      English_(America)  gmw/en-US     (en 2)
func ParseVoices(out []byte) []ports.Voice {
	var voices []ports.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 5 || f[0] == "Pty" {
			continue
		}
		voice := ports.Voice{
			Name: strings.ReplaceAll(f[3], "_", " "),
			Lang: f[1],
		}
		if _, g, ok := strings.Cut(f[2], "/"); ok {
			switch g {
			case "F":
				voice.Gender = "female"
			case "M":
				voice.Gender = "male"
			}
		}
		voice.Default = voice.Lang == "en"
		voices = append(voices, voice)
	}
	return voices
}

// voiceID is the identifier espeak-ng accepts for -v.
func voiceID(v ports.Voice) string {
	if v.Lang != "" {
		return v.Lang
	}
	return v.Name
}
