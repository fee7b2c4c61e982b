package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/presentation/markdown"
	"github.com/aretw0/tripvoice/internal/presentation/tui"
	"github.com/aretw0/tripvoice/pkg/domain"
)

const chatHelp = `Commands:
  /rec          start or stop a voice recording
  /confirm      generate the itinerary from the current draft
  /export       save the itinerary as a PDF
  /new          start a new trip
  /tts on|off   toggle spoken replies
  /trip         show the current draft or itinerary
  /quit         leave the chat`

// ChatOptions configures the interactive chat.
type ChatOptions struct {
	In  io.Reader
	Out io.Writer

	// Styled enables colours and markdown rendering.
	Styled bool
	Width  int

	// Banner prints the banner with this version. Empty skips it.
	Banner string
}

type chat struct {
	app    *App
	out    io.Writer
	render tui.Renderer
	styles tui.Styles
	quit   func()
}

// chatMappings binds exact input lines to lifecycle events.
var chatMappings = map[string]lifecycle.Event{
	"/q":    lifecycle.ShutdownEvent{Reason: "manual"},
	"/quit": lifecycle.ShutdownEvent{Reason: "manual"},
	"/exit": lifecycle.ShutdownEvent{Reason: "manual"},
}

var chatCommands = map[string]bool{
	"/help":    true,
	"/rec":     true,
	"/confirm": true,
	"/export":  true,
	"/new":     true,
	"/tts":     true,
	"/trip":    true,
}

// chatEvent classifies one trimmed input line. Commands become InputEvents,
// anything else typed is a LineEvent for the assistant.
func chatEvent(line string) lifecycle.Event {
	if ev, ok := chatMappings[line]; ok {
		return ev
	}
	cmd, _, _ := strings.Cut(line, " ")
	if strings.HasPrefix(cmd, "/") {
		if chatCommands[cmd] {
			return lifecycle.InputEvent{Command: line}
		}
		return lifecycle.UnknownCommandEvent{Command: cmd}
	}
	return lifecycle.LineEvent{Line: line}
}

// RunChat reads lines from opts.In until /quit, EOF or cancellation.
// Interruptions are not errors. In is closed on return when it is an io.Closer,
// which releases the pending read.
func RunChat(ctx context.Context, app *App, opts ChatOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &chat{
		app:    app,
		out:    opts.Out,
		render: tui.NewRenderer(opts.Styled, opts.Width),
		styles: tui.NewStyles(tui.DefaultTheme, opts.Styled),
		quit:   cancel,
	}
	if opts.Banner != "" {
		tui.PrintBanner(c.out, opts.Banner)
	}
	printSystemMessage(c.out, "Tell me about your trip. /help lists the commands.")

	in := opts.In
	if r, err := lifecycle.UpgradeTerminal(in); err == nil && r != in {
		in = r
	}
	if closer, ok := in.(io.Closer); ok {
		defer closer.Close()
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	handler := c.handler()
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return handleExecutionError(ctx.Err())
		case err := <-readErr:
			fmt.Fprintln(c.out)
			return handleExecutionError(err)
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := handler(ctx, chatEvent(line)); err != nil {
				return handleExecutionError(err)
			}
			if ctx.Err() != nil {
				// Shut down by /quit.
				return nil
			}
		}
	}
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

// handler routes chat events the way an interactive lifecycle router does.
func (c *chat) handler() lifecycle.HandlerFunc {
	return func(ctx context.Context, e lifecycle.Event) error {
		switch ev := e.(type) {
		case lifecycle.ShutdownEvent:
			c.quit()
			return nil
		case lifecycle.InputEvent:
			return c.command(ctx, ev.Command)
		case lifecycle.LineEvent:
			return c.say(ctx, ev.Line)
		case lifecycle.UnknownCommandEvent:
			fmt.Fprintln(c.out, c.styles.Error.Render("unknown command "+ev.Command+", try /help"))
			return nil
		}
		return lifecycle.ErrNotHandled
	}
}

// say sends typed text to the assistant.
func (c *chat) say(ctx context.Context, text string) error {
	ticket, err := c.app.Assistant.Send(ctx, text)
	if errors.Is(err, domain.ErrIgnoredInput) {
		return nil
	}
	if err != nil {
		return c.fail(err)
	}
	return c.await(ctx, ticket)
}

func (c *chat) command(ctx context.Context, line string) error {
	a := c.app.Assistant
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/rec":
		return c.toggleRecording(ctx)
	case "/confirm":
		ticket, err := a.ConfirmItinerary(ctx)
		if err != nil {
			return c.fail(err)
		}
		c.status("Generating your itinerary...")
		return c.await(ctx, ticket)
	case "/export":
		ticket, err := a.RequestExport(ctx)
		if err != nil {
			return c.fail(err)
		}
		return c.await(ctx, ticket)
	case "/new":
		if err := a.StartNewTrip(ctx); err != nil {
			return c.fail(err)
		}
		printSystemMessage(c.out, "Started a new trip.")
	case "/tts":
		switch strings.TrimSpace(arg) {
		case "on":
			a.SetSpeechEnabled(ctx, true)
		case "off":
			a.SetSpeechEnabled(ctx, false)
		default:
			fmt.Fprintln(c.out, c.styles.Error.Render("usage: /tts on|off"))
			return nil
		}
		printSystemMessage(c.out, "Spoken replies: %s.", strings.TrimSpace(arg))
	case "/trip":
		s := a.State()
		if s.Itinerary != nil {
			c.markdown(markdown.Itinerary(s.Itinerary))
		} else {
			c.markdown(markdown.Constraints(s.Constraints))
		}
	}
	return nil
}

func (c *chat) toggleRecording(ctx context.Context) error {
	a := c.app.Assistant
	if !a.Recording() {
		if _, err := a.StartRecording(ctx); err != nil {
			return c.fail(err)
		}
		printSystemMessage(c.out, "Recording. Type /rec again to stop.")
		return nil
	}

	c.status("Transcribing...")
	transcript, ticket, err := a.StopRecording(ctx)
	if err != nil {
		return c.fail(err)
	}
	if transcript == "" {
		printSystemMessage(c.out, "Nothing was heard.")
		return nil
	}
	fmt.Fprintf(c.out, "%s %s\n", c.styles.Label(domain.RoleUser), transcript)
	if ticket == nil {
		return nil
	}
	return c.await(ctx, ticket)
}

// await blocks until the ticket resolves and prints what it changed.
func (c *chat) await(ctx context.Context, ticket *tripvoice.Ticket) error {
	res, err := ticket.Wait(ctx)
	if err != nil {
		return err
	}

	if res.Reply != "" {
		fmt.Fprintf(c.out, "%s ", c.styles.Label(domain.RoleAssistant))
		c.markdown(res.Reply)
	}

	switch res.Outcome {
	case tripvoice.OutcomeRejected:
		return c.fail(res.Err)
	case tripvoice.OutcomeStale:
		c.status("That reply arrived after the trip was reset and was dropped.")
		return nil
	case tripvoice.OutcomeFailed:
		if res.Err != nil {
			c.app.Logger.Debug("Operation failed", "seq", res.Sequence, "route", res.Route, "err", res.Err)
		}
		return nil
	}

	s := c.app.Assistant.State()
	switch res.Route {
	case tripvoice.RoutePlanning:
		if s.Itinerary != nil {
			c.markdown(markdown.Itinerary(s.Itinerary))
			printSystemMessage(c.out, "Ask about the plan, /export it or start /new.")
		}
	case tripvoice.RouteExport:
		printSystemMessage(c.out, "Saved to %s", res.Location)
	case tripvoice.RouteConstraints:
		if s.CanConfirm() {
			c.markdown(markdown.Constraints(s.Constraints))
			printSystemMessage(c.out, "Type /confirm to plan this trip.")
		}
	}
	return nil
}

func (c *chat) markdown(md string) {
	out, err := c.render(md)
	if err != nil {
		out = md
	}
	fmt.Fprint(c.out, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(c.out)
	}
}

func (c *chat) status(msg string) {
	fmt.Fprintln(c.out, c.styles.Status.Render(msg))
}

// fail prints recoverable errors and returns the ones that should end the chat.
func (c *chat) fail(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrClosed) {
		return err
	}
	fmt.Fprintln(c.out, c.styles.Error.Render("error: "+userMessage(err)))
	return nil
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, tripvoice.ErrVoiceDisabled):
		return "voice input is not available in this session"
	case errors.Is(err, domain.ErrMicrophoneDenied):
		return "the microphone could not be opened"
	case errors.Is(err, domain.ErrNotConfirmable):
		return "the trip details are not complete yet"
	case errors.Is(err, domain.ErrNoItinerary):
		return "there is no itinerary to export yet"
	default:
		return err.Error()
	}
}
