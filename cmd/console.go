// File: cmd/console.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/messaging"
)

// errQuit ends the run loop at the operator's request.
var errQuit = errors.New("operator quit")

const consoleHelp = `Commands:
  status                 show the current status
  raid on|off            toggle starting raids
  combat on|off          toggle engaging auto-combat
  breaks on|off          toggle the break schedule
  randomize on|off       toggle break duration jitter
  end-break              end the current break now
  stop                   switch every automated action off
  help                   show this help
  quit                   shut down
`

// requestHandler is the part of messaging.Router the console uses.
type requestHandler interface {
	Handle(ctx context.Context, req messaging.Request) messaging.Response
}

// parseConsoleCommand turns one console line into a request. Commands the console handles
// itself (help, quit) come back in local with a zero request; blank lines yield neither.
func parseConsoleCommand(line string) (req messaging.Request, local string, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return req, "", nil
	}

	toggle := func() (*bool, error) {
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: %s on|off", fields[0])
		}
		switch fields[1] {
		case "on", "true", "1":
			v := true
			return &v, nil
		case "off", "false", "0":
			v := false
			return &v, nil
		}
		return nil, fmt.Errorf("expected on or off, got %q", fields[1])
	}

	req.Type = messaging.KindUpdateSettings
	switch fields[0] {
	case "status", "s":
		req.Type = messaging.KindGetStatus
	case "raid":
		req.AutoRaid, err = toggle()
	case "combat":
		req.AutoCombat, err = toggle()
	case "breaks":
		req.BreaksEnabled, err = toggle()
	case "randomize":
		req.RandomizeBreaks, err = toggle()
	case "end-break":
		req.Type = messaging.KindForceEndBreak
	case "stop", "deactivate":
		req.Type = messaging.KindDeactivateAll
	case "help", "?":
		return messaging.Request{}, "help", nil
	case "quit", "exit", "q":
		return messaging.Request{}, "quit", nil
	default:
		return messaging.Request{}, "", fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	if err != nil {
		return messaging.Request{}, "", err
	}
	return req, "", nil
}

// runConsole reads commands from in until ctx is done, in is exhausted, or the operator
// quits. Replies go to out.
func runConsole(ctx context.Context, h requestHandler, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

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
		readErr <- scanner.Err()
	}()

	fmt.Fprint(out, "raidpilot ready; type help for commands\n> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			// End of input leaves the controller running; only ctx ends the session.
			if err != nil {
				return fmt.Errorf("error reading console input: %w", err)
			}
			<-ctx.Done()
			return nil
		case line := <-lines:
			req, local, err := parseConsoleCommand(line)
			switch {
			case err != nil:
				fmt.Fprintln(out, "error:", err)
			case local == "quit":
				return errQuit
			case local == "help":
				fmt.Fprint(out, consoleHelp)
			case req.Type != "":
				printResponse(out, h.Handle(ctx, req))
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func printResponse(out io.Writer, resp messaging.Response) {
	if !resp.Success {
		fmt.Fprintln(out, "error:", resp.Error)
	}
	if resp.BreakEnded != nil && !*resp.BreakEnded {
		fmt.Fprintln(out, "no break was running")
	}
	if resp.Settings != nil {
		s := resp.Settings
		fmt.Fprintf(out, "settings: raid=%s combat=%s breaks=%s randomize=%s\n",
			onOff(s.AutoRaid), onOff(s.AutoCombat), onOff(s.Breaks), onOff(s.RandomizeBreaks))
	}
	if resp.Status != nil {
		printStatus(out, *resp.Status)
	}
}

func printStatus(out io.Writer, st schemas.StatusReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mode:\t%s\n", st.Mode)
	fmt.Fprintf(tw, "screen:\t%s\n", st.CurrentScreen)
	fmt.Fprintf(tw, "last action:\t%s\n", st.LastAction)
	if st.PausedReason != "" {
		fmt.Fprintf(tw, "paused:\t%s\n", st.PausedReason)
	}
	fmt.Fprintf(tw, "raids / clicks:\t%d / %d\n", st.TotalRaids, st.TotalClicks)
	if st.IsOnBreak {
		left := (time.Duration(st.TimeLeftMs) * time.Millisecond).Round(time.Second)
		fmt.Fprintf(tw, "break:\t%s left\n", left)
	} else {
		fmt.Fprintf(tw, "break:\tnot on break (%d raids since last)\n", st.RaidsSinceLastBreak)
	}
	fmt.Fprintf(tw, "breaks taken:\t%d\n", st.TotalBreaks)
	_ = tw.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
