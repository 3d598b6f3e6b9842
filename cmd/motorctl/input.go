package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/keyboard"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/seriallink"
)

// startInput starts the chosen command source in the background.  When the
// source finishes (the user quits or the device goes away) everything shuts
// down.
func startInput(ctx context.Context, cancel context.CancelFunc, r *RunCmd, sink controller.Sink) error {
	switch r.Input {
	case "keyboard":
		kb, err := keyboard.Open(os.Stdin)
		if err != nil {
			return err
		}
		go func() {
			defer cancel()
			defer kb.Close()
			if err := keyboard.Loop(ctx, kb, sink); err != nil {
				fmt.Printf("Keyboard failed: %v\r\n", err)
			}
		}()
	case "joystick":
		go func() {
			defer cancel()
			j := waitForJoystick(ctx, r.Joystick)
			if j == nil {
				return
			}
			defer j.Close()
			if err := j.Loop(ctx, sink); err != nil {
				fmt.Printf("Joystick failed: %v\n", err)
			}
		}()
	case "serial":
		port, err := seriallink.Open(r.Serial, r.Baud)
		if err != nil {
			return err
		}
		go func() {
			defer cancel()
			defer port.Close()
			if err := seriallink.Serve(ctx, port, sink); err != nil {
				fmt.Printf("Serial link failed: %v\n", err)
			}
		}()
	case "none":
		fmt.Println("No input; running queued commands until interrupted")
	}
	return nil
}

func waitForJoystick(ctx context.Context, device string) *joystick.Joystick {
	firstLog := true
	for ctx.Err() == nil {
		j, err := joystick.NewJoystick(device)
		if err == nil {
			fmt.Printf("Opened joystick\n")
			return j
		}
		if firstLog {
			fmt.Printf("Waiting for joystick: %v.\n", err)
			firstLog = false
		}
		select {
		case <-ctx.Done():
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}
