package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gwillem/roarm-follower/pkg/follower"
	"github.com/gwillem/roarm-follower/pkg/host"
	"github.com/gwillem/roarm-follower/pkg/mode"
)

// LinkOptions select the serial port of a running follower.
type LinkOptions struct {
	Port     string        `short:"p" long:"port" required:"true" description:"Serial port of the follower"`
	BaudRate int           `long:"baud" default:"115200" description:"Serial baud rate"`
	Timeout  time.Duration `long:"timeout" default:"2s" description:"How long to wait for the reply"`
}

func (l LinkOptions) send(fn func(ctx context.Context, rw io.ReadWriter) (follower.Reply, error)) (follower.Reply, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := host.OpenSerial(l.Port, l.BaudRate)
	if err != nil {
		return follower.Reply{}, err
	}
	defer conn.Close()

	return fn(ctx, conn)
}

type SetIDCommand struct {
	LinkOptions
	Args struct {
		ArmID string `positional-arg-name:"arm_id" required:"true"`
	} `positional-args:"true"`
}

func (c *SetIDCommand) Execute(args []string) error {
	reply, err := c.send(func(ctx context.Context, rw io.ReadWriter) (follower.Reply, error) {
		return host.SetArmID(ctx, rw, c.Args.ArmID, c.Timeout)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Arm on %s is now %s\n", c.Port, successStyle.Render(reply.ArmID))
	return nil
}

type SetModeCommand struct {
	LinkOptions
	Args struct {
		Mode string `positional-arg-name:"mode" required:"true" description:"standalone, leader-broadcast, leader-single, follower or 0-3"`
	} `positional-args:"true"`
}

func (c *SetModeCommand) Execute(args []string) error {
	m, err := mode.Parse(c.Args.Mode)
	if err != nil {
		return err
	}
	if _, err := c.send(func(ctx context.Context, rw io.ReadWriter) (follower.Reply, error) {
		return host.SetMode(ctx, rw, m, c.Timeout)
	}); err != nil {
		return err
	}

	hint := "reporting off"
	if m.Reporting() {
		hint = "reporting on"
	}
	fmt.Printf("Arm on %s switched to %s %s\n", c.Port, successStyle.Render(m.String()), dimStyle.Render(hint))
	return nil
}
