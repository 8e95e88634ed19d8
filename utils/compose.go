// Package utils provides container lifecycle utilities for the runner.
//
// This file drives the backend through the container CLI's compose plugin:
// "up -d" is launched in the background and "down" is run to completion.
package utils

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"biosim-runner/models"
)

// DownTimeout bounds "down" when the caller's context ran out while the
// launch was still running
const DownTimeout = time.Minute

// Compose manages the containerized backend with "<binary> compose"
type Compose struct {
	config models.ComposeConfig
	logger *slog.Logger

	// command builds the process to run; replaced in tests
	command func(ctx context.Context, name string, args ...string) *exec.Cmd

	up *exec.Cmd
}

// NewCompose creates a Compose for the given configuration
func NewCompose(config models.ComposeConfig, logger *slog.Logger) *Compose {
	if config.Binary == "" {
		config.Binary = "docker"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compose{
		config:  config,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// baseArgs returns the compose arguments shared by every subcommand
func (c *Compose) baseArgs() []string {
	args := []string{"compose"}
	if c.config.File != "" {
		args = append(args, "-f", c.config.File)
	}
	if c.config.Project != "" {
		args = append(args, "-p", c.config.Project)
	}
	return args
}

// UpArgs returns the arguments used to launch the backend
func (c *Compose) UpArgs() []string {
	return append(c.baseArgs(), "up", "-d")
}

// DownArgs returns the arguments used to stop the backend
func (c *Compose) DownArgs() []string {
	return append(c.baseArgs(), "down")
}

// Up launches the backend in the background. It does not wait for the
// process to finish or for the backend to become ready.
func (c *Compose) Up(ctx context.Context) error {
	if c.up != nil {
		return fmt.Errorf("backend already started")
	}

	args := c.UpArgs()
	// The launch must outlive a cancelled run context; Down reaps it.
	cmd := c.command(context.WithoutCancel(ctx), c.config.Binary, args...)
	cmd.Dir = c.config.Dir

	c.logger.Debug("starting backend", "cmd", c.config.Binary+" "+strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s compose: %w", c.config.Binary, err)
	}

	c.up = cmd
	return nil
}

// Down stops the backend and blocks until the compose command returns.
// A launch still running when ctx ends is killed, and "down" then gets its
// own DownTimeout.
func (c *Compose) Down(ctx context.Context) error {
	downCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.up != nil {
		downCtx, cancel = c.reapUp(ctx)
	}
	defer cancel()

	args := c.DownArgs()
	cmd := c.command(downCtx, c.config.Binary, args...)
	cmd.Dir = c.config.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("stopping backend", "cmd", c.config.Binary+" "+strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s compose down failed: %w: %s", c.config.Binary, err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// reapUp waits for the launch process to exit, bounded by ctx
func (c *Compose) reapUp(ctx context.Context) (context.Context, context.CancelFunc) {
	up := c.up
	c.up = nil

	done := make(chan error, 1)
	go func() { done <- up.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("backend launch exited with error", "error", err)
		}
		return ctx, func() {}
	case <-ctx.Done():
		c.logger.Warn("backend launch still running at teardown, killing it", "error", ctx.Err())
		if up.Process != nil {
			up.Process.Kill()
		}
		<-done
		return context.WithTimeout(context.WithoutCancel(ctx), DownTimeout)
	}
}

// WaitStartup sleeps for the configured startup delay or until ctx is done
func WaitStartup(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
