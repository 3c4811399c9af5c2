package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/rpggio/casetrack/internal/client"
	"github.com/rpggio/casetrack/internal/lifecycle"
	"github.com/rpggio/casetrack/internal/presence"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/spf13/cobra"
)

// app is one participant connected to a casetrack server.
type app struct {
	settings settings
	logger   *slog.Logger
	manager  *lifecycle.Manager
	events   *eventPrinter
}

func newLogger(cmd *cobra.Command, s settings) *slog.Logger {
	level := slog.LevelWarn
	if s.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newApp(cmd *cobra.Command, s settings) *app {
	logger := newLogger(cmd, s)
	c := client.New(s.Server, s.User, client.WithLogger(logger))
	registry := presence.NewRegistry(c, logger, presence.WithHeartbeat(s.Heartbeat))
	events := newEventPrinter(cmd.ErrOrStderr())

	manager := lifecycle.New(c, registry, lifecycle.NewMemoryIdentity(s.User),
		lifecycle.WithEmitter(events),
		lifecycle.WithLogger(logger),
		lifecycle.WithIdleWindow(s.IdleWindow),
		lifecycle.WithReplicaOptions(replica.WithVersionCheck(s.Strict)),
	)

	return &app{settings: s, logger: logger, manager: manager, events: events}
}

// Close leaves any open session.
func (a *app) Close(ctx context.Context) {
	a.manager.Leave(ctx)
	a.manager.Close()
}

// watch blocks until the session ends or the process is interrupted.
func (a *app) watch(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		return nil
	case reason := <-a.events.left:
		if reason == string(lifecycle.ReasonRemoved) {
			return fmt.Errorf("session closed by the server")
		}
		return nil
	}
}

// eventPrinter writes lifecycle events as single key=value lines.
type eventPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	left chan string
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{w: w, left: make(chan string, 1)}
}

func (p *eventPrinter) Emit(name string, data map[string]any) {
	p.mu.Lock()
	fmt.Fprintln(p.w, formatEvent(name, data))
	p.mu.Unlock()

	if name != lifecycle.EventSessionLeft {
		return
	}
	reason, _ := data["reason"].(string)
	select {
	case p.left <- reason:
	default:
	}
}

func formatEvent(name string, data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		value := fmt.Sprint(data[k])
		if value == "" || strings.ContainsAny(value, " \t\"=") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", k, value)
	}
	return b.String()
}
