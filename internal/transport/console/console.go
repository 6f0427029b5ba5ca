// Package console is the local development transport: one user talking to
// the engine over stdin/stdout. Production deployments plug a real
// messaging surface into session.Transport instead.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"miniarima/internal/session"
)

// Transport prints outbound instructions and feeds typed-in lines back to
// the engine as events.
type Transport struct {
	mu   sync.Mutex
	out  io.Writer
	next int
}

func NewTransport(out io.Writer) *Transport {
	return &Transport{out: out}
}

func (t *Transport) SendText(_ context.Context, _ int64, text string, menu []session.Action) (session.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, text)
	for _, action := range menu {
		fmt.Fprintf(t.out, "  [!%s] %s\n", action.Token, action.Label)
	}
	t.next++
	return session.MessageRef(strconv.Itoa(t.next)), nil
}

func (t *Transport) EditText(ctx context.Context, userID int64, _ session.MessageRef, text string, menu []session.Action) error {
	_, err := t.SendText(ctx, userID, text, menu)
	return err
}

func (t *Transport) DeleteMessage(context.Context, int64, session.MessageRef) error {
	return nil
}

func (t *Transport) SendImage(_ context.Context, _ int64, url, caption string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s\n%s\n", caption, url)
	return nil
}

// Loop reads lines until EOF or context cancellation. Slash commands map to
// engine commands; lines starting with "!" are treated as menu-action
// tokens; everything else is free text. Menus render their tokens so a
// tester can pick them with "!menu:models" and the like.
type Loop struct {
	engine *session.Engine
	userID int64
	handle string
	in     io.Reader
}

func NewLoop(engine *session.Engine, userID int64, handle string, in io.Reader) *Loop {
	return &Loop{engine: engine, userID: userID, handle: handle, in: in}
}

func (l *Loop) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(l.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			l.engine.HandleCommand(ctx, l.userID, l.handle, session.Command(strings.TrimPrefix(line, "/")))
		case strings.HasPrefix(line, "!"):
			l.engine.HandleAction(ctx, l.userID, strings.TrimPrefix(line, "!"))
		default:
			l.engine.HandleText(ctx, l.userID, l.handle, line)
		}
	}
	return scanner.Err()
}
