package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/Tyrowin/tcpchat/internal/client"
	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/protocol"
)

const (
	Version     = "1.0.0"
	quitCommand = "/quit"
	// longer lines are still rejected by Send, with a message
	maxInputLine = 64 * 1024
)

var errConnectionLost = errors.New("connection lost")

func main() {
	app := &cli.Command{
		Name:      "tcpchat",
		Usage:     "Terminal client for the tcpchat server",
		Version:   Version,
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Server host",
				Value: client.DefaultHost,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Server port",
				Value:   client.DefaultPort,
			},
			&cli.StringFlag{
				Name:    "nick",
				Aliases: []string{"n"},
				Usage:   "Nickname (prompted for when omitted on a terminal)",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Extra connection attempts before giving up",
			},
			&cli.BoolFlag{
				Name:  "echo",
				Usage: "Show your own messages locally",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	logger.Init(c.String("log-level"), true)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 4096), maxInputLine)

	nickname, err := resolveNickname(c.String("nick"), in)
	if err != nil {
		return err
	}

	cfg := client.DefaultConfig()
	cfg.Host = c.String("host")
	cfg.Port = int(c.Int("port"))
	cfg.Nickname = nickname
	if retries := c.Int("retries"); retries > 0 {
		cfg.Retries = uint(retries)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newTerminal(os.Stdout)
	session, err := client.Dial(ctx, cfg, out)
	if err != nil {
		return fmt.Errorf("unable to connect to the server: %w", err)
	}
	defer func() { _ = session.Close() }()

	out.Printf("Connected to %s as %s. Type %s to leave.", cfg.Addr(), nickname, quitCommand)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()

	echo := c.Bool("echo")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			if out.lost() {
				return errConnectionLost
			}
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == quitCommand {
				return nil
			}
			if err := session.Send(line); err != nil {
				if errors.Is(err, client.ErrClosed) {
					continue
				}
				out.Printf("! %v", err)
				continue
			}
			if echo && line != "" {
				out.OnMessage(protocol.FormatChat(nickname, line))
			}
		}
	}
}

// resolveNickname returns the flag value or asks for one on an interactive terminal.
func resolveNickname(flag string, in *bufio.Scanner) (string, error) {
	if nick := strings.TrimSpace(flag); nick != "" {
		return nick, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("a nickname is required: pass --nick")
	}

	for {
		fmt.Print("Choose a nickname: ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if nick := strings.TrimSpace(in.Text()); nick != "" {
			return nick, nil
		}
	}
}

// terminal prints chat traffic with a timestamp. It implements client.Presenter.
type terminal struct {
	mu      sync.Mutex
	w       io.Writer
	wasLost bool
}

func newTerminal(w io.Writer) *terminal {
	return &terminal{w: w}
}

func (t *terminal) OnMessage(body string) {
	stamp := time.Now().Format(time.TimeOnly)
	if nick, text, ok := protocol.SplitChat(body); ok {
		t.Printf("[%s] %s: %s", stamp, nick, text)
		return
	}
	t.Printf("[%s] * %s", stamp, body)
}

func (t *terminal) OnConnectionLost(err error) {
	t.mu.Lock()
	t.wasLost = true
	t.mu.Unlock()
	t.Printf("Disconnected from server: %v", err)
}

func (t *terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, format+"\n", args...)
}

func (t *terminal) lost() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wasLost
}
