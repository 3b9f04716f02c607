// Command authcli registers or logs in against an authform server from the
// terminal, printing the same outcome string the web form shows.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"authform/form"
	"authform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, nil))
}

// run returns the process exit code. A nil logger builds a console logger on
// stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) int {
	fs := pflag.NewFlagSet("authcli", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	baseURL := fs.String("url", envOr("AUTHFORM_URL", "http://localhost:8080"), "server base URL")
	username := fs.StringP("username", "u", "", "username")
	password := fs.StringP("password", "p", "", "password, prompted for when empty")
	verbose := fs.BoolP("verbose", "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: authcli [flags] register|login")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	if logger == nil {
		level := "error"
		if *verbose {
			level = "debug"
		}
		l, err := logging.New(level, "console", "stderr")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer l.Sync()
		logger = l
	}

	if *password == "" {
		p, err := readPassword(stdin)
		if err != nil {
			logger.Error("reading password", zap.Error(err))
			return 1
		}
		*password = p
	}

	sink := &outcomeSink{WriterSink: form.NewWriterSink(stdout)}
	user, pass := form.StaticSource(*username), form.StaticSource(*password)
	opts := []form.Option{form.WithBaseURL(*baseURL), form.WithLogger(logger)}

	var f *form.Form
	switch cmd := fs.Arg(0); cmd {
	case "register":
		f = form.Register(user, pass, sink, opts...)
	case "login":
		f = form.Login(user, pass, sink, opts...)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	logger.Debug("submitting", zap.String("url", *baseURL), zap.String("username", *username))
	if err := f.Submit(ctx); err != nil {
		logger.Error("submitting form", zap.Error(err))
		return 1
	}
	if sink.failed.Load() {
		return 1
	}
	return 0
}

// outcomeSink prints outcomes and remembers whether the last one was a failure.
type outcomeSink struct {
	*form.WriterSink
	failed atomic.Bool
}

func (s *outcomeSink) SetText(text string) {
	s.failed.Store(strings.HasPrefix(text, form.ErrorPrefix))
	s.WriterSink.SetText(text)
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(stdin io.Reader) (string, error) {
	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
