// Package refcodec implements the operator tool that turns storage keys
// into reference tokens and back, and issues bearer tokens for the plain
// key routes.
package refcodec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/hatemjaber/image-resize-server/internal/cryptox"
	"github.com/hatemjaber/image-resize-server/internal/server/auth"
)

const usage = `usage:
  refcodec encrypt <key>...
  refcodec decrypt <token>...
  refcodec token <subject> [ttl]

The master secret is read from IMG_MASTER_SECRET, the JWT secret from
IMG_JWT_SECRET; when unset, they are prompted for without echo.`

var errUsage = errors.New("invalid arguments")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Env bundles the process surface the tool touches.
type Env struct {
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	LookupEnv func(string) (string, bool)

	codecOpts []cryptox.Option
}

// Run executes one command and returns the process exit code.
func Run(args []string, env Env) int {
	if err := run(args, env); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(env.Stderr, usage)
			return 2
		}
		fmt.Fprintln(env.Stderr, "error:", err)
		return 1
	}
	return 0
}

func run(args []string, env Env) error {
	if len(args) < 2 {
		return errUsage
	}

	switch args[0] {
	case "encrypt", "decrypt":
		secret, err := getSecret(env, "IMG_MASTER_SECRET", "Enter master secret: ")
		if err != nil {
			return err
		}
		codec, err := cryptox.NewCodec(secret, env.codecOpts...)
		clear(secret)
		if err != nil {
			return err
		}
		op := codec.Encrypt
		if args[0] == "decrypt" {
			op = codec.Decrypt
		}
		for _, in := range args[1:] {
			out, err := op(in)
			if err != nil {
				return fmt.Errorf("%s %q: %w", args[0], in, err)
			}
			fmt.Fprintln(env.Stdout, out)
		}
		return nil

	case "token":
		ttl := time.Hour
		if len(args) > 2 {
			d, err := time.ParseDuration(args[2])
			if err != nil || d <= 0 {
				return fmt.Errorf("%w: ttl %q", errUsage, args[2])
			}
			ttl = d
		}
		secret, err := getSecret(env, "IMG_JWT_SECRET", "Enter JWT secret: ")
		if err != nil {
			return err
		}
		tok, err := auth.GenerateToken(args[1], secret, ttl)
		clear(secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, tok)
		return nil

	default:
		return errUsage
	}
}

// getSecret prefers the environment; otherwise it prompts on the terminal,
// or reads one line when stdin is not a terminal.
func getSecret(env Env, name, prompt string) ([]byte, error) {
	if v, ok := env.LookupEnv(name); ok && v != "" {
		return []byte(v), nil
	}

	if f, ok := env.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(env.Stderr, prompt)
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(env.Stderr)
		if err != nil {
			return nil, err
		}
		return nonEmpty(pw, name)
	}

	line, err := bufio.NewReader(env.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return nonEmpty([]byte(strings.TrimRight(line, "\r\n")), name)
}

func nonEmpty(b []byte, name string) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	return b, nil
}
