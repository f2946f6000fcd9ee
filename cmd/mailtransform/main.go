package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"journalmail/internal/correlate"
	"journalmail/internal/maildecode"
	"journalmail/internal/model"
	"journalmail/internal/strip"
	"journalmail/internal/token"
	"journalmail/pkg/config"
)

// mailtransform runs a single message from stdin through the decode,
// correlate and strip stages and prints the extracted entry text, or the
// terminal outcome label, to stdout. It touches no storage, which makes it
// useful for debugging a message that did not land the way its sender
// expected. Only unusable input or config is an error.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	pre := flag.Bool("pre", false, "print the plain-text body before quote stripping")
	flag.Parse()

	if err := run(*configPath, *pre); err != nil {
		fmt.Fprintln(os.Stderr, "mailtransform:", err)
		os.Exit(1)
	}
}

func run(configPath string, pre bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	key, err := token.ReadSecretKey(cfg.Mail.SecretKeyPath)
	if err != nil {
		return err
	}
	codec, err := token.NewCodec(key, cfg.Token.MaxPastDays, cfg.Token.MaxFutureDays)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	return transform(codec, raw, pre, os.Stdout, os.Stderr)
}

// transform prints the message's entry text, or its terminal outcome label,
// to out. With pre set the body is printed before quote stripping and an
// unverified message is not an outcome: the body is still wanted when tuning
// the stripping heuristics on messages with no token.
func transform(codec *token.Codec, raw []byte, pre bool, out, diag io.Writer) error {
	msg, err := maildecode.Decode(raw)
	if err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}

	if userID, date, err := correlate.New(codec).Resolve(msg.Header); err == nil {
		fmt.Fprintf(diag, "user %d, date %s\n", userID, date.Format("2006-01-02"))
	} else if !pre {
		fmt.Fprintln(out, model.OutcomeUnverified)
		return nil
	}

	body, ok := msg.PlainText()
	if !ok {
		fmt.Fprintln(out, model.OutcomeUnsupported)
		return nil
	}
	if pre {
		fmt.Fprint(out, body)
		return nil
	}

	stripped, err := strip.Strip(body)
	if err != nil {
		fmt.Fprintln(out, model.OutcomeEmpty)
		return nil
	}
	fmt.Fprintln(out, stripped)
	return nil
}
