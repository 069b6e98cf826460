// consolectl is a small operational CLI over the console's data access
// layer: check backend liveness, pull the dashboard snapshot, log in, and
// submit single detections without opening the web console.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/promptshield/console-client/internal/auth"
	"github.com/promptshield/console-client/internal/config"
	"github.com/promptshield/console-client/internal/detection"
	"github.com/promptshield/console-client/internal/gateway"
	"github.com/promptshield/console-client/internal/liveness"
	"github.com/promptshield/console-client/internal/session"
	"github.com/promptshield/console-client/internal/stats"
	"github.com/promptshield/console-client/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	setupLogging(*verbose)

	// .env is optional; explicit env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	if err := run(cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func run(cfg *config.Config, command string, args []string) error {
	sess, err := session.Open(cfg.SessionPath)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	audit, err := telemetry.NewLog(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	gw := gateway.New(cfg.BaseURL, cfg.AuthScheme, sess,
		gateway.WithAudit(audit),
		gateway.WithLogger(log.Logger),
		gateway.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		gateway.WithUnauthorizedHook(func() {
			fmt.Fprintln(os.Stderr, "session expired; run `consolectl login` again")
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch command {
	case "status":
		return runStatus(ctx, cfg, gw)
	case "login":
		return runLogin(ctx, gw, sess, args)
	case "logout":
		auth.New(gw, sess, log.Logger).Logout()
		return nil
	case "detect":
		return runDetect(ctx, gw, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runStatus(ctx context.Context, cfg *config.Config, gw *gateway.Gateway) error {
	checker := liveness.New(gw, liveness.WithTTL(cfg.LivenessTTL))
	rec := checker.Check(ctx)
	if !rec.Healthy {
		fmt.Printf("backend: unreachable (%s)\n", rec.Detail)
		return nil
	}
	fmt.Printf("backend: healthy (%s)\n", rec.Detail)

	coord := stats.New(gw, log.Logger)
	coord.Refresh(ctx, 7)
	snap := coord.State().Snapshot()
	if snap.Err != nil && !snap.Err.SuppressUserMessage {
		fmt.Printf("dashboard: %s\n", snap.Err.Message)
		return nil
	}
	d := snap.Value
	fmt.Printf("prompts: %d  blocked: %d  flagged: %d  block rate: %.1f%%\n",
		d.Overview.TotalPrompts, d.Overview.Blocked, d.Overview.Flagged, d.Overview.BlockRate*100)
	for threat, count := range d.Distribution {
		fmt.Printf("  %-24s %d\n", threat, count)
	}
	return nil
}

func runLogin(ctx context.Context, gw *gateway.Gateway, sess *session.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: consolectl login <email> (password read from CONSOLE_PASSWORD)")
	}
	password := os.Getenv("CONSOLE_PASSWORD")
	if password == "" {
		return fmt.Errorf("set CONSOLE_PASSWORD")
	}

	id, err := auth.New(gw, sess, log.Logger).Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", id.DisplayName, id.Role)
	return nil
}

func runDetect(ctx context.Context, gw *gateway.Gateway, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: consolectl detect <prompt text>")
	}

	coord := detection.New(gw, log.Logger, detection.WithEstimator(detection.NewEstimator()))
	prompt := args[0]
	fmt.Printf("estimated tokens: %d\n", coord.EstimateTokens(prompt))

	res, err := coord.Submit(ctx, fmt.Sprintf("cli-%d", time.Now().UnixNano()), prompt)
	if err != nil {
		return err
	}
	fmt.Printf("verdict: %s  score: %.2f", res.Verdict, res.Score)
	if res.ThreatType != "" {
		fmt.Printf("  threat: %s", res.ThreatType)
	}
	fmt.Println()
	return nil
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: consolectl [-config file] [-v] <command>

commands:
  status            backend liveness + dashboard snapshot
  login <email>     authenticate (password from CONSOLE_PASSWORD)
  logout            clear the persisted session
  detect <prompt>   submit one prompt for detection`)
}
