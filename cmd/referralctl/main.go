// cmd/referralctl/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/app"
	"github.com/SinaHo/referral-bot-core/internal/config"
	"github.com/SinaHo/referral-bot-core/internal/database"
	"github.com/SinaHo/referral-bot-core/internal/logger"
)

const usage = `usage: referralctl [-config dir] <command> [-limit n]

commands:
  migrate   apply pending schema migrations
  stats     print user and review-queue counters
  top       print top referrers by activated referrals
  pending   print the withdrawal review queue
  tasks     print the task submission review queue
  users     print users in signup order
  audience  print users reachable by broadcast (phone attached, not banned)
`

func main() {
	configDir := flag.String("config", "internal/config", "directory containing config.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cmd := flag.Arg(0)
	sub := flag.NewFlagSet(cmd, flag.ExitOnError)
	limit := sub.Int("limit", 0, "maximum rows to print (0 = configured default)")
	_ = sub.Parse(flag.Args()[1:])

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, *limit, cfg, log); err != nil {
		log.Sugar().Errorf("%s: %v", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, limit int, cfg *config.Config, log *zap.Logger) error {
	if cmd == "migrate" {
		db, err := database.ConnectPostgres(ctx, cfg.Postgres, log.Sugar())
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err := database.Migrate(ctx, db, logger.Component(log, "migrate"))
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"applied": applied})
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var out interface{}
	switch cmd {
	case "stats":
		out, err = a.Reports.Stats(ctx)
	case "top":
		out, err = a.Reports.TopReferrers(ctx, limit)
	case "pending":
		out, err = a.Withdrawals.Pending(ctx, limit)
	case "tasks":
		out, err = a.Tasks.Pending(ctx, limit)
	case "users":
		out, err = a.Reports.Users(ctx, limit)
	case "audience":
		out, err = a.Reports.Audience(ctx, limit)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
