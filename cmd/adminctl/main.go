// adminctl queries and exports attendance records from the command line.
// It reuses the station's persisted session when one exists, or logs in
// with -username plus the ADMIN_PASSWORD environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"attendkiosk/internal/admin"
	"attendkiosk/internal/auth"
	"attendkiosk/internal/backend"
	"attendkiosk/internal/config"
	"attendkiosk/internal/session"
)

func main() {
	var (
		company  = flag.String("company", "", "filter by company id")
		student  = flag.String("student", "", "filter by student username or name")
		start    = flag.String("start", "", "filter from date (inclusive, YYYY-MM-DD)")
		end      = flag.String("end", "", "filter to date (inclusive, YYYY-MM-DD)")
		page     = flag.Int("page", 0, "page number (server default when 0)")
		limit    = flag.Int("limit", 0, "page size (server default when 0)")
		export   = flag.Bool("export", false, "download the spreadsheet export as well")
		username = flag.String("username", "", "log in as this admin instead of the stored session")
	)
	flag.Parse()

	cfg := config.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, backend.Filter{
		Company: *company,
		Student: *student,
		Start:   *start,
		End:     *end,
		Page:    *page,
		Limit:   *limit,
	}, *export, *username); err != nil {
		logger.Fatal("adminctl failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger, filter backend.Filter, export bool, username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var store session.Store
	if cfg.SessionBackend == "redis" {
		store = session.NewRedisStore(cfg.RedisAddr)
	} else {
		store = session.NewFileStore(cfg.SessionFile)
	}
	sessions := session.NewManager(store)
	if err := sessions.Init(ctx); err != nil {
		return err
	}

	client := backend.New(cfg.APIBaseURL)

	if username != "" || !sessions.Current().Active() {
		if err := login(ctx, client, sessions, username); err != nil {
			return err
		}
	}
	s := sessions.Current()
	role, err := auth.ParseRole(s.User.Role)
	if err != nil {
		return err
	}
	if !role.Admin() {
		return fmt.Errorf("role %s cannot query admin records", role)
	}

	svc := admin.New(client, sessions, nil, logger)

	result, err := svc.Query(ctx, filter)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			// Stored token went stale, drop it so the next run logs in fresh.
			_ = sessions.Logout(ctx)
		}
		return err
	}
	if err := admin.RenderTable(os.Stdout, result); err != nil {
		return err
	}

	if export {
		path, err := svc.Export(ctx, filter, cfg.ExportDir)
		if err != nil {
			return err
		}
		fmt.Printf("\nExport written to %s\n", path)
	}
	return nil
}

func login(ctx context.Context, client *backend.Client, sessions *session.Manager, username string) error {
	if username == "" {
		username = os.Getenv("ADMIN_USERNAME")
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return errors.New("no stored session: set -username and ADMIN_PASSWORD (or ADMIN_USERNAME)")
	}
	res, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return sessions.Login(ctx, res.AccessToken, res.User)
}
