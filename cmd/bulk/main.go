// Command bulk runs trip ticket CSV exports and imports on behalf of a user,
// outside the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/bulk"
	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/config"
	"github.com/chachabrian/clearinghouse-backend/internal/database"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/internal/services"
	flag "github.com/spf13/pflag"
	"gorm.io/gorm"
)

type options struct {
	command string
	userID  uint
	email   string
	file    string
	out     string
	timeout time.Duration
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("bulk", flag.ContinueOnError)
	var opts options
	fs.UintVarP(&opts.userID, "user-id", "u", 0, "id of the user the run acts as")
	fs.StringVarP(&opts.email, "email", "e", "", "email of the user the run acts as")
	fs.StringVarP(&opts.file, "file", "f", "", "CSV file to import")
	fs.StringVarP(&opts.out, "out", "o", "", "also write the export to this path")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "maximum run time")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bulk <export|import> (--user-id N | --email ADDR) [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("expected exactly one command")
	}
	opts.command = fs.Arg(0)
	switch opts.command {
	case "export":
	case "import":
		if opts.file == "" {
			return opts, errors.New("import requires --file")
		}
	default:
		return opts, fmt.Errorf("unknown command %q", opts.command)
	}
	if (opts.userID == 0) == (opts.email == "") {
		return opts, errors.New("exactly one of --user-id or --email is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := services.InitLogger(os.Stderr, cfg.LogLevel, "clearinghouse-bulk")

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("bulk run failed", "command", opts.command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) error {
	shutdownTelemetry := services.InitTelemetry(ctx, "clearinghouse-bulk", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() { _ = shutdownTelemetry(context.WithoutCancel(ctx)) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var locker services.Locker
	if err := services.InitRedis(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, running without job lock", "error", err)
	} else {
		locker = services.NewRedisLocker(services.RedisClient)
	}

	files, err := services.InitStorage(cfg)
	if err != nil {
		return err
	}

	user, err := findUser(ctx, db, opts)
	if err != nil {
		return err
	}
	caller := clearinghouse.Caller{ProviderID: user.ProviderID, UserID: user.ID}
	runner := bulk.NewRunner(clearinghouse.NewService(db), bulk.NewGormOperationStore(db), files, locker, cfg.BulkExportLimit)

	var op *models.BulkOperation
	switch opts.command {
	case "export":
		op, err = runner.Export(ctx, caller)
		if err == nil && opts.out != "" {
			err = copyExport(ctx, runner, caller, op.ID, opts.out)
		}
	case "import":
		if !user.CanWrite() {
			return fmt.Errorf("user %d cannot modify tickets", user.ID)
		}
		var data []byte
		if data, err = os.ReadFile(opts.file); err != nil {
			return err
		}
		op, err = runner.Import(ctx, caller, filepath.Base(opts.file), data)
	}
	if err != nil {
		return err
	}

	fmt.Printf("bulk operation %d: %d rows, %d errors, stored at %s\n", op.ID, op.RowCount, op.ErrorCount, op.StorageKey)
	for _, rowErr := range op.RowErrors {
		fmt.Println("  " + rowErr)
	}
	return nil
}

func findUser(ctx context.Context, db *gorm.DB, opts options) (*models.User, error) {
	var user models.User
	query := db.WithContext(ctx)
	if opts.userID != 0 {
		query = query.Where("id = ?", opts.userID)
	} else {
		query = query.Where("email = ?", opts.email)
	}
	if err := query.First(&user).Error; err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.Active {
		return nil, fmt.Errorf("user %d is inactive", user.ID)
	}
	return &user, nil
}

func copyExport(ctx context.Context, runner *bulk.Runner, caller clearinghouse.Caller, id uint, path string) error {
	_, data, err := runner.Download(ctx, caller, id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
