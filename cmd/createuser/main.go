// Command createuser provisions an operator account:
//
//	createuser [--email addr] [--superuser] <username> <password>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"kiosk-pos/internal/config"
	"kiosk-pos/internal/database"
	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/logger"
	"kiosk-pos/internal/repository"
	"kiosk-pos/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	username  string
	password  string
	email     string
	superuser bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	flags := pflag.NewFlagSet("createuser", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.email, "email", "", "contact email of the operator")
	flags.BoolVar(&opts.superuser, "superuser", false, "grant catalog, import and correction rights")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: createuser [--email addr] [--superuser] <username> <password>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return opts, errors.New("username and password are required")
	}

	opts.username = flags.Arg(0)
	opts.password = flags.Arg(1)
	return opts, nil
}

func run(ctx context.Context, users service.UserService, opts options, stdout io.Writer) error {
	operator, err := users.CreateOperator(ctx, opts.username, opts.password, opts.email, opts.superuser)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return fmt.Errorf("operator %q already exists", opts.username)
		}
		return err
	}

	kind := "operator"
	if operator.IsSuperuser {
		kind = "superuser"
	}
	fmt.Fprintf(stdout, "created %s %s (%s)\n", kind, operator.Username, operator.ID)
	return nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Server.Env, "warn")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbService.Close()

	users := service.NewUserService(
		repository.NewOperatorRepository(dbService.DB()),
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		log,
	)

	if err := run(ctx, users, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		dbService.Close()
		os.Exit(1)
	}
}
