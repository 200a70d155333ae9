// Command create-admin provisions an admin account directly in the database,
// or prints a password hash with -hash-only.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/db"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/repo/postgres"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

type options struct {
	email         string
	name          string
	role          string
	algo          string
	passwordStdin bool
	hashOnly      bool
}

// openStore connects to the configured database and applies migrations.
type openStore func(ctx context.Context) (db.AdminStore, func(), error)

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, openPostgres)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "create-admin:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.email, "email", "", "admin email (required)")
	fs.StringVar(&o.name, "name", "Owner", "display name")
	fs.StringVar(&o.role, "role", string(user.RoleSuperAdmin), "STAFF, MANAGER, ADMIN or SUPER_ADMIN")
	fs.StringVar(&o.algo, "algo", string(security.AlgoBcrypt), "password hash: bcrypt or argon2id")
	fs.BoolVar(&o.passwordStdin, "password-stdin", false, "read the password from stdin instead of prompting")
	fs.BoolVar(&o.hashOnly, "hash-only", false, "print the hash and exit without touching the database")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if !o.hashOnly && strings.TrimSpace(o.email) == "" {
		return options{}, errors.New("-email is required")
	}

	return o, nil
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer, open openStore) error {
	o, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	role, err := user.ParseRole(o.role)
	if err != nil {
		return err
	}

	password, err := readNewPassword(in, out, o.passwordStdin)
	if err != nil {
		return err
	}

	if err := security.DefaultAdminPasswordValidator().Validate(password, o.email, o.name); err != nil {
		return fmt.Errorf("password rejected: %w", err)
	}

	hash, err := security.Hash(security.Algorithm(o.algo), password)
	if err != nil {
		return err
	}

	if o.hashOnly {
		fmt.Fprintln(out, hash)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, closeStore, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	created, err := store.Create(ctx, user.CreateUserRequest{
		Email:        o.email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(o.name),
		Role:         role,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		return fmt.Errorf("%s already has an account", user.NormalizeEmail(o.email))
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(out, "created %s (%s) id=%s\n", created.Email, created.Role, created.ID)
	return nil
}

func readNewPassword(in io.Reader, out io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func openPostgres(ctx context.Context) (db.AdminStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxConns)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return postgres.NewUsersRepo(pool), pool.Close, nil
}
