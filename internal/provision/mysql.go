package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/execx"
)

// mysqlExec runs a statement as root over socket authentication.
func mysqlExec(ctx context.Context, sql string) error {
	return execx.Run(ctx, "mysql", "-u", "root", "-e", sql)
}

func mysqlQuery(ctx context.Context, sql string) (string, error) {
	return execx.Output(ctx, "mysql", "-u", "root", "-N", "-B", "-e", sql)
}

// databaseExists probes for the database. A missing mysql client or an
// unreachable server counts as "absent": the stack is being installed
// fresh, so nothing can conflict yet.
func databaseExists(ctx context.Context, name string) bool {
	out, err := mysqlQuery(ctx, fmt.Sprintf("SHOW DATABASES LIKE '%s';", name))
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

func mysqlUserExists(ctx context.Context, user string) bool {
	out, err := mysqlQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM mysql.user WHERE User='%s' AND Host='localhost';", user))
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != "" && strings.TrimSpace(out) != "0"
}

func dropDatabaseAndUser(ctx context.Context, db, user string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`; DROP USER IF EXISTS '%s'@'localhost'; FLUSH PRIVILEGES;", db, user)
	return mysqlExec(ctx, sql)
}

// CreateDatabaseStep creates the WordPress database and user with a
// reversal that drops both. With overwrite enabled, a conflicting
// database or user is dropped before the forward action runs.
func CreateDatabaseStep(cfg *config.Config) engine.Step {
	db := cfg.Database.Name
	user := cfg.Database.User
	pass := cfg.Database.Password
	overwrite := cfg.Settings.Overwrite

	check := func(ctx context.Context) (*engine.CheckResult, error) {
		var conflicts []string
		if databaseExists(ctx, db) {
			conflicts = append(conflicts, fmt.Sprintf("database %q exists", db))
		}
		if mysqlUserExists(ctx, user) {
			conflicts = append(conflicts, fmt.Sprintf("user %q exists", user))
		}
		if len(conflicts) == 0 {
			return &engine.CheckResult{OK: true}, nil
		}

		res := &engine.CheckResult{OK: false, Reason: strings.Join(conflicts, ", ")}
		if overwrite {
			// Dropped data cannot be restored, so the supersession
			// registers no reversal of its own.
			res.Supersede = func(ctx context.Context, tx *engine.Txn) error {
				return dropDatabaseAndUser(ctx, db, user)
			}
		}
		return res, nil
	}

	return engine.Step{
		Name:         "create-database",
		Summary:      fmt.Sprintf("create database %q and user %q with utf8mb4", db, user),
		Precondition: check,
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			sql := fmt.Sprintf(
				"CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci;"+
					" CREATE USER IF NOT EXISTS '%s'@'localhost' IDENTIFIED BY '%s';"+
					" GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'localhost';"+
					" FLUSH PRIVILEGES;",
				db, user, pass, db, user)
			if err := mysqlExec(ctx, sql); err != nil {
				return err
			}

			tx.Push(engine.Reversal{
				Name: fmt.Sprintf("drop database %q and user %q", db, user),
				Undo: func(ctx context.Context) error {
					return dropDatabaseAndUser(ctx, db, user)
				},
			})
			return nil
		},
	}
}
