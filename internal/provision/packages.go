package provision

import (
	"context"

	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/execx"
)

// phpPackages are the extensions WordPress needs beyond php-fpm itself.
var phpPackages = []string{
	"php-fpm", "php-mysql", "php-curl", "php-gd", "php-mbstring",
	"php-xml", "php-xmlrpc", "php-soap", "php-intl", "php-zip",
}

// UpdateSystemStep refreshes and upgrades the apt package index. Package
// state is deliberately never unwound: removing upgrades on rollback would
// be more destructive than leaving them.
func UpdateSystemStep() engine.Step {
	return engine.Step{
		Name:    "update-packages",
		Summary: "apt-get update && apt-get upgrade -y",
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			if err := execx.Run(ctx, "apt-get", "update"); err != nil {
				return err
			}
			return execx.Run(ctx, "apt-get", "upgrade", "-y")
		},
	}
}

// InstallNginxStep installs nginx and makes sure the service is running.
func InstallNginxStep() engine.Step {
	return engine.Step{
		Name:    "install-nginx",
		Summary: "install nginx and enable the service",
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			if err := execx.Run(ctx, "apt-get", "install", "-y", "nginx"); err != nil {
				return err
			}
			if err := execx.Run(ctx, "systemctl", "enable", "nginx"); err != nil {
				return err
			}
			return execx.Run(ctx, "systemctl", "start", "nginx")
		},
	}
}

// InstallMySQLStep installs mysql-server and secures it: root is limited
// to socket authentication via sudo, anonymous users and the test database
// are removed.
func InstallMySQLStep() engine.Step {
	return engine.Step{
		Name:    "install-mysql",
		Summary: "install mysql-server and secure it (socket auth, no anonymous users)",
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			if err := execx.Run(ctx, "apt-get", "install", "-y", "mysql-server"); err != nil {
				return err
			}

			if err := mysqlExec(ctx, "ALTER USER 'root'@'localhost' IDENTIFIED WITH auth_socket;"); err != nil {
				return err
			}

			stmts := []string{
				"DELETE FROM mysql.user WHERE User='';",
				"DELETE FROM mysql.user WHERE User='root' AND Host NOT IN ('localhost');",
				"DROP DATABASE IF EXISTS test;",
				`DELETE FROM mysql.db WHERE Db='test' OR Db LIKE 'test\\_%';`,
				"FLUSH PRIVILEGES;",
			}
			for _, stmt := range stmts {
				if err := mysqlExec(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// InstallPHPStep installs php-fpm and the extensions WordPress requires.
func InstallPHPStep() engine.Step {
	return engine.Step{
		Name:    "install-php",
		Summary: "install php-fpm and WordPress extensions",
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			args := append([]string{"install", "-y"}, phpPackages...)
			return execx.Run(ctx, "apt-get", args...)
		},
	}
}
