package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/internal"
)

type initDBOptions struct {
	configPath string
	host       string
	port       int
	database   string
	user       string
	password   string
	sslMode    string
	hashes     string
	lists      string
	counters   string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: formakv-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Connection settings come from -config and FORMAKV_STORE_POSTGRES_* variables;")
		fmt.Println("the flags below override them when set.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initDBOptions{}
	flags.StringVar(&opts.configPath, "config", "", "path to config file")
	flags.StringVar(&opts.host, "db-host", "", "database host")
	flags.IntVar(&opts.port, "db-port", 0, "database port")
	flags.StringVar(&opts.database, "db-name", "", "database name")
	flags.StringVar(&opts.user, "db-user", "", "database user")
	flags.StringVar(&opts.password, "db-password", "", "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", "", "database sslmode")
	flags.StringVar(&opts.hashes, "hashes-table", "", "hash table name")
	flags.StringVar(&opts.lists, "lists-table", "", "list table name")
	flags.StringVar(&opts.counters, "counters-table", "", "counter table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := formakv.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	dbCfg := opts.apply(cfg.Store.Postgres)
	return initDatabase(context.Background(), dbCfg)
}

// apply overlays the flags that were set onto cfg.
func (o initDBOptions) apply(cfg formakv.DatabaseConfig) formakv.DatabaseConfig {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Host, o.host)
	setString(&cfg.Database, o.database)
	setString(&cfg.Username, o.user)
	setString(&cfg.Password, o.password)
	setString(&cfg.SSLMode, o.sslMode)
	setString(&cfg.TableNames.Hashes, o.hashes)
	setString(&cfg.TableNames.Lists, o.lists)
	setString(&cfg.TableNames.Counters, o.counters)
	if o.port > 0 {
		cfg.Port = o.port
	}
	return cfg
}

func initDatabase(ctx context.Context, cfg formakv.DatabaseConfig) error {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	if err := internal.PostgresHealthCheck(ctx, pool, cfg.Timeout); err != nil {
		return err
	}

	store, err := internal.NewPostgresStore(pool, internal.StoreTables{
		Hashes:   cfg.TableNames.Hashes,
		Lists:    cfg.TableNames.Lists,
		Counters: cfg.TableNames.Counters,
	}, cfg.Timeout)
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	fmt.Printf("Created hash table: %s\n", cfg.TableNames.Hashes)
	fmt.Printf("Created list table: %s\n", cfg.TableNames.Lists)
	fmt.Printf("Created counter table: %s\n", cfg.TableNames.Counters)
	fmt.Println("Database initialized successfully.")
	return nil
}
