package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/srdaspradeep-gif/DMsDoc/backend"
	"github.com/srdaspradeep-gif/DMsDoc/core"
	"github.com/srdaspradeep-gif/DMsDoc/pubsub"
	"github.com/srdaspradeep-gif/DMsDoc/sqldb"
	"github.com/srdaspradeep-gif/DMsDoc/sqldb/sqlite3"
	"github.com/srdaspradeep-gif/DMsDoc/util"
	"github.com/xo/dburl"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/terminal"
)

// _txlock=immediate serializes writers at BEGIN, which the workflow updates rely on
const defaultDB = "sqlite3:dmsdoc.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&_txlock=immediate&_fk=1"

func main() {

	var dbArg string // is in both FlagSets
	var configFile string
	var logMode string

	// default FlagSet

	flag.StringVar(&configFile, "config", "", "read default flag values from this ini `file`")
	flag.StringVar(&dbArg, "db", defaultDB, "sql database url, see github.com/xo/dburl")
	flag.StringVar(&logMode, "log", "production", "log format: production or development")
	var listenAddr = flag.String("listen", "127.0.0.1:8080", "serve HTTP content at this `ip:port`")
	var redisURL = flag.String("redis", "", "publish notifications to this redis `url`, like redis://localhost:6379/0")
	var redisPrefix = flag.String("redis-prefix", pubsub.DefaultPrefix, "prefix of redis channels and keys")
	var sessionLifetime = flag.Duration("session-lifetime", 24*time.Hour, "lifetime of login sessions")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)

	initFlags.StringVar(&dbArg, "db", defaultDB, "sql database url, see github.com/xo/dburl") // copied from above
	var initInsert = initFlags.Bool("insert", false, "creates the given user and asks for a password")
	var initGrant = initFlags.String("grant", "", "gives the given user this `permission` on approvals: none, read, create, approve or admin")
	var username = initFlags.String("user", "", "specifies a user `name`")
	var email = initFlags.String("email", "", "specifies the email `address` of a new user")

	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
	} else {
		flag.Parse()
		if configFile != "" {
			if err := applyConfig(flag.CommandLine, configFile); err != nil {
				fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
				os.Exit(1)
			}
		}
	}

	// logger

	var log *zap.Logger
	var err error
	if logMode == "development" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// database

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		log.Error("could not parse database url", zap.Error(err))
		return
	}

	if dbURL.Driver != "sqlite3" {
		log.Error("unsupported database backend", zap.String("driver", dbURL.Driver))
		return
	}

	sqlDB, err := sql.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		log.Error("could not open sql database", zap.Error(err))
		return
	}

	defer func() {
		log.Info("closing database")
		sqlDB.Close()
	}()

	if err = sqlDB.Ping(); err != nil {
		log.Error("could not ping sql database", zap.Error(err))
		return
	}

	log.Info("using database", zap.String("url", dbURL.Redacted()))

	// assemble stuff

	var db = sqldb.NewCoreDB(sqlDB)
	db.Log = log
	db.Init()

	// init

	if initFlags.Parsed() {
		var ctx = context.Background()
		switch {
		case *initInsert && *username != "":
			insertUser(ctx, db, *username, *email)
		case *initGrant != "" && *username != "":
			grant(ctx, db, *username, *initGrant)
		default:
			initFlags.Usage()
		}
		return
	}

	if *redisURL != "" {
		publisher, err := pubsub.NewRedisPublisher(context.Background(), *redisURL, *redisPrefix)
		if err != nil {
			log.Error("could not connect to redis", zap.Error(err))
			return
		}
		defer publisher.Close()
		db.Publisher = publisher
		log.Info("publishing notifications to redis", zap.String("channel", publisher.Channel()))
	}

	sessionStore, err := sqlite3.NewSessionStore(sqlDB)
	if err != nil {
		log.Error("could not create session store", zap.Error(err))
		return
	}

	var sessions = scs.New()
	sessions.Store = sessionStore
	sessions.Lifetime = *sessionLifetime
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteStrictMode

	listen(log, backend.NewRouter(db, sessions, log), *listenAddr)
}

// applyConfig sets the flags which have not been given on the command line from an ini file.
func applyConfig(fs *flag.FlagSet, filename string) error {

	values, err := util.Ini(filename)
	if err != nil {
		return err
	}

	var given = map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		given[f.Name] = true
	})

	for key, value := range values {
		if given[key] {
			continue
		}
		if fs.Lookup(key) == nil {
			return fmt.Errorf("unknown key %q", key)
		}
		if err := fs.Set(key, value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

func insertUser(ctx context.Context, db *core.CoreDB, name, email string) {

	fmt.Printf("password for user %s: ", name)
	pass1, err := terminal.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		db.Log.Error("error reading password", zap.Error(err))
		return
	}

	fmt.Printf("repeat password: ")
	pass2, err := terminal.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		db.Log.Error("error reading password", zap.Error(err))
		return
	}

	if !bytes.Equal(pass1, pass2) {
		db.Log.Error("passwords don't match")
		return
	}

	user, err := db.InsertUser(ctx, name, email)
	if err != nil {
		db.Log.Error("error creating user", zap.String("user", name), zap.Error(err))
		return
	}

	if err := db.SetPassword(ctx, user.ID, string(pass1)); err != nil {
		db.Log.Error("error setting password", zap.Error(err))
		return
	}

	db.Log.Info("user created", zap.String("user", user.Username), zap.String("id", user.ID))
}

func grant(ctx context.Context, db *core.CoreDB, name, permission string) {

	perm, err := core.ParsePermission(permission)
	if err != nil {
		db.Log.Error("error parsing permission", zap.Error(err))
		return
	}

	user, err := db.GetUserByName(ctx, name)
	if err != nil {
		db.Log.Error("error getting user", zap.String("user", name), zap.Error(err))
		return
	}

	if err := db.Grant(ctx, user.ID, core.ModuleApprovals, perm); err != nil {
		db.Log.Error("error granting permission", zap.Error(err))
		return
	}

	db.Log.Info("permission granted", zap.String("user", user.Username), zap.String("permission", perm.String()))
}

func listen(log *zap.Logger, handler http.Handler, addr string) {

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("could not listen", zap.Error(err))
		return
	}

	log.Info("listening", zap.String("addr", addr))

	httpSrv := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error("error listening", zap.Error(err))
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	// graceful shutdown

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("error shutting down", zap.Error(err))
	}
}
