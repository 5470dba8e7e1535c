package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/srdaspradeep-gif/DMsDoc/core"
	"golang.org/x/crypto/bcrypt"
)

func clean(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return name
}

type UserDB struct {
	*sql.DB
	getAll      *sql.Stmt
	get         *sql.Stmt
	getByName   *sql.Stmt
	insert      *sql.Stmt
	login       *sql.Stmt
	setPassword *sql.Stmt
}

func NewUserDB(db *sql.DB) *UserDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS usr (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			UNIQUE(username)
		);`)

	var userDB = &UserDB{}
	userDB.DB = db
	userDB.get = mustPrepare(db, "SELECT username, email FROM usr WHERE id = ? LIMIT 1")
	userDB.getAll = mustPrepare(db, "SELECT id, username, email FROM usr ORDER BY username LIMIT ? OFFSET ?")
	userDB.getByName = mustPrepare(db, "SELECT id, email FROM usr WHERE username = ? LIMIT 1")
	userDB.insert = mustPrepare(db, "INSERT INTO usr (id, username, email) VALUES (?, ?, ?)") // empty password field can't be matched by bcrypt
	userDB.login = mustPrepare(db, "SELECT id, email, password FROM usr WHERE username = ?")
	userDB.setPassword = mustPrepare(db, "UPDATE usr SET password = ? WHERE id = ?")
	return userDB
}

func (db *UserDB) GetUser(ctx context.Context, id string) (*core.User, error) {
	var u = &core.User{
		ID: id,
	}
	if err := db.get.QueryRowContext(ctx, id).Scan(&u.Username, &u.Email); err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (db *UserDB) GetUserByName(ctx context.Context, username string) (*core.User, error) {
	var u = &core.User{
		Username: clean(username),
	}
	if err := db.getByName.QueryRowContext(ctx, u.Username).Scan(&u.ID, &u.Email); err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

func (db *UserDB) GetAllUsers(ctx context.Context, limit, offset int) ([]*core.User, error) {

	var all = []*core.User{}

	rows, err := db.getAll.QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u = &core.User{}
		if err = rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		all = append(all, u)
	}

	return all, rows.Err()
}

func (db *UserDB) InsertUser(ctx context.Context, u *core.User) error {
	var id = newID()
	_, err := db.insert.ExecContext(ctx, id, clean(u.Username), u.Email)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: user %s exists", core.ErrConflict, u.Username)
	}
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (db *UserDB) LoginUser(ctx context.Context, username, password string) (*core.User, error) {

	var u = &core.User{
		Username: clean(username),
	}
	var hash string

	err := db.login.QueryRowContext(ctx, u.Username).Scan(&u.ID, &u.Email, &hash)
	if err == sql.ErrNoRows {
		return nil, core.ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}

	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, core.ErrAuth // wrong password
	}

	return u, nil
}

func (db *UserDB) SetPassword(ctx context.Context, id, password string) error {

	if password == "" {
		return errors.New("no password given")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := db.setPassword.ExecContext(ctx, string(hash), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, id)
	}
	return nil
}
