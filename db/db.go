package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"authform/models"
)

var (
	ErrUsernameExists = errors.New("username already exists")
	ErrNotFound       = errors.New("user not found")
)

// Store is the user and reading list persistence used by the server.
type Store interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)

	// AddBook appends book to the reading list; ListBooks returns the list in
	// insertion order.
	AddBook(book *models.Book) error
	ListBooks() ([]models.Book, error)
}

type DB struct {
	*sql.DB
}

func NewDB(dataSourceName string) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

const schema = `
    CREATE TABLE IF NOT EXISTS users (
        id       UUID PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        password TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS books (
        id     BIGSERIAL PRIMARY KEY,
        title  TEXT NOT NULL,
        author TEXT NOT NULL
    )
`

func (db *DB) Migrate() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}
	return nil
}

func (db *DB) CreateUser(user *models.User) error {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", user.Username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("error checking username: %w", err)
	}
	if exists {
		return ErrUsernameExists
	}

	query := `
        INSERT INTO users (id, username, password)
        VALUES ($1, $2, $3)
    `
	_, err = db.Exec(query, user.ID, user.Username, user.Password)
	if err != nil {
		// lost a race with a concurrent insert of the same username
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameExists
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return db.getUser(`SELECT id, username, password FROM users WHERE username = $1`, username)
}

func (db *DB) GetUserByID(id string) (*models.User, error) {
	return db.getUser(`SELECT id, username, password FROM users WHERE id = $1`, id)
}

func (db *DB) getUser(query, arg string) (*models.User, error) {
	var user models.User
	err := db.QueryRow(query, arg).Scan(&user.ID, &user.Username, &user.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) AddBook(book *models.Book) error {
	_, err := db.Exec(`INSERT INTO books (title, author) VALUES ($1, $2)`, book.Title, book.Author)
	if err != nil {
		return fmt.Errorf("error adding book: %w", err)
	}
	return nil
}

func (db *DB) ListBooks() ([]models.Book, error) {
	rows, err := db.Query(`SELECT title, author FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.Title, &book.Author); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
