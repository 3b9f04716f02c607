package db

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"authform/models"
)

// Memory is a process-local Store. Usernames are claimed atomically, so
// concurrent registrations of one name yield exactly one winner.
type Memory struct {
	byName *xsync.Map[string, models.User]
	byID   *xsync.Map[string, models.User]

	mu    sync.RWMutex
	books []models.Book
}

func NewMemory() *Memory {
	return &Memory{
		byName: xsync.NewMap[string, models.User](),
		byID:   xsync.NewMap[string, models.User](),
	}
}

func (m *Memory) CreateUser(user *models.User) error {
	if _, loaded := m.byName.LoadOrStore(user.Username, *user); loaded {
		return ErrUsernameExists
	}
	m.byID.Store(user.ID, *user)
	return nil
}

func (m *Memory) GetUserByUsername(username string) (*models.User, error) {
	user, ok := m.byName.Load(username)
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) GetUserByID(id string) (*models.User, error) {
	user, ok := m.byID.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) AddBook(book *models.Book) error {
	m.mu.Lock()
	m.books = append(m.books, *book)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListBooks() ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Book(nil), m.books...), nil
}

// Len reports the number of stored users.
func (m *Memory) Len() int {
	return m.byName.Size()
}
