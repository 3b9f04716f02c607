package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"authform/models"
)

const (
	msgBookAdded       = "Book added to DB!"
	msgBookRequired    = "Title and author are required."
	msgNoBookInAPI     = "No book found in API."
	msgNoBooksInDB     = "No books found in the database."
	msgQueryRequired   = "Please provide a search query."
	msgNoBooksFound    = "No books found."
	msgCatalogFailure  = "Failed to fetch data from Google Books API."
	msgInternalFailure = "Internal server error"
)

// handleAddBook stores a title/author pair once the catalog confirms it
// exists. Both form encoded and JSON bodies are accepted.
func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	book, ok := readBook(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.Result{Message: msgBookRequired})
		return
	}

	volumes, err := s.catalog.Lookup(r.Context(), book.Title, book.Author)
	if err != nil {
		s.logger.Error("Error looking up book", zap.String("title", book.Title), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.Result{Message: msgCatalogFailure})
		return
	}
	if len(volumes) == 0 {
		writeJSON(w, http.StatusNotFound, models.Result{Message: msgNoBookInAPI})
		return
	}

	if err := s.db.AddBook(&book); err != nil {
		s.logger.Error("Error adding book", zap.String("title", book.Title), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.Result{Message: msgInternalFailure})
		return
	}
	s.logger.Info("book added", zap.String("title", book.Title), zap.String("author", book.Author))
	writeJSON(w, http.StatusOK, models.Result{Message: msgBookAdded})
}

func readBook(r *http.Request) (models.Book, bool) {
	var book models.Book
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
			return book, false
		}
	} else {
		book.Title = r.PostFormValue("title")
		book.Author = r.PostFormValue("author")
	}
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	return book, book.Title != "" && book.Author != ""
}

func (s *Server) handleListBooks(w http.ResponseWriter, _ *http.Request) {
	list, err := s.db.ListBooks()
	if err != nil {
		s.logger.Error("Error listing books", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.Result{Message: msgInternalFailure})
		return
	}
	if len(list) == 0 {
		writeJSON(w, http.StatusNotFound, models.Result{Message: msgNoBooksInDB})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSearchBooks proxies a free text query to the catalog. The query is
// read from q, or from query when q is absent.
func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		query = params.Get("query")
	}
	if strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusBadRequest, models.Result{Message: msgQueryRequired})
		return
	}

	volumes, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("Error searching books", zap.String("query", query), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.Result{Message: msgCatalogFailure})
		return
	}
	if len(volumes) == 0 {
		writeJSON(w, http.StatusNotFound, models.Result{Message: msgNoBooksFound})
		return
	}
	writeJSON(w, http.StatusOK, volumes)
}
