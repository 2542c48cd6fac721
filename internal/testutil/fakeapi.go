package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

type fakeUser struct {
	id       string
	email    string
	password string
}

// FakeAPI serves the taskmaster HTTP API from memory. Access tokens are real
// JWTs so clients can read their owner; refresh tokens are single use.
type FakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]fakeUser
	tasks     []model.Task
	clock     time.Time
	access    map[string]string
	refresh   map[string]string
	issued    int
	refreshes int
	lastAuth  string
	streams   map[string][]chan model.ChangeEvent
	failNext  int
}

func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		users:   make(map[string]fakeUser),
		clock:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		access:  make(map[string]string),
		refresh: make(map[string]string),
		streams: make(map[string][]chan model.ChangeEvent),
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Close)
	return f
}

func (f *FakeAPI) URL() string {
	return f.Server.URL
}

func (f *FakeAPI) Close() {
	f.mu.Lock()
	for uid, chans := range f.streams {
		for _, ch := range chans {
			close(ch)
		}
		delete(f.streams, uid)
	}
	f.mu.Unlock()
	f.Server.Close()
}

func (f *FakeAPI) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := fakeUser{id: uuid.NewString(), email: email, password: password}
	f.users[email] = u
	return u.id
}

// Issue mints a token pair for userID.
func (f *FakeAPI) Issue(userID string) (access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issue(userID)
}

func (f *FakeAPI) issue(userID string) (string, string) {
	f.issued++
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"token_type": "access",
		"jti":        fmt.Sprint(f.issued),
	}).SignedString([]byte("fake-api"))
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", f.issued)
	f.access[access] = userID
	f.refresh[refresh] = userID
	return access, refresh
}

// Revoke invalidates an access token as if it expired.
func (f *FakeAPI) Revoke(access string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.access, access)
}

// FailNext makes the next authenticated call answer with code.
func (f *FakeAPI) FailNext(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = code
}

func (f *FakeAPI) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *FakeAPI) LastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeAPI) Streams(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[userID])
}

// Tasks returns userID's tasks, newest first.
func (f *FakeAPI) Tasks(userID string) []model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owned(userID)
}

// AddTask stores a task for userID and notifies its streams.
func (f *FakeAPI) AddTask(userID, title string, status model.Status) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(userID, title, "", status, nil)
}

func (f *FakeAPI) owned(userID string) []model.Task {
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (f *FakeAPI) insert(userID, title, description string, status model.Status, due *time.Time) model.Task {
	f.clock = f.clock.Add(time.Minute)
	t := model.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   f.clock,
		DueDate:     due,
		UserID:      userID,
	}
	f.tasks = append([]model.Task{t}, f.tasks...)
	f.emit(model.ChangeEvent{Op: model.OpInsert, TaskID: t.ID, UserID: userID})
	return t
}

func (f *FakeAPI) emit(ev model.ChangeEvent) {
	for _, ch := range f.streams[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *FakeAPI) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.users[in.Email]; ok {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "user already exists"})
			return
		}
		if len(in.Password) < 8 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
			return
		}
		u := fakeUser{id: uuid.NewString(), email: in.Email, password: in.Password}
		f.users[in.Email] = u
		writeJSON(w, http.StatusCreated, model.User{ID: u.id, Email: u.email, Provider: model.ProviderEmail})
	})

	r.Post("/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[in.Email]
		if !ok || u.password != in.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		f.session(w, u)
	})

	r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		uid, ok := f.refresh[in.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		delete(f.refresh, in.RefreshToken)
		f.refreshes++
		f.session(w, f.userByID(uid))
	})

	r.Post("/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		delete(f.refresh, in.RefreshToken)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/auth/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"providers": {"github"}})
	})

	r.Group(func(r chi.Router) {
		r.Use(f.authenticate)

		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			u := f.userByID(userFrom(r))
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, model.User{ID: u.id, Email: u.email})
		})

		r.Get("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
			uid := userFrom(r)
			if owner := r.URL.Query().Get("user_id"); owner != "" && owner != uid {
				writeJSON(w, http.StatusOK, []model.Task{})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, f.owned(uid))
		})

		r.Post("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Title       string     `json:"title"`
				Description string     `json:"description"`
				DueDate     *time.Time `json:"due_date"`
			}
			json.NewDecoder(r.Body).Decode(&in)
			if strings.TrimSpace(in.Title) == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation error"})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusCreated, f.insert(userFrom(r), in.Title, in.Description, model.StatusPending, in.DueDate))
		})

		r.Put("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			var in model.Task
			json.NewDecoder(r.Body).Decode(&in)
			uid := userFrom(r)
			f.mu.Lock()
			defer f.mu.Unlock()
			for i := range f.tasks {
				t := &f.tasks[i]
				if t.ID == chi.URLParam(r, "id") && t.UserID == uid {
					t.Title, t.Description, t.Status = in.Title, in.Description, in.Status
					f.emit(model.ChangeEvent{Op: model.OpUpdate, TaskID: t.ID, UserID: uid})
					writeJSON(w, http.StatusOK, *t)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})

		r.Delete("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			uid := userFrom(r)
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, t := range f.tasks {
				if t.ID == chi.URLParam(r, "id") && t.UserID == uid {
					f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
					f.emit(model.ChangeEvent{Op: model.OpDelete, TaskID: t.ID, UserID: uid})
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})

		r.Get("/api/tasks/changes", f.changes)
	})

	return r
}

func (f *FakeAPI) session(w http.ResponseWriter, u fakeUser) {
	access, refresh := f.issue(u.id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    900,
		"token_type":    "Bearer",
		"user":          model.User{ID: u.id, Email: u.email},
	})
}

func (f *FakeAPI) userByID(id string) fakeUser {
	for _, u := range f.users {
		if u.id == id {
			return u
		}
	}
	return fakeUser{id: id}
}

type fakeUserKey struct{}

func userFrom(r *http.Request) string {
	uid, _ := r.Context().Value(fakeUserKey{}).(string)
	return uid
}

func contextWithUser(r *http.Request, uid string) context.Context {
	return context.WithValue(r.Context(), fakeUserKey{}, uid)
}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, _ := strings.CutPrefix(header, "Bearer ")

		f.mu.Lock()
		f.lastAuth = header
		uid, ok := f.access[token]
		fail := f.failNext
		f.failNext = 0
		f.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		if fail != 0 {
			writeJSON(w, fail, map[string]string{"error": http.StatusText(fail)})
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, uid)))
	})
}

func (f *FakeAPI) changes(w http.ResponseWriter, r *http.Request) {
	uid := userFrom(r)
	ch := make(chan model.ChangeEvent, 16)

	f.mu.Lock()
	f.streams[uid] = append(f.streams[uid], ch)
	f.mu.Unlock()
	defer f.drop(uid, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	fmt.Fprint(w, ": keep-alive\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (f *FakeAPI) drop(uid string, ch chan model.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chans := f.streams[uid]
	for i, c := range chans {
		if c == ch {
			f.streams[uid] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
