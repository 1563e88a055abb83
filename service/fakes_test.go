package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"corncare-backend/models"
	"corncare-backend/repository"
	"corncare-backend/storage"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	// createErr is returned by Create when set
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.ScanHistory = []uuid.UUID{}
	user.ChatHistory = []uuid.UUID{}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) get(id uuid.UUID) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	cp.ScanHistory = append([]uuid.UUID{}, u.ScanHistory...)
	cp.ChatHistory = append([]uuid.UUID{}, u.ChatHistory...)
	return &cp, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Email == email {
			return r.get(id)
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.ProfileImage != nil {
		u.ProfileImage = update.ProfileImage
	}
	if p := update.Preferences; p != nil {
		if p.Notifications != nil {
			u.Preferences.Notifications = *p.Notifications
		}
		if p.Language != nil {
			u.Preferences.Language = *p.Language
		}
		if p.DarkMode != nil {
			u.Preferences.DarkMode = *p.DarkMode
		}
	}
	return r.get(id)
}

func (r *fakeUserRepo) update(id uuid.UUID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *fakeUserRepo) AppendScan(_ context.Context, userID, scanID uuid.UUID) error {
	return r.update(userID, func(u *models.User) { u.ScanHistory = append(u.ScanHistory, scanID) })
}

func (r *fakeUserRepo) AddChat(_ context.Context, userID, chatID uuid.UUID) error {
	return r.update(userID, func(u *models.User) {
		for _, id := range u.ChatHistory {
			if id == chatID {
				return
			}
		}
		u.ChatHistory = append(u.ChatHistory, chatID)
	})
}

func (r *fakeUserRepo) RemoveChat(_ context.Context, userID, chatID uuid.UUID) error {
	return r.update(userID, func(u *models.User) {
		kept := u.ChatHistory[:0]
		for _, id := range u.ChatHistory {
			if id != chatID {
				kept = append(kept, id)
			}
		}
		u.ChatHistory = kept
	})
}

func (r *fakeUserRepo) ClearChats(_ context.Context, userID uuid.UUID) error {
	return r.update(userID, func(u *models.User) { u.ChatHistory = []uuid.UUID{} })
}

type fakeScanRepo struct {
	mu        sync.Mutex
	scans     []*models.Scan
	createErr error
}

func (r *fakeScanRepo) Create(_ context.Context, scan *models.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	scan.Timestamp = time.Now()
	cp := *scan
	r.scans = append(r.scans, &cp)
	return nil
}

func (r *fakeScanRepo) GetByIDForUser(_ context.Context, id, userID uuid.UUID) (*models.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.scans {
		if s.ID == id && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeScanRepo) ListByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*models.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Scan{}
	for i := len(r.scans) - 1; i >= 0 && len(out) < limit; i-- {
		if r.scans[i].UserID == userID {
			cp := *r.scans[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScanRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []*models.Scan{}
	// reverse to prove callers reorder
	for i := len(r.scans) - 1; i >= 0; i-- {
		if want[r.scans[i].ID] {
			cp := *r.scans[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats []*models.Chat
	clock time.Time
}

func (r *fakeChatRepo) tick() time.Time {
	if r.clock.IsZero() {
		r.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	r.clock = r.clock.Add(time.Minute)
	return r.clock
}

func copyChat(c *models.Chat) *models.Chat {
	cp := *c
	cp.Messages = append([]models.Message{}, c.Messages...)
	return &cp
}

func (r *fakeChatRepo) CreateWithMessages(_ context.Context, userID uuid.UUID, msgs []models.Message) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &models.Chat{ID: uuid.New(), UserID: userID, CreatedAt: r.tick(), Messages: append([]models.Message{}, msgs...)}
	r.chats = append(r.chats, c)
	return copyChat(c), nil
}

func (r *fakeChatRepo) AppendMessages(_ context.Context, chatID, userID uuid.UUID, msgs []models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.ID == chatID && c.UserID == userID {
			c.Messages = append(c.Messages, msgs...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeChatRepo) GetByIDForUser(_ context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.ID == id && c.UserID == userID {
			return copyChat(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeChatRepo) ListByUserID(_ context.Context, userID uuid.UUID, order repository.SortOrder, limit int) ([]*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Chat{}
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, copyChat(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == repository.OldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChatRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Chat{}
	for _, id := range ids {
		for _, c := range r.chats {
			if c.ID == id {
				out = append(out, copyChat(c))
			}
		}
	}
	return out, nil
}

func (r *fakeChatRepo) DeleteForUser(_ context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.chats {
		if c.ID == id && c.UserID == userID {
			r.chats = append(r.chats[:i], r.chats[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeChatRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.chats[:0]
	var n int64
	for _, c := range r.chats {
		if c.UserID == userID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.chats = kept
	return n, nil
}

// memStorage records uploads in memory
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Upload(_ context.Context, fileID uuid.UUID, filename, _ string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := fileID.String()[:2] + "/scan-" + fileID.String() + filename[len("scan"):]
	m.objects[path] = b
	return path, nil
}

func (m *memStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStorage) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *memStorage) PublicURL(base, path string) string {
	return base + "/uploads/" + path
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fakeAdvisor struct {
	answer   string
	err      error
	question string
	history  []models.Message
}

func (a *fakeAdvisor) Advise(_ context.Context, question string, history []models.Message) (string, error) {
	a.question = question
	a.history = history
	return a.answer, a.err
}
