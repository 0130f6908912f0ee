package app

import (
	"sync"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory is the in-memory participant directory. Identities arrive from
// the HTTP identity middleware; the core only ever calls Lookup.
type Directory struct {
	mu    sync.RWMutex
	users map[domain.UserID]*domain.User
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[domain.UserID]*domain.User)}
}

func (d *Directory) GetOrCreate(id domain.UserID) domain.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		return *u
	}
	u := &domain.User{ID: id, Username: domain.DefaultName}
	d.users[id] = u
	log.Info().Str("module", "app.directory").Str("user", string(id)).Msg("created new user")
	return *u
}

func (d *Directory) Rename(id domain.UserID, name string) (domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		u = &domain.User{ID: id, Username: domain.DefaultName}
	}
	if err := u.SetUsername(name); err != nil {
		return domain.User{}, err
	}
	d.users[id] = u
	log.Info().Str("module", "app.directory").Str("user", string(id)).Str("username", u.Username).Msg("updated username")
	return *u, nil
}

func (d *Directory) Lookup(id domain.UserID) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		return *u, true
	}
	return domain.User{}, false
}

func displayName(dir core.Directory, id domain.UserID) string {
	if dir == nil {
		return string(id)
	}
	if u, ok := dir.Lookup(id); ok {
		return u.Username
	}
	return domain.DefaultName
}
