package fakedesk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"deskseed/internal/domain"
)

// SeedOptions shape the initial state of a sandbox store.
type SeedOptions struct {
	// Subcategories is the catalog size; every InactiveEvery-th entry is
	// inactive when InactiveEvery is positive.
	Subcategories int
	InactiveEvery int
	// AnalystsAsEmployees registers analysts with the Employee role so they
	// have to be promoted before they can work tickets.
	AnalystsAsEmployees bool
}

// Seed registers actors as directory users and fills the catalog.
func Seed(store *Store, actors []domain.Actor, opts SeedOptions) {
	for _, a := range actors {
		role := a.Role
		if role == domain.RoleAnalyst && opts.AnalystsAsEmployees {
			role = domain.RoleEmployee
		}
		store.AddUser(a.Username, displayName(a.Username), a.Password, role)
	}
	for i := 1; i <= opts.Subcategories; i++ {
		active := opts.InactiveEvery <= 0 || i%opts.InactiveEvery != 0
		store.AddSubcategory(fmt.Sprintf("Subcategory %02d", i), active)
	}
}

// displayName turns "jane.doe@example.com" into "Jane Doe".
func displayName(username string) string {
	local, _, _ := strings.Cut(username, "@")
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if len(parts) == 0 {
		return username
	}
	return strings.Join(parts, " ")
}

// Sandbox is a running sandbox desk.
type Sandbox struct {
	// URL is the API base URL, base path included.
	URL   string
	Store *Store
	srv   *http.Server
}

// Start serves a sandbox desk on addr until Close is called.
func Start(addr string, cfg Config) (*Sandbox, error) {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	handler, err := New(cfg)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.logger().WithError(err).Error("sandbox desk stopped")
		}
	}()
	return &Sandbox{
		URL:   "http://" + ln.Addr().String() + cfg.BasePath,
		Store: cfg.Store,
		srv:   srv,
	}, nil
}

func (s *Sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
