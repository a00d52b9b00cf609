package main

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/iaconlabs/warpcore/core"
	"github.com/iaconlabs/warpcore/platform"
)

type cat struct {
	ID    string `json:"id" param:"id"`
	Name  string `json:"name" validate:"required,min=2"`
	Age   int    `json:"age" validate:"gte=0,max=40"`
	Breed string `json:"breed,omitempty"`
}

// catStore is an in-memory repository shared by the cats routes.
type catStore struct {
	mu   sync.RWMutex
	next int
	cats map[string]cat
}

func newCatStore() *catStore {
	return &catStore{cats: make(map[string]cat)}
}

func (s *catStore) OnModuleInit(context.Context) error {
	s.create(cat{Name: "Tom", Age: 3, Breed: "Domestic"})
	return nil
}

func (s *catStore) OnApplicationShutdown(_ context.Context, signal string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slog.Default().Info("cats store closed", "cats", len(s.cats), "signal", signal)
	return nil
}

func (s *catStore) create(c cat) cat {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	c.ID = strconv.Itoa(s.next)
	s.cats[c.ID] = c
	return c
}

func (s *catStore) list() []cat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cat, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b cat) int {
		x, _ := strconv.Atoi(a.ID)
		y, _ := strconv.Atoi(b.ID)
		return x - y
	})
	return out
}

func (s *catStore) get(id string) (cat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cats[id]
	return c, ok
}

func (s *catStore) replace(c cat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[c.ID]; !ok {
		return false
	}
	s.cats[c.ID] = c
	return true
}

func (s *catStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[id]; !ok {
		return false
	}
	delete(s.cats, id)
	return true
}

type catsController struct {
	store *catStore
}

func (ctl *catsController) Routes(r *core.RouteBuilder) {
	r.Prefix("cats")
	r.Get("/", ctl.list)
	r.Get("/:id", ctl.get)
	r.Post("/", ctl.create)
	r.Put("/:id", ctl.update)
	r.Delete("/:id", ctl.remove, core.HTTPCode(204))
}

func (ctl *catsController) list(c *core.Context) (any, error) {
	cats := ctl.store.list()
	if breed := c.Query("breed"); breed != "" {
		cats = slices.DeleteFunc(cats, func(x cat) bool { return x.Breed != breed })
	}
	return cats, nil
}

func (ctl *catsController) get(c *core.Context) (any, error) {
	found, ok := ctl.store.get(c.Param("id"))
	if !ok {
		return nil, core.NewNotFoundException("cat " + c.Param("id") + " not found")
	}
	return found, nil
}

func (ctl *catsController) create(c *core.Context) (any, error) {
	in, err := core.Bind[cat](c)
	if err != nil {
		return nil, err
	}
	return ctl.store.create(*in), nil
}

func (ctl *catsController) update(c *core.Context) (any, error) {
	in, err := core.Bind[cat](c)
	if err != nil {
		return nil, err
	}
	if !ctl.store.replace(*in) {
		return nil, core.NewNotFoundException("cat " + in.ID + " not found")
	}
	return in, nil
}

func (ctl *catsController) remove(c *core.Context) (any, error) {
	if !ctl.store.remove(c.Param("id")) {
		return nil, core.NewNotFoundException("cat " + c.Param("id") + " not found")
	}
	return nil, nil
}

var healthController = core.ControllerFunc(func(r *core.RouteBuilder) {
	r.Get("/health", func(*core.Context) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})
})

// accessLog logs every request handled by the cats routes.
func accessLog(req *platform.Request, res *platform.Response, next platform.NextFunc) error {
	start := time.Now()
	err := next()
	slog.Default().Info("request",
		"id", req.ID(), "method", req.Method(), "path", req.Path(),
		"status", res.StatusCode(), "duration", time.Since(start))
	return err
}

func demoModule() *core.Module {
	store := newCatStore()
	cats := &catsController{store: store}
	catsModule := &core.Module{
		Name:        "CatsModule",
		Controllers: []core.Controller{cats},
		Providers:   []any{store},
		Configure: func(consumer *core.MiddlewareConsumer) {
			consumer.Apply(core.MiddlewareFunc(accessLog)).ForControllers(cats)
		},
	}
	return &core.Module{
		Name:        "AppModule",
		Imports:     []*core.Module{catsModule},
		Controllers: []core.Controller{healthController},
	}
}
