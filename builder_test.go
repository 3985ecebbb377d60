package dealerportal

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/guard"
	"github.com/askgroup/dealerportal/internal/apitest"
	"github.com/askgroup/dealerportal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithLogger(quietLogger())
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer p.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"base url":     func(c *Config) { c.API.BaseURL = "localhost:8000" },
		"storage kind": func(c *Config) { c.Storage.Kind = "s3" },
		"file dir":     func(c *Config) { c.Storage.Kind = StorageFile },
		"jwt method":   func(c *Config) { c.JWT.SigningMethod = "rs256" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if _, err := New().WithConfig(cfg).WithLogger(quietLogger()).Build(); err == nil {
				t.Fatal("expected Build to fail")
			}
		})
	}
}

func TestBuilderRejectsUnreachableHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Routes.Homes = map[string]string{api.RoleBuyer: "/dashboard"}
	if _, err := New().WithConfig(cfg).WithLogger(quietLogger()).Build(); err == nil {
		t.Fatal("expected buyer home outside buyer routes to fail")
	}
}

func TestBuilderCustomRoutes(t *testing.T) {
	routes := append(guard.DefaultRoutes(), guard.Route{
		Template: "/reports",
		Access:   guard.Protected,
		Roles:    []string{api.RoleAdmin},
	})
	p, err := New().WithRoutes(routes).WithLogger(quietLogger()).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, ok := p.Policy().Match("/reports"); !ok {
		t.Fatal("expected custom route to be registered")
	}
}

func TestBuilderRedisStorageSurvivesRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fake := apitest.Start(t)
	u := fake.AddUser("a@b.com", testPassword, api.RoleBuyer)
	ctx := context.Background()

	build := func() *Portal {
		return newTestPortal(t, fake, func(b *Builder) {
			cfg := b.config
			cfg.Storage.Kind = StorageRedis
			cfg.Storage.RedisPrefix = "shop-a"
			b.WithConfig(cfg).WithRedis(client)
		})
	}

	first := build()
	if first.Session().State() != StateUnauthenticated {
		t.Fatal("expected empty redis to restore unauthenticated")
	}
	if _, err := first.Session().Login(ctx, "a@b.com", testPassword); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("shop-a:" + storage.TokenKey) {
		t.Fatalf("expected prefixed token key, have %v", mr.Keys())
	}

	second := build()
	if second.Session().State() != StateAuthenticated || second.Session().User().ID != u.UserID {
		t.Fatal("expected session restored from redis")
	}

	second.Session().Logout(ctx)
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected redis cleared, have %v", mr.Keys())
	}
}

func TestBuilderRedisRequiresAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Kind = StorageRedis
	if _, err := New().WithConfig(cfg).WithLogger(quietLogger()).Build(); err == nil {
		t.Fatal("expected missing redis address to fail")
	}
}

func TestBuilderFileStorageSurvivesRestart(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := apitest.Start(t)
	fake.AddUser("a@b.com", testPassword, api.RoleAdmin)
	ctx := context.Background()

	build := func() *Portal {
		return newTestPortal(t, fake, func(b *Builder) {
			cfg := b.config
			cfg.Storage.Kind = StorageFile
			cfg.Storage.Dir = "/home/dealer/.dealerportal"
			b.WithConfig(cfg).WithFs(fs)
		})
	}

	first := build()
	if _, err := first.Session().Login(ctx, "a@b.com", testPassword); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, "/home/dealer/.dealerportal/"+storage.TokenKey); !ok {
		t.Fatal("expected token file")
	}

	second := build()
	if !second.Session().HasRole(api.RoleAdmin) {
		t.Fatal("expected admin session restored from file storage")
	}
	if second.Home() != "/dashboard" {
		t.Fatalf("expected admin home, got %q", second.Home())
	}
}

func TestBuilderWithStorageOverride(t *testing.T) {
	st := storage.NewMemoryStorage()
	_ = st.Set(context.Background(), storage.TokenKey, "garbage")

	p, err := New().WithStorage(st).WithLogger(quietLogger()).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.Storage() != storage.Storage(st) {
		t.Fatal("expected supplied storage to be used")
	}
	p.Session().Restore(context.Background())
	if _, err := st.Get(context.Background(), storage.TokenKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("expected garbage token cleared")
	}
}
