package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/portalgate/internal/portal/domain"
)

func equalStrings(t *testing.T, name string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("expected %s length %d, got %d (%v)", name, len(want), len(got), got)
		return
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("expected %s[%d]=%q, got %q", name, i, v, got[i])
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected Log.Level=info, got %q", cfg.Log.Level)
	}

	// Gateway defaults
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected Gateway.Port=8080, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.Upstream != "http://127.0.0.1:80" {
		t.Errorf("expected Gateway.Upstream=http://127.0.0.1:80, got %q", cfg.Gateway.Upstream)
	}
	if cfg.Gateway.SiteURL != "" {
		t.Errorf("expected empty Gateway.SiteURL, got %q", cfg.Gateway.SiteURL)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("expected Addr()=:8080, got %q", cfg.Addr())
	}

	// Session defaults
	if cfg.Session.Cookie != "sp_session" {
		t.Errorf("expected Session.Cookie=sp_session, got %q", cfg.Session.Cookie)
	}
	equalStrings(t, "Session.LoginPaths", cfg.Session.LoginPaths, []string{"authentication/login", "clients/login"})
	equalStrings(t, "Session.LogoutPaths", cfg.Session.LogoutPaths, []string{"authentication/logout"})
	equalStrings(t, "Session.StaticPaths", cfg.Session.StaticPaths, []string{"assets/**", "uploads/**", "modules/*/assets/**"})

	// Storefront defaults
	if cfg.Storefront.Target != "omni_sales/omni_sales_client/index/1/4/0" {
		t.Errorf("unexpected Storefront.Target %q", cfg.Storefront.Target)
	}
	if cfg.Storefront.Marker != "omni_sales" {
		t.Errorf("expected Storefront.Marker=omni_sales, got %q", cfg.Storefront.Marker)
	}
	if cfg.Storefront.Cart != "omni_sales/omni_sales_client/view_cart" {
		t.Errorf("unexpected Storefront.Cart %q", cfg.Storefront.Cart)
	}
	equalStrings(t, "Storefront.Modules", cfg.Storefront.Modules, []string{"omni_sales"})

	// Navigation and assets
	equalStrings(t, "Navigation.Slugs", cfg.Navigation.Slugs, domain.DefaultBlockedSlugs())
	if cfg.Navigation.File != "" {
		t.Errorf("expected empty Navigation.File, got %q", cfg.Navigation.File)
	}
	if cfg.Navigation.CacheSize != 1000 {
		t.Errorf("expected Navigation.CacheSize=1000, got %d", cfg.Navigation.CacheSize)
	}
	if !cfg.Assets.Enabled {
		t.Errorf("expected Assets.Enabled=true")
	}
	if len(cfg.Assets.Hrefs) != 0 {
		t.Errorf("expected Assets.Hrefs to be empty by default, got %v", cfg.Assets.Hrefs)
	}

	// Store and admin
	if cfg.Store.DB != "/var/lib/portalgate/portal.db" {
		t.Errorf("expected Store.DB=/var/lib/portalgate/portal.db, got %q", cfg.Store.DB)
	}
	if cfg.Store.ActivityRetention != 1000 {
		t.Errorf("expected Store.ActivityRetention=1000, got %d", cfg.Store.ActivityRetention)
	}
	if cfg.Admin.Token != "" {
		t.Errorf("expected empty Admin.Token by default")
	}
	equalStrings(t, "Admin.Paths", cfg.Admin.Paths, []string{"admin", "admin/**"})
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("PORTAL_ENV", "dev")
	t.Setenv("PORTAL_LOG_LEVEL", "debug")
	t.Setenv("PORTAL_GATEWAY_PORT", "9090")
	t.Setenv("PORTAL_GATEWAY_UPSTREAM", "http://crm.internal:8081")
	t.Setenv("PORTAL_GATEWAY_SITE_URL", "https://crm.example.com/")
	t.Setenv("PORTAL_SESSION_COOKIE", "crm_session")
	t.Setenv("PORTAL_LOGIN_PATHS", "clients/login authentication/login")
	t.Setenv("PORTAL_LOGOUT_PATHS", "clients/logout")
	t.Setenv("PORTAL_STATIC_PATHS", "assets/**,media/**")
	t.Setenv("PORTAL_STOREFRONT_TARGET", "shop/index")
	t.Setenv("PORTAL_STOREFRONT_MARKER", "shop")
	t.Setenv("PORTAL_STOREFRONT_CART", "shop/cart")
	t.Setenv("PORTAL_STOREFRONT_MODULES", "shop,catalog")
	t.Setenv("PORTAL_NAVIGATION_SLUGS", "files, calendar")
	t.Setenv("PORTAL_NAVIGATION_FILE", "/etc/portalgate/slugs.txt")
	t.Setenv("PORTAL_NAVIGATION_CACHE_SIZE", "50")
	t.Setenv("PORTAL_ASSETS_ENABLED", "false")
	t.Setenv("PORTAL_ASSETS_HREFS", "/files,/gdpr")
	t.Setenv("PORTAL_STORE_DB", "/tmp/portal.db")
	t.Setenv("PORTAL_STORE_ACTIVITY_RETENTION", "25")
	t.Setenv("PORTAL_ADMIN_TOKEN", "s3cret")
	t.Setenv("PORTAL_ADMIN_PATHS", "admin/**")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected Log.Level=debug, got %q", cfg.Log.Level)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("expected Gateway.Port=9090, got %d", cfg.Gateway.Port)
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("expected Addr()=:9090, got %q", cfg.Addr())
	}
	if cfg.Gateway.Upstream != "http://crm.internal:8081" {
		t.Errorf("unexpected Gateway.Upstream %q", cfg.Gateway.Upstream)
	}
	if cfg.Gateway.SiteURL != "https://crm.example.com/" {
		t.Errorf("unexpected Gateway.SiteURL %q", cfg.Gateway.SiteURL)
	}
	if cfg.Session.Cookie != "crm_session" {
		t.Errorf("expected Session.Cookie=crm_session, got %q", cfg.Session.Cookie)
	}
	equalStrings(t, "Session.LoginPaths", cfg.Session.LoginPaths, []string{"clients/login", "authentication/login"})
	equalStrings(t, "Session.LogoutPaths", cfg.Session.LogoutPaths, []string{"clients/logout"})
	equalStrings(t, "Session.StaticPaths", cfg.Session.StaticPaths, []string{"assets/**", "media/**"})
	if cfg.Storefront.Target != "shop/index" {
		t.Errorf("expected Storefront.Target=shop/index, got %q", cfg.Storefront.Target)
	}
	if cfg.Storefront.Marker != "shop" {
		t.Errorf("expected Storefront.Marker=shop, got %q", cfg.Storefront.Marker)
	}
	if cfg.Storefront.Cart != "shop/cart" {
		t.Errorf("expected Storefront.Cart=shop/cart, got %q", cfg.Storefront.Cart)
	}
	equalStrings(t, "Storefront.Modules", cfg.Storefront.Modules, []string{"shop", "catalog"})
	equalStrings(t, "Navigation.Slugs", cfg.Navigation.Slugs, []string{"files", "calendar"})
	if cfg.Navigation.File != "/etc/portalgate/slugs.txt" {
		t.Errorf("unexpected Navigation.File %q", cfg.Navigation.File)
	}
	if cfg.Navigation.CacheSize != 50 {
		t.Errorf("expected Navigation.CacheSize=50, got %d", cfg.Navigation.CacheSize)
	}
	if cfg.Assets.Enabled {
		t.Errorf("expected Assets.Enabled=false")
	}
	equalStrings(t, "Assets.Hrefs", cfg.Assets.Hrefs, []string{"/files", "/gdpr"})
	if cfg.Store.DB != "/tmp/portal.db" {
		t.Errorf("expected Store.DB=/tmp/portal.db, got %q", cfg.Store.DB)
	}
	if cfg.Store.ActivityRetention != 25 {
		t.Errorf("expected Store.ActivityRetention=25, got %d", cfg.Store.ActivityRetention)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("expected Admin.Token=s3cret, got %q", cfg.Admin.Token)
	}
	equalStrings(t, "Admin.Paths", cfg.Admin.Paths, []string{"admin/**"})
}

func TestLoad_EmptySlugListDisablesFiltering(t *testing.T) {
	t.Setenv("PORTAL_NAVIGATION_SLUGS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(cfg.Navigation.Slugs) != 0 {
		t.Errorf("expected no slugs, got %v", cfg.Navigation.Slugs)
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults, got nil")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]struct {
		key   string
		value string
	}{
		"env":               {"PORTAL_ENV", "staging"},
		"log level":         {"PORTAL_LOG_LEVEL", "trace"},
		"port out of range": {"PORTAL_GATEWAY_PORT", "99999"},
		"port NaN":          {"PORTAL_GATEWAY_PORT", "not_a_number"},
		"upstream":          {"PORTAL_GATEWAY_UPSTREAM", "not a url"},
		"site url":          {"PORTAL_GATEWAY_SITE_URL", "ftp://crm.example.com"},
		"cookie":            {"PORTAL_SESSION_COOKIE", "bad cookie"},
		"login paths":       {"PORTAL_LOGIN_PATHS", ""},
		"static paths":      {"PORTAL_STATIC_PATHS", "https://cdn.example.com/assets"},
		"target absolute":   {"PORTAL_STOREFRONT_TARGET", "https://elsewhere.example/shop"},
		"target parent":     {"PORTAL_STOREFRONT_TARGET", "../shop"},
		"marker":            {"PORTAL_STOREFRONT_MARKER", "omni/sales"},
		"slug":              {"PORTAL_NAVIGATION_SLUGS", "files,not/a/slug"},
		"cache size":        {"PORTAL_NAVIGATION_CACHE_SIZE", "-1"},
		"retention":         {"PORTAL_STORE_ACTIVITY_RETENTION", "0"},
		"store db":          {"PORTAL_STORE_DB", ""},
		"admin paths":       {"PORTAL_ADMIN_PATHS", "admin?x=1"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q, got nil", tc.key, tc.value)
			}
		})
	}
}

func TestValidSitePath(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"clients/index", true},
		{"admin/**", true},
		{"omni_sales/omni_sales_client/index/1/4/0", true},
		{"/clients", true},
		{"", false},
		{"https://example.com/clients", false},
		{"../etc/passwd", false},
		{"clients/login?x=1", false},
		{"clients#top", false},
		{"clients index", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("site_path", validSitePath)

	for _, tc := range cases {
		type S struct {
			Path string `validate:"site_path"`
		}
		err := validate.Struct(S{Path: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validSitePath(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validSitePath(%q) = true, want false", tc.input)
		}
	}
}

func TestValidSlug(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"files", true},
		{"knowledge-base", true},
		{"omni_sales", true},
		{"", false},
		{"two words", false},
		{"a/b", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("slug", validSlug)

	for _, tc := range cases {
		type S struct {
			Slug string `validate:"slug"`
		}
		err := validate.Struct(S{Slug: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validSlug(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validSlug(%q) = true, want false", tc.input)
		}
	}
}

func TestDefaultLoader_LoadsDefaults(t *testing.T) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		t.Fatalf("defaultLoader returned error: %v", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Env != DEFAULT_APP_CONFIG.Env {
		t.Errorf("expected Env=%q, got %q", DEFAULT_APP_CONFIG.Env, cfg.Env)
	}
	if cfg.Gateway.Port != DEFAULT_APP_CONFIG.Gateway.Port {
		t.Errorf("expected Gateway.Port=%d, got %d", DEFAULT_APP_CONFIG.Gateway.Port, cfg.Gateway.Port)
	}
	if cfg.Storefront.Marker != DEFAULT_APP_CONFIG.Storefront.Marker {
		t.Errorf("expected Storefront.Marker=%q, got %q", DEFAULT_APP_CONFIG.Storefront.Marker, cfg.Storefront.Marker)
	}
	equalStrings(t, "Navigation.Slugs", cfg.Navigation.Slugs, DEFAULT_APP_CONFIG.Navigation.Slugs)
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	bad := orig
	bad.Storefront.Target = "http://elsewhere.example/"
	DEFAULT_APP_CONFIG = bad

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error for invalid default target, got nil")
	}
}
