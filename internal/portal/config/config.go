package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/portalgate/internal/portal/domain"
)

// envPrefix is stripped from every environment variable before mapping.
const envPrefix = "PORTAL_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log        LoggingConfig    `koanf:"log" validate:"required"`
	Gateway    GatewayConfig    `koanf:"gateway" validate:"required"`
	Session    SessionConfig    `koanf:"session" validate:"required"`
	Storefront StorefrontConfig `koanf:"storefront" validate:"required"`
	Navigation NavigationConfig `koanf:"navigation"`
	Assets     AssetsConfig     `koanf:"assets"`
	Store      StoreConfig      `koanf:"store" validate:"required"`
	Admin      AdminConfig      `koanf:"admin"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type GatewayConfig struct {
	// Port is the TCP port the gateway listens on.
	Port int `koanf:"port" validate:"required,gte=1,lt=65536"`
	// Upstream is the base URL of the CRM the gateway proxies to.
	Upstream string `koanf:"upstream" validate:"required,http_url"`
	// SiteURL is the public base URL redirects are built on. Empty means
	// root-relative redirects.
	SiteURL string `koanf:"site_url" validate:"omitempty,http_url"`
}

type SessionConfig struct {
	// Cookie is the host's session cookie name.
	Cookie      string   `koanf:"cookie" validate:"required,slug"`
	LoginPaths  []string `koanf:"login_paths" validate:"required,min=1,dive,site_path"`
	LogoutPaths []string `koanf:"logout_paths" validate:"dive,site_path"`
	// StaticPaths are files the host serves without a controller. They never
	// consume the login redirect flag.
	StaticPaths []string `koanf:"static_paths" validate:"dive,site_path"`
}

type StorefrontConfig struct {
	// Target is the storefront page clients are sent to.
	Target string `koanf:"target" validate:"required,site_path"`
	// Marker identifies storefront URIs and controllers.
	Marker string `koanf:"marker" validate:"required,slug"`
	Cart   string `koanf:"cart" validate:"required,site_path"`
	// Modules are host module directories whose controller is the second
	// path segment.
	Modules []string `koanf:"modules" validate:"dive,slug"`
}

type NavigationConfig struct {
	Slugs []string `koanf:"slugs" validate:"dive,slug"`
	// File is an optional newline-delimited slug list merged with Slugs.
	File      string `koanf:"file"`
	CacheSize int    `koanf:"cache_size" validate:"gte=0"`
}

type AssetsConfig struct {
	Enabled bool `koanf:"enabled"`
	// Hrefs are link target substrings hidden on client pages. Empty means
	// the built-in list.
	Hrefs []string `koanf:"hrefs" validate:"dive,required"`
}

type StoreConfig struct {
	DB                string `koanf:"db" validate:"required"`
	ActivityRetention int    `koanf:"activity_retention" validate:"gte=1"`
}

type AdminConfig struct {
	// Token guards the hook API and enables the admin endpoints.
	Token string   `koanf:"token"`
	Paths []string `koanf:"paths" validate:"required,min=1,dive,site_path"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the portal gateway.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Gateway: GatewayConfig{
		Port:     8080,
		Upstream: "http://127.0.0.1:80",
	},
	Session: SessionConfig{
		Cookie:      "sp_session",
		LoginPaths:  []string{"authentication/login", "clients/login"},
		LogoutPaths: []string{"authentication/logout"},
		StaticPaths: []string{"assets/**", "uploads/**", "modules/*/assets/**"},
	},
	Storefront: StorefrontConfig{
		Target:  "omni_sales/omni_sales_client/index/1/4/0",
		Marker:  "omni_sales",
		Cart:    "omni_sales/omni_sales_client/view_cart",
		Modules: []string{"omni_sales"},
	},
	Navigation: NavigationConfig{
		Slugs:     domain.DefaultBlockedSlugs(),
		CacheSize: 1000,
	},
	Assets: AssetsConfig{Enabled: true},
	Store: StoreConfig{
		DB:                "/var/lib/portalgate/portal.db",
		ActivityRetention: 1000,
	},
	Admin: AdminConfig{
		Paths: []string{"admin", "admin/**"},
	},
}

// envKeys maps environment names (prefix stripped, lower case) to config
// paths.
var envKeys = map[string]string{
	"env":                      "env",
	"log_level":                "log.level",
	"gateway_port":             "gateway.port",
	"gateway_upstream":         "gateway.upstream",
	"gateway_site_url":         "gateway.site_url",
	"session_cookie":           "session.cookie",
	"login_paths":              "session.login_paths",
	"logout_paths":             "session.logout_paths",
	"static_paths":             "session.static_paths",
	"storefront_target":        "storefront.target",
	"storefront_marker":        "storefront.marker",
	"storefront_cart":          "storefront.cart",
	"storefront_modules":       "storefront.modules",
	"navigation_slugs":         "navigation.slugs",
	"navigation_file":          "navigation.file",
	"navigation_cache_size":    "navigation.cache_size",
	"assets_enabled":           "assets.enabled",
	"assets_hrefs":             "assets.hrefs",
	"store_db":                 "store.db",
	"store_activity_retention": "store.activity_retention",
	"admin_token":              "admin.token",
	"admin_paths":              "admin.paths",
}

// listKeys are split on commas and spaces.
var listKeys = map[string]bool{
	"session.login_paths":  true,
	"session.logout_paths": true,
	"session.static_paths": true,
	"storefront.modules":   true,
	"navigation.slugs":     true,
	"assets.hrefs":         true,
	"admin.paths":          true,
}

// validSitePath accepts host-relative paths such as "clients/index" or the
// glob "admin/**". Absolute URLs, queries and parent references are
// rejected.
func validSitePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" || strings.Contains(p, "://") || strings.Contains(p, "..") {
		return false
	}
	return !strings.ContainsFunc(p, func(r rune) bool {
		return unicode.IsSpace(r) || r == '?' || r == '#'
	})
}

func validSlug(fl validator.FieldLevel) bool {
	return domain.IsValidSlug(fl.Field().String())
}

// envLoader loads environment variables with the prefix "PORTAL_", mapping
// them onto config paths. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if path, ok := envKeys[key]; ok {
				key = path
			}
			value = strings.TrimSpace(value)

			if listKeys[key] {
				if value == "" {
					return key, []string{}
				}
				return key, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "site_path" and "slug" validators.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("site_path", validSitePath); err != nil {
		return err
	}
	return v.RegisterValidation("slug", validSlug)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// Addr returns the gateway listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Gateway.Port)
}
