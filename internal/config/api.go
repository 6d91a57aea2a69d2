package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/vetrecords/pkg/formatting"
	"github.com/JaimeStill/vetrecords/pkg/middleware"
	"github.com/JaimeStill/vetrecords/pkg/openapi"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

const (
	EnvAPIBasePath      = "VETRECORDS_API_BASE_PATH"
	EnvAPIMaxUploadSize = "VETRECORDS_API_MAX_UPLOAD_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "VETRECORDS_CORS_ENABLED",
	Origins:          "VETRECORDS_CORS_ORIGINS",
	AllowedMethods:   "VETRECORDS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "VETRECORDS_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "VETRECORDS_CORS_EXPOSED_HEADERS",
	AllowCredentials: "VETRECORDS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "VETRECORDS_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "VETRECORDS_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "VETRECORDS_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "VETRECORDS_OPENAPI_TITLE",
	Description: "VETRECORDS_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, upload limits, CORS, pagination and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees
// the value parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	} else if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}
