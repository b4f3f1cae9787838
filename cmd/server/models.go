package main

import (
	"github.com/liamcoop/cartagen/generate"
	"github.com/liamcoop/cartagen/validation"
)

// API request and response models.

// GenerateRequest is the body of POST /api/v1/plugins/{pluginId}/generate.
type GenerateRequest struct {
	Data map[string]any `json:"data" example:"{\"Nombre_Cliente\":\"ACME S.A.\"}"`
	// Lists holds repeatable form sections keyed by list field name. Record
	// keys starting with "_" are dropped.
	Lists          map[string][]any `json:"lists,omitempty"`
	Validate       *bool            `json:"validate,omitempty" example:"true"`
	FilenamePrefix string           `json:"filename_prefix,omitempty" example:"carta"`
} // @name GenerateRequest

// ValidateRequest is the body of POST /api/v1/plugins/{pluginId}/validate.
type ValidateRequest struct {
	Data          map[string]any `json:"data"`
	CheckRequired *bool          `json:"check_required,omitempty" example:"true"`
} // @name ValidateRequest

// VisibilityRequest is the body of POST /api/v1/plugins/{pluginId}/visibility.
type VisibilityRequest struct {
	Data map[string]any `json:"data"`
} // @name VisibilityRequest

// GenerateResponse is generate.Result.
type GenerateResponse = generate.Result

// ValidateResponse is validation.Result.
type ValidateResponse = validation.Result

// PluginsListResponse lists the available plugin ids.
type PluginsListResponse struct {
	Plugins []string `json:"plugins" example:"carta_manifestacion"`
} // @name PluginsListResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"plugin not found"`
	Details string `json:"details,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string           `json:"status" example:"healthy"`
	Plugins  int              `json:"plugins" example:"1"`
	Counters map[string]int64 `json:"counters"`
} // @name HealthResponse
