// Package generate is the single entry point for producing a document: it
// loads the pack, prepares and validates the input, renders the template
// and reports the outcome as a Result. Expected failures never surface as
// errors or panics.
package generate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/docx"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/renderer"
	"github.com/liamcoop/cartagen/rules"
	"github.com/liamcoop/cartagen/validation"
)

// Result error messages.
const (
	MsgValidationFailed = "Validation failed / Validacion fallida"
	MsgTemplateNotFound = "Template not found / Plantilla no encontrada"
)

// DefaultOutputDir is used when a request names no output directory.
const DefaultOutputDir = "output"

// PackSource resolves plugin packs by id. *plugin.Manager satisfies it.
type PackSource interface {
	Get(ctx context.Context, pluginID string) (*plugin.Pack, error)
}

// Request describes one generation.
type Request struct {
	DocumentType   string         `json:"document_type"`
	Data           map[string]any `json:"data"`
	OutputDir      string         `json:"output_dir,omitempty"`
	TemplatePath   string         `json:"template_path,omitempty"`
	Validate       bool           `json:"validate"`
	FilenamePrefix string         `json:"filename_prefix,omitempty"`
}

// Result is the outcome of a generation. It is not modified after
// Generate returns.
type Result struct {
	TraceID            string                  `json:"trace_id"`
	Success            bool                    `json:"success"`
	OutputPath         string                  `json:"output_path,omitempty"`
	ValidationErrors   []validation.Error      `json:"validation_errors"`
	ValidationMessages []string                `json:"validation_messages"`
	Traces             []rules.EvaluationTrace `json:"evaluation_traces"`
	Error              string                  `json:"error,omitempty"`
	DurationMS         int64                   `json:"duration_ms"`
}

// Generator runs generations against a pack source.
type Generator struct {
	packs PackSource
	now   func() time.Time
	newID func() string
}

// NewGenerator returns a generator that loads packs from packs.
func NewGenerator(packs PackSource) *Generator {
	return &Generator{packs: packs, now: time.Now, newID: uuid.NewString}
}

// Generate produces one document. The returned result is never nil.
func (g *Generator) Generate(ctx context.Context, req Request) (result *Result) {
	start := g.now()
	result = &Result{
		TraceID:            g.newID(),
		ValidationErrors:   []validation.Error{},
		ValidationMessages: []string{},
		Traces:             []rules.EvaluationTrace{},
	}
	logger.GenerationsTotal.Add(1)

	defer func() {
		if r := recover(); r != nil {
			*result = Result{
				TraceID:            result.TraceID,
				ValidationErrors:   []validation.Error{},
				ValidationMessages: []string{},
				Traces:             []rules.EvaluationTrace{},
				Error:              fmt.Sprint(r),
			}
			logger.Error("generation panicked", "trace_id", result.TraceID, "plugin_id", req.DocumentType, "panic", r)
		}
		result.DurationMS = g.now().Sub(start).Milliseconds()
		if !result.Success {
			logger.GenerationsFailed.Add(1)
		}
	}()

	pack, err := g.packs.Get(ctx, req.DocumentType)
	if err != nil {
		result.Error = err.Error()
		logger.Error("plugin load failed", "trace_id", result.TraceID, "plugin_id", req.DocumentType, "error", err)
		return result
	}

	data := Preprocess(pack, ApplyDefaults(pack, req.Data, start))

	if req.Validate {
		v, err := validation.New(pack).Validate(data, validation.Options{})
		if err != nil {
			result.Error = err.Error()
			logger.Error("validation failed to run", "trace_id", result.TraceID, "plugin_id", pack.ID, "error", err)
			return result
		}
		if !v.Valid {
			result.ValidationErrors = v.Errors
			result.ValidationMessages = v.Messages()
			result.Error = MsgValidationFailed
			logger.Warn("generation rejected by validation",
				"trace_id", result.TraceID,
				"plugin_id", pack.ID,
				"errors", len(v.Errors))
			return result
		}
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	prefix := req.FilenamePrefix
	if prefix == "" {
		prefix = pack.Manifest.OutputPrefix
	}
	outputPath := filepath.Join(outputDir, Filename(prefix, result.TraceID, data, start))

	traces, err := renderer.New(pack).Render(data, req.TemplatePath, outputPath)
	switch {
	case errors.Is(err, docx.ErrTemplateNotFound):
		result.Error = MsgTemplateNotFound + ": " + err.Error()
		logger.Error("template not found", "trace_id", result.TraceID, "plugin_id", pack.ID, "error", err)
		return result
	case err != nil:
		result.Error = err.Error()
		logger.Error("generation failed", "trace_id", result.TraceID, "plugin_id", pack.ID, "error", err)
		return result
	}

	result.Success = true
	result.OutputPath = outputPath
	result.Traces = traces
	logger.Info("document generated",
		"trace_id", result.TraceID,
		"plugin_id", pack.ID,
		"output", outputPath,
		"decisions", len(traces))
	return result
}

// GenerateFromForm merges list field values into the form data before
// generating. Keys starting with "_" are form bookkeeping and are dropped
// from list records.
func (g *Generator) GenerateFromForm(ctx context.Context, req Request, lists map[string][]any) *Result {
	data := make(map[string]any, len(req.Data)+len(lists))
	for k, v := range req.Data {
		data[k] = v
	}
	for name, items := range lists {
		clean := make([]any, 0, len(items))
		for _, item := range items {
			record, ok := item.(map[string]any)
			if !ok {
				clean = append(clean, item)
				continue
			}
			stripped := make(map[string]any, len(record))
			for k, v := range record {
				if !strings.HasPrefix(k, "_") {
					stripped[k] = v
				}
			}
			clean = append(clean, stripped)
		}
		data[name] = clean
	}
	req.Data = data
	return g.Generate(ctx, req)
}

var filenameUnsafe = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// Filename names the output document: "<prefix>_<first 8 of trace id>.docx"
// when a prefix is set, otherwise
// "Carta_Manifestacion_<client>_<YYYYMMDD>.docx".
func Filename(prefix, traceID string, data map[string]any, now time.Time) string {
	if prefix != "" {
		short := traceID
		if len(short) > 8 {
			short = short[:8]
		}
		return prefix + "_" + short + ".docx"
	}
	client := "documento"
	if v, ok := data["Nombre_Cliente"]; ok {
		client = coerce.String(v)
	}
	return "Carta_Manifestacion_" + filenameUnsafe.Replace(client) + "_" + now.Format("20060102") + ".docx"
}
