// Command cartagen generates, validates and inspects documents from the
// command line against the configured plugin packs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/liamcoop/cartagen/generate"
	"github.com/liamcoop/cartagen/internal/config"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/validation"
)

func main() {
	// stdout carries command output only.
	logger.SetOutput(os.Stderr)

	if err := newApp(os.Stdout).RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	pluginFlag = &cli.StringFlag{
		Name:     "plugin",
		Aliases:  []string{"p"},
		Usage:    "plugin id (document type)",
		Required: true,
	}
	inputFlag = &cli.PathFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "JSON file with the input data, - for stdin",
		Required: true,
	}
)

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "cartagen",
		Usage:     "generate Word documents from plugin packs",
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "plugins-dir",
				Usage:   "directory holding <plugin_id>/*.yaml",
				EnvVars: []string{"PLUGINS_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "render a document",
				Flags: []cli.Flag{
					pluginFlag,
					inputFlag,
					&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", EnvVars: []string{"OUTPUT_DIR"}},
					&cli.PathFlag{Name: "template", Aliases: []string{"t"}, Usage: "template overriding the manifest"},
					&cli.StringFlag{Name: "prefix", Usage: "output filename prefix"},
					&cli.BoolFlag{Name: "no-validate", Usage: "skip input validation"},
				},
				Action: runGenerate,
			},
			{
				Name:  "validate",
				Usage: "validate input data",
				Flags: []cli.Flag{
					pluginFlag,
					inputFlag,
					&cli.BoolFlag{Name: "draft", Usage: "do not report missing required fields"},
				},
				Action: runValidate,
			},
			{
				Name:   "visibility",
				Usage:  "show field visibility and decisions for input data",
				Flags:  []cli.Flag{pluginFlag, inputFlag},
				Action: runVisibility,
			},
			{
				Name:   "plugins",
				Usage:  "list available plugins",
				Action: runPlugins,
			},
		},
	}
}

type env struct {
	cfg       config.Config
	plugins   *plugin.Manager
	generator *generate.Generator
	close     func() error
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir := c.Path("plugins-dir"); dir != "" {
		cfg.PluginsDir = dir
	}
	plugins, closeFn, err := cfg.Manager(c.Context)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, plugins: plugins, generator: generate.NewGenerator(plugins), close: closeFn}, nil
}

func readInput(c *cli.Context) (map[string]any, error) {
	path := c.Path("input")
	var r io.Reader
	if path == "-" {
		r = c.App.Reader
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var data map[string]any
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode input %s: %w", path, err)
	}
	return data, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runGenerate(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()
	data, err := readInput(c)
	if err != nil {
		return err
	}

	outputDir := c.Path("out")
	if outputDir == "" {
		outputDir = e.cfg.OutputDir
	}
	result := e.generator.Generate(c.Context, generate.Request{
		DocumentType:   c.String("plugin"),
		Data:           data,
		OutputDir:      outputDir,
		TemplatePath:   c.Path("template"),
		Validate:       !c.Bool("no-validate"),
		FilenamePrefix: c.String("prefix"),
	})
	if err := printJSON(c, result); err != nil {
		return err
	}
	if !result.Success {
		return cli.Exit("generation failed: "+result.Error, 1)
	}
	return nil
}

func runValidate(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()
	data, err := readInput(c)
	if err != nil {
		return err
	}

	result, err := e.generator.Validate(c.Context, c.String("plugin"), data, validation.Options{SkipRequired: c.Bool("draft")})
	if err != nil {
		return err
	}
	if err := printJSON(c, result); err != nil {
		return err
	}
	if !result.Valid {
		return cli.Exit(fmt.Sprintf("%d validation error(s)", len(result.Errors)), 2)
	}
	return nil
}

func runVisibility(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()
	data, err := readInput(c)
	if err != nil {
		return err
	}

	report, err := e.generator.Visibility(c.Context, c.String("plugin"), data)
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

func runPlugins(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	ids, err := e.plugins.ListPlugins(c.Context)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(c.App.Writer, id)
	}
	return nil
}
