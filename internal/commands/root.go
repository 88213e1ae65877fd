package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/gaborage/go-fetch/config"
	"github.com/gaborage/go-fetch/http"
	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/observability"
)

// RequestOptions holds the flags of the request command
type RequestOptions struct {
	ConfigFile string
	Headers    []string
	Query      []string
	JSON       string
	Form       []string
	URLEncoded []string
	Data       string
	Retry      int
	RetrySleep time.Duration
	Timeout    time.Duration
	Bearer     string
	Basic      string
	Include    bool
	Raw        bool
	Path       string
	Fail       bool
	Verbose    bool
	NoColor    bool
	Telemetry  bool
}

var supportedMethods = map[string]http.Method{
	"GET":     http.MethodGet,
	"HEAD":    http.MethodHead,
	"POST":    http.MethodPost,
	"PUT":     http.MethodPut,
	"PATCH":   http.MethodPatch,
	"DELETE":  http.MethodDelete,
	"OPTIONS": http.MethodOptions,
}

// NewRootCommand creates the fetch command. It dispatches a single request and writes
// the response body to stdout; logs and telemetry go to stderr.
func NewRootCommand(version string) *cobra.Command {
	opts := &RequestOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <method> <url>",
		Short: "Send an HTTP request with retries, timeouts and structured logs",
		Long: `fetch sends one HTTP request through the go-fetch request builder.

Defaults such as the base URL, headers, retry policy and rate limit are read from
fetch.yaml and FETCH_* environment variables. Relative URLs are resolved against
client.baseurl.`,
		Example: `  # Query an API with a bearer token
  fetch get https://api.example.com/users -q page=2 --bearer $TOKEN

  # Post JSON and retry server errors twice
  fetch post users --json '{"name":"Luis"}' --retry 2 --retry-sleep 500ms

  # Upload a file as multipart form data
  fetch post uploads --form title=avatar --form file=@./avatar.png

  # Print only a field of the response
  fetch get users/1 --path data.email`,
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "Path to config file (default: ./fetch.yaml when present)")
	flags.StringArrayVarP(&opts.Headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	flags.StringArrayVarP(&opts.Query, "query", "q", nil, "Query parameter key=value (repeatable)")
	flags.StringVar(&opts.JSON, "json", "", "JSON request body")
	flags.StringArrayVar(&opts.Form, "form", nil, "Multipart field key=value, or key=@file to attach a file (repeatable)")
	flags.StringArrayVar(&opts.URLEncoded, "urlencoded", nil, "URL encoded form field key=value (repeatable)")
	flags.StringVarP(&opts.Data, "data", "d", "", "Raw request body sent as text/plain unless a Content-Type header is given")
	flags.IntVar(&opts.Retry, "retry", 0, "Additional attempts after a failed attempt or non-2xx response")
	flags.DurationVar(&opts.RetrySleep, "retry-sleep", 0, "Pause between attempts")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Per-attempt timeout")
	flags.StringVar(&opts.Bearer, "bearer", "", "Bearer token for the Authorization header")
	flags.StringVar(&opts.Basic, "basic", "", "Basic auth credentials user:password")
	flags.BoolVarP(&opts.Include, "include", "i", false, "Print the status line and response headers")
	flags.BoolVar(&opts.Raw, "raw", false, "Print the body exactly as received")
	flags.StringVar(&opts.Path, "path", "", "Print only the JSON value at this path (e.g. data.0.name)")
	flags.BoolVarP(&opts.Fail, "fail", "f", false, "Exit with code 22 on a non-2xx response")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every attempt at debug level")
	flags.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&opts.Telemetry, "telemetry", false, "Export spans and metrics to stderr, or to telemetry.endpoint when configured")

	cmd.MarkFlagsMutuallyExclusive("json", "form", "urlencoded", "data")
	cmd.AddCommand(NewVersionCommand(version))

	return cmd
}

func runRequest(cmd *cobra.Command, opts *RequestOptions, methodArg, target string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if opts.NoColor {
		color.NoColor = true
	}

	method, ok := supportedMethods[strings.ToUpper(methodArg)]
	if !ok {
		return exitWith(ExitUsageError, fmt.Errorf("unsupported method %q", methodArg))
	}

	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(stderr, level, cfg.Log.Pretty)

	if opts.Telemetry || cfg.Telemetry.Enabled {
		provider, err := observability.NewProvider(&observability.Config{
			Enabled:         true,
			ServiceName:     cfg.Telemetry.Service,
			MetricsInterval: cfg.Telemetry.Interval,
			Endpoint:        cfg.Telemetry.Endpoint,
			Protocol:        cfg.Telemetry.Protocol,
			Insecure:        cfg.Telemetry.Insecure,
			Headers:         cfg.Telemetry.Headers,
			Writer:          stderr,
		})
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		defer func() {
			if err := observability.Shutdown(provider, 0); err != nil {
				log.Warn().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	}

	b := http.NewFromConfig(cfg, log)
	if err := applyFlags(cmd, b, opts); err != nil {
		return exitWith(ExitUsageError, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := b.Send(ctx, method, target)
	if err != nil {
		return exitWith(requestExitCode(err), err)
	}

	printer := &responsePrinter{out: stdout, include: opts.Include, raw: opts.Raw, path: opts.Path}
	if err := printer.Print(resp); err != nil {
		return exitWith(ExitFailure, err)
	}

	if opts.Fail && !resp.OK() {
		return exitWith(ExitHTTPError, fmt.Errorf("request failed with status %d", resp.StatusCode))
	}
	return nil
}

// Execute runs the fetch command with args and returns the process exit code. Errors are
// written to stderr.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(stderr, err)
	}
	return ExitCode(err)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.Load(path)
}

// applyFlags layers the command line over the configured defaults.
func applyFlags(cmd *cobra.Command, b *http.Builder, opts *RequestOptions) error {
	for _, h := range opts.Headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return err
		}
		b.WithHeader(name, value)
	}

	if len(opts.Query) > 0 {
		query, err := parsePairs("query", opts.Query)
		if err != nil {
			return err
		}
		b.WithQueryParameters(query)
	}

	if opts.Bearer != "" {
		b.WithToken(opts.Bearer)
	}
	if opts.Basic != "" {
		user, pass, found := strings.Cut(opts.Basic, ":")
		if !found {
			return errors.New(`--basic expects "user:password"`)
		}
		b.WithBasicAuth(user, pass)
	}

	flags := cmd.Flags()
	if flags.Changed("retry") || flags.Changed("retry-sleep") {
		times := b.Pending().Retry.Times
		if flags.Changed("retry") {
			times = opts.Retry
		}
		sleep := b.Pending().Retry.Sleep
		if flags.Changed("retry-sleep") {
			sleep = opts.RetrySleep
		}
		b.Retry(times, sleep)
	}
	if flags.Changed("timeout") {
		b.Timeout(opts.Timeout)
	}

	if err := applyBody(b, opts); err != nil {
		return err
	}
	return b.Err()
}

func applyBody(b *http.Builder, opts *RequestOptions) error {
	switch {
	case opts.JSON != "":
		if !gjson.Valid(opts.JSON) {
			return errors.New("--json is not valid JSON")
		}
		b.AsJSON().WithBody(opts.JSON)
	case len(opts.Form) > 0:
		fields, err := parseFormFields(opts.Form)
		if err != nil {
			return err
		}
		b.AsForm().WithBody(fields)
	case len(opts.URLEncoded) > 0:
		fields, err := parsePairs("urlencoded", opts.URLEncoded)
		if err != nil {
			return err
		}
		b.AsURLEncoded().WithBody(fields)
	case opts.Data != "":
		b.WithBody(opts.Data)
	}
	return nil
}

func parseHeader(raw string) (name, value string, err error) {
	name, value, found := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", fmt.Errorf(`invalid header %q, expected "Name: value"`, raw)
	}
	return name, strings.TrimSpace(value), nil
}

// parsePairs turns repeated key=value flags into a map. A repeated key collects its
// values in a slice.
func parsePairs(flag string, raw []string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected key=value", flag, pair)
		}
		addValue(out, key, value)
	}
	return out, nil
}

func parseFormFields(raw []string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --form %q, expected key=value or key=@file", pair)
		}

		path, isFile := strings.CutPrefix(value, "@")
		if !isFile {
			addValue(out, key, value)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read form file for %q: %w", key, err)
		}
		addValue(out, key, http.File{Name: filepath.Base(path), Content: content})
	}
	return out, nil
}

func addValue(m map[string]any, key string, value any) {
	existing, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if values, ok := existing.([]any); ok {
		m[key] = append(values, value)
		return
	}
	m[key] = []any{existing, value}
}
