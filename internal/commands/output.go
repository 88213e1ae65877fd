package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/gaborage/go-fetch/http"
)

var (
	successColor  = color.New(color.FgGreen, color.Bold)
	redirectColor = color.New(color.FgCyan, color.Bold)
	warningColor  = color.New(color.FgYellow, color.Bold)
	failureColor  = color.New(color.FgRed, color.Bold)
	headerColor   = color.New(color.FgBlue)
	dimColor      = color.New(color.Faint)
)

// responsePrinter writes settled responses in the CLI's human readable format.
type responsePrinter struct {
	out     io.Writer
	include bool
	raw     bool
	path    string
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return redirectColor
	case code >= 400 && code < 500:
		return warningColor
	default:
		return failureColor
	}
}

// Print writes the status line and headers (with --include) followed by the body. JSON
// bodies are indented unless raw output was requested; with a query path only the
// matching JSON value is written.
func (p *responsePrinter) Print(resp *http.Response) error {
	if p.include {
		p.printHead(resp)
	}

	body := resp.Body
	if p.path != "" {
		result := gjson.GetBytes(body, p.path)
		if !result.Exists() {
			return fmt.Errorf("path %q not found in response body", p.path)
		}
		body = []byte(result.String())
		if result.IsObject() || result.IsArray() {
			body = []byte(result.Raw)
		}
	}

	if !p.raw && gjson.ValidBytes(body) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, body, "", "  "); err == nil {
			body = indented.Bytes()
		}
	}

	if len(body) == 0 {
		return nil
	}
	if _, err := p.out.Write(body); err != nil {
		return err
	}
	if body[len(body)-1] != '\n' {
		_, err := io.WriteString(p.out, "\n")
		return err
	}
	return nil
}

func (p *responsePrinter) printHead(resp *http.Response) {
	status := resp.Status
	if status == "" {
		status = strconv.Itoa(resp.StatusCode)
	}
	statusColor(resp.StatusCode).Fprintln(p.out, status)

	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Headers[name] {
			headerColor.Fprintf(p.out, "%s:", name)
			fmt.Fprintf(p.out, " %s\n", v)
		}
	}

	stats := resp.Stats
	dimColor.Fprintf(p.out, "# attempts=%d elapsed=%s mocked=%t\n\n", stats.Attempts, stats.ElapsedTime.Round(time.Microsecond), stats.Mocked)
}

// printError writes a failed dispatch to w.
func printError(w io.Writer, err error) {
	failureColor.Fprint(w, "error: ")
	fmt.Fprintln(w, err)
}
