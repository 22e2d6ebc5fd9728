package querylensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type command struct {
	method       string
	path         string
	needsArg     bool
	questionBody bool
}

var commands = map[string]command{
	"health":        {method: http.MethodGet, path: "/v1/health"},
	"ready":         {method: http.MethodGet, path: "/v1/ready"},
	"schema":        {method: http.MethodGet, path: "/v1/schema"},
	"queries":       {method: http.MethodGet, path: "/v1/queries"},
	"query":         {method: http.MethodGet, path: "/v1/queries/", needsArg: true},
	"ask":           {method: http.MethodPost, path: "/v1/ask", needsArg: true, questionBody: true},
	"translate":     {method: http.MethodPost, path: "/v1/translate", needsArg: true, questionBody: true},
	"retrieve":      {method: http.MethodPost, path: "/v1/retrieve", needsArg: true, questionBody: true},
	"index-rebuild": {method: http.MethodPost, path: "/v1/index/rebuild"},
	"index-verify":  {method: http.MethodPost, path: "/v1/index/verify"},
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("querylensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "querylens API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")
	k := fs.Int("k", 0, "number of tables for retrieve (0 uses the server default)")
	limit := fs.Int("limit", 0, "number of entries for queries (0 uses the server default)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	name := strings.TrimSpace(fs.Arg(0))
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		writeUsage(stderr)
		return 2
	}
	argument := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	if cmd.needsArg && argument == "" {
		_, _ = fmt.Fprintf(stderr, "command %q requires an argument\n\n", name)
		writeUsage(stderr)
		return 2
	}

	path := cmd.path
	var body []byte
	switch {
	case cmd.questionBody:
		payload := map[string]any{"question": argument}
		if name == "retrieve" && *k != 0 {
			payload["k"] = *k
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
			return 1
		}
		body = encoded
	case cmd.needsArg:
		path += url.PathEscape(argument)
	case name == "queries" && *limit > 0:
		path += fmt.Sprintf("?limit=%d", *limit)
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, cmd.method, endpoint, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: querylensctl [flags] <command> [argument]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                 GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  queries                GET /v1/queries")
	_, _ = fmt.Fprintln(w, "  query <id>             GET /v1/queries/{id}")
	_, _ = fmt.Fprintln(w, "  ask <question>         POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  translate <question>   POST /v1/translate")
	_, _ = fmt.Fprintln(w, "  retrieve <question>    POST /v1/retrieve")
	_, _ = fmt.Fprintln(w, "  index-rebuild          POST /v1/index/rebuild")
	_, _ = fmt.Fprintln(w, "  index-verify           POST /v1/index/verify")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
