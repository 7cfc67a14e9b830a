// Command lsync is a CLI client for the lingosync service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lingosync/lingosync/internal/model"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "lingosync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lingosync")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- wire types (mirror of the server DTOs) ----

type wireEntry struct {
	Key          string      `json:"key"`
	Language     string      `json:"language"`
	Value        model.Value `json:"value"`
	BaselineHash model.Hash  `json:"baseline_hash"`
}

type wireDeletion struct {
	Key          string     `json:"key"`
	BaselineHash model.Hash `json:"baseline_hash"`
}

type wirePush struct {
	Entries   []wireEntry    `json:"entries"`
	Deletions []wireDeletion `json:"deletions"`
	Message   string         `json:"message"`
}

type wireConflict struct {
	Key         string      `json:"key"`
	Language    string      `json:"language"`
	Base        model.Value `json:"base"`
	Current     model.Value `json:"current"`
	Proposed    model.Value `json:"proposed"`
	CurrentHash model.Hash  `json:"current_hash"`
}

type wirePushResult struct {
	Applied   int                              `json:"applied"`
	Deleted   int                              `json:"deleted"`
	Conflicts []wireConflict                   `json:"conflicts"`
	NewHashes map[string]map[string]model.Hash `json:"new_hashes"`
	HistoryID string                           `json:"history_id"`
}

type wirePullEntry struct {
	Key       string      `json:"key"`
	Language  string      `json:"language"`
	Value     model.Value `json:"value"`
	Hash      model.Hash  `json:"hash"`
	Status    string      `json:"status"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type wirePullResult struct {
	Entries       []wirePullEntry `json:"entries"`
	IsIncremental bool            `json:"is_incremental"`
}

type wireError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ---- http client ----

func newClient(addr, token string) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(addr, "/") + "/api/v1").
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

// call runs one request and decodes either the result or the server's
// error envelope.
func call(ctx context.Context, c *resty.Client, method, path string, body, out any, query map[string]string) error {
	req := c.R().SetContext(ctx).SetError(&wireError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		if we, ok := resp.Error().(*wireError); ok && we.Error.Code != "" {
			return fmt.Errorf("%s: %s", we.Error.Code, we.Error.Message)
		}
		return fmt.Errorf("http %d", resp.StatusCode())
	}
	return nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// parsePlural turns "one=plik,many=plików" into a plural value.
func parsePlural(s string) (model.Value, error) {
	forms := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		name, text, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return model.Value{}, fmt.Errorf("bad plural form %q (want name=text)", pair)
		}
		forms[name] = text
	}
	return model.PluralValue(forms), nil
}

func reportPush(st *workState, statePath string, res *wirePushResult, values map[string]map[string]model.Value) {
	st.applyHashes(res.NewHashes, values)
	if err := saveState(statePath, st); err != nil {
		fail(err)
	}
	if len(res.Conflicts) > 0 {
		fmt.Fprintf(os.Stderr, "%d conflict(s); run 'lsync resolve' with decisions:\n", len(res.Conflicts))
		printJSON(res.Conflicts)
		os.Exit(1)
	}
	fmt.Printf("applied=%d deleted=%d history=%s\n", res.Applied, res.Deleted, res.HistoryID)
}

func usage() {
	fmt.Fprintf(os.Stderr, `lsync CLI
Usage:
  lsync -addr URL [-state file] <cmd> [args]

Commands:
  version
  login      -token <jwt>                           (saves token)
  init       -project <uuid>                        (creates state file)
  pull       [-language L] [-full]
  push       -file <changes.json> [-m msg]
  set        -key K -lang L (-value V | -plural one=..,many=.. | -file F) [-m msg]
  rm         -key K [-m msg]                        (deletes whole key)
  status
  resolve    -file <decisions.json>
  history    [-page N] [-size N] | -id <entry>
  revert     -id <entry> [-m msg]
  snapshot   create [-desc D] | list | restore -id S [-backup] | diff -from A -to B | rm -id S
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP API, keeping baselines in
// the local state file.
func main() {
	// global flags
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	statePath := flag.String("state", "lsync.state.json", "local state file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("lsync %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		token := fs.String("token", "", "actor token issued by the account service")
		_ = fs.Parse(flag.Args()[1:])
		if *token == "" {
			fmt.Fprintln(os.Stderr, "need -token")
			os.Exit(1)
		}

		// parse exp from JWT, unverified: the server is the verifier
		var claims jwt.RegisteredClaims
		_, _ = jwt.ParseWithClaims(*token, &claims, func(*jwt.Token) (any, error) { return nil, nil },
			jwt.WithoutClaimsValidation(),
		)
		exp := time.Now().Add(24 * time.Hour)
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		if err := saveToken(*token, exp); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "init":
		fs := flag.NewFlagSet("init", flag.ExitOnError)
		project := fs.String("project", "", "project id (uuid)")
		_ = fs.Parse(flag.Args()[1:])
		if *project == "" {
			fmt.Fprintln(os.Stderr, "need -project")
			os.Exit(1)
		}
		if _, err := os.Stat(*statePath); err == nil {
			fail(fmt.Errorf("%s already exists", *statePath))
		}
		if err := saveState(*statePath, newWorkState(*project, *addr)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "pull":
		fs := flag.NewFlagSet("pull", flag.ExitOnError)
		language := fs.String("language", "", "restrict to one language")
		full := fs.Bool("full", false, "full export, ignore last pull time")
		_ = fs.Parse(flag.Args()[1:])

		st, cli := mustSession(*statePath, *addr)
		query := map[string]string{}
		if *language != "" {
			query["language"] = *language
		}
		if !*full && st.PulledAt != nil {
			query["since"] = st.PulledAt.Format(time.RFC3339Nano)
		}

		var out wirePullResult
		if err := call(ctx, cli, resty.MethodGet, "/projects/"+st.Project+"/sync/pull", nil, &out, query); err != nil {
			fail(err)
		}
		for _, e := range out.Entries {
			st.put(e.Key, e.Language, stateEntry{
				Value:     e.Value,
				Hash:      e.Hash,
				Status:    model.Status(e.Status),
				Version:   e.Version,
				UpdatedAt: e.UpdatedAt,
			})
		}
		now := time.Now().UTC()
		st.PulledAt = &now
		if err := saveState(*statePath, st); err != nil {
			fail(err)
		}
		fmt.Printf("pulled %d entries (incremental=%v)\n", len(out.Entries), out.IsIncremental)

	case "push":
		fs := flag.NewFlagSet("push", flag.ExitOnError)
		file := fs.String("file", "", "changes file ('-'=stdin)")
		msg := fs.String("m", "", "change message")
		_ = fs.Parse(flag.Args()[1:])
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}

		st, cli := mustSession(*statePath, *addr)

		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		var changes struct {
			Entries []struct {
				Key      string      `json:"key"`
				Language string      `json:"language"`
				Value    model.Value `json:"value"`
			} `json:"entries"`
			Deletions []string `json:"deletions"`
		}
		if err := json.Unmarshal(raw, &changes); err != nil {
			fail(fmt.Errorf("parse %s: %w", *file, err))
		}

		req := wirePush{Message: *msg, Entries: []wireEntry{}, Deletions: []wireDeletion{}}
		values := map[string]map[string]model.Value{}
		for _, e := range changes.Entries {
			req.Entries = append(req.Entries, wireEntry{
				Key:          e.Key,
				Language:     e.Language,
				Value:        e.Value,
				BaselineHash: st.baseline(e.Key, e.Language),
			})
			if values[e.Key] == nil {
				values[e.Key] = map[string]model.Value{}
			}
			values[e.Key][e.Language] = e.Value
		}
		for _, key := range changes.Deletions {
			req.Deletions = append(req.Deletions, wireDeletion{Key: key, BaselineHash: st.keyBaseline(key)})
		}

		var res wirePushResult
		if err := call(ctx, cli, resty.MethodPost, "/projects/"+st.Project+"/sync/push", req, &res, nil); err != nil {
			fail(err)
		}
		for _, key := range changes.Deletions {
			st.drop(key)
		}
		reportPush(st, *statePath, &res, values)

	case "set":
		fs := flag.NewFlagSet("set", flag.ExitOnError)
		key := fs.String("key", "", "resource key")
		lang := fs.String("lang", "", "language code")
		value := fs.String("value", "", "plain text value")
		plural := fs.String("plural", "", "plural forms, name=text comma separated")
		file := fs.String("file", "", "read value from file ('-'=stdin)")
		msg := fs.String("m", "", "change message")
		_ = fs.Parse(flag.Args()[1:])
		if *key == "" || *lang == "" {
			fmt.Fprintln(os.Stderr, "need -key and -lang")
			os.Exit(1)
		}

		var val model.Value
		switch {
		case *plural != "":
			v, err := parsePlural(*plural)
			if err != nil {
				fail(err)
			}
			val = v
		case *file != "":
			b, err := readAll(*file)
			if err != nil {
				fail(err)
			}
			val = model.PlainValue(string(b))
		case *value != "":
			val = model.PlainValue(*value)
		default:
			fmt.Fprintln(os.Stderr, "need one of -value, -plural, -file")
			os.Exit(1)
		}

		st, cli := mustSession(*statePath, *addr)
		req := wirePush{
			Message: *msg,
			Entries: []wireEntry{{
				Key: *key, Language: *lang, Value: val,
				BaselineHash: st.baseline(*key, *lang),
			}},
			Deletions: []wireDeletion{},
		}

		var res wirePushResult
		if err := call(ctx, cli, resty.MethodPost, "/projects/"+st.Project+"/sync/push", req, &res, nil); err != nil {
			fail(err)
		}
		reportPush(st, *statePath, &res, map[string]map[string]model.Value{*key: {*lang: val}})

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		key := fs.String("key", "", "resource key")
		msg := fs.String("m", "", "change message")
		_ = fs.Parse(flag.Args()[1:])
		if *key == "" {
			fmt.Fprintln(os.Stderr, "need -key")
			os.Exit(1)
		}

		st, cli := mustSession(*statePath, *addr)
		req := wirePush{
			Message:   *msg,
			Entries:   []wireEntry{},
			Deletions: []wireDeletion{{Key: *key, BaselineHash: st.keyBaseline(*key)}},
		}

		var res wirePushResult
		if err := call(ctx, cli, resty.MethodPost, "/projects/"+st.Project+"/sync/push", req, &res, nil); err != nil {
			fail(err)
		}
		st.drop(*key)
		reportPush(st, *statePath, &res, nil)

	case "status":
		st, cli := mustSession(*statePath, *addr)
		query := map[string]string{}
		if st.PulledAt != nil {
			query["since"] = st.PulledAt.Format(time.RFC3339Nano)
		}

		var out wirePullResult
		if err := call(ctx, cli, resty.MethodGet, "/projects/"+st.Project+"/sync/pull", nil, &out, query); err != nil {
			fail(err)
		}
		changed := 0
		for _, e := range out.Entries {
			if st.baseline(e.Key, e.Language) != e.Hash {
				fmt.Printf("  changed  %s/%s\n", e.Key, e.Language)
				changed++
			}
		}
		if changed == 0 {
			fmt.Println("up to date")
		} else {
			fmt.Printf("%d entr(ies) changed on the server; run 'lsync pull'\n", changed)
		}

	case "resolve":
		fs := flag.NewFlagSet("resolve", flag.ExitOnError)
		file := fs.String("file", "", "decisions file ('-'=stdin)")
		_ = fs.Parse(flag.Args()[1:])
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}

		st, cli := mustSession(*statePath, *addr)
		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		var body json.RawMessage = raw

		var res wirePushResult
		if err := call(ctx, cli, resty.MethodPost, "/projects/"+st.Project+"/sync/resolve", body, &res, nil); err != nil {
			fail(err)
		}
		reportPush(st, *statePath, &res, nil)

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		id := fs.String("id", "", "show one entry with its diff")
		page := fs.Int("page", 1, "page number")
		size := fs.Int("size", 20, "page size")
		_ = fs.Parse(flag.Args()[1:])

		st, cli := mustSession(*statePath, *addr)
		if *id != "" {
			var out json.RawMessage
			err := call(ctx, cli, resty.MethodGet, "/projects/"+st.Project+"/sync/history/"+*id, nil, &out, nil)
			if err != nil {
				fail(err)
			}
			printJSON(out)
			break
		}

		var out json.RawMessage
		err := call(ctx, cli, resty.MethodGet, "/projects/"+st.Project+"/sync/history", nil, &out,
			map[string]string{"page": fmt.Sprint(*page), "pageSize": fmt.Sprint(*size)})
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "revert":
		fs := flag.NewFlagSet("revert", flag.ExitOnError)
		id := fs.String("id", "", "history entry id")
		msg := fs.String("m", "", "change message")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		st, cli := mustSession(*statePath, *addr)
		var res wirePushResult
		err := call(ctx, cli, resty.MethodPost, "/projects/"+st.Project+"/sync/history/"+*id+"/revert",
			map[string]string{"message": *msg}, &res, nil)
		if err != nil {
			fail(err)
		}
		// local values for reverted keys are stale now
		reportPush(st, *statePath, &res, nil)
		fmt.Println("run 'lsync pull' to fetch reverted values")

	case "snapshot":
		if flag.NArg() < 2 {
			usage()
		}
		cmdSnapshot(ctx, flag.Arg(1), flag.Args()[2:], *statePath, *addr)

	default:
		usage()
	}
}

func cmdSnapshot(ctx context.Context, sub string, args []string, statePath, addr string) {
	st, cli := mustSession(statePath, addr)
	base := "/projects/" + st.Project + "/snapshots"

	switch sub {

	case "create":
		fs := flag.NewFlagSet("snapshot create", flag.ExitOnError)
		desc := fs.String("desc", "", "description")
		_ = fs.Parse(args)

		var out json.RawMessage
		err := call(ctx, cli, resty.MethodPost, base,
			map[string]string{"type": "manual", "description": *desc}, &out, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "list":
		var out json.RawMessage
		if err := call(ctx, cli, resty.MethodGet, base, nil, &out, nil); err != nil {
			fail(err)
		}
		printJSON(out)

	case "restore":
		fs := flag.NewFlagSet("snapshot restore", flag.ExitOnError)
		id := fs.String("id", "", "snapshot id")
		backup := fs.Bool("backup", false, "snapshot current state first")
		msg := fs.String("m", "", "change message")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		var out json.RawMessage
		err := call(ctx, cli, resty.MethodPost, base+"/"+*id+"/restore",
			map[string]any{"create_backup_before": *backup, "message": *msg}, &out, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)
		fmt.Println("run 'lsync pull -full' to refresh local state")

	case "diff":
		fs := flag.NewFlagSet("snapshot diff", flag.ExitOnError)
		from := fs.String("from", "", "older snapshot id")
		to := fs.String("to", "", "newer snapshot id")
		_ = fs.Parse(args)
		if *from == "" || *to == "" {
			fmt.Fprintln(os.Stderr, "need -from and -to")
			os.Exit(1)
		}

		var out json.RawMessage
		err := call(ctx, cli, resty.MethodGet, base+"/diff", nil, &out,
			map[string]string{"from": *from, "to": *to})
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "rm":
		fs := flag.NewFlagSet("snapshot rm", flag.ExitOnError)
		id := fs.String("id", "", "snapshot id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		if err := call(ctx, cli, resty.MethodDelete, base+"/"+*id, nil, nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}

// ---- helpers ----

// mustSession loads the state file and builds an authenticated client.
func mustSession(statePath, addr string) (*workState, *resty.Client) {
	st, err := loadState(statePath)
	if err != nil {
		fail(fmt.Errorf("load state: %w (run 'lsync init')", err))
	}
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	if st.Server != "" {
		addr = st.Server
	}
	return st, newClient(addr, token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
