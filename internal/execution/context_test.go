package execution

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
	"github.com/zigrin-security/cakefuzzer/internal/collection"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

func intPtr(v int) *int { return &v }

func baseConfig() *types.ExecutionConfig {
	return &types.ExecutionConfig{
		Payloads:    []string{"' OR 1=1", "<script>"},
		Path:        "/users/view",
		Probability: 50,
		Originals: map[string]map[string]any{
			"server": {
				"REQUEST_METHOD": "GET",
				"HTTP_ACCEPT":    "text/html",
				"HTTP_HOST":      "127.0.0.1",
			},
			"query": {"page": "1"},
		},
		Seed: 7,
	}
}

func TestNew_BuildsStandardGroups(t *testing.T) {
	src := choice.NewSequence(0)
	exec, err := New(baseConfig(), WithSource(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.Calls() != 0 {
		t.Errorf("supplied method and accept header should not draw, got %d draws", src.Calls())
	}
	if exec.Method() != "GET" {
		t.Errorf("Method() = %s", exec.Method())
	}
	if exec.Path() != "/users/view" {
		t.Errorf("Path() = %s", exec.Path())
	}
	if exec.ID() == "" {
		t.Error("expected an execution ID")
	}

	for _, name := range []string{"query", "request", "cookies", "server"} {
		g, ok := exec.Group(name)
		if !ok {
			t.Fatalf("missing group %s", name)
		}
		if _, ok := g.(*collection.Collection); !ok {
			t.Errorf("group %s should be instrumented, got %T", name, g)
		}
	}

	body, _ := exec.Group("body")
	if _, ok := body.(*collection.Map); !ok {
		t.Errorf("body of a GET request should not be instrumented, got %T", body)
	}
	files, _ := exec.Group("files")
	if _, ok := files.(*collection.AccessLog); !ok {
		t.Errorf("files should be an access log, got %T", files)
	}

	server := exec.Result().Groups["server"]
	expected := map[string]any{
		"REQUEST_METHOD": "GET",
		"HTTP_ACCEPT":    "text/html",
		"HTTP_HOST":      "127.0.0.1",
		"REQUEST_URI":    "/users/view",
		"QUERY_STRING":   "/users/view",
	}
	if !reflect.DeepEqual(server, expected) {
		t.Errorf("server snapshot = %v, expected %v", server, expected)
	}

	serverGroup, _ := exec.Group("server")
	if v, _ := serverGroup.Get("PATH_INFO"); v != collection.Scalar("/users/view") {
		t.Errorf("PATH_INFO = %#v", v)
	}
}

func TestNew_ChoosesMethodAndAccept(t *testing.T) {
	cfg := baseConfig()
	delete(cfg.Originals["server"], "REQUEST_METHOD")
	delete(cfg.Originals["server"], "HTTP_ACCEPT")
	cfg.MethodTable = map[string]float64{"POST": 100}

	// method slot 0, accept pick 3
	exec, err := New(cfg, WithSource(choice.NewSequence(0, 3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Method() != "POST" {
		t.Fatalf("Method() = %s, expected POST", exec.Method())
	}
	body, _ := exec.Group("body")
	if _, ok := body.(*collection.Collection); !ok {
		t.Fatalf("body of a POST request should be instrumented, got %T", body)
	}
	if v, _ := body.Get("_method"); v != collection.Scalar("POST") {
		t.Errorf("body _method = %#v", v)
	}

	server, _ := exec.Group("server")
	if v, _ := server.Get("HTTP_ACCEPT"); v != collection.Scalar(AcceptTypes[3]) {
		t.Errorf("HTTP_ACCEPT = %#v", v)
	}

	if _, ok := cfg.Originals["body"]; ok {
		t.Error("configuration originals must not be modified")
	}
}

func TestNew_RandomMethod(t *testing.T) {
	cfg := baseConfig()
	delete(cfg.Originals["server"], "REQUEST_METHOD")

	exec, err := New(cfg, WithSource(choice.NewSequence(0)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Method() != Methods[0] {
		t.Errorf("Method() = %s, expected %s", exec.Method(), Methods[0])
	}
}

func TestNew_FuzzesPath(t *testing.T) {
	cfg := baseConfig()
	cfg.Payloads = []string{"<x>"}
	cfg.Path = "/users/_CAKE_FUZZER_ID"
	cfg.PathProbability = intPtr(100)
	cfg.Originals["server"]["REQUEST_URI"] = "/stale"
	cfg.Originals["server"]["QUERY_STRING"] = "page=2"

	exec, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Path() != "/users/%3Cx%3E" {
		t.Errorf("Path() = %s", exec.Path())
	}
	if got := exec.Result().Groups["server"]["REQUEST_URI"]; got != exec.Path() {
		t.Errorf("REQUEST_URI = %v, expected fuzzed path", got)
	}
	if got := exec.Result().Groups["server"]["QUERY_STRING"]; got != exec.Path() {
		t.Errorf("QUERY_STRING = %v, expected fuzzed path", got)
	}
}

func TestNew_ExcludedGroup(t *testing.T) {
	cfg := baseConfig()
	cfg.Probability = 100
	cfg.GlobalExclude = []string{"cookies"}
	cfg.Originals["cookies"] = map[string]any{"lang": "en"}

	exec, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cookies, _ := exec.Group("cookies")
	if _, ok := cookies.(*collection.Map); !ok {
		t.Fatalf("excluded group should be a plain map, got %T", cookies)
	}
	if v, _ := cookies.Get("session"); v != nil {
		t.Errorf("excluded group must not inject, got %#v", v)
	}
	if v, _ := cookies.Get("lang"); v != collection.Scalar("en") {
		t.Errorf("excluded group should keep originals, got %#v", v)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Payloads = nil

	if _, err := New(cfg); err == nil {
		t.Error("expected validation error without payloads")
	}
}

func TestNew_KnownKeywordsJoinPool(t *testing.T) {
	cfg := baseConfig()
	cfg.KnownKeywords = []string{"<script>", "admin"}

	exec, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"' OR 1=1", "<script>", "admin"}
	if got := exec.Payloads(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Payloads() = %v, expected %v", got, expected)
	}
}

func singleTargetScript() *Script {
	return NewScript([]types.Access{
		{Group: "query", Keys: []string{"id"}},
		{Group: "query", Keys: []string{"name"}},
		{Group: "cookies", Keys: []string{"session"}},
		{Group: "server", Keys: []string{"HTTP_USER_AGENT"}},
		{Group: "request", Keys: []string{"data", "User", "email"}},
		{Group: "query", Keys: []string{"id", "nested"}},
		{Group: "files", Keys: []string{"upload"}},
	})
}

func TestRun_SingleTargetExclusive(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		cfg := baseConfig()
		cfg.OneParamPerPayload = true
		cfg.Seed = seed

		exec, err := New(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := exec.Run(context.Background(), singleTargetScript())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Injected != 1 {
			t.Fatalf("seed %d: expected exactly one injection, got %d", seed, result.Injected)
		}
		group, key := exec.Latch().Holder()
		if group != "query" || key != "id" {
			t.Errorf("seed %d: first eligible key should win, got %s/%s", seed, group, key)
		}
		if _, ok := result.Groups["cookies"]["session"]; ok {
			t.Errorf("seed %d: cookies should not be injected", seed)
		}
	}
}

func TestRun_SingleTargetConfigured(t *testing.T) {
	cfg := baseConfig()
	cfg.OneParamPerPayload = true
	cfg.Injectable = map[string]string{"cookies": "session"}

	exec, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := exec.Run(context.Background(), singleTargetScript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Injected != 1 {
		t.Fatalf("expected exactly one injection, got %d", result.Injected)
	}
	if _, ok := result.Groups["cookies"]["session"]; !ok {
		t.Errorf("configured target should be injected, got %v", result.Groups["cookies"])
	}
	if !reflect.DeepEqual(result.Groups["query"], map[string]any{"page": "1"}) {
		t.Errorf("query should hold only originals, got %v", result.Groups["query"])
	}
}

func TestRun_DeterministicForSeed(t *testing.T) {
	run := func() *types.ExecutionResult {
		cfg := baseConfig()
		cfg.Probability = 60
		cfg.Seed = 1234
		exec, err := New(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := exec.Run(context.Background(), singleTargetScript())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	a, b := run(), run()
	if a.ExecutionID == b.ExecutionID {
		t.Error("executions should get distinct IDs")
	}
	if !reflect.DeepEqual(a.Groups, b.Groups) || a.Path != b.Path || a.Method != b.Method {
		t.Errorf("same seed produced different results:\n%v\n%v", a.Groups, b.Groups)
	}
}

type recordingSink struct {
	ids      []string
	accesses []collection.Access
	err      error
}

func (s *recordingSink) Record(id string, a collection.Access) error {
	s.ids = append(s.ids, id)
	s.accesses = append(s.accesses, a)
	return s.err
}

func TestRun_AccessSink(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	exec, err := New(baseConfig(), WithAccessSink(sink))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := exec.Run(context.Background(), singleTargetScript())
	if err != nil {
		t.Fatalf("sink errors must not fail the execution: %v", err)
	}

	accessed := 0
	for i, a := range sink.accesses {
		if sink.ids[i] != exec.ID() {
			t.Errorf("access recorded under %s, expected %s", sink.ids[i], exec.ID())
		}
		if a.Outcome == collection.OutcomeAccessed {
			accessed++
		}
	}
	if accessed != 1 {
		t.Errorf("expected one file access, got %d", accessed)
	}
	if len(sink.accesses)-accessed != result.Decisions {
		t.Errorf("sink saw %d decisions, result reports %d", len(sink.accesses)-accessed, result.Decisions)
	}
}

func TestRun_Cancelled(t *testing.T) {
	exec, err := New(baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := exec.Run(ctx, singleTargetScript()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_TargetErrorKeepsResult(t *testing.T) {
	exec, err := New(baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target := TargetFunc(func(ctx context.Context, exec *Context) error {
		q, _ := exec.Group("query")
		q.Set("touched", collection.Scalar("yes"))
		return errors.New("application crashed")
	})

	result, err := exec.Run(context.Background(), target)
	if err == nil {
		t.Fatal("expected an error")
	}
	if result == nil || !strings.Contains(result.Error, "application crashed") {
		t.Fatalf("expected result with error, got %+v", result)
	}
	if result.Groups["query"]["touched"] != "yes" {
		t.Errorf("partial state should be reported, got %v", result.Groups["query"])
	}
}

func TestHashEquals(t *testing.T) {
	exec, err := New(baseConfig(), WithSource(choice.NewSequence(10, 60)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !exec.HashEquals("a", "b") {
		t.Error("draw 10 should report a match")
	}
	if exec.HashEquals("a", "a") {
		t.Error("draw 60 should report a mismatch")
	}
}
