package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/archive"
	cfgpkg "github.com/hyperrixel/logos/internal/config"
	"github.com/hyperrixel/logos/internal/entry"
	"github.com/hyperrixel/logos/internal/runtime"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/cursor"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

const principalHeader = "X-Logos-Principal"

// newTestServer boots a runtime with a root admin and a science
// crew member "ada" who may read/write/link/attach under mission/*.
func newTestServer(t *testing.T) (*httptest.Server, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Log = logpkg.Config{Level: "error", Format: "text"}
	cfg.BootstrapAdmins = []cfgpkg.Admin{{ID: "root", DisplayName: "Mission Control"}}
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	ctx := context.Background()
	if err := rt.Access().PutPrincipal(ctx, access.Principal{ID: "ada", DisplayName: "Ada", Kind: access.KindHuman, Role: "science"}); err != nil {
		t.Fatalf("put principal: %v", err)
	}
	if _, err := rt.Access().PutRule(ctx, access.Rule{
		ID:         "science",
		Role:       "science",
		TagPattern: "mission/*",
		Actions:    access.NewActionSet(access.ActionRead, access.ActionWrite, access.ActionLink, access.ActionAttach),
	}); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	s := New(rt, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, rt
}

func doJSON(t *testing.T, method, url, principal, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func submitEntry(t *testing.T, ts *httptest.Server, principal, body string) map[string]any {
	t.Helper()
	resp, decoded := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", principal, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %v", resp.StatusCode, decoded)
	}
	return decoded
}

func TestHealthHandler(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/healthz", "", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body: %v", body)
	}
}

func TestSubmitAndGet(t *testing.T) {
	ts, _ := newTestServer(t)
	rec := submitEntry(t, ts, "ada",
		`{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"],"attributes":[{"key":"note","value":"first light","type":"string"}]}`)
	if rec["state"] != "committed" || rec["seq"] != float64(1) {
		t.Fatalf("receipt: %v", rec)
	}

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/v1/entries/get?id=1", "ada", "")
	if resp.StatusCode != 200 {
		t.Fatalf("get status: %d", resp.StatusCode)
	}
	if env["author"] != "ada" || env["id"] != float64(1) {
		t.Fatalf("envelope: %v", env)
	}

	// No principal header: unauthenticated.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/get?id=1", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Unknown principal: the entry is invisible, not forbidden.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/get?id=1", "sensor-9", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected opaque 404, got %d", resp.StatusCode)
	}
}

func TestSubmitAuthorMismatch(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada",
		`{"author":"root","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %v", resp.StatusCode, body)
	}
	if body["code"] != "denied" {
		t.Fatalf("code: %v", body)
	}
}

func TestSubmitRejectCodes(t *testing.T) {
	ts, _ := newTestServer(t)

	// Unknown author: fail-closed deny.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ghost",
		`{"author":"ghost","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	if resp.StatusCode != http.StatusForbidden || body["code"] != "denied" {
		t.Fatalf("deny: %d %v", resp.StatusCode, body)
	}

	// New tag outside every write grant.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada",
		`{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha","ops/new"]}`)
	if resp.StatusCode != http.StatusForbidden || body["code"] != "tag_not_authorized" {
		t.Fatalf("tag admission: %d %v", resp.StatusCode, body)
	}

	// Unparseable payload.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada", `{nope`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "malformed_payload" {
		t.Fatalf("malformed: %d %v", resp.StatusCode, body)
	}

	// Future schema version.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada",
		`{"v":9,"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "schema_version_mismatch" {
		t.Fatalf("version: %d %v", resp.StatusCode, body)
	}

	// Dangling link.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada",
		`{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"],"links":[77]}`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "dangling_link" {
		t.Fatalf("dangling: %d %v", resp.StatusCode, body)
	}
}

func TestTagGrantFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	payload := `{"author":"ada","createdAt":1700000000000,"tags":["sample"]}`

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada", payload)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("pre-grant: %d %v", resp.StatusCode, body)
	}

	// Admin grants write on the exact tag; the identical submission
	// then commits with a fresh id.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rules", "root",
		`{"principalId":"ada","tagPattern":"sample","actions":["read","write"]}`)
	if resp.StatusCode != 200 {
		t.Fatalf("grant: %d", resp.StatusCode)
	}
	rec := submitEntry(t, ts, "ada", payload)
	if rec["seq"] == float64(0) {
		t.Fatalf("receipt: %v", rec)
	}
}

func TestSubmitCBOR(t *testing.T) {
	ts, _ := newTestServer(t)
	codec, err := wire.Lookup("cbor")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	payload, err := codec.Encode(&entry.Entry{
		Author:      "ada",
		CreatedAtMs: 1_700_000_000_000,
		Tags:        []string{"mission/alpha"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/entries", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set(principalHeader, "ada")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var rec map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&rec)
	if resp.StatusCode != 200 || rec["state"] != "committed" {
		t.Fatalf("cbor submit: %d %v", resp.StatusCode, rec)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Log = logpkg.Config{Level: "error", Format: "text"}
	cfg.PayloadMaxBytes = 128
	cfg.BootstrapAdmins = []cfgpkg.Admin{{ID: "root"}}
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	defer rt.Close()
	ts := httptest.NewServer(New(rt, nil).Handler())
	defer ts.Close()

	big := `{"author":"root","createdAt":1700000000000,"tags":["mission/alpha"],"attributes":[{"key":"note","value":"` +
		strings.Repeat("x", 512) + `","type":"string"}]}`
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "root", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %v", resp.StatusCode, body)
	}
}

func TestRangeSkipsUnreadable(t *testing.T) {
	ts, _ := newTestServer(t)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	submitEntry(t, ts, "root", `{"author":"root","createdAt":1700000000001,"tags":["telemetry/raw"]}`)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000002,"tags":["mission/beta"]}`)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?from_seq=1", "ada", "")
	if resp.StatusCode != 200 {
		t.Fatalf("range: %d", resp.StatusCode)
	}
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries: %v", body)
	}
	first := entries[0].(map[string]any)
	second := entries[1].(map[string]any)
	if first["id"] != float64(1) || second["id"] != float64(3) {
		t.Fatalf("order: %v %v", first["id"], second["id"])
	}

	// Admin sees all three.
	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?from_seq=1", "root", "")
	if entries, _ := body["entries"].([]any); len(entries) != 3 {
		t.Fatalf("admin entries: %v", body)
	}
}

func TestRangeCursorPagination(t *testing.T) {
	ts, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	}

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?limit=2", "ada", "")
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("page 1: %v", body)
	}
	next, _ := body["next"].(string)
	if next == "" {
		t.Fatalf("missing next cursor: %v", body)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?limit=2&cursor="+next, "ada", "")
	entries, _ = body["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["id"] != float64(3) {
		t.Fatalf("page 2: %v", body)
	}
}

func TestRangeReverseCursorPagination(t *testing.T) {
	ts, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	}

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?limit=2&reverse=true", "ada", "")
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("page 1: %v", body)
	}
	if entries[0].(map[string]any)["id"] != float64(3) || entries[1].(map[string]any)["id"] != float64(2) {
		t.Fatalf("reverse order: %v", body)
	}
	next, _ := body["next"].(string)
	if next == "" {
		t.Fatalf("missing next cursor: %v", body)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?limit=2&reverse=true&cursor="+next, "ada", "")
	entries, _ = body["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["id"] != float64(1) {
		t.Fatalf("page 2: %v", body)
	}
	if tail, _ := body["next"].(string); tail != "" {
		t.Fatalf("expected exhausted range, got next=%q", tail)
	}

	// A cursor already at the oldest entry has nothing further to read.
	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/range?reverse=true&cursor="+cursor.FromSeq(1).String(), "ada", "")
	if entries, _ := body["entries"].([]any); len(entries) != 0 {
		t.Fatalf("expected empty page: %v", body)
	}
}

func TestCurrentFollowsRevisions(t *testing.T) {
	ts, _ := newTestServer(t)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"],"attributes":[{"key":"note","value":"v1","type":"string"}]}`)
	rec := submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000001,"tags":["mission/alpha"],"attributes":[{"key":"note","value":"v2","type":"string"}],"revisionOf":1}`)
	if rec["seq"] != float64(2) {
		t.Fatalf("revision receipt: %v", rec)
	}

	// Get returns the original, current returns the head.
	_, env := doJSON(t, http.MethodGet, ts.URL+"/v1/entries/get?id=1", "ada", "")
	if env["id"] != float64(1) {
		t.Fatalf("get: %v", env)
	}
	_, env = doJSON(t, http.MethodGet, ts.URL+"/v1/entries/current?id=1", "ada", "")
	if env["id"] != float64(2) || env["revisionOf"] != float64(1) {
		t.Fatalf("current: %v", env)
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	// Non-admin cannot touch the registry.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/admin/principals", "ada", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list: %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/admin/principals", "root", "")
	if resp.StatusCode != 200 {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	if ps, _ := body["principals"].([]any); len(ps) != 2 {
		t.Fatalf("principals: %v", body)
	}

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rules", "root",
		`{"role":"science","tagPattern":"lab/*","actions":["read"]}`)
	if resp.StatusCode != 200 {
		t.Fatalf("create rule: %d %v", resp.StatusCode, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("rule id not assigned: %v", created)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/admin/rules?id="+id, "root", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete rule: %d", resp.StatusCode)
	}

	// Invalid rule shape is rejected.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/rules", "root",
		`{"tagPattern":"lab/*","actions":["read"]}`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "validation_failed" {
		t.Fatalf("invalid rule: %d %v", resp.StatusCode, body)
	}
}

func TestBlobRegisterAndAttach(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, info := doJSON(t, http.MethodPost, ts.URL+"/v1/blobs", "ada",
		`{"contentType":"image/png","size":2048}`)
	if resp.StatusCode != 200 {
		t.Fatalf("register: %d %v", resp.StatusCode, info)
	}
	id, _ := info["id"].(string)
	if id == "" {
		t.Fatalf("blob id: %v", info)
	}

	rec := submitEntry(t, ts, "ada",
		`{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"],"attachments":[{"blobId":"`+id+`","contentType":"image/png","size":2048}]}`)
	if rec["state"] != "committed" {
		t.Fatalf("attach: %v", rec)
	}

	// Unregistered blob is a validation failure.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/entries", "ada",
		`{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"],"attachments":[{"blobId":"nope"}]}`)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "validation_failed" {
		t.Fatalf("unknown blob: %d %v", resp.StatusCode, body)
	}
}

func TestTagsAndSchema(t *testing.T) {
	ts, _ := newTestServer(t)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/tags", "", "")
	tags, _ := body["tags"].([]any)
	if len(tags) != 1 || tags[0] != "mission/alpha" {
		t.Fatalf("tags: %v", body)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/schema/types", "", "")
	types, _ := body["attributeTypes"].([]any)
	formats, _ := body["formats"].([]any)
	if len(types) == 0 || len(formats) != 2 {
		t.Fatalf("schema: %v", body)
	}
}

func TestPresenceHeartbeat(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, hb := doJSON(t, http.MethodPost, ts.URL+"/v1/presence/heartbeat", "ada", "")
	if resp.StatusCode != 200 || hb["state"] != "online" {
		t.Fatalf("heartbeat: %d %v", resp.StatusCode, hb)
	}

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/presence", "ada", "")
	list, _ := body["presence"].([]any)
	if len(list) != 1 {
		t.Fatalf("presence: %v", body)
	}

	// Unknown principals cannot heartbeat.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/presence/heartbeat", "ghost", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("ghost heartbeat: %d", resp.StatusCode)
	}
}

func TestExportArchive(t *testing.T) {
	ts, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)
	}

	// Non-admin cannot export.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/export", "ada", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin export: %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/export", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set(principalHeader, "root")
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != 200 {
		t.Fatalf("export status: %d", raw.StatusCode)
	}
	if ct := raw.Header.Get("Content-Type"); ct != "application/zstd" {
		t.Fatalf("content type: %q", ct)
	}
	sum, err := archive.Verify(raw.Body)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sum.Entries != 3 || sum.FirstSeq != 1 || sum.LastSeq != 3 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSubscribeSSE(t *testing.T) {
	ts, _ := newTestServer(t)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/subscribe?tags=mission/alpha", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set(principalHeader, "ada")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if data == "" {
		t.Fatalf("no SSE event received")
	}
	var ev struct {
		Cursor string         `json:"cursor"`
		Entry  map[string]any `json:"entry"`
	}
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("event decode: %v", err)
	}
	if ev.Cursor != "0000000000000001" || ev.Entry["author"] != "ada" {
		t.Fatalf("event: %+v", ev)
	}
}

func TestSubscribeWebSocket(t *testing.T) {
	ts, _ := newTestServer(t)
	submitEntry(t, ts, "ada", `{"author":"ada","createdAt":1700000000000,"tags":["mission/alpha"]}`)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/subscribe/ws"
	hdr := http.Header{}
	hdr.Set(principalHeader, "ada")
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("message type: %d", mt)
	}
	var env map[string]any
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if env["id"] != float64(1) || env["author"] != "ada" {
		t.Fatalf("frame: %v", env)
	}
}
