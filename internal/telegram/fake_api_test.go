package telegram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"sync"
	"testing"
)

type apiCall struct {
	Method string
	Params url.Values
}

// fakeBotAPI speaks just enough of the Bot API for the notifier.
type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []apiCall
	failures  map[string]string
	messageID int
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	fake := &fakeBotAPI{failures: map[string]string{}, messageID: 100}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeBotAPI) fail(method, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = description
}

func (f *fakeBotAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: r.PostForm})
	desc, failing := f.failures[method]
	f.messageID++
	msgID := f.messageID
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": desc})
		return
	}
	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Club", "username": "club_bot"}
	case "sendMessage":
		chatID, err := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		if err != nil {
			chatID = -100777
		}
		result = map[string]any{
			"message_id": msgID,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "group"},
			"text":       r.PostForm.Get("text"),
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func endpointFor(srv *httptest.Server) string {
	return fmt.Sprintf("%s/bot%%s/%%s", srv.URL)
}
