package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore records GraphQL queries and returns canned responses.
type fakeStore struct {
	mu      sync.Mutex
	queries []string
	respond func(query string) map[string]any
}

func (f *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health-check" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.queries = append(f.queries, req.Query)
		f.mu.Unlock()

		data := map[string]any{}
		if f.respond != nil {
			data = f.respond(req.Query)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func (f *fakeStore) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func TestClient(t *testing.T) {
	t.Run("create returns docID", func(t *testing.T) {
		fake := &fakeStore{respond: func(q string) map[string]any {
			return map[string]any{"create_Book": []any{map[string]any{"_docID": "doc-1"}}}
		}}
		server := httptest.NewServer(fake.handler())
		defer server.Close()

		client := NewClient(server.URL)
		id, err := client.Create(context.Background(), "Book", map[string]any{"title": "The Fox"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if id != "doc-1" {
			t.Errorf("id = %q, want doc-1", id)
		}
		if q := fake.lastQuery(); !strings.Contains(q, `create_Book`) || !strings.Contains(q, `"The Fox"`) {
			t.Errorf("unexpected mutation: %s", q)
		}
	})

	t.Run("get missing document returns ErrNotFound", func(t *testing.T) {
		fake := &fakeStore{respond: func(q string) map[string]any {
			return map[string]any{"Book": []any{}}
		}}
		server := httptest.NewServer(fake.handler())
		defer server.Close()

		client := NewClient(server.URL)
		_, err := client.Get(context.Background(), "Book", "missing", "title")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list builds filter order and limit", func(t *testing.T) {
		fake := &fakeStore{respond: func(q string) map[string]any {
			return map[string]any{"Page": []any{
				map[string]any{"_docID": "p1", "page_number": float64(1)},
				map[string]any{"_docID": "p2", "page_number": float64(2)},
			}}
		}}
		server := httptest.NewServer(fake.handler())
		defer server.Close()

		client := NewClient(server.URL)
		docs, err := client.List(context.Background(), "Page", "page_number", ListOptions{
			Filter:  `book_id: {_eq: "b1"}`,
			OrderBy: `{page_number: ASC}`,
			Limit:   50,
		})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("len(docs) = %d, want 2", len(docs))
		}
		q := fake.lastQuery()
		for _, want := range []string{`filter: {book_id: {_eq: "b1"}}`, `order: {page_number: ASC}`, `limit: 50`} {
			if !strings.Contains(q, want) {
				t.Errorf("query %q missing %q", q, want)
			}
		}
	})

	t.Run("string values are JSON escaped", func(t *testing.T) {
		got, err := valueToGraphQL("line1\nline2 \"quoted\"")
		if err != nil {
			t.Fatalf("valueToGraphQL error = %v", err)
		}
		if !strings.Contains(got, `\n`) || !strings.Contains(got, `\"`) {
			t.Errorf("escaping missing: %s", got)
		}
	})
}

func TestSink(t *testing.T) {
	t.Run("applies queued writes in order", func(t *testing.T) {
		fake := &fakeStore{respond: func(q string) map[string]any {
			return map[string]any{"update_Job": []any{map[string]any{"_docID": "j1"}}}
		}}
		server := httptest.NewServer(fake.handler())
		defer server.Close()

		sink := NewSink(SinkConfig{Client: NewClient(server.URL)})
		sink.Start(context.Background())

		for i := 1; i <= 3; i++ {
			err := sink.Send(WriteOp{
				Op:         OpUpdate,
				Collection: "Job",
				DocID:      "j1",
				Document:   map[string]any{"progress": i * 10},
			})
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
		}
		sink.Stop()

		fake.mu.Lock()
		defer fake.mu.Unlock()
		if len(fake.queries) != 3 {
			t.Fatalf("applied %d writes, want 3", len(fake.queries))
		}
		for i, want := range []string{"progress: 10", "progress: 20", "progress: 30"} {
			if !strings.Contains(fake.queries[i], want) {
				t.Errorf("write %d = %q, want to contain %q", i, fake.queries[i], want)
			}
		}
	})

	t.Run("send after stop returns ErrSinkClosed", func(t *testing.T) {
		sink := NewSink(SinkConfig{Client: NewClient("http://localhost:0")})
		sink.Start(context.Background())
		sink.Stop()

		err := sink.Send(WriteOp{Op: OpCreate, Collection: "Job"})
		if !errors.Is(err, ErrSinkClosed) {
			t.Errorf("err = %v, want ErrSinkClosed", err)
		}
	})

	t.Run("stop drains pending writes", func(t *testing.T) {
		var count int
		var mu sync.Mutex
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			count++
			mu.Unlock()
			time.Sleep(time.Millisecond)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
		}))
		defer server.Close()

		sink := NewSink(SinkConfig{Client: NewClient(server.URL)})
		sink.Start(context.Background())
		for i := 0; i < 10; i++ {
			sink.Send(WriteOp{Op: OpUpdate, Collection: "Job", DocID: "j", Document: map[string]any{"progress": i}})
		}
		sink.Stop()

		mu.Lock()
		defer mu.Unlock()
		if count != 10 {
			t.Errorf("applied %d writes, want 10", count)
		}
	})
}
