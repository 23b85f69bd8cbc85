package assets

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fableforge/fableforge/internal/home"
)

var (
	pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpgHeader = []byte{0xff, 0xd8, 0xff, 0xe0}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	return NewStore(dir)
}

func TestStore(t *testing.T) {
	t.Run("put and read png", func(t *testing.T) {
		store := newTestStore(t)
		data := append(append([]byte(nil), pngHeader...), []byte("payload")...)

		handle, err := store.Put(data, "image/png")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if !strings.HasSuffix(handle, ".png") {
			t.Errorf("handle = %q, want .png suffix", handle)
		}
		if !store.Exists(handle) {
			t.Error("Exists() = false after Put")
		}

		got, err := store.Read(handle)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("read bytes differ from written bytes")
		}
	})

	t.Run("sniffed format wins over declared mime", func(t *testing.T) {
		store := newTestStore(t)
		handle, err := store.Put(jpgHeader, "image/png")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if !strings.HasSuffix(handle, ".jpg") {
			t.Errorf("handle = %q, want .jpg suffix from sniffing", handle)
		}
	})

	t.Run("unsupported format rejected", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Put([]byte("GIF89a..."), "image/gif")
		var se *StorageError
		if !errors.As(err, &se) {
			t.Errorf("err = %T, want StorageError", err)
		}
	})

	t.Run("pdf payloads accepted", func(t *testing.T) {
		store := newTestStore(t)
		handle, err := store.Put([]byte("%PDF-1.7 fake"), "application/pdf")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if !strings.HasSuffix(handle, ".pdf") {
			t.Errorf("handle = %q, want .pdf suffix", handle)
		}
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		store := newTestStore(t)
		if _, err := store.Put(nil, "image/png"); err == nil {
			t.Error("expected error for empty payload")
		}
	})

	t.Run("missing handle", func(t *testing.T) {
		store := newTestStore(t)
		if _, err := store.Read("nope.png"); err == nil {
			t.Error("expected error for missing handle")
		}
		if store.Exists("") {
			t.Error("Exists(\"\") = true")
		}
	})
}

func TestSniffImage(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngHeader, "png"},
		{"jpeg", jpgHeader, "jpg"},
		{"gif", []byte("GIF89a"), ""},
		{"short", []byte{0x89}, ""},
		{"empty", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffImage(tc.data); got != tc.want {
				t.Errorf("SniffImage = %q, want %q", got, tc.want)
			}
		})
	}
}
