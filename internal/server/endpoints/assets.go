package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/svcctx"
)

// AssetEndpoint handles GET /assets/{handle}, serving stored blobs
// (illustrations and composed PDFs) by their opaque handle.
type AssetEndpoint struct{}

func (e *AssetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/assets/{handle}", e.handler
}

func (e *AssetEndpoint) RequiresInit() bool { return true }

func (e *AssetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "asset handle is required")
		return
	}

	assetStore := svcctx.AssetsFrom(r.Context())
	if assetStore == nil {
		writeError(w, http.StatusServiceUnavailable, "asset store not initialized")
		return
	}

	data, err := assetStore.Read(handle)
	if err != nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(handle))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentTypeFor(handle string) string {
	switch strings.ToLower(filepath.Ext(handle)) {
	case ".png":
		return "image/png"
	case ".jpg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (e *AssetEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "asset <handle>",
		Short: "Download a stored asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := getServerURL() + "/assets/" + args[0]
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}

			path := out
			if path == "" {
				path = args[0]
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := f.ReadFrom(resp.Body); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to the handle)")
	return cmd
}
