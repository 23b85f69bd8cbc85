package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/assets"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/home"
	"github.com/fableforge/fableforge/internal/printcomp"
	"github.com/fableforge/fableforge/internal/store"
)

var composeOutput string

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Render print-ready PDFs without the HTTP server",
	Long: `Compose reads a finished book from the document store and renders
print documents directly, without going through the API.

The document store must be reachable (same "store" config as serve),
and the book's image assets must exist under the fableforge home.

Examples:
  fableforge compose interior <book-id>
  fableforge compose cover <book-id> -O ./cover.pdf`,
}

var composeInteriorCmd = &cobra.Command{
	Use:   "interior <book-id>",
	Short: "Render the interior PDF to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompose(cmd, args[0], "interior")
	},
}

var composeCoverCmd = &cobra.Command{
	Use:   "cover <book-id>",
	Short: "Render the cover wrap PDF to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompose(cmd, args[0], "cover")
	},
}

func runCompose(cmd *cobra.Command, bookID, kind string) error {
	ctx := cmd.Context()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	if err := h.EnsureExists(); err != nil {
		return err
	}

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cm.Get()

	client := store.NewClient(cfg.Store.URL)
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("document store not reachable at %s: %w", cfg.Store.URL, err)
	}

	bookStore := books.NewStore(client)
	book, err := bookStore.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	pages, err := bookStore.ListPages(ctx, bookID)
	if err != nil {
		return err
	}

	composer := printcomp.NewComposer(assets.NewStore(h), logger)

	var pdf []byte
	switch kind {
	case "interior":
		pdf, err = composer.ComposeInterior(book, pages)
	case "cover":
		pdf, err = composer.ComposeCover(book, len(pages))
	}
	if err != nil {
		return err
	}

	out := composeOutput
	if out == "" {
		out = h.ExportPath(bookID, kind)
	}
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("Wrote %s (%d bytes)\n", out, len(pdf))
	return nil
}

func init() {
	composeCmd.PersistentFlags().StringVarP(
		&composeOutput, "out", "O", "", "output file (default: <home>/exports/<book-id>_<kind>.pdf)",
	)

	composeCmd.AddCommand(composeInteriorCmd)
	composeCmd.AddCommand(composeCoverCmd)
	rootCmd.AddCommand(composeCmd)
}
