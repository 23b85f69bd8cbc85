package endpoints

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// SettingsResponse contains all config entries keyed by name.
type SettingsResponse struct {
	Settings map[string]config.Entry `json:"settings"`
}

// SettingResponse contains a single config entry.
type SettingResponse struct {
	Entry *config.Entry `json:"entry,omitempty"`
}

// UpdateSettingRequest is the request body for updating a setting.
type UpdateSettingRequest struct {
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }

func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cfgStore := svcctx.ConfigStoreFrom(r.Context())
	if cfgStore == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not initialized")
		return
	}

	entries, err := cfgStore.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: entries})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "List runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}

			keys := make([]string, 0, len(resp.Settings))
			for k := range resp.Settings {
				if prefix != "" && !strings.HasPrefix(k, prefix) {
					continue
				}
				keys = append(keys, k)
			}
			sort.Strings(keys)

			sorted := make(map[string]config.Entry, len(keys))
			for _, k := range keys {
				sorted[k] = resp.Settings[k]
			}
			return api.Output(sorted)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by key prefix (e.g., 'generation.')")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key...}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key...}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }

func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key encoding")
		return
	}
	if err := config.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfgStore := svcctx.ConfigStoreFrom(r.Context())
	if cfgStore == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not initialized")
		return
	}

	entry, err := cfgStore.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "setting <key>",
		Short: "Get a runtime setting by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			path := "/api/settings/" + url.PathEscape(args[0])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
}

// UpdateSettingEndpoint handles PUT /api/settings/{key...}.
type UpdateSettingEndpoint struct{}

func (e *UpdateSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/settings/{key...}", e.handler
}

func (e *UpdateSettingEndpoint) RequiresInit() bool { return true }

func (e *UpdateSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key encoding")
		return
	}
	if err := config.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfgStore := svcctx.ConfigStoreFrom(r.Context())
	if cfgStore == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not initialized")
		return
	}

	// Preserve the existing description if none was provided.
	description := req.Description
	if description == "" {
		if existing, err := cfgStore.Get(r.Context(), key); err == nil && existing != nil {
			description = existing.Description
		}
	}

	if err := cfgStore.Set(r.Context(), key, req.Value, description); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry, err := cfgStore.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

func (e *UpdateSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "set-setting <key> <value>",
		Short: "Update a runtime setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Values arrive as strings; pass JSON scalars through as typed.
			var value any = args[1]
			var parsed any
			if err := json.Unmarshal([]byte(args[1]), &parsed); err == nil {
				value = parsed
			}

			client := api.NewClient(getServerURL())
			var resp SettingResponse
			path := "/api/settings/" + url.PathEscape(args[0])
			err := client.Put(cmd.Context(), path, UpdateSettingRequest{
				Value:       value,
				Description: description,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Setting description")
	return cmd
}

// ResetSettingEndpoint handles POST /api/settings/reset/{key...}.
type ResetSettingEndpoint struct{}

func (e *ResetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/settings/reset/{key...}", e.handler
}

func (e *ResetSettingEndpoint) RequiresInit() bool { return true }

func (e *ResetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key encoding")
		return
	}

	cfgStore := svcctx.ConfigStoreFrom(r.Context())
	if cfgStore == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not initialized")
		return
	}

	if err := config.ResetToDefault(r.Context(), cfgStore, key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := cfgStore.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

func (e *ResetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-setting <key>",
		Short: "Reset a runtime setting to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			path := "/api/settings/reset/" + url.PathEscape(args[0])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
}
