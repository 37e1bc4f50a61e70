package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/goccy/go-json"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/messaging"
	"github.com/goliatone/go-supply-dashboard/components/profile"
	"github.com/goliatone/go-supply-dashboard/components/tablebuilder"
)

var (
	_ tablebuilder.SchemaStore = (*Client)(nil)
	_ profile.Store            = (*Client)(nil)
	_ messaging.History        = (*Client)(nil)
)

// Backend paths for the non-entity stores.
const (
	PathTables       = "/api/dynamic-tables"
	PathProfile      = "/api/users"
	PathProjects     = "/api/projects"
	PathMessages     = "/api/messages"
	ImageUploadField = "image"
)

func decodeInto[T any](raw json.RawMessage, what string, keys ...string) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	inner := unwrap(raw, keys...)
	if len(inner) == 0 || string(inner) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(inner, &out); err != nil {
		return out, fmt.Errorf("api: decode %s: %w", what, err)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, viewer dashboard.ViewerContext, path string, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, viewer, http.MethodPost, path, payload, &raw)
	return raw, err
}

func (c *Client) ListSchemas(ctx context.Context, viewer dashboard.ViewerContext) ([]tablebuilder.Schema, error) {
	raw, err := c.call(ctx, viewer, PathTables+"/get-tables", scopedRequest{Email: viewer.Email})
	if err != nil {
		return nil, err
	}
	return decodeInto[[]tablebuilder.Schema](raw, "tables", "data", "tables")
}

func (c *Client) CreateSchema(ctx context.Context, viewer dashboard.ViewerContext, schema tablebuilder.Schema) (tablebuilder.Schema, error) {
	raw, err := c.call(ctx, viewer, PathTables+"/create-table", schema)
	if err != nil {
		return tablebuilder.Schema{}, err
	}
	created, err := decodeInto[tablebuilder.Schema](raw, "table", "data", "table")
	if err != nil {
		return tablebuilder.Schema{}, err
	}
	if created.Name == "" {
		id := created.ID
		created = schema
		created.ID = id
	}
	return created, nil
}

func (c *Client) UpdateSchema(ctx context.Context, viewer dashboard.ViewerContext, schema tablebuilder.Schema) (tablebuilder.Schema, error) {
	raw, err := c.call(ctx, viewer, PathTables+"/update-table", schema)
	if err != nil {
		return tablebuilder.Schema{}, err
	}
	updated, err := decodeInto[tablebuilder.Schema](raw, "table", "data", "table")
	if err != nil {
		return tablebuilder.Schema{}, err
	}
	if updated.Name == "" {
		updated = schema
	}
	return updated, nil
}

func (c *Client) DeleteSchema(ctx context.Context, viewer dashboard.ViewerContext, id string) error {
	_, err := c.call(ctx, viewer, PathTables+"/delete-table", map[string]string{dashboard.FieldID: id})
	return err
}

func (c *Client) FetchProfile(ctx context.Context, viewer dashboard.ViewerContext) (profile.Profile, error) {
	raw, err := c.call(ctx, viewer, PathProfile+"/get-profile", scopedRequest{Email: viewer.Email})
	if err != nil {
		return profile.Profile{}, err
	}
	return decodeInto[profile.Profile](raw, "profile", "user", "data")
}

func (c *Client) SaveProfile(ctx context.Context, viewer dashboard.ViewerContext, p profile.Profile) (profile.Profile, error) {
	raw, err := c.call(ctx, viewer, PathProfile+"/update-profile", p)
	if err != nil {
		return profile.Profile{}, err
	}
	return decodeInto[profile.Profile](raw, "profile", "user", "data")
}

// UploadImage sends the file as multipart form data and returns the stored URL.
func (c *Client) UploadImage(ctx context.Context, viewer dashboard.ViewerContext, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(ImageUploadField, filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("api: build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("api: read upload: %w", err)
	}
	if viewer.Email != "" {
		_ = form.WriteField("email", viewer.Email)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("api: build upload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathProfile+"/upload-image", &body)
	if err != nil {
		return "", fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	var resp struct {
		URL      string `json:"url"`
		ImageURL string `json:"imageUrl"`
	}
	if err := c.send(req, viewer, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		resp.URL = resp.ImageURL
	}
	if resp.URL == "" {
		return "", fmt.Errorf("api: upload response carried no url")
	}
	return resp.URL, nil
}

func (c *Client) ListProjects(ctx context.Context, viewer dashboard.ViewerContext) ([]profile.Project, error) {
	raw, err := c.call(ctx, viewer, PathProjects+"/get-projects", scopedRequest{Email: viewer.Email})
	if err != nil {
		return nil, err
	}
	return decodeInto[[]profile.Project](raw, "projects", "projects", "data")
}

type projectRequest struct {
	profile.Project
	Email string `json:"email,omitempty"`
}

func (c *Client) CreateProject(ctx context.Context, viewer dashboard.ViewerContext, p profile.Project) (profile.Project, error) {
	raw, err := c.call(ctx, viewer, PathProjects+"/add-project", projectRequest{Project: p, Email: viewer.Email})
	if err != nil {
		return profile.Project{}, err
	}
	return decodeInto[profile.Project](raw, "project", "project", "data")
}

func (c *Client) UpdateProject(ctx context.Context, viewer dashboard.ViewerContext, p profile.Project) (profile.Project, error) {
	raw, err := c.call(ctx, viewer, PathProjects+"/update-project", projectRequest{Project: p, Email: viewer.Email})
	if err != nil {
		return profile.Project{}, err
	}
	return decodeInto[profile.Project](raw, "project", "project", "data")
}

func (c *Client) DeleteProject(ctx context.Context, viewer dashboard.ViewerContext, id string) error {
	_, err := c.call(ctx, viewer, PathProjects+"/delete-project", map[string]string{dashboard.FieldID: id})
	return err
}

// Messages loads a conversation's stored messages.
func (c *Client) Messages(ctx context.Context, viewer dashboard.ViewerContext, conversationID string) ([]messaging.Message, error) {
	raw, err := c.call(ctx, viewer, PathMessages+"/get-messages", map[string]string{
		"conversationId": conversationID,
		"userId":         viewer.UserID,
	})
	if err != nil {
		return nil, err
	}
	return decodeInto[[]messaging.Message](raw, "messages", "messages", "data")
}
