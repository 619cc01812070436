package api

import (
	"context"
	"encoding/base64"
	"path"
	"strings"

	"github.com/pkg/errors"
)

type Language string

const (
	LanguagePython Language = "PYTHON"
	LanguageSQL    Language = "SQL"
)

// LanguageForFile picks the notebook language from the file extension.
func LanguageForFile(name string) (Language, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".py":
		return LanguagePython, true
	case ".sql":
		return LanguageSQL, true
	default:
		return "", false
	}
}

func (c *Client) Mkdirs(ctx context.Context, dir string) error {
	return c.post(ctx, "/api/2.0/workspace/mkdirs", map[string]any{"path": dir}, nil)
}

// ImportNotebook uploads source as a notebook at workspacePath, replacing
// whatever is there.
func (c *Client) ImportNotebook(ctx context.Context, workspacePath string, lang Language, source []byte) error {
	body := map[string]any{
		"path":      workspacePath,
		"format":    "SOURCE",
		"language":  string(lang),
		"content":   base64.StdEncoding.EncodeToString(source),
		"overwrite": true,
	}
	return c.post(ctx, "/api/2.0/workspace/import", body, nil)
}

// CurrentUser returns the user name behind the token.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var resp struct {
		UserName string `json:"userName"`
	}
	if err := c.get(ctx, "/api/2.0/preview/scim/v2/Me", nil, &resp); err != nil {
		return "", err
	}
	if resp.UserName == "" {
		return "", errors.New("current user has no userName")
	}
	return resp.UserName, nil
}
