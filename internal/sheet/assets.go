package sheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Assets holds the static resources shared by every page of a run.
type Assets struct {
	Logo     []byte
	LogoType string // "PNG" or "JPG"
}

// HasLogo reports whether a logo was loaded.
func (a *Assets) HasLogo() bool {
	return a != nil && len(a.Logo) > 0
}

// LoadAssets reads the logo at path. An empty path or a missing file yields
// assets without a logo; pages then shift the title left.
func LoadAssets(path string) (*Assets, error) {
	if path == "" {
		return &Assets{}, nil
	}

	imageType, err := imageTypeFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Assets{}, nil
		}
		return nil, fmt.Errorf("read logo: %w", err)
	}
	return &Assets{Logo: data, LogoType: imageType}, nil
}

func imageTypeFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG", nil
	case ".jpg", ".jpeg":
		return "JPG", nil
	default:
		return "", fmt.Errorf("unsupported logo format %q", filepath.Ext(path))
	}
}
