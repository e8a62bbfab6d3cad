package relay

import (
	"os"
	"strings"
	"time"
)

// Config holds the relay settings.
type Config struct {
	// UploadDir receives uploads and converted models.
	UploadDir string
	// BlenderPath is the converter executable.
	BlenderPath string
	// ScriptPath is the Blender export script. Empty uses the bundled one.
	ScriptPath string
	// Timeout bounds one conversion.
	Timeout time.Duration
	// PublicURL prefixes local model URLs. Empty gives root-relative URLs.
	PublicURL string
	// Extensions lists accepted upload extensions, lowercase with dot.
	Extensions []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		UploadDir:   "uploads",
		BlenderPath: "blender",
		Timeout:     5 * time.Minute,
		Extensions:  []string{".blend"},
	}
}

// ConfigFromEnv reads UPLOAD_DIR, BLENDER_PATH, BLENDER_SCRIPT,
// CONVERT_TIMEOUT, PUBLIC_URL and UPLOAD_EXTENSIONS over the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("UPLOAD_DIR")); v != "" {
		cfg.UploadDir = v
	}
	if v := strings.TrimSpace(os.Getenv("BLENDER_PATH")); v != "" {
		cfg.BlenderPath = v
	}
	cfg.ScriptPath = strings.TrimSpace(os.Getenv("BLENDER_SCRIPT"))
	if v := strings.TrimSpace(os.Getenv("CONVERT_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	cfg.PublicURL = strings.TrimSuffix(strings.TrimSpace(os.Getenv("PUBLIC_URL")), "/")
	if v := strings.TrimSpace(os.Getenv("UPLOAD_EXTENSIONS")); v != "" {
		cfg.Extensions = nil
		for _, ext := range strings.Split(v, ",") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			cfg.Extensions = append(cfg.Extensions, ext)
		}
	}
	return cfg
}

func (c Config) accepts(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
