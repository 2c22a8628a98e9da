package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/toastate/toastcdn/internal/cache"
	"github.com/toastate/toastcdn/internal/cdn"
)

const DefaultPath = "toastcdn.json"

var Config = Default()

// Default returns a fresh copy of the default configuration.
func Default() *Configuration {
	return &Configuration{
		Manifest:    "dist/manifest.json",
		Resolve:     []string{"html"},
		SliceLimit:  cdn.DefaultSliceLimit,
		EnableCache: true,
		AsyncCSS:    true,
		CDNConfig: CDNConfiguration{
			Dir:     "cdn",
			BaseURL: "http://localhost:8100/cdn",
		},
		ServeConfig: ServeConfiguration{
			Port: 8100,
		},
	}
}

type Configuration struct {
	// Manifest is the build manifest written by the bundler.
	Manifest string `json:"manifest,omitempty"`

	Src       string   `json:"src,omitempty"`
	Dist      string   `json:"dist,omitempty"`
	Resolve   []string `json:"resolve,omitempty"`
	StaticDir Paths    `json:"static_dir,omitempty"`
	SmartMode bool     `json:"smart_mode,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`

	SliceLimit    int    `json:"slice_limit,omitempty"`
	EnableCache   bool   `json:"enable_cache"`
	CacheLocation string `json:"cache_location,omitempty"`
	// PassToCdn is handed to the uploader as is. The cache is invalidated
	// when it changes.
	PassToCdn any `json:"pass_to_cdn,omitempty"`

	ForceCopyTemplate bool `json:"force_copy_template,omitempty"`
	AsyncCSS          bool `json:"async_css"`
	DirtyCheck        bool `json:"dirty_check,omitempty"`
	LogLocalFiles     bool `json:"log_local_files,omitempty"`
	Minify            bool `json:"minify,omitempty"`

	// URLTemplate rewrites every uploaded URL, see NewURLHook.
	URLTemplate string `json:"url_template,omitempty"`

	CDNConfig   CDNConfiguration   `json:"cdn,omitempty"`
	ServeConfig ServeConfiguration `json:"serve_config,omitempty"`
}

// CDNConfiguration describes the local CDN directory the files are uploaded
// to and the URL it is published at.
type CDNConfiguration struct {
	Dir     string `json:"dir"`
	BaseURL string `json:"base_url"`
	// DryRun computes the URLs without copying anything.
	DryRun bool `json:"dry_run,omitempty"`
}

type ServeConfiguration struct {
	Redirect404 string `json:"redirect_404"`
	Port        int    `json:"port"`
}

// Paths accepts a single path or a list of paths.
type Paths []string

func (p *Paths) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		if single == "" {
			*p = nil
		} else {
			*p = Paths{single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("expected a path or a list of paths: %w", err)
	}
	*p = list
	return nil
}

// Init loads configpath into Config. A missing file keeps the defaults.
func Init(configpath string) error {
	c, err := Load(configpath)
	if err != nil {
		return err
	}
	Config = c
	return nil
}

// Load decodes configpath over the defaults. Comments and trailing commas
// are allowed.
func Load(configpath string) (*Configuration, error) {
	if configpath == "" {
		configpath = DefaultPath
	}

	c := Default()

	_, err := os.Stat(configpath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not access configuration file %s: %v", configpath, err)
		}

		return c, nil
	}

	raw, err := os.ReadFile(configpath)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(jsonc.ToJSON(raw), c)
	if err != nil {
		return nil, fmt.Errorf("decoding configuration file %s: %w", configpath, err)
	}

	if c.SliceLimit == 0 {
		c.SliceLimit = cdn.DefaultSliceLimit
	}
	if c.EnableCache && c.CacheLocation == "" {
		c.CacheLocation = cache.DefaultLocation
	}

	return c, nil
}
