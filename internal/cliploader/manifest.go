package cliploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gesture-sequencer/internal/sequencer"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const manifestSchemaJSON = `{
	"type": "object",
	"required": ["clips"],
	"properties": {
		"clips": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["duration"],
				"properties": {
					"asset": {"type": "string", "minLength": 1},
					"duration": {"type": "number", "exclusiveMinimum": 0}
				},
				"additionalProperties": false
			}
		}
	}
}`

var manifestSchema = jsonschema.MustCompileString("clip_manifest.json", manifestSchemaJSON)

// ManifestEntry describes one clip in a manifest.
type ManifestEntry struct {
	Asset    string  `yaml:"asset"`
	Duration float64 `yaml:"duration"` // seconds
}

// Manifest maps gestures to clip descriptions.
//
//	clips:
//	  HELLO: {asset: hello.glb, duration: 1.2}
//	  NAME:  {duration: 0.9}
type Manifest struct {
	Clips map[sequencer.GestureID]ManifestEntry
}

// ParseManifest decodes and validates a YAML manifest. Gesture keys are
// normalized.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	// Round-trip through JSON so the schema sees JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := manifestSchema.Validate(payload); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var file struct {
		Clips map[string]ManifestEntry `yaml:"clips"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := &Manifest{Clips: make(map[sequencer.GestureID]ManifestEntry, len(file.Clips))}
	for k, v := range file.Clips {
		id := sequencer.NormalizeGesture(k)
		if id == "" {
			return nil, errors.New("invalid manifest: blank gesture key")
		}
		if _, dup := m.Clips[id]; dup {
			return nil, fmt.Errorf("invalid manifest: gesture %s listed twice", id)
		}
		m.Clips[id] = v
	}
	return m, nil
}

// LoadManifestFile reads and parses the manifest at path.
func LoadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ManifestLoader serves clips described by a Manifest. When assetDir is set
// the clip's asset must exist under it.
type ManifestLoader struct {
	manifest *Manifest
	assetDir string
}

// NewManifestLoader returns a loader over m.
func NewManifestLoader(m *Manifest, assetDir string) *ManifestLoader {
	return &ManifestLoader{manifest: m, assetDir: assetDir}
}

// Load implements sequencer.ClipLoader.
func (l *ManifestLoader) Load(ctx context.Context, id sequencer.GestureID) (sequencer.Clip, error) {
	if err := ctx.Err(); err != nil {
		return sequencer.Clip{}, err
	}

	entry, ok := l.manifest.Clips[id]
	if !ok {
		return sequencer.Clip{}, fmt.Errorf("%w: %s not in manifest", ErrNotFound, id)
	}

	asset := entry.Asset
	if asset == "" {
		asset = assetName(id)
	}
	if l.assetDir != "" {
		path := filepath.Join(l.assetDir, asset)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return sequencer.Clip{}, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return sequencer.Clip{}, fmt.Errorf("stat asset: %w", err)
		}
		asset = path
	}

	return sequencer.Clip{
		ID:       id,
		Duration: sequencer.DurationFromSeconds(entry.Duration),
		Asset:    asset,
	}, nil
}
