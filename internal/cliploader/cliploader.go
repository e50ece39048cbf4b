// Package cliploader provides the clip sources the sequencer loads gesture
// animations from: a YAML manifest on disk, an HTTP asset server or an S3
// bucket.
package cliploader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gesture-sequencer/internal/sequencer"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotFound is returned when the source has no clip for a gesture.
var ErrNotFound = errors.New("clip not found")

// Source names accepted by New.
const (
	SourceManifest = "manifest"
	SourceHTTP     = "http"
	SourceS3       = "s3"
)

// Config selects and configures a clip source.
type Config struct {
	Source string

	ManifestPath string
	AssetDir     string

	BaseURL     string
	HTTPTimeout time.Duration

	S3Bucket string
	S3Prefix string
}

// New builds the loader named by cfg.Source.
func New(ctx context.Context, cfg Config) (sequencer.ClipLoader, error) {
	switch strings.ToLower(cfg.Source) {
	case "", SourceManifest:
		m, err := LoadManifestFile(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		return NewManifestLoader(m, cfg.AssetDir), nil
	case SourceHTTP:
		if cfg.BaseURL == "" {
			return nil, errors.New("http clip source requires a base URL")
		}
		return NewHTTPLoader(cfg.BaseURL, cfg.HTTPTimeout), nil
	case SourceS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 clip source requires a bucket")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewS3Loader(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown clip source %q", cfg.Source)
	}
}

// assetName is the default file name of a gesture's animation.
func assetName(id sequencer.GestureID) string {
	return strings.ToLower(string(id)) + ".glb"
}
