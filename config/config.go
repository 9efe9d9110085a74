// Package config loads engine-wide defaults from a YAML file: the default
// application id, default language, cache directory, and optional S3
// subscription-bundle sync settings.
package config

// S3Sync configures an optional subscription-bundle pull from object
// storage before local discovery runs.
type S3Sync struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Configuration is the root structure for engine-level defaults.
type Configuration struct {
	DefaultAppID string `yaml:"defaultAppId"`
	DefaultLang  string `yaml:"defaultLanguage"`
	CacheDir     string `yaml:"cacheDir"`
	S3Sync       *S3Sync `yaml:"s3Sync"`
}
