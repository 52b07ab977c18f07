// Package config provides the run configuration of anonpipe: rule and
// salt locations, pipeline modes, concurrency and report preferences,
// together with the YAML configuration file loader.
package config
