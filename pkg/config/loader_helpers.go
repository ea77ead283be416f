package config

import (
	"os"

	"gopkg.in/yaml.v3"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return gderrors.Wrap(err, gderrors.ErrCodeConfigParse, "parsing YAML")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return gderrors.Wrap(err, gderrors.ErrCodeConfigParse, "parsing YAML")
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero values leave base untouched,
// except booleans and lists that are explicitly present in raw.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Bridge.DefaultTimeout != 0 {
		base.Bridge.DefaultTimeout = override.Bridge.DefaultTimeout
	}
	if override.Bridge.CloseTimeout != 0 {
		base.Bridge.CloseTimeout = override.Bridge.CloseTimeout
	}
	if override.Bridge.OffloadWorkers != 0 {
		base.Bridge.OffloadWorkers = override.Bridge.OffloadWorkers
	}
	if fieldSet(raw, "bridge", "inbox_size") {
		base.Bridge.InboxSize = override.Bridge.InboxSize
	}
	if override.Bridge.ListConcurrency != 0 {
		base.Bridge.ListConcurrency = override.Bridge.ListConcurrency
	}

	if override.EarthEngine.BaseURL != "" {
		base.EarthEngine.BaseURL = override.EarthEngine.BaseURL
	}
	if override.EarthEngine.Project != "" {
		base.EarthEngine.Project = override.EarthEngine.Project
	}
	if override.EarthEngine.RequestsPerSecond != 0 {
		base.EarthEngine.RequestsPerSecond = override.EarthEngine.RequestsPerSecond
	}
	if override.EarthEngine.Burst != 0 {
		base.EarthEngine.Burst = override.EarthEngine.Burst
	}
	if fieldSet(raw, "earthengine", "max_retries") {
		base.EarthEngine.MaxRetries = override.EarthEngine.MaxRetries
	}
	if override.EarthEngine.RequestTimeout != 0 {
		base.EarthEngine.RequestTimeout = override.EarthEngine.RequestTimeout
	}
	if override.EarthEngine.CredentialsPath != "" {
		base.EarthEngine.CredentialsPath = expandHomeDir(override.EarthEngine.CredentialsPath)
	}

	if override.Sepal.Host != "" {
		base.Sepal.Host = override.Sepal.Host
	}
	if override.Sepal.BaseRemotePath != "" {
		base.Sepal.BaseRemotePath = override.Sepal.BaseRemotePath
	}
	if fieldSet(raw, "sepal", "insecure_hosts") {
		base.Sepal.InsecureHosts = append([]string{}, override.Sepal.InsecureHosts...)
	}
	if override.Sepal.RequestTimeout != 0 {
		base.Sepal.RequestTimeout = override.Sepal.RequestTimeout
	}

	if override.Drive.BaseURL != "" {
		base.Drive.BaseURL = override.Drive.BaseURL
	}
	if override.Drive.PageSize != 0 {
		base.Drive.PageSize = override.Drive.PageSize
	}

	if override.Session.DefaultModule != "" {
		base.Session.DefaultModule = override.Session.DefaultModule
	}
	if fieldSet(raw, "session", "test_mode") {
		base.Session.TestMode = override.Session.TestMode
	}

	if override.Bus.Backend != "" {
		base.Bus.Backend = override.Bus.Backend
	}
	if override.Bus.URL != "" {
		base.Bus.URL = override.Bus.URL
	}
	if override.Bus.SubjectPrefix != "" {
		base.Bus.SubjectPrefix = override.Bus.SubjectPrefix
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if fieldSet(raw, "telemetry", "tracing") {
		base.Telemetry.Tracing = override.Telemetry.Tracing
	}
	if override.Telemetry.ServiceName != "" {
		base.Telemetry.ServiceName = override.Telemetry.ServiceName
	}
}

// fieldSet reports whether the dotted path exists in the raw YAML document.
func fieldSet(raw map[string]any, path ...string) bool {
	if raw == nil {
		return false
	}
	current := raw
	for i, key := range path {
		val, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := val.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}
