package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceOverride はリソース単位でメタ情報を上書きする設定です。
// 未指定の項目はリソース側の既定値がそのまま使われます。
type ResourceOverride struct {
	Limit              *int     `yaml:"limit"`
	MaxLimit           *int     `yaml:"max_limit"`
	CollectionName     string   `yaml:"collection_name"`
	Ordering           []string `yaml:"ordering"`
	IncludeResourceURI *bool    `yaml:"include_resource_uri"`
}

// ResourceOverrides はリソース名をキーにした上書き設定です。
type ResourceOverrides map[string]ResourceOverride

type resourcesFile struct {
	Resources ResourceOverrides `yaml:"resources"`
}

// LoadResourceOverrides は RESOURCES_FILE を読み込みます。path が空なら nil を返します。
//
//	resources:
//	  double:
//	    limit: 10
//	    max_limit: 100
func LoadResourceOverrides(path string) (ResourceOverrides, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources file: %w", err)
	}
	return ParseResourceOverrides(data)
}

// ParseResourceOverrides は YAML から上書き設定を読み取ります。未知のキーはエラーです。
func ParseResourceOverrides(data []byte) (ResourceOverrides, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file resourcesFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse resources file: %w", err)
	}
	for name, o := range file.Resources {
		if o.Limit != nil && *o.Limit < 0 {
			return nil, fmt.Errorf("resources.%s.limit must be >= 0", name)
		}
		if o.MaxLimit != nil && *o.MaxLimit < 0 {
			return nil, fmt.Errorf("resources.%s.max_limit must be >= 0", name)
		}
	}
	return file.Resources, nil
}
