package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders view data as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders view.Data as JSON.
func (f *JSONFormatter) Format(view View) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(view.Data, "", "  ")
	} else {
		data, err = json.Marshal(view.Data)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders view data as YAML.
type YAMLFormatter struct{}

// Format renders view.Data as YAML.
func (f *YAMLFormatter) Format(view View) (string, error) {
	data, err := yaml.Marshal(view.Data)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
