package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"market-agent-go/gateway"
	"market-agent-go/strategy"
)

// Resource 只读文档，按 URI 读取。
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
	read        func() (string, error)
}

// ErrUnknownResource 未注册的资源 URI。
var ErrUnknownResource = errors.New("unknown resource")

var resources = []Resource{
	{
		URI:         "exchanges://list",
		Name:        "exchanges-list",
		Description: "Supported exchanges with credentials, features and minimum order values",
		MIMEType:    "application/json",
		read: func() (string, error) {
			return indentJSON(map[string]interface{}{"exchanges": gateway.Exchanges()})
		},
	},
	{
		URI:         "strategies://grid",
		Name:        "grid-strategy-docs",
		Description: "Grid trading strategy documentation",
		MIMEType:    "text/markdown",
		read:        func() (string, error) { return strategy.GridStrategyDocs, nil },
	},
	{
		URI:         "strategies://grid/profiles",
		Name:        "grid-strategy-profiles",
		Description: "Example grid profiles (conservative, moderate, aggressive)",
		MIMEType:    "application/json",
		read: func() (string, error) {
			return indentJSON(map[string]interface{}{"profiles": strategy.Profiles()})
		},
	},
}

// Resources 返回资源列表。
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}

// ReadResource 读取资源内容。
func ReadResource(uri string) (Resource, string, error) {
	for _, r := range resources {
		if r.URI == uri {
			text, err := r.read()
			return r, text, err
		}
	}
	return Resource{}, "", fmt.Errorf("%w: %s", ErrUnknownResource, uri)
}

func indentJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
