package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"grid_preview": {
		Event:    "grid_preview",
		Required: []string{"exchange", "symbol", "centerPrice", "levels", "totalOrders"},
	},
	"grid_activated": {
		Event:    "grid_activated",
		Required: []string{"exchange", "symbol", "centerPrice", "placed"},
	},
	"grid_partial_failure": {
		Event:    "grid_partial_failure",
		Required: []string{"exchange", "symbol", "placed", "total", "error"},
	},
	"strategy_stopped": {
		Event:    "strategy_stopped",
		Required: []string{"exchange", "symbol", "cancelled"},
	},
	"strategy_status": {
		Event:    "strategy_status",
		Required: []string{"exchange", "symbol", "openOrders"},
	},
	"action_call": {
		Event:    "action_call",
		Required: []string{"action", "outcome", "durationMs"},
	},
	"config_reload": {
		Event:    "config_reload",
		Required: []string{"path", "result"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 检查日志字段是否包含 schema 中要求的 key。未登记的事件不校验。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ","))
	}
	return nil
}
