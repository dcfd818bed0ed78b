package config

import (
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ToMap converts cfg into a nested map keyed by koanf tags, the same shape
// a YAML config file has. Durations are rendered as strings.
func ToMap(cfg *ServerConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return map[string]any{}
	}
	return exportMap(k.Raw())
}

// Flatten returns ToMap with dotted keys, e.g. "server.addr".
func Flatten(cfg *ServerConfig) map[string]any {
	flat, _ := maps.Flatten(ToMap(cfg), nil, ".")
	return flat
}

func exportMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = exportValue(v)
	}
	return out
}

func exportValue(v any) any {
	switch v := v.(type) {
	case time.Duration:
		return v.String()
	case map[string]any:
		return exportMap(v)
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
