package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Lookup returns the value of a dotted configuration key (for example
// "engine.max_depth") formatted for display.
func (c *Config) Lookup(key string) (string, error) {
	v := reflect.ValueOf(c).Elem()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		if v.Kind() != reflect.Struct {
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
		v = field
	}
	if v.Kind() == reflect.Struct {
		return "", fmt.Errorf("%s is a section, not a key", key)
	}
	return formatValue(v), nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("mapstructure") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func formatValue(v reflect.Value) string {
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}
	if v.Kind() == reflect.Slice {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v.Interface())
}
