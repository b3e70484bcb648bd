package repositories

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored as protobuf Struct values: schemaless, but still a
// compact binary encoding that old binaries can read field by field.
// Timestamps are kept as RFC3339Nano strings because Struct numbers are
// float64 and would lose nanoseconds.

type fields map[string]any

func encode(f fields) ([]byte, error) {
	s, err := structpb.NewStruct(f)
	if err != nil {
		return nil, fmt.Errorf("record encoding failed: %w", err)
	}
	return proto.Marshal(s)
}

func decode(data []byte) (record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("record decoding failed: %w", err)
	}
	return s.AsMap(), nil
}

type record map[string]any

func (r record) str(key string) string {
	v, _ := r[key].(string)
	return v
}

func (r record) boolean(key string) bool {
	v, _ := r[key].(bool)
	return v
}

func (r record) strs(key string) []string {
	values, _ := r[key].([]any)
	return lo.FilterMap(values, func(v any, _ int) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

func (r record) sub(key string) record {
	v, _ := r[key].(map[string]any)
	return v
}

func (r record) time(key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.str(key))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func anySlice[T ~string](values []T) []any {
	return lo.Map(values, func(v T, _ int) any { return string(v) })
}
