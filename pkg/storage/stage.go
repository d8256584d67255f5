package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// WriteStage is an Execute plugin that uploads the context's payload before
// the downstream chain runs, recording where it landed.
//
// Configuration:
//
//	bucket        (required) target bucket
//	payload_field payload bytes field, default "payload"
//	object_field  object name field, default "filename"
//	stored_field  field receiving the stored path, default "stored_path"
//	max_bytes     reject payloads larger than this, 0 means unlimited
type WriteStage struct {
	store        BlobStore
	bucket       string
	payloadField string
	objectField  string
	storedField  string
	maxBytes     int
}

// Invoke uploads and then calls the continuation; an upload failure stops the
// chain before any downstream work.
func (s *WriteStage) Invoke(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
	fields, ok := tc.(task.Fields)
	if !ok {
		return nil, fmt.Errorf("context kind %q does not expose fields", tc.Kind())
	}

	payload, err := payloadBytes(fields, s.payloadField)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && len(payload) > s.maxBytes {
		return nil, fmt.Errorf("payload is %d bytes, limit is %d", len(payload), s.maxBytes)
	}
	object, ok := fields.Get(s.objectField)
	if !ok {
		return nil, fmt.Errorf("context field %q missing", s.objectField)
	}
	name, ok := object.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("context field %q is not a usable object name", s.objectField)
	}

	if err := s.store.Upload(ctx, s.bucket, name, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, err
	}
	fields.Set(s.storedField, path.Join(s.bucket, name))

	return next(ctx, tc, args...)
}

func payloadBytes(fields task.Fields, key string) ([]byte, error) {
	v, ok := fields.Get(key)
	if !ok {
		return nil, fmt.Errorf("context field %q missing", key)
	}
	switch payload := v.(type) {
	case []byte:
		return payload, nil
	case string:
		// text payloads upload as their UTF-8 bytes
		return []byte(payload), nil
	default:
		return nil, fmt.Errorf("context field %q is %T, want bytes", key, v)
	}
}

// RegisterWrite registers the blob-write plugin under name. The store is a
// live handle captured at registration time.
func RegisterWrite(reg *registry.Registry, name string, store BlobStore) error {
	return reg.Register(capability.KindExecute, name, func(cfg registry.Config) (capability.Stage, error) {
		bucket, err := cfg.RequireString(name, "bucket")
		if err != nil {
			return nil, err
		}
		return &WriteStage{
			store:        store,
			bucket:       bucket,
			payloadField: cfg.String("payload_field", "payload"),
			objectField:  cfg.String("object_field", "filename"),
			storedField:  cfg.String("stored_field", "stored_path"),
			maxBytes:     cfg.Int("max_bytes", 0),
		}, nil
	})
}
