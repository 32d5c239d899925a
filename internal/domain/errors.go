package domain

import "fmt"

// ConfigError reports a missing or invalid setting. It is raised before any
// network call is made.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return e.Key + " is required"
	}
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Reason)
}

// TransportError reports a failed upstream HTTP call: a network failure,
// a non-2xx status or a body that is not JSON. It is never retried.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write to a storage sink.
type PersistenceError struct {
	Sink string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Sink, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransformError reports a value that could not be cast during the
// structured transform. It aborts the transform stage.
type TransformError struct {
	Field string
	Value string
	Err   error
}

func (e *TransformError) Error() string {
	if e.Value == "" && e.Field == "" {
		return fmt.Sprintf("transform: %v", e.Err)
	}
	return fmt.Sprintf("transform %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
