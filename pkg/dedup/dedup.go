// Package dedup persists "already notified" markers so each alert condition
// fires at most once per scope, across restarts and concurrent checks.
package dedup

import (
	"context"
	"fmt"
	"strings"
)

const sep = "/"

// Key identifies one alert condition: what it is about (Subject), which
// breakpoint (Condition), and which recurring period or lifetime (Scope).
type Key struct {
	Subject   string `json:"subject"`
	Condition string `json:"condition"`
	Scope     string `json:"scope"`
}

// String returns the canonical "subject/scope/condition" form that prefix
// operations match against.
func (k Key) String() string {
	return k.Subject + sep + k.Scope + sep + k.Condition
}

// Validate rejects keys with empty or separator-bearing parts.
func (k Key) Validate() error {
	for name, part := range map[string]string{"subject": k.Subject, "condition": k.Condition, "scope": k.Scope} {
		if part == "" {
			return fmt.Errorf("dedup key: empty %s", name)
		}
		if strings.Contains(part, sep) {
			return fmt.Errorf("dedup key: %s %q contains %q", name, part, sep)
		}
	}
	return nil
}

// SubjectPrefix returns the prefix matching every key of a subject.
func SubjectPrefix(subject string) string {
	return subject + sep
}

// ParseKey parses the canonical form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, sep, 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed dedup key %q", s)
	}
	k := Key{Subject: parts[0], Scope: parts[1], Condition: parts[2]}
	return k, k.Validate()
}

// Store is the persistent marker set.
type Store interface {
	// Check reports whether the key was already marked.
	Check(ctx context.Context, key Key) (bool, error)

	// Mark records the key if absent. It returns true only for the caller
	// that inserted it; a concurrent or earlier mark yields false, nil.
	Mark(ctx context.Context, key Key) (bool, error)

	// ClearPrefix removes every key whose canonical form starts with prefix.
	ClearPrefix(ctx context.Context, prefix string) (int64, error)

	// Prune removes the subject's keys in every scope other than keepScope.
	Prune(ctx context.Context, subject, keepScope string) (int64, error)
}
