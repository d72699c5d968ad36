package execution

import (
	"context"
	"fmt"

	"github.com/zigrin-security/cakefuzzer/internal/collection"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Target is the application code exercised by an execution
type Target interface {
	Run(ctx context.Context, exec *Context) error
}

// TargetFunc adapts a function to Target
type TargetFunc func(ctx context.Context, exec *Context) error

// Run calls f(ctx, exec)
func (f TargetFunc) Run(ctx context.Context, exec *Context) error {
	return f(ctx, exec)
}

// Script is a Target replaying a fixed list of accesses
type Script struct {
	Accesses []types.Access
}

// NewScript creates a scripted target
func NewScript(accesses []types.Access) *Script {
	return &Script{Accesses: accesses}
}

// Run performs every access in order, stopping at the first error
func (s *Script) Run(ctx context.Context, exec *Context) error {
	for i, access := range s.Accesses {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.apply(exec, access); err != nil {
			return fmt.Errorf("access %d on %s: %w", i, access.Group, err)
		}
	}
	return nil
}

func (s *Script) apply(exec *Context, access types.Access) error {
	group, ok := exec.Group(access.Group)
	if !ok {
		return fmt.Errorf("unknown input group %q", access.Group)
	}

	op := access.Op
	if op == "" {
		op = types.OpGet
	}

	switch op {
	case types.OpCount:
		group.Count()
		return nil
	case types.OpIterate:
		for range group.All() {
		}
		return nil
	case types.OpMerge:
		return s.merge(exec, access)
	case types.OpKeys:
		target, err := walk(group, access.Keys)
		if err != nil || target == nil {
			return err
		}
		keys := collection.RawKeys(target)
		exec.logger.Debug("keys", "group", access.Group, "path", access.Keys, "count", len(keys))
		return nil
	}

	if len(access.Keys) == 0 {
		return fmt.Errorf("operation %s requires a key", op)
	}

	target, err := walk(group, access.Keys[:len(access.Keys)-1])
	if err != nil || target == nil {
		return err
	}
	key := access.Keys[len(access.Keys)-1]

	switch op {
	case types.OpGet:
		_, err = target.Get(key)
	case types.OpExists:
		_, err = target.Exists(key)
	case types.OpSet:
		target.Set(key, collection.FromAny(access.Value))
	case types.OpDelete:
		target.Delete(key)
	case types.OpKeyExists:
		_, err = collection.KeyExists(target, key)
	case types.OpHashEquals:
		var v collection.Value
		if v, err = target.Get(key); err == nil {
			known, _ := collection.Plain(v).(string)
			match := exec.HashEquals(known, fmt.Sprint(access.Value))
			exec.logger.Debug("hash_equals", "group", access.Group, "key", key, "match", match)
		}
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}
	return err
}

// merge replaces the access group with the group merged with its sources, in order
func (s *Script) merge(exec *Context, access types.Access) error {
	dst, _ := exec.Group(access.Group)
	if _, ok := dst.(*collection.AccessLog); ok {
		return fmt.Errorf("cannot merge into %s", access.Group)
	}

	sources, err := access.MergeSources()
	if err != nil {
		return err
	}
	parts := []collection.Accessor{dst}
	for _, name := range sources {
		g, ok := exec.Group(name)
		if !ok {
			return fmt.Errorf("unknown input group %q", name)
		}
		parts = append(parts, g)
	}

	exec.groups[access.Group] = collection.Merge(access.Group, parts...)
	return nil
}

// walk follows a key path through nested groups. It returns nil when the path
// reaches a value that cannot be indexed further.
func walk(a collection.Accessor, keys []string) (collection.Accessor, error) {
	for _, k := range keys {
		v, err := a.Get(k)
		if err != nil {
			return nil, err
		}
		next, ok := v.(collection.Accessor)
		if !ok {
			return nil, nil
		}
		a = next
	}
	return a, nil
}
