package access

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

// Store key layout. Records are JSON values so the registry stays
// inspectable with store tooling.
var (
	principalPrefix = []byte("acl/p/")
	rulePrefix      = []byte("acl/r/")
	registryMetaKey = []byte("acl/m")
)

func principalKey(id string) []byte {
	k := make([]byte, 0, len(principalPrefix)+len(id))
	k = append(k, principalPrefix...)
	k = append(k, id...)
	return k
}

func ruleKey(id string) []byte {
	k := make([]byte, 0, len(rulePrefix)+len(id))
	k = append(k, rulePrefix...)
	k = append(k, id...)
	return k
}

// Registry is the persisted catalog of principals and access rules. All
// records live in the store under acl/ keys and are mirrored into an
// in-memory cache serving reads. Version increases on every mutation
// and survives restarts, so clients can detect permission changes.
type Registry struct {
	db *pebblestore.DB

	mu         sync.RWMutex
	principals map[string]Principal
	rules      map[string]Rule
	version    uint64
}

// OpenRegistry loads all persisted principals and rules into memory.
func OpenRegistry(db *pebblestore.DB) (*Registry, error) {
	r := &Registry{
		db:         db,
		principals: make(map[string]Principal),
		rules:      make(map[string]Rule),
	}
	b, err := db.Get(registryMetaKey)
	switch {
	case err == nil && len(b) >= 8:
		r.version = binary.BigEndian.Uint64(b[:8])
	case err != nil && !errors.Is(err, pebblestore.ErrKeyNotFound):
		return nil, err
	}
	if err := r.loadPrincipals(); err != nil {
		return nil, err
	}
	if err := r.loadRules(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadPrincipals() error {
	hi := append(append([]byte(nil), principalPrefix...), 0xff)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: principalPrefix, UpperBound: hi})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		var p Principal
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return fmt.Errorf("decode principal record %q: %w", iter.Key(), err)
		}
		r.principals[p.ID] = p
	}
	return nil
}

func (r *Registry) loadRules() error {
	hi := append(append([]byte(nil), rulePrefix...), 0xff)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: rulePrefix, UpperBound: hi})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		var rule Rule
		if err := json.Unmarshal(iter.Value(), &rule); err != nil {
			return fmt.Errorf("decode rule record %q: %w", iter.Key(), err)
		}
		r.rules[rule.ID] = rule
	}
	return nil
}

// persist commits one record mutation together with the bumped version.
// Caller holds r.mu.
func (r *Registry) persist(ctx context.Context, key, value []byte, remove bool) error {
	b := r.db.NewBatch()
	defer b.Close()
	if remove {
		if err := b.Delete(key, nil); err != nil {
			return err
		}
	} else {
		if err := b.Set(key, value, nil); err != nil {
			return err
		}
	}
	var vb [8]byte
	binary.BigEndian.PutUint64(vb[:], r.version+1)
	if err := b.Set(registryMetaKey, vb[:], nil); err != nil {
		return err
	}
	return r.db.CommitBatch(ctx, b)
}

// PutPrincipal creates or replaces a principal record.
func (r *Registry) PutPrincipal(ctx context.Context, p Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persist(ctx, principalKey(p.ID), value, false); err != nil {
		return err
	}
	r.principals[p.ID] = p
	r.version++
	return nil
}

// DeletePrincipal removes a principal record. Rules naming the id are
// kept but stop matching, which only ever narrows access. Deleting an
// absent principal is a no-op.
func (r *Registry) DeletePrincipal(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.principals[id]; !ok {
		return nil
	}
	if err := r.persist(ctx, principalKey(id), nil, true); err != nil {
		return err
	}
	delete(r.principals, id)
	r.version++
	return nil
}

// PutRule creates or replaces a rule record, assigning an id when the
// record carries none. Returns the stored rule.
func (r *Registry) PutRule(ctx context.Context, rule Rule) (Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	value, err := json.Marshal(rule)
	if err != nil {
		return Rule{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persist(ctx, ruleKey(rule.ID), value, false); err != nil {
		return Rule{}, err
	}
	r.rules[rule.ID] = rule
	r.version++
	return rule, nil
}

// DeleteRule removes a rule record. Deleting an absent rule is a no-op.
func (r *Registry) DeleteRule(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return nil
	}
	if err := r.persist(ctx, ruleKey(id), nil, true); err != nil {
		return err
	}
	delete(r.rules, id)
	r.version++
	return nil
}

// EnsureAdmin creates an admin principal if absent, returning the
// effective record. Idempotent: an existing record is returned as-is
// even if its role changed since bootstrap.
func (r *Registry) EnsureAdmin(ctx context.Context, id, displayName string) (Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.principals[id]; ok {
		return p, nil
	}
	p := Principal{ID: id, DisplayName: displayName, Kind: KindHuman, Role: RoleAdmin}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	value, err := json.Marshal(p)
	if err != nil {
		return Principal{}, err
	}
	if err := r.persist(ctx, principalKey(p.ID), value, false); err != nil {
		return Principal{}, err
	}
	r.principals[p.ID] = p
	r.version++
	return p, nil
}

// Principal looks up one principal by id.
func (r *Registry) Principal(id string) (Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[id]
	return p, ok
}

// Principals lists all principals sorted by id.
func (r *Registry) Principals() []Principal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Principal, 0, len(r.principals))
	for _, p := range r.principals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rules lists all rules sorted by id.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RulesFor lists every rule selecting the principal by id or role.
func (r *Registry) RulesFor(p Principal) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Rule
	for _, rule := range r.rules {
		if rule.AppliesTo(p) {
			out = append(out, rule)
		}
	}
	return out
}

// Version reports the mutation counter.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
