package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// jsonCollection is a local-file emulation of a Mongo collection: one JSON
// array per file, documents as plain maps. Collections with an expiry field
// prune expired documents on load, matching the behavior of the TTL indexes
// the Mongo backend uses.
type jsonCollection struct {
	path        string
	expireField string
	mu          sync.Mutex
}

func openJSON(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	newCol := func(name, expireField string) (*jsonCollection, error) {
		c := &jsonCollection{
			path:        filepath.Join(dataDir, name+".json"),
			expireField: expireField,
		}
		if _, err := os.Stat(c.path); os.IsNotExist(err) {
			if err := os.WriteFile(c.path, []byte("[]"), 0o644); err != nil {
				return nil, err
			}
		}
		return c, nil
	}

	st := &Store{Backend: BackendJSON}
	var err error
	if st.Users, err = newCol("users", ""); err != nil {
		return nil, err
	}
	if st.Students, err = newCol("students", ""); err != nil {
		return nil, err
	}
	if st.Attendance, err = newCol("attendance", ""); err != nil {
		return nil, err
	}
	if st.Sessions, err = newCol("sessions", "expires_at"); err != nil {
		return nil, err
	}
	if st.Links, err = newCol("links", "expires_at"); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *jsonCollection) load() ([]map[string]any, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("corrupt collection file %s: %w", c.path, err)
	}
	if c.expireField == "" {
		return docs, nil
	}
	now := time.Now().UTC()
	kept := docs[:0]
	pruned := false
	for _, d := range docs {
		if expired(d, c.expireField, now) {
			pruned = true
			continue
		}
		kept = append(kept, d)
	}
	if pruned {
		if err := c.save(kept); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

func expired(doc map[string]any, field string, now time.Time) bool {
	raw, ok := doc[field]
	if !ok {
		return false
	}
	s, ok := raw.(string)
	if !ok {
		return false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return false
	}
	return !ts.After(now)
}

func (c *jsonCollection) save(docs []map[string]any) error {
	if docs == nil {
		docs = []map[string]any{}
	}
	raw, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0o644)
}

// toDoc round-trips a value through JSON so typed structs and maps share
// one representation (times become RFC3339 strings, ints become float64).
func toDoc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeInto(src any, out any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// normalize maps filter literals onto the JSON document domain.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func valuesEqual(docVal, operand any) bool {
	a := normalize(docVal)
	b := normalize(operand)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Times may carry different precision in their string forms.
	if at, bt, ok := bothTimes(a, b); ok {
		return at.Equal(bt)
	}
	return a == b
}

// compareOrder returns -1, 0 or 1 for docVal relative to operand, with
// ok=false when the two are not comparable.
func compareOrder(docVal, operand any) (int, bool) {
	a := normalize(docVal)
	b := normalize(operand)
	if at, bt, ok := bothTimes(a, b); ok {
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	switch bv := b.(type) {
	case float64:
		av, ok := a.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		av, ok := a.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func bothTimes(a, b any) (time.Time, time.Time, bool) {
	at, aok := asTime(a)
	bt, bok := asTime(b)
	if aok && bok {
		return at, bt, true
	}
	return time.Time{}, time.Time{}, false
}

func asTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func matchDoc(doc map[string]any, filter Filter) bool {
	for key, cond := range filter {
		ops := operatorMap(cond)
		if ops == nil {
			if !valuesEqual(doc[key], cond) {
				return false
			}
			continue
		}
		for op, operand := range ops {
			switch op {
			case "$exists":
				want, _ := operand.(bool)
				if _, present := doc[key]; present != want {
					return false
				}
			case "$ne":
				if valuesEqual(doc[key], operand) {
					return false
				}
			case "$gt":
				if cmp, ok := compareOrder(doc[key], operand); !ok || cmp <= 0 {
					return false
				}
			case "$gte":
				if cmp, ok := compareOrder(doc[key], operand); !ok || cmp < 0 {
					return false
				}
			case "$lte":
				if cmp, ok := compareOrder(doc[key], operand); !ok || cmp > 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func operatorMap(cond any) map[string]any {
	m, ok := cond.(map[string]any)
	if !ok {
		if f, isFilter := cond.(Filter); isFilter {
			m = map[string]any(f)
		} else {
			return nil
		}
	}
	for k := range m {
		if len(k) == 0 || k[0] != '$' {
			return nil
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func applyUpdate(doc map[string]any, update Update) {
	if set, ok := sectionMap(update["$set"]); ok {
		for k, v := range set {
			doc[k] = normalize(v)
		}
	}
	if inc, ok := sectionMap(update["$inc"]); ok {
		for k, v := range inc {
			delta, _ := normalize(v).(float64)
			current, _ := normalize(doc[k]).(float64)
			doc[k] = current + delta
		}
	}
}

func sectionMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Filter:
		return t, true
	case Update:
		return t, true
	}
	return nil, false
}

func (c *jsonCollection) FindOne(_ context.Context, filter Filter, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if matchDoc(d, filter) {
			return decodeInto(d, out)
		}
	}
	return ErrNotFound
}

func (c *jsonCollection) Find(_ context.Context, filter Filter, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return err
	}
	matched := []map[string]any{}
	for _, d := range docs {
		if matchDoc(d, filter) {
			matched = append(matched, d)
		}
	}
	return decodeInto(matched, out)
}

func (c *jsonCollection) InsertOne(_ context.Context, doc any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return err
	}
	m, err := toDoc(doc)
	if err != nil {
		return err
	}
	return c.save(append(docs, m))
}

func (c *jsonCollection) UpdateOne(_ context.Context, filter Filter, update Update, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if matchDoc(d, filter) {
			applyUpdate(d, update)
			return c.save(docs)
		}
	}
	if !upsert {
		return c.save(docs)
	}
	fresh := map[string]any{}
	for k, v := range filter {
		if operatorMap(v) == nil {
			fresh[k] = normalize(v)
		}
	}
	applyUpdate(fresh, update)
	return c.save(append(docs, fresh))
}

func (c *jsonCollection) UpdateMany(_ context.Context, filter Filter, update Update) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return 0, err
	}
	var modified int64
	for _, d := range docs {
		if matchDoc(d, filter) {
			applyUpdate(d, update)
			modified++
		}
	}
	if modified > 0 {
		if err := c.save(docs); err != nil {
			return 0, err
		}
	}
	return modified, nil
}

func (c *jsonCollection) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return 0, err
	}
	kept := docs[:0]
	var removed int64
	for _, d := range docs {
		if matchDoc(d, filter) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	if removed > 0 {
		if err := c.save(kept); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (c *jsonCollection) CountDocuments(_ context.Context, filter Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.load()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range docs {
		if matchDoc(d, filter) {
			n++
		}
	}
	return n, nil
}
