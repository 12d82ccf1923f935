package pipeline

import "github.com/spf13/cast"

// Loose-typed accessors for the pipeline KV store. Handlers of different
// stages share the store without agreeing on value types; cast does the
// coercion.

// KVString returns the KV value under key as a string, or "" if unset.
func (p *Pipeline[R, W]) KVString(key string) string {
	v, _ := p.KV.Load(key)
	return cast.ToString(v)
}

// KVInt returns the KV value under key as an int, or 0 if unset.
func (p *Pipeline[R, W]) KVInt(key string) int {
	v, _ := p.KV.Load(key)
	return cast.ToInt(v)
}

// KVBool returns the KV value under key as a bool, or false if unset.
func (p *Pipeline[R, W]) KVBool(key string) bool {
	v, _ := p.KV.Load(key)
	return cast.ToBool(v)
}
