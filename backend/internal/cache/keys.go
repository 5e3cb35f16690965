package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind namespaces cache keys
type Kind string

const (
	KindGraph   Kind = "graph"
	KindMetrics Kind = "metrics"
	KindQuery   Kind = "query"
)

// Key identifies a cached value. Address scopes the entry for invalidation and
// may be empty for results that are not tied to one account.
type Key struct {
	Kind    Kind                   `json:"kind"`
	Address string                 `json:"address,omitempty"`
	Name    string                 `json:"name"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// String renders kind:address:name:paramhash
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Kind, k.Address, k.Name, GenerateCacheKey(k.Params))
}

// GraphKey builds a key for a traversal result centred on address
func GraphKey(name, address string, params map[string]interface{}) Key {
	return Key{Kind: KindGraph, Address: address, Name: name, Params: params}
}

// MetricsKey builds a key for a metric result; address may be empty
func MetricsKey(name, address string, params map[string]interface{}) Key {
	return Key{Kind: KindMetrics, Address: address, Name: name, Params: params}
}

// QueryKey derives a key from query text and its parameters. A string
// "address" parameter scopes the entry to that address.
func QueryKey(query string, params map[string]interface{}) Key {
	all := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		all[k] = v
	}
	all["query"] = strings.TrimSpace(query)

	addr, _ := params["address"].(string)
	return Key{Kind: KindQuery, Address: addr, Name: "q", Params: all}
}

// GenerateCacheKey hashes params independently of insertion order:
// encoding/json writes map keys sorted, so equal maps give equal bytes.
func GenerateCacheKey(params map[string]interface{}) string {
	if len(params) == 0 {
		return "0"
	}
	data, err := json.Marshal(params)
	if err != nil {
		// Unencodable values still need a stable, distinct key
		data = []byte(fmt.Sprintf("%v", params))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
