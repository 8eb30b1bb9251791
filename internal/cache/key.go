package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/desertthunder/vidx/internal/shared"
)

// Namespace is a resource class. Mutations invalidate whole namespaces.
type Namespace string

const (
	Videos     Namespace = "videos"
	Playlists  Namespace = "playlists"
	History    Namespace = "history"
	Categories Namespace = "categories"
	Users      Namespace = "users"
)

// Key addresses one cached response.
type Key struct {
	Namespace Namespace
	ID        string // resource id or a read kind such as "list" or "search"
	Params    string // hash of the full parameter set
}

// NewKey builds a key whose Params is a stable hash of params.
//
// [url.Values] hash their sorted encoding, anything else its JSON form. A nil params hashes to "".
func NewKey(ns Namespace, id string, params any) Key {
	return Key{Namespace: ns, ID: id, Params: HashParams(params)}
}

func (k Key) String() string {
	if k.Params == "" {
		return fmt.Sprintf("%s:%s", k.Namespace, k.ID)
	}
	return fmt.Sprintf("%s:%s:%s", k.Namespace, k.ID, k.Params)
}

// HashParams returns a deterministic hex digest of params.
func HashParams(params any) string {
	var data []byte
	switch p := params.(type) {
	case nil:
		return ""
	case url.Values:
		if len(p) == 0 {
			return ""
		}
		data = []byte(p.Encode())
	case string:
		data = []byte(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			data = fmt.Appendf(nil, "%#v", p)
		} else {
			data = b
		}
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Tier is a TTL class chosen by how volatile the data is.
type Tier int

const (
	Detail   Tier = iota // single resource views
	List                 // paginated lists
	Search               // search results
	Static               // rarely changing data such as categories
	Volatile             // watch history
)

// TTLs maps each [Tier] to a lifetime.
type TTLs struct {
	Detail   time.Duration
	List     time.Duration
	Search   time.Duration
	Static   time.Duration
	Volatile time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Detail:   5 * time.Minute,
		List:     2 * time.Minute,
		Search:   time.Minute,
		Static:   time.Hour,
		Volatile: time.Minute,
	}
}

// TTLsFromConfig applies the [shared.CacheConfig] overrides on top of [DefaultTTLs].
func TTLsFromConfig(cfg shared.CacheConfig) TTLs {
	d := DefaultTTLs()
	return TTLs{
		Detail:   shared.ParseTTL(cfg.DetailTTL, d.Detail),
		List:     shared.ParseTTL(cfg.ListTTL, d.List),
		Search:   shared.ParseTTL(cfg.SearchTTL, d.Search),
		Static:   shared.ParseTTL(cfg.StaticTTL, d.Static),
		Volatile: shared.ParseTTL(cfg.VolatileTTL, d.Volatile),
	}
}

// For returns the TTL of tier t.
func (t TTLs) For(tier Tier) time.Duration {
	switch tier {
	case Detail:
		return t.Detail
	case List:
		return t.List
	case Search:
		return t.Search
	case Static:
		return t.Static
	case Volatile:
		return t.Volatile
	default:
		return t.List
	}
}
