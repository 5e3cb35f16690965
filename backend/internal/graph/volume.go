package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Volume is a non-negative amount in the chain's smallest unit. Amounts exceed
// 2^53 routinely, so they are held as big integers and cross every boundary
// (store, JSON, cache) as decimal strings.
//
// The zero value is 0. Volumes are immutable; arithmetic returns new values.
type Volume struct {
	n *big.Int
}

// ZeroVolume is the additive identity.
var ZeroVolume = Volume{}

// ParseVolume parses a base-10 integer string. Empty input parses as zero.
func ParseVolume(s string) (Volume, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Volume{}, nil
	}
	// Some exporters append ".0" to integral amounts
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return Volume{}, fmt.Errorf("volume %q is not integral", s)
		}
		s = s[:i]
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Volume{}, fmt.Errorf("volume %q is not a decimal integer", s)
	}
	if n.Sign() < 0 {
		return Volume{}, fmt.Errorf("volume %q is negative", s)
	}
	return wrap(n), nil
}

// wrap keeps zero canonical (nil) so equal amounts compare deeply equal.
func wrap(n *big.Int) Volume {
	if n == nil || n.Sign() == 0 {
		return Volume{}
	}
	return Volume{n: n}
}

// MustVolume is ParseVolume for literals; it panics on malformed input.
func MustVolume(s string) Volume {
	v, err := ParseVolume(s)
	if err != nil {
		panic(err)
	}
	return v
}

// VolumeFromInt64 converts a native integer. Negative values clamp to zero.
func VolumeFromInt64(i int64) Volume {
	if i <= 0 {
		return Volume{}
	}
	return Volume{n: big.NewInt(i)}
}

func (v Volume) int() *big.Int {
	if v.n == nil {
		return new(big.Int)
	}
	return v.n
}

// BigInt returns a copy of the underlying integer.
func (v Volume) BigInt() *big.Int {
	return new(big.Int).Set(v.int())
}

// String renders the decimal representation.
func (v Volume) String() string {
	return v.int().String()
}

// IsZero reports whether the amount is zero.
func (v Volume) IsZero() bool {
	return v.n == nil || v.n.Sign() == 0
}

// Cmp compares v and o: -1, 0 or +1.
func (v Volume) Cmp(o Volume) int {
	return v.int().Cmp(o.int())
}

// Add returns v + o.
func (v Volume) Add(o Volume) Volume {
	return wrap(new(big.Int).Add(v.int(), o.int()))
}

// Min returns the smaller of v and o.
func (v Volume) Min(o Volume) Volume {
	if v.Cmp(o) <= 0 {
		return v
	}
	return o
}

// Max returns the larger of v and o.
func (v Volume) Max(o Volume) Volume {
	if v.Cmp(o) >= 0 {
		return v
	}
	return o
}

// Log2p1 returns log2(1 + v) for ranking purposes. The result is derived from
// the integer's exponent and leading bits, so v itself is never narrowed to a
// float64 (which would lose precision beyond 2^53 and overflow beyond 2^1024).
func (v Volume) Log2p1() float64 {
	x := new(big.Int).Add(v.int(), big.NewInt(1))
	bits := x.BitLen()
	if bits <= 53 {
		return math.Log2(float64(x.Uint64()))
	}
	// Keep the top 53 bits as mantissa: x ≈ top * 2^(bits-53)
	shift := uint(bits - 53)
	top := new(big.Int).Rsh(x, shift)
	return math.Log2(float64(top.Uint64())) + float64(shift)
}

// Ratio returns v / o as a float64 for normalization; 0 when o is zero.
func (v Volume) Ratio(o Volume) float64 {
	if o.IsZero() {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v.int(), o.int()).Float64()
	return f
}

// MarshalJSON encodes the volume as a quoted decimal string.
func (v Volume) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (v *Volume) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
		if s == "null" {
			*v = Volume{}
			return nil
		}
	}
	parsed, err := ParseVolume(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// SumVolumes adds every volume in vs.
func SumVolumes(vs ...Volume) Volume {
	total := new(big.Int)
	for _, v := range vs {
		total.Add(total, v.int())
	}
	return wrap(total)
}
