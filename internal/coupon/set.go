package coupon

import (
	"sort"

	"petshop/internal/model"
)

// mapSet implements Set using a map for O(1) lookups.
type mapSet struct {
	coupons map[string]model.Coupon
}

// newMapSet creates a new map-based coupon set.
func newMapSet(capacity int) *mapSet {
	return &mapSet{
		coupons: make(map[string]model.Coupon, capacity),
	}
}

func (s *mapSet) Get(code string) (model.Coupon, bool) {
	c, ok := s.coupons[model.NormalizeCouponCode(code)]
	return c, ok
}

func (s *mapSet) Coupons() []model.Coupon {
	out := make([]model.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *mapSet) Size() int {
	return len(s.coupons)
}

// Add stores c under its normalised code. A later definition of the same code wins.
func (s *mapSet) Add(c model.Coupon) {
	c.Code = model.NormalizeCouponCode(c.Code)
	s.coupons[c.Code] = c
}

// merge adds every coupon of other to s.
func (s *mapSet) merge(other Set) {
	for _, c := range other.Coupons() {
		s.Add(c)
	}
}
