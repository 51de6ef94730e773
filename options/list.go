package options

type KeyRange struct {
	Lower, Upper string
}

type Order string

const (
	Ascend  Order = "ASC"
	Descend Order = "DESC"
)

// ListOptions narrow down an id listing. Both key range bounds are
// inclusive, an empty bound is open.
type ListOptions struct {
	O     Order
	KR    *KeyRange
	Px    string
	Limit int
}

func (lo *ListOptions) SetOrder(o Order) *ListOptions {
	lo.O = o
	return lo
}

func (lo *ListOptions) KeyRange(lower, upper string) *ListOptions {
	lo.KR = &KeyRange{Lower: lower, Upper: upper}
	return lo
}

func (lo *ListOptions) Prefix(p string) *ListOptions {
	lo.Px = p
	return lo
}

func (lo *ListOptions) SetLimit(n int) *ListOptions {
	lo.Limit = n
	return lo
}

func List() *ListOptions {
	return &ListOptions{O: Ascend}
}
