package options

// PutOptions carry the optional arguments of an image write.
type PutOptions struct {
	Name *string
}

func (po *PutOptions) SetName(name string) *PutOptions {
	po.Name = &name
	return po
}

func Put() *PutOptions {
	return &PutOptions{}
}

// MergePutOptions folds opts left to right, later values win.
func MergePutOptions(opts ...*PutOptions) *PutOptions {
	merged := Put()
	for _, o := range opts {
		if o == nil {
			continue
		}

		if o.Name != nil {
			merged.Name = o.Name
		}
	}

	return merged
}
