package simplepost

// ImageDelta is the minimal change moving a post from its current images to
// the desired set.
type ImageDelta struct {
	ToRemove []*Image
	ToAdd    []DesiredImage
}

// IsEmpty reports whether the delta changes nothing.
func (d ImageDelta) IsEmpty() bool {
	return len(d.ToRemove) == 0 && len(d.ToAdd) == 0
}

// ReconcileImages compares existing and desired images by URL. Existing
// images whose URL is not desired are removed; desired URLs not yet attached
// are added once each, in desired order. An empty desired set removes every
// existing image.
func ReconcileImages(existing []*Image, desired []DesiredImage) ImageDelta {
	var delta ImageDelta

	if len(desired) == 0 {
		delta.ToRemove = append(delta.ToRemove, existing...)
		return delta
	}

	wanted := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		wanted[d.URL] = struct{}{}
	}
	have := make(map[string]struct{}, len(existing))
	for _, img := range existing {
		have[img.URL] = struct{}{}
		if _, ok := wanted[img.URL]; !ok {
			delta.ToRemove = append(delta.ToRemove, img)
		}
	}
	for _, d := range desired {
		if _, ok := have[d.URL]; ok {
			continue
		}
		have[d.URL] = struct{}{}
		delta.ToAdd = append(delta.ToAdd, d)
	}
	return delta
}
