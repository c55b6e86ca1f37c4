package transform

// Fit computes the output dimensions for scaling a w x h image down to
// a target width. Images that already fit inside the target are left
// alone, square images map to target x target, and everything else is
// scaled so the longer side maps to the target, preserving aspect with
// integer division. Dimensions are clamped to a minimum of 1 so
// extreme aspect ratios can't collapse to zero.
func Fit(w, h, target uint32) (uint32, uint32) {
	if target == 0 || w == 0 || h == 0 {
		return w, h
	}
	if w <= target && h <= target {
		return w, h
	}
	if w == h {
		return target, target
	}
	longer := w
	if h > w {
		longer = h
	}
	ratio := longer / target
	if ratio == 0 {
		return w, h
	}
	w2 := w / ratio
	h2 := h / ratio
	if w2 == 0 {
		w2 = 1
	}
	if h2 == 0 {
		h2 = 1
	}
	return w2, h2
}
