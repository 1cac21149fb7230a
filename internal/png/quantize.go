package png

import (
	"image"
	"image/color"
	"sort"
)

// MedianCutQuantizer builds a palette by recursively splitting the colour
// space along its widest channel at the population median. Alpha is ignored;
// use it for opaque sources only.
type MedianCutQuantizer struct{}

// OctreeQuantizer treats every distinct NRGBA colour as a leaf keyed by the
// bits of all four channels and folds siblings into their parent, least
// populated parents first, until exactly the requested number of entries
// remain. A fully transparent entry is reserved when any pixel is fully
// transparent, so cut-outs survive quantization.
type OctreeQuantizer struct{}

type colorCount struct {
	c [4]uint8
	n int
}

// Quantize implements draw.Quantizer: it appends up to cap(p)-len(p) colours.
func (MedianCutQuantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	limit := cap(p) - len(p)
	hist, _ := histogram(m, false)
	if limit <= 0 || len(hist) == 0 {
		return p
	}

	boxes := [][]colorCount{hist}
	for len(boxes) < limit {
		idx, ch := widestBox(boxes)
		if idx < 0 {
			break
		}
		lo, hi := split(boxes[idx], ch)
		boxes[idx] = lo
		boxes = append(boxes, hi)
	}

	for _, b := range boxes {
		r, g, bl, _ := average(b)
		p = append(p, color.RGBA{R: r, G: g, B: bl, A: 0xff})
	}
	return p
}

func (OctreeQuantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	limit := cap(p) - len(p)
	hist, transparent := histogram(m, true)
	if transparent {
		limit--
	}
	if limit <= 0 {
		if transparent && cap(p) > len(p) {
			p = append(p, color.NRGBA{})
		}
		return p
	}

	for _, n := range reduce(hist, limit) {
		r, g, b, a := average(n.colors)
		p = append(p, color.NRGBA{R: r, G: g, B: b, A: a})
	}
	if transparent {
		p = append(p, color.NRGBA{})
	}
	return p
}

// histogram returns the distinct non-premultiplied colours of m sorted by
// value. When withAlpha is false every colour is treated as opaque; when it
// is true fully transparent pixels are excluded and reported separately.
func histogram(m image.Image, withAlpha bool) ([]colorCount, bool) {
	counts := make(map[uint32]int)
	transparent := false
	add := func(r, g, b, a uint8) {
		if !withAlpha {
			a = 0xff
		} else if a == 0 {
			transparent = true
			return
		}
		counts[uint32(r)<<24|uint32(g)<<16|uint32(b)<<8|uint32(a)]++
	}

	bounds := m.Bounds()
	rgba, opaqueRGBA := m.(*image.RGBA)
	opaqueRGBA = opaqueRGBA && !withAlpha
	switch src := m.(type) {
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for i := 0; i+3 < len(row); i += 4 {
				add(row[i], row[i+1], row[i+2], row[i+3])
			}
		}
	default:
		if opaqueRGBA {
			// alpha is discarded, so premultiplied samples are used as-is
			for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
				row := rgba.Pix[rgba.PixOffset(bounds.Min.X, y):rgba.PixOffset(bounds.Max.X, y)]
				for i := 0; i+3 < len(row); i += 4 {
					add(row[i], row[i+1], row[i+2], 0xff)
				}
			}
			break
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
				add(c.R, c.G, c.B, c.A)
			}
		}
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]colorCount, len(keys))
	for i, k := range keys {
		out[i] = colorCount{
			c: [4]uint8{uint8(k >> 24), uint8(k >> 16), uint8(k >> 8), uint8(k)},
			n: counts[k],
		}
	}
	return out, transparent
}

// widestBox picks the splittable box with the widest single-channel range,
// returning its index and channel, or -1 when every box is a single colour.
func widestBox(boxes [][]colorCount) (int, int) {
	best, bestCh, bestWidth := -1, 0, 0
	for i, b := range boxes {
		if len(b) < 2 {
			continue
		}
		for ch := 0; ch < 3; ch++ {
			lo, hi := channelRange(b, ch)
			if w := int(hi) - int(lo); w > bestWidth {
				best, bestCh, bestWidth = i, ch, w
			}
		}
	}
	return best, bestCh
}

func channelRange(b []colorCount, ch int) (uint8, uint8) {
	lo, hi := uint8(0xff), uint8(0)
	for _, cc := range b {
		v := cc.c[ch]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func split(b []colorCount, ch int) ([]colorCount, []colorCount) {
	sorted := make([]colorCount, len(b))
	copy(sorted, b)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].c[ch] < sorted[j].c[ch] })

	half := population(sorted) / 2
	seen, cut := 0, 1
	for i, cc := range sorted {
		seen += cc.n
		if seen >= half {
			cut = i + 1
			break
		}
	}
	if cut >= len(sorted) {
		cut = len(sorted) - 1
	}
	return sorted[:cut], sorted[cut:]
}

type octreeNode struct {
	colors []colorCount
	pop    int
}

// octreeKey is the tree path of c down to depth bits per channel.
func octreeKey(c [4]uint8, depth int) uint32 {
	shift := uint(8 - depth)
	return uint32(c[0]>>shift)<<24 | uint32(c[1]>>shift)<<16 | uint32(c[2]>>shift)<<8 | uint32(c[3]>>shift)
}

// reduce starts with one leaf per histogram colour and merges children of
// the same parent one level at a time. Parents are folded in order of
// ascending population; the last one folded only merges as many of its
// (least populated) children as needed, so the result has exactly
// min(limit, len(hist)) nodes.
func reduce(hist []colorCount, limit int) []octreeNode {
	nodes := make([]octreeNode, len(hist))
	for i, cc := range hist {
		nodes[i] = octreeNode{colors: []colorCount{cc}, pop: cc.n}
	}

	for depth := 7; depth >= 0 && len(nodes) > limit; depth-- {
		var groups [][]int
		index := make(map[uint32]int)
		for i, n := range nodes {
			key := octreeKey(n.colors[0].c, depth)
			g, ok := index[key]
			if !ok {
				g = len(groups)
				index[key] = g
				groups = append(groups, nil)
			}
			groups[g] = append(groups[g], i)
		}

		order := make([]int, 0, len(groups))
		pops := make([]int, len(groups))
		for g, members := range groups {
			for _, i := range members {
				pops[g] += nodes[i].pop
			}
			if len(members) > 1 {
				order = append(order, g)
			}
		}
		sort.SliceStable(order, func(a, b int) bool { return pops[order[a]] < pops[order[b]] })

		excess := len(nodes) - limit
		fold := make(map[int]int) // group -> number of members to merge
		for _, g := range order {
			if excess <= 0 {
				break
			}
			k := min(len(groups[g])-1, excess)
			fold[g] = k + 1
			excess -= k
		}

		next := make([]octreeNode, 0, limit)
		for g, members := range groups {
			k, ok := fold[g]
			if !ok {
				for _, i := range members {
					next = append(next, nodes[i])
				}
				continue
			}
			sorted := append([]int(nil), members...)
			sort.SliceStable(sorted, func(a, b int) bool { return nodes[sorted[a]].pop < nodes[sorted[b]].pop })

			var merged octreeNode
			for _, i := range sorted[:k] {
				merged.colors = append(merged.colors, nodes[i].colors...)
				merged.pop += nodes[i].pop
			}
			next = append(next, merged)
			for _, i := range sorted[k:] {
				next = append(next, nodes[i])
			}
		}
		nodes = next
	}
	return nodes
}

func population(b []colorCount) int {
	n := 0
	for _, cc := range b {
		n += cc.n
	}
	return n
}

func average(b []colorCount) (uint8, uint8, uint8, uint8) {
	var r, g, bl, a, n int
	for _, cc := range b {
		r += int(cc.c[0]) * cc.n
		g += int(cc.c[1]) * cc.n
		bl += int(cc.c[2]) * cc.n
		a += int(cc.c[3]) * cc.n
		n += cc.n
	}
	if n == 0 {
		return 0, 0, 0, 0
	}
	return uint8((r + n/2) / n), uint8((g + n/2) / n), uint8((bl + n/2) / n), uint8((a + n/2) / n)
}
