// Package rawimage flattens the loadable segments of an object into a memory
// image, the way objcopy -O binary does.
package rawimage

import (
	"cmp"
	"debug/elf"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
)

// span is the address range one PT_LOAD segment contributes to the image.
type span struct {
	index      int
	start, end uint64
	sections   []*object.PlacedSection
}

func (s span) name() string {
	return fmt.Sprintf("ProgramHeaders[%d] [0x%x, 0x%x)", s.index, s.start, s.end)
}

// Extract lays f out and returns its loadable image. Each PT_LOAD segment
// contributes the bytes from the address of its first section through the end
// of its last section with file contents. The lowest address maps to offset
// 0, gaps between segments are zero filled, and overlapping segments are an
// error. A file without loadable contents yields an empty image.
func Extract(f *object.File) ([]byte, error) {
	l, err := object.Plan(f)
	if err != nil {
		return nil, err
	}

	var spans []span
	for i, seg := range l.Segments {
		if seg.Header.Type != elf.PT_LOAD {
			continue
		}
		sp, ok, err := loadSpan(l, i, seg)
		if err != nil {
			return nil, err
		}
		if !ok {
			Logger().Debug("segment has no contents", zap.Int("segment", i))
			continue
		}
		spans = append(spans, sp)
	}
	if len(spans) == 0 {
		return []byte{}, nil
	}

	slices.SortStableFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	base, end := spans[0].start, spans[0].end
	lowest, highest := spans[0], spans[0]
	for i := 1; i < len(spans); i++ {
		if spans[i].start < end {
			return nil, errors.Overlap(errors.PhaseExtract, highest.name(), spans[i].name())
		}
		if spans[i].end > end {
			end, highest = spans[i].end, spans[i]
		}
	}
	if end-base > object.MaxImageSize {
		return nil, errors.New(errors.PhaseExtract, errors.KindOverflow).
			Path("ProgramHeaders").
			Value(fmt.Sprintf("0x%x", end-base)).
			Detail("image from %s to %s exceeds the 0x%x byte limit",
				lowest.name(), highest.name(), uint64(object.MaxImageSize)).
			Build()
	}

	image := make([]byte, end-base)
	for _, sp := range spans {
		for _, s := range sp.sections {
			copy(image[s.Address-base:], s.Content)
		}
	}
	Logger().Debug("extracted image",
		zap.Int("segments", len(spans)),
		zap.Uint64("base", base),
		zap.Int("size", len(image)))
	return image, nil
}

func loadSpan(l *object.Layout, i int, seg *object.PlacedSegment) (span, bool, error) {
	sp := span{index: i}
	found := false
	for _, s := range l.Spans(seg) {
		if !found {
			sp.start = s.Address
			found = true
		}
		if s.FileSize() == 0 {
			continue
		}
		if s.Address > math.MaxUint64-s.Size {
			return span{}, false, errors.Overflow(errors.PhaseExtract,
				[]string{fmt.Sprintf("Sections[%d]", s.Index-1), "Address"}, fmt.Sprintf("0x%x", s.Address), "address space")
		}
		sp.sections = append(sp.sections, s)
		sp.start = min(sp.start, s.Address)
		sp.end = max(sp.end, s.Address+s.Size)
	}
	return sp, found && len(sp.sections) > 0, nil
}
