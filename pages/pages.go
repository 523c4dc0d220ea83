// Package pages expands and partitions zero-indexed page specifications of the
// form "0,2-3,5" used to split large documents across several parse jobs.
package pages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTargetPages = errors.New("invalid target pages")
	ErrInvalidPartition   = errors.New("invalid partition size")
	ErrInvalidMaxPages    = errors.New("max pages must be positive")
)

// ExpandTargetPages turns a page spec such as "0,2-3,5,8-10" into the list of
// pages it names, in the order written. Ranges are inclusive.
func ExpandTargetPages(spec string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		bounds := strings.Split(strings.TrimSpace(part), "-")
		switch len(bounds) {
		case 1:
			page, err := parsePage(spec, bounds[0])
			if err != nil {
				return nil, err
			}
			out = append(out, page)
		case 2:
			start, err := parsePage(spec, bounds[0])
			if err != nil {
				return nil, err
			}
			end, err := parsePage(spec, bounds[1])
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("%w %q: range %d-%d is reversed", ErrInvalidTargetPages, spec, start, end)
			}
			for page := start; page <= end; page++ {
				out = append(out, page)
			}
		default:
			return nil, fmt.Errorf("%w %q: malformed range %q", ErrInvalidTargetPages, spec, part)
		}
	}
	return out, nil
}

func parsePage(spec, raw string) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %q is not a page number", ErrInvalidTargetPages, spec, raw)
	}
	if page < 0 {
		return 0, fmt.Errorf("%w %q: page %d is negative", ErrInvalidTargetPages, spec, page)
	}
	return page, nil
}

// FormatTargetPages is the inverse of ExpandTargetPages: consecutive runs are
// collapsed into ranges, everything else is listed individually.
func FormatTargetPages(pages []int) string {
	var b strings.Builder
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(pages[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(pages[j]))
		}
		i = j + 1
	}
	return b.String()
}

type partitionConfig struct {
	maxPages    int
	hasMaxPages bool
}

// PartitionOption customizes PartitionPages.
type PartitionOption func(*partitionConfig)

// WithMaxPages keeps only the first n pages before partitioning.
func WithMaxPages(n int) PartitionOption {
	return func(cfg *partitionConfig) {
		cfg.maxPages = n
		cfg.hasMaxPages = true
	}
}

// PartitionPages groups pages into chunks of size and renders each chunk as a
// page spec. Order is preserved and nothing is sorted or deduplicated.
func PartitionPages(pages []int, size int, opts ...PartitionOption) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartition, size)
	}

	var cfg partitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.hasMaxPages {
		if cfg.maxPages <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidMaxPages, cfg.maxPages)
		}
		if len(pages) > cfg.maxPages {
			pages = pages[:cfg.maxPages]
		}
	}

	out := make([]string, 0, (len(pages)+size-1)/size)
	for start := 0; start < len(pages); start += size {
		end := min(start+size, len(pages))
		out = append(out, FormatTargetPages(pages[start:end]))
	}
	return out, nil
}

// Range returns the pages 0..count-1.
func Range(count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out
}
