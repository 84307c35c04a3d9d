package vm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/VincentPT/ffscript/memory"
)

// HotSpot describes an instruction cursor that executed frequently.
type HotSpot struct {
	Cursor int
	Count  int
}

type profileState struct {
	mu sync.Mutex

	instructionCounts map[int]int
	executed          int
}

func newProfileState() *profileState {
	return &profileState{
		instructionCounts: make(map[int]int),
	}
}

func (ps *profileState) observe(cursor int) {
	ps.mu.Lock()
	ps.instructionCounts[cursor]++
	ps.executed++
	ps.mu.Unlock()
}

func (ps *profileState) hotSpots(n int) []HotSpot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	spots := make([]HotSpot, 0, len(ps.instructionCounts))
	for cursor, count := range ps.instructionCounts {
		spots = append(spots, HotSpot{Cursor: cursor, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count == spots[j].Count {
			return spots[i].Cursor < spots[j].Cursor
		}
		return spots[i].Count > spots[j].Count
	})
	if n > 0 && len(spots) > n {
		spots = spots[:n]
	}
	return spots
}

// render produces the human-readable performance summary for one task.
func (ps *profileState) render(id string, mem *memory.Memory) string {
	ps.mu.Lock()
	executed := ps.executed
	ps.mu.Unlock()

	allocs, frees := mem.AllocationStats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "task %s\n", id)
	fmt.Fprintf(&sb, "  activation memory: %s (%s in use)\n",
		humanize.IBytes(uint64(mem.Size())), humanize.IBytes(uint64(mem.Top())))
	fmt.Fprintf(&sb, "  instructions executed: %d\n", executed)
	fmt.Fprintf(&sb, "  scope allocations: %d, releases: %d\n", allocs, frees)
	spots := ps.hotSpots(5)
	if len(spots) > 0 {
		sb.WriteString("  hot spots:\n")
		for _, spot := range spots {
			fmt.Fprintf(&sb, "    cursor %d: %d\n", spot.Cursor, spot.Count)
		}
	}
	return sb.String()
}
