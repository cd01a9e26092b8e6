package allocator

import "microkernel/kernel/mem/pmm"

// node owns every zone of the machine's single memory node.
type node struct {
	id    int
	zones [zoneCount]zone

	startFrame pmm.Frame
	endFrame   pmm.Frame
	present    uint64
}

func (n *node) init() {
	n.id = 0
	n.startFrame, n.endFrame, n.present = 0, 0, 0
	for zt := ZoneDMA; zt < zoneCount; zt++ {
		n.zones[zt].init(zt)
	}
}

// grow extends the node span to cover [start, end).
func (n *node) grow(start, end pmm.Frame) {
	if n.present == 0 || start < n.startFrame {
		n.startFrame = start
	}
	if end > n.endFrame {
		n.endFrame = end
	}
	n.present += uint64(end - start)
}

// spanned returns the number of frames covered by the node span.
func (n *node) spanned() uint64 {
	if n.present == 0 {
		return 0
	}
	return uint64(n.endFrame - n.startFrame)
}

// populatedZones returns the number of zones that manage at least one frame.
func (n *node) populatedZones() int {
	var count int
	for zt := range n.zones {
		if n.zones[zt].populated() {
			count++
		}
	}
	return count
}
