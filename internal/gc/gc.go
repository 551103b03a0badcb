// Package gc implements the generational mark-sweep collector (spec
// §4.2): two generations, write barriers, a remembered set, and
// cooperative stop-the-world coordinated by the caller (internal/vm),
// using a slot table with free-list reuse and worklist tracing.
package gc

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"ember/internal/object"
	"ember/internal/oid"
)

const defaultThreshold = 4096

type slot struct {
	obj  object.Object
	free bool
}

type pool struct {
	slots    []slot
	freeList []uint32
}

func (p *pool) alloc(obj object.Object) uint32 {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.slots[idx] = slot{obj: obj}
		return idx
	}
	idx := uint32(len(p.slots))
	p.slots = append(p.slots, slot{obj: obj})
	return idx
}

// location is where an id's object currently lives: which generation's
// pool, and at what index within it. This is the one level of
// indirection that lets graduation move an object between pools without
// changing the ObjectId a referrer already holds (spec §4.2 "collector
// never moves objects; ObjectId is stable").
type location struct {
	area object.Area
	idx  uint32
}

// Stats is a point-in-time snapshot of collector activity, used for
// diagnostics logging only (spec §4.2 "counters").
type Stats struct {
	LiveObjects      int
	Allocations      uint64
	MinorCollections uint64
	MajorCollections uint64
	LastPauseNanos   int64
	StopTheWorldTime time.Duration
}

// Coordinator is implemented by internal/vm: it parks every registered
// interpreter thread at a safe-point and reports the GC roots drawn
// from their live frames, operand stacks, locals and pending exceptions
// (spec §4.2 step 1 and 3).
type Coordinator interface {
	StopTheWorld()
	ContinueTheWorld()
	GatherRoots() []oid.ObjectId
}

// Collector is a single VM-wide, generational mark-sweep collector. It
// implements object.Heap so the rest of the runtime allocates through it
// without depending on this package's concrete type.
type Collector struct {
	mu sync.Mutex

	young, old pool
	// remembered holds old-generation objects whose write_barrier flag
	// is set: they may point into young (spec §4.2 "remembered set").
	remembered map[oid.ObjectId]struct{}

	// table is the id -> (area, index) indirection every id-stable
	// operation goes through; idFree recycles table slots of objects
	// that were swept (not graduated, which updates a table entry in
	// place instead of freeing it).
	table  []location
	idFree []oid.ObjectId

	intFree []oid.ObjectId // free-list cache of dead Integer objects

	threshold       int
	youngAllocCount int

	liveObjects      int
	allocCount       uint64
	minorCollections uint64
	majorCollections uint64
	stwTime          time.Duration

	moduleRoots func() []oid.ObjectId // extra roots from the module registry (set by vm)
	log         *slog.Logger
}

func New(log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		remembered: make(map[oid.ObjectId]struct{}),
		threshold:  defaultThreshold,
		log:        log,
	}
}

// SetModuleRootsFunc registers the callback that yields module-registry
// entries referencing live objects (spec §4.2 step 3).
func (c *Collector) SetModuleRootsFunc(f func() []oid.ObjectId) {
	c.moduleRoots = f
}

func areaSlotRef(c *Collector, area object.Area, idx uint32) *slot {
	if area == object.AreaYoung {
		return &c.young.slots[idx]
	}
	return &c.old.slots[idx]
}

// newID hands out a fresh id for a just-allocated object at (area, idx),
// reusing a recycled table slot when one is available.
func (c *Collector) newID(area object.Area, idx uint32) oid.ObjectId {
	if n := len(c.idFree); n > 0 {
		id := c.idFree[n-1]
		c.idFree = c.idFree[:n-1]
		c.table[id] = location{area: area, idx: idx}
		return id
	}
	id := oid.ObjectId(len(c.table))
	c.table = append(c.table, location{area: area, idx: idx})
	return id
}

// Alloc returns a fresh object in the young pool, zero-marked (spec
// §4.2 "Allocation contract").
func (c *Collector) Alloc(obj object.Object) oid.ObjectId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocLocked(obj)
}

func (c *Collector) allocLocked(obj object.Object) oid.ObjectId {
	idx := c.young.alloc(obj)
	id := c.newID(object.AreaYoung, idx)
	h := obj.Head()
	h.SetID(id)
	h.Area = object.AreaYoung
	h.Mark = false
	h.WriteBarrier = false
	c.liveObjects++
	c.allocCount++
	c.youngAllocCount++
	return id
}

// AllocInteger allocates an Integer, first trying the small free-list
// cache keyed by recent deaths to reduce churn for common arithmetic
// (spec §4.2).
func (c *Collector) AllocInteger(v int64) oid.ObjectId {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.intFree); n > 0 {
		id := c.intFree[n-1]
		c.intFree = c.intFree[:n-1]
		loc := c.table[id]
		s := areaSlotRef(c, loc.area, loc.idx)
		if s.free {
			i := s.obj.(*object.Integer)
			i.Value = v
			s.free = false
			i.Mark = false
			c.liveObjects++
			c.allocCount++
			return id
		}
	}
	return c.allocLocked(&object.Integer{Value: v})
}

// Get returns the object for id, or nil if it has been reclaimed.
func (c *Collector) Get(id oid.ObjectId) object.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

// WriteBarrier records that owner (if in the old generation) now points
// at child (spec §4.2 "Write barrier"). A precondition for correctness
// of the next minor collection.
func (c *Collector) WriteBarrier(owner, child oid.ObjectId) {
	if !owner.Valid() || !child.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ownerObj := c.getLocked(owner)
	childObj := c.getLocked(child)
	if ownerObj == nil || childObj == nil {
		return
	}
	if ownerObj.Head().Area == object.AreaOld && childObj.Head().Area == object.AreaYoung {
		ownerObj.Head().WriteBarrier = true
		c.remembered[owner] = struct{}{}
	}
}

func (c *Collector) getLocked(id oid.ObjectId) object.Object {
	if !id.Valid() || int(id) >= len(c.table) {
		return nil
	}
	loc := c.table[id]
	p := &c.young
	if loc.area == object.AreaOld {
		p = &c.old
	}
	if int(loc.idx) >= len(p.slots) || p.slots[loc.idx].free {
		return nil
	}
	return p.slots[loc.idx].obj
}

// MaybeCollectMinor triggers a minor collection if young allocation has
// exceeded the dynamic threshold (spec §4.2 "Allocation triggers a
// minor collection").
func (c *Collector) MaybeCollectMinor(coord Coordinator) (Stats, bool) {
	c.mu.Lock()
	trip := c.youngAllocCount >= c.threshold
	c.mu.Unlock()
	if !trip {
		return Stats{}, false
	}
	return c.CollectMinor(coord), true
}

func (c *Collector) extraRoots(coord Coordinator) []oid.ObjectId {
	var roots []oid.ObjectId
	if coord != nil {
		roots = append(roots, coord.GatherRoots()...)
	}
	if c.moduleRoots != nil {
		roots = append(roots, c.moduleRoots()...)
	}
	return roots
}

// CollectMinor runs one young-only cycle per spec §4.2 steps 1-6.
func (c *Collector) CollectMinor(coord Coordinator) Stats {
	start := time.Now()
	if coord != nil {
		coord.StopTheWorld()
		defer coord.ContinueTheWorld()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.young.slots {
		if !c.young.slots[i].free {
			c.young.slots[i].obj.Head().Mark = false
		}
	}

	roots := c.extraRoots(coord)
	for id := range c.remembered {
		roots = append(roots, id)
	}

	c.traceLocked(roots, object.AreaYoung, true)

	var freed int
	for i := range c.young.slots {
		s := &c.young.slots[i]
		if s.free {
			continue
		}
		if !s.obj.Head().Mark {
			id := s.obj.Head().ID()
			s.free = true
			c.liveObjects--
			freed++
			c.young.freeList = append(c.young.freeList, uint32(i))
			if _, ok := s.obj.(*object.Integer); ok {
				c.intFree = append(c.intFree, id)
			} else {
				c.idFree = append(c.idFree, id)
			}
			continue
		}
		// Survivor: graduate to old.
		c.graduateLocked(uint32(i))
	}

	for id := range c.remembered {
		if obj := c.getLocked(id); obj != nil {
			obj.Head().WriteBarrier = false
		}
	}
	c.remembered = make(map[oid.ObjectId]struct{})

	c.youngAllocCount = 0
	if c.liveObjects > c.threshold*9/10 {
		c.threshold *= 2
	}
	c.minorCollections++

	elapsed := time.Since(start)
	c.stwTime += elapsed
	stats := c.statsLocked(elapsed)
	c.log.Debug("minor gc",
		"freed", freed,
		"live", c.liveObjects,
		"pause", humanize.SI(elapsed.Seconds(), "s"))
	return stats
}

// CollectMajor runs a full cycle across both generations (spec §4.2
// "Major collection").
func (c *Collector) CollectMajor(coord Coordinator) Stats {
	start := time.Now()
	if coord != nil {
		coord.StopTheWorld()
		defer coord.ContinueTheWorld()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.young.slots {
		if !c.young.slots[i].free {
			c.young.slots[i].obj.Head().Mark = false
		}
	}
	for i := range c.old.slots {
		if !c.old.slots[i].free {
			c.old.slots[i].obj.Head().Mark = false
		}
	}

	roots := c.extraRoots(coord)
	c.traceLocked(roots, 0, false)

	var freed int
	sweep := func(p *pool) {
		for i := range p.slots {
			s := &p.slots[i]
			if s.free || s.obj.Head().Mark {
				continue
			}
			id := s.obj.Head().ID()
			s.free = true
			c.liveObjects--
			freed++
			p.freeList = append(p.freeList, uint32(i))
			if _, ok := s.obj.(*object.Integer); ok {
				c.intFree = append(c.intFree, id)
			} else {
				c.idFree = append(c.idFree, id)
			}
		}
	}
	sweep(&c.young)
	sweep(&c.old)

	c.remembered = make(map[oid.ObjectId]struct{})
	c.youngAllocCount = 0
	c.majorCollections++

	elapsed := time.Since(start)
	c.stwTime += elapsed
	stats := c.statsLocked(elapsed)
	c.log.Debug("major gc", "freed", freed, "live", c.liveObjects)
	return stats
}

// traceLocked runs the worklist tracer. When onlyArea's bool flag
// (restrict) is true, only objects in onlyArea are marked/expanded
// persistently; objects in the other generation are still walked
// (transiently, deduped per-cycle) to find the young objects they
// reach, but are neither marked nor swept. See spec §4.2.1: "do not
// follow into old objects except when starting from the remembered
// set" — every old object walked here is reached starting from a root
// (a frame value or a remembered-set member), matching that rule.
func (c *Collector) traceLocked(roots []oid.ObjectId, onlyArea object.Area, restrict bool) {
	visitedOther := make(map[oid.ObjectId]bool)
	work := append([]oid.ObjectId(nil), roots...)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if !id.Valid() {
			continue
		}
		obj := c.getLocked(id)
		if obj == nil {
			continue
		}
		h := obj.Head()
		if restrict && h.Area != onlyArea {
			if visitedOther[id] {
				continue
			}
			visitedOther[id] = true
		} else {
			if h.Mark {
				continue
			}
			h.Mark = true
		}
		work = append(work, obj.References()...)
	}
}

// graduateLocked moves a young survivor into the old pool. The object's
// id is never reissued: only its table entry is repointed at the new
// (area, index), so every existing referrer holding the original id
// keeps resolving to the same object (spec §4.2 "ObjectId is stable").
func (c *Collector) graduateLocked(youngIdx uint32) {
	s := &c.young.slots[youngIdx]
	obj := s.obj
	id := obj.Head().ID()
	oldIdx := c.old.alloc(obj)
	obj.Head().Area = object.AreaOld
	c.table[id] = location{area: object.AreaOld, idx: oldIdx}
	s.free = true
	c.young.freeList = append(c.young.freeList, youngIdx)
}

func (c *Collector) statsLocked(pause time.Duration) Stats {
	return Stats{
		LiveObjects:      c.liveObjects,
		Allocations:      c.allocCount,
		MinorCollections: c.minorCollections,
		MajorCollections: c.majorCollections,
		LastPauseNanos:   pause.Nanoseconds(),
		StopTheWorldTime: c.stwTime,
	}
}

func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(0)
}
