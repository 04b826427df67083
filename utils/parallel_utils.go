package utils

import "fmt"

// DynBuffer is a growable FIFO of cells. The comm package uses one per
// (destination, source) rank pair as a mailbox queue.
type DynBuffer[T any] struct {
	cells []T
	head  int
}

func NewDynBuffer[T any](capacity int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, 0, capacity)}
}

func (db *DynBuffer[T]) Add(cell T) { db.cells = append(db.cells, cell) }

func (db *DynBuffer[T]) Len() int { return len(db.cells) - db.head }

// Shift removes and returns the oldest cell. It panics on an empty buffer.
func (db *DynBuffer[T]) Shift() (cell T) {
	if db.Len() == 0 {
		panic("DynBuffer: Shift on empty buffer")
	}
	var zero T
	cell = db.cells[db.head]
	db.cells[db.head] = zero
	db.head++
	if db.head == len(db.cells) {
		db.Reset()
	}
	return
}

func (db *DynBuffer[T]) Reset() {
	db.cells = db.cells[:0]
	db.head = 0
}

// PartitionMap splits MaxIndex items (elements, coordinates) into
// ParallelDegree contiguous buckets, one per rank.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		panic(fmt.Errorf("parallel degree must be positive, have %d", ParallelDegree))
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the bucket owning index k and its [min, max) range, or
// bucketNum = -1 when k is out of range.
func (pm *PartitionMap) GetBucket(k int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(k)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(k int) (tryCount, bucketNum, min, max int) {
	if k < 0 || k >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	// Initial guess, correct for an even split
	bucketNum = int(float64(pm.ParallelDegree*k) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= k && pm.Partitions[bucketNum][1] > k) {
		if pm.Partitions[bucketNum][0] > k {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// Owners expands the map into a per-index bucket table, the EToP layout the
// mesh package expects.
func (pm *PartitionMap) Owners() (owners []int) {
	owners = make([]int, pm.MaxIndex)
	for bn, part := range pm.Partitions {
		for k := part[0]; k < part[1]; k++ {
			owners[k] = bn
		}
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetLocalK(baseK int) (k, Kmax, bn int) {
	var (
		kmin, kmax int
	)
	bn, kmin, kmax = pm.GetBucket(baseK)
	Kmax = kmax - kmin
	k = baseK - kmin
	return
}

func (pm *PartitionMap) GetGlobalK(kLocal, bn int) (kGlobal int) {
	if bn == -1 {
		kGlobal = kLocal
		return
	}
	kGlobal = pm.Partitions[bn][0] + kLocal
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Maximum imbalance of one item, the remainder goes to the first buckets
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 {
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
