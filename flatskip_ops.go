package flatskip

// Insert splices index into every level from 0 up through a randomly drawn
// promotion height, placing it after any existing indices the comparator
// considers equal (stable, insert-at-end among ties). flatskip never
// deduplicates: inserting an index the comparator considers equal to an
// existing index is a valid multiset insertion. Inserting an index that is
// already live is a caller programming error; it is not detected and leaves
// the links inconsistent.
//
// The only checked failure is an index outside [0, capacity). Everything
// else, including re-inserting a removed index, succeeds silently.
func (sl *SkipList) Insert(index uint32) error {
	if err := sl.checkRange(index); err != nil {
		return err
	}

	insertLevel := sl.randomLevel()
	if insertLevel > sl.currentLevel {
		sl.currentLevel = insertLevel
	}

	point := Nil
	havePoint := false

	for l := sl.currentLevel; l >= 0; l-- {
		doInsert := l <= insertLevel
		if doInsert {
			sl.sizes[l]++
		}

		// Invariant maintained below: next[l][tails[l]] and prev[heads[0]]
		// are always Nil, so every scan is Nil-terminated even when the
		// inserted slot carries stale cells from an earlier life.
		switch {
		case sl.heads[l] == Nil:
			point, havePoint = Nil, false
			if doInsert {
				sl.heads[l] = index
				sl.tails[l] = index
				sl.next[l][index] = Nil
				if l == 0 {
					sl.prev[index] = Nil
				}
			}

		case sl.compare(index, sl.heads[l]) < 0:
			point, havePoint = Nil, false
			if doInsert {
				oldHead := sl.heads[l]
				sl.next[l][index] = oldHead
				sl.heads[l] = index
				if l == 0 {
					sl.prev[oldHead] = index
					sl.prev[index] = Nil
				}
			}

		case sl.compare(index, sl.tails[l]) >= 0:
			oldTail := sl.tails[l]
			point, havePoint = oldTail, true
			if doInsert {
				sl.next[l][oldTail] = index
				sl.next[l][index] = Nil
				sl.tails[l] = index
				if l == 0 {
					sl.prev[index] = oldTail
				}
			}

		default:
			cur := sl.heads[l]
			if havePoint {
				cur = point
			}
			for sl.compare(index, sl.next[l][cur]) >= 0 {
				cur = sl.next[l][cur]
			}
			pred := cur
			point, havePoint = pred, true
			if doInsert {
				succ := sl.next[l][pred]
				sl.next[l][pred] = index
				sl.next[l][index] = succ
				if l == 0 {
					sl.prev[index] = pred
					sl.prev[succ] = index
				}
			}
		}
	}

	return nil
}

// Remove unsplices index from every level it is live at. Levels where index
// was never promoted are skipped without signaling anything; removing an
// index that is not a member at all is a caller error the library does not
// surface. The only checked failure is an out-of-range index.
func (sl *SkipList) Remove(index uint32) error {
	if err := sl.checkRange(index); err != nil {
		return err
	}

	point := Nil
	havePoint := false

	for l := sl.currentLevel; l >= 0; l-- {
		var cur uint32
		pred := Nil
		havePred := false

		// lastLess tracks the last element strictly below index. On a miss
		// it becomes the carried hint instead of pred: pred may sit inside
		// a run of comparator-equal elements, and index can appear earlier
		// in that run at the levels below.
		lastLess := Nil
		haveLastLess := false

		if havePoint {
			pred, havePred = point, true
			cur = sl.next[l][point]
			if sl.compare(index, point) > 0 {
				lastLess, haveLastLess = point, true
			}
		} else {
			cur = sl.heads[l]
		}

		found := false
		for cur != Nil {
			if cur == index {
				found = true
				break
			}
			c := sl.compare(index, cur)
			if c < 0 {
				break
			}
			if c > 0 {
				lastLess, haveLastLess = cur, true
			}
			pred, havePred = cur, true
			cur = sl.next[l][cur]
		}

		if !found {
			if haveLastLess {
				point, havePoint = lastLess, true
			} else {
				point, havePoint = Nil, false
			}
			continue
		}

		if havePred {
			point, havePoint = pred, true
		} else {
			point, havePoint = Nil, false
		}

		sl.sizes[l]--

		if cur == sl.heads[l] {
			sl.heads[l] = sl.next[l][cur]
		}
		if cur == sl.tails[l] {
			if havePred {
				sl.tails[l] = pred
			} else {
				sl.tails[l] = sl.heads[l]
			}
		}

		succ := sl.next[l][cur]
		if havePred {
			sl.next[l][pred] = succ
			if l == 0 && succ != Nil {
				sl.prev[succ] = pred
			}
		} else if l == 0 && succ != Nil {
			sl.prev[succ] = Nil
		}

		if l == sl.currentLevel && sl.sizes[l] == 0 && sl.currentLevel > 0 {
			sl.currentLevel--
		}
	}

	return nil
}

// Bisect locates the rightmost index at which predicate is false: the last
// position before predicate first becomes true, usable as a general
// insertion-point finder for monotone predicates composed on top of a
// comparator. It returns the head when predicate holds from the very first
// element, and (Nil, false) when predicate holds nowhere.
func (sl *SkipList) Bisect(predicate func(uint32) bool) (uint32, bool) {
	if sl.sizes[0] == 0 {
		return Nil, false
	}

	point := Nil
	havePoint := false

	for l := sl.currentLevel; l >= 0; l-- {
		cur := sl.heads[l]
		if havePoint {
			cur = point
		}
		if cur == Nil {
			continue
		}

		pred := Nil
		havePred := false
		stoppedTrue := false
		for cur != Nil {
			if predicate(cur) {
				stoppedTrue = true
				break
			}
			pred, havePred = cur, true
			cur = sl.next[l][cur]
		}

		if l == 0 {
			if stoppedTrue && !havePred {
				return sl.heads[0], true
			}
			if !stoppedTrue {
				return Nil, false
			}
			return pred, true
		}

		if havePred {
			point, havePoint = pred, true
		} else {
			point, havePoint = Nil, false
		}
	}

	return Nil, false
}

// Search locates an index whose three-way matcher returns 0: negative if
// the probed index's value sorts below what match is looking for, positive
// if above. It prefers the earliest equal position and returns (Nil, false)
// if no index matches.
func (sl *SkipList) Search(match func(uint32) int) (uint32, bool) {
	point := Nil
	havePoint := false

	var lastEqual uint32 = Nil
	foundEqual := false

	for l := sl.currentLevel; l >= 0; l-- {
		cur := sl.heads[l]
		if havePoint {
			cur = point
		}

		pred := Nil
		havePred := false
		for cur != Nil && match(cur) < 0 {
			pred, havePred = cur, true
			cur = sl.next[l][cur]
		}

		if cur != Nil && match(cur) == 0 {
			lastEqual, foundEqual = cur, true
		}

		if havePred {
			point, havePoint = pred, true
		} else {
			point, havePoint = Nil, false
		}
	}

	return lastEqual, foundEqual
}
