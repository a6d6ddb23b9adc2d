package forest

// anchor carries the ancestry metadata needed to derive a new node's path: the
// same shape whether it comes from a real parent row, a move/clone target row,
// or the synthetic root anchor.
type anchor struct {
	rootID  int64
	pathIDs []int64
	pathPos []int64
	depth   int16
}

// deriveForRoot computes path metadata for a brand-new root node.
func deriveForRoot(id, pos int64) anchor {
	return anchor{
		rootID:  id,
		pathIDs: []int64{id},
		pathPos: []int64{pos},
		depth:   1,
	}
}

// deriveForChild extends a parent anchor with a new child id/pos. Returns an
// *Error of KindDepthExceeded if the resulting depth would exceed maxDepth.
func deriveForChild(parent anchor, id, pos int64) (anchor, error) {
	depth := int(parent.depth) + 1
	if depth > maxDepth {
		return anchor{}, newError(KindDepthExceeded, "depth %d exceeds maximum of %d", depth, maxDepth)
	}
	pathIDs := append(append([]int64{}, parent.pathIDs...), id)
	pathPos := append(append([]int64{}, parent.pathPos...), pos)
	return anchor{
		rootID:  parent.rootID,
		pathIDs: pathIDs,
		pathPos: pathPos,
		depth:   int16(depth),
	}, nil
}

// rewriteDescendant re-anchors a descendant row's path after its ancestor
// `sourceID` has moved/cloned to `newAnchor`: find sourceID's index k in the
// descendant's old path, replace the [0..k] prefix with newAnchor's path, and
// keep the remainder (everything after sourceID) unchanged.
//
// oldPathIDs/oldPathPos describe the descendant as it stood before the move;
// sourceID must appear in oldPathIDs or this is an invariant violation.
func rewriteDescendant(oldPathIDs, oldPathPos []int64, sourceID int64, newAnchor anchor) (anchor, error) {
	k := -1
	for i, id := range oldPathIDs {
		if id == sourceID {
			k = i
			break
		}
	}
	if k < 0 {
		return anchor{}, newError(KindInternal, "source id %d not found in descendant path", sourceID)
	}

	tailIDs := oldPathIDs[k+1:]
	tailPos := oldPathPos[k+1:]

	depth := int(newAnchor.depth) + len(tailIDs)
	if depth > maxDepth {
		return anchor{}, newError(KindDepthExceeded, "depth %d exceeds maximum of %d", depth, maxDepth)
	}

	pathIDs := make([]int64, 0, depth)
	pathIDs = append(pathIDs, newAnchor.pathIDs...)
	pathIDs = append(pathIDs, tailIDs...)

	pathPos := make([]int64, 0, depth)
	pathPos = append(pathPos, newAnchor.pathPos...)
	pathPos = append(pathPos, tailPos...)

	return anchor{
		rootID:  newAnchor.rootID,
		pathIDs: pathIDs,
		pathPos: pathPos,
		depth:   int16(depth),
	}, nil
}

// containsID reports whether id appears anywhere in pathIDs — used to detect
// cycles (moving a node under its own descendant) and to pick out the rows
// of a subtree.
func containsID(pathIDs []int64, id int64) bool {
	for _, v := range pathIDs {
		if v == id {
			return true
		}
	}
	return false
}
