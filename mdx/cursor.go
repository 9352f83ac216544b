package mdx

import (
	"fmt"

	"github.com/mkfoss/dbfx/dbferr"
)

// Cursor is a per-index-file mutable traversal position (spec.md §3's
// MdxCursor), independent of any DBF cursor: an active tag, the node
// currently loaded, and a key index within that node.
type Cursor struct {
	file *File
	tag  *Tag

	current node
	loaded  bool
	keyIndex int
}

// NewCursor returns a Cursor with no active tag; SetTag must be called
// before any traversal or lookup operation.
func (mf *File) NewCursor() *Cursor { return &Cursor{file: mf} }

// SetTag activates the named tag, returning whether it was found — the
// Go equivalent of the Java sources' setTag(name).isPresent().
func (c *Cursor) SetTag(name string) bool {
	tag, ok := c.file.TagByName(name)
	if !ok {
		return false
	}
	c.tag = tag
	c.loaded = false
	c.keyIndex = 0
	return true
}

func (c *Cursor) requireTag() error {
	if c.tag == nil {
		return fmt.Errorf("%w: no active tag set", dbferr.ErrInvalidArgument)
	}
	return nil
}

// Current returns the record number at the cursor's current position
// without moving it.
func (c *Cursor) Current() (int, error) {
	if err := c.requireTag(); err != nil {
		return 0, err
	}
	if !c.loaded {
		return RecordNumberBOF, nil
	}
	nextOrRec, _ := c.current.keyRecord(c.keyIndex)
	return int(nextOrRec), nil
}

// GotoTop descends the leftmost path from the active tag's root block
// (following child 0 while the node is internal) and positions the
// cursor on the first leaf key, returning its record number.
func (c *Cursor) GotoTop() (int, error) {
	if err := c.requireTag(); err != nil {
		return 0, err
	}
	block := c.tag.RootBlock
	for {
		n, err := c.file.loadNode(c.tag, block)
		if err != nil {
			return 0, err
		}
		if n.isLeaf() {
			c.current = *n
			c.loaded = true
			c.keyIndex = 0
			if n.keysInNode == 0 {
				return RecordNumberEOF, nil
			}
			nextOrRec, _ := n.keyRecord(0)
			return int(nextOrRec), nil
		}
		childBlock, _ := n.keyRecord(0)
		block = childBlock
	}
}

// GotoBottom positions at the top, then linearly advances via Next until
// exhausted, returning the last record reached — spec.md §4.8's "the
// source implementation is a linear walk (O(n))" note.
func (c *Cursor) GotoBottom() (int, error) {
	current, err := c.GotoTop()
	if err != nil {
		return 0, err
	}
	if current == RecordNumberEOF {
		return RecordNumberEOF, nil
	}
	for {
		n, err := c.Next()
		if err != nil {
			return 0, err
		}
		if n == RecordNumberEOF {
			return current, nil
		}
		current = n
	}
}

// Next advances within the current leaf, returning the new record number,
// or RecordNumberEOF if already at the leaf's last key. Full
// sibling-linked traversal across node boundaries is a partial feature
// per spec.md §9.
func (c *Cursor) Next() (int, error) {
	if err := c.requireTag(); err != nil {
		return 0, err
	}
	if !c.loaded {
		return RecordNumberEOF, nil
	}
	if c.keyIndex < c.current.keysInNode-1 {
		c.keyIndex++
		nextOrRec, _ := c.current.keyRecord(c.keyIndex)
		return int(nextOrRec), nil
	}
	return RecordNumberEOF, nil
}

// Prev is Next's mirror image: retreats within the current leaf, or
// returns RecordNumberBOF if already at the first key.
func (c *Cursor) Prev() (int, error) {
	if err := c.requireTag(); err != nil {
		return 0, err
	}
	if !c.loaded {
		return RecordNumberBOF, nil
	}
	if c.keyIndex > 0 {
		c.keyIndex--
		nextOrRec, _ := c.current.keyRecord(c.keyIndex)
		return int(nextOrRec), nil
	}
	return RecordNumberBOF, nil
}

// Find descends from the active tag's root block per spec.md §4.8: on a
// leaf, cmp == 0 returns the record number, cmp > 0 without a prior match
// returns EOF; on an internal node, the first cmp > 0 descends into the
// child pointed to by key i-1 (the "newer sources" semantics of §9, not
// the older cmp >= 0-on-key-i rule).
func (c *Cursor) Find(value interface{}) (int, error) {
	if err := c.requireTag(); err != nil {
		return 0, err
	}
	searchValue, err := encodeSearchValue(c.tag, value)
	if err != nil {
		return 0, err
	}

	block := c.tag.RootBlock
	for {
		n, err := c.file.loadNode(c.tag, block)
		if err != nil {
			return 0, err
		}

		if n.isLeaf() {
			for i := 0; i < n.keysInNode; i++ {
				nextOrRec, raw := n.keyRecord(i)
				stored, err := decodeKey(c.tag, raw)
				if err != nil {
					return 0, err
				}
				cmp, err := compareValues(stored, searchValue)
				if err != nil {
					return 0, err
				}
				if cmp == 0 {
					return int(nextOrRec), nil
				}
				if cmp > 0 {
					return RecordNumberEOF, nil
				}
			}
			return RecordNumberEOF, nil
		}

		descended := false
		for i := 0; i < n.keysInNode; i++ {
			_, raw := n.keyRecord(i)
			stored, err := decodeKey(c.tag, raw)
			if err != nil {
				return 0, err
			}
			cmp, err := compareValues(stored, searchValue)
			if err != nil {
				return 0, err
			}
			if cmp > 0 {
				childIndex := i - 1
				if childIndex < 0 {
					childIndex = 0
				}
				childBlock, _ := n.keyRecord(childIndex)
				block = childBlock
				descended = true
				break
			}
		}
		if !descended {
			return RecordNumberEOF, nil
		}
	}
}
