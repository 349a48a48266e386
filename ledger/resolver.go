/*
resolver.go - Cascading deletion resolver

PURPOSE:
  Deletes a transaction, optionally walking its web of linked rows
  (transfer counterparts, redirected-yield pairs, loan repayment pairs)
  depth-first so that no dangling half of a pair survives.

SAFETY RAILS:
  Traversal state is carried explicitly per call. A visited set stops
  cycles, depth is capped at maxCascadeDepth, loan-membership descent is
  further capped at maxLoanDepth, and the per-hop fetches are bounded so
  a corrupted link can never fan out unboundedly. Hitting a rail stops
  descent on that branch only; the delete itself still proceeds.
*/
package ledger

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	// maxCascadeDepth caps link-id traversal.
	maxCascadeDepth = 5
	// maxLoanDepth caps the stricter loan-membership traversal.
	maxLoanDepth = 3
	// linkFetchLimit bounds counterpart rows fetched per link hop.
	linkFetchLimit = 10
	// loanFetchLimit bounds sibling rows fetched per loan hop.
	loanFetchLimit = 5
)

// DeleteMode selects how far a deletion reaches.
type DeleteMode string

const (
	// DeleteSimple removes only the named row.
	DeleteSimple DeleteMode = "simple"
	// DeleteCascading removes the row and everything linked to it.
	DeleteCascading DeleteMode = "cascading"
)

// DeleteTransaction removes an entry in the given mode and then
// resynchronizes every bucket that lost rows. Deepest rows go first so
// an interrupted cascade never orphans a child the parent still points
// at.
func (e *Engine) DeleteTransaction(ctx context.Context, id EntryID, mode DeleteMode) error {
	root, err := e.mustEntry(ctx, id)
	if err != nil {
		return err
	}

	switch mode {
	case DeleteSimple:
		if _, err := e.Store.DeleteEntries(ctx, FilterByID(id)); err != nil {
			return storageErr("delete", err)
		}
		return e.resync(ctx, root.BucketID)
	case DeleteCascading:
		c := &cascade{engine: e, visited: make(map[EntryID]bool), touched: make(map[BucketID]bool)}
		if err := c.delete(ctx, *root, 0); err != nil {
			return err
		}
		return e.resync(ctx, c.buckets()...)
	}
	return &ValidationError{Field: "mode", Reason: "delete mode must be simple or cascading"}
}

// cascade carries the traversal state of one cascading deletion.
type cascade struct {
	engine  *Engine
	visited map[EntryID]bool
	touched map[BucketID]bool
	order   []BucketID
}

// delete removes entry and, first, everything reachable from it.
func (c *cascade) delete(ctx context.Context, entry Entry, depth int) error {
	if c.visited[entry.ID] {
		return nil
	}
	c.visited[entry.ID] = true

	if depth >= maxCascadeDepth {
		c.engine.Log.WithFields(logrus.Fields{
			"entry": entry.ID,
			"depth": depth,
		}).Warn("cascade depth limit reached, deleting without descending")
	} else {
		if err := c.descend(ctx, entry, depth); err != nil {
			return err
		}
	}

	if _, err := c.engine.Store.DeleteEntries(ctx, FilterByID(entry.ID)); err != nil {
		return storageErr("delete", err)
	}
	if !c.touched[entry.BucketID] {
		c.touched[entry.BucketID] = true
		c.order = append(c.order, entry.BucketID)
	}
	return nil
}

// descend deletes the rows linked to entry before entry itself.
func (c *cascade) descend(ctx context.Context, entry Entry, depth int) error {
	if entry.LinkID != "" && entry.Linked() {
		linked, err := c.engine.Store.SelectEntries(ctx, EntryFilter{
			LinkID:    &entry.LinkID,
			ExcludeID: &entry.ID,
			Limit:     linkFetchLimit,
		})
		if err != nil {
			return storageErr("select", err)
		}
		for _, row := range linked {
			if err := c.delete(ctx, row, depth+1); err != nil {
				return err
			}
		}
	}

	if entry.LoanID != "" && depth < maxLoanDepth {
		siblings, err := c.engine.Store.SelectEntries(ctx, EntryFilter{
			LoanID:    &entry.LoanID,
			ExcludeID: &entry.ID,
			Limit:     loanFetchLimit,
		})
		if err != nil {
			return storageErr("select", err)
		}
		for _, row := range siblings {
			if err := c.delete(ctx, row, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *cascade) buckets() []BucketID { return c.order }
