package deployment

// HeldLocks is the number of deployment ids with a record or target
// operation lock in use.
func (o *Orchestrator) HeldLocks() int {
	return o.locks.Len() + o.operations.Len()
}
