package voting

// ScheduledRounds is the number of rounds the coordinator still tracks.
func (c *Coordinator) ScheduledRounds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rounds)
}
