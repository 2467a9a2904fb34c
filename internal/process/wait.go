package process

// Wait implements spec.md §4.3's wait: given a child thread ID, look it up
// in the current process's child list. If absent (never a child, or already
// waited), return -1. Otherwise block on the child's wait-rendezvous
// semaphore, read its exit status, forget the child, and release it to
// finish dying via the free-rendezvous semaphore.
func (p *Process) Wait(childTID int) int {
	t := p.Thread
	for _, c := range t.Children() {
		if c.ID == childTID {
			c.WaitSema().Down(p.mgr.Sched)
			status := c.ExitStatus()
			t.RemoveChild(c)
			c.FreeSema().Up(p.mgr.Sched)
			return status
		}
	}
	return -1
}
