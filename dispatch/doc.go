// Package dispatch submits Go closures to native dispatch queues.
//
// Queues come in three kinds: the process-wide main queue, the shared global
// queues keyed by Priority, and custom serial or concurrent queues. Every
// *Queue, *Group and *Semaphore owns exactly one native reference; Clone
// takes another and Release gives it back. Release is idempotent per value.
//
//	q, err := dispatch.Create("com.example.indexer", dispatch.Serial)
//	if err != nil {
//		return err
//	}
//	defer q.Release()
//
//	n := dispatch.SyncValue(q, func() int { return len(pending) })
//
// Scoped native state is expressed as guards released with defer:
//
//	defer q.Suspend().Resume()
//	defer grp.Enter().Leave()
package dispatch
