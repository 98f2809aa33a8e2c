package libos

import "github.com/exocap/kernel/src/defs"

/// PageVec is a bulk container of OwnedPage values allocated together, for
/// callers that need N contiguous-in-intent (but not necessarily
/// contiguous-in-address) pages, e.g. a page table or a buffer pool. All
/// pages held by one PageVec must share the same owner pid.
type PageVec struct {
	pid   defs.ProcessId
	pages []*OwnedPage
}

/// NewPageVec builds an empty vector for pid, ready for Push.
func NewPageVec(pid defs.ProcessId) *PageVec {
	return &PageVec{pid: pid}
}

/// Push appends an already-allocated page, panicking on a pid mismatch
/// exactly as a misused typed container should.
func (pv *PageVec) Push(p *OwnedPage) {
	if p.Owner() != pv.pid {
		panic("libos: PageVec.Push: owner pid mismatch")
	}
	pv.pages = append(pv.pages, p)
}

/// Pop removes and returns the last page, or nil if the vector is empty.
func (pv *PageVec) Pop() *OwnedPage {
	n := len(pv.pages)
	if n == 0 {
		return nil
	}
	p := pv.pages[n-1]
	pv.pages = pv.pages[:n-1]
	return p
}

/// Get returns the i'th page, or nil if out of range.
func (pv *PageVec) Get(i int) *OwnedPage {
	if i < 0 || i >= len(pv.pages) {
		return nil
	}
	return pv.pages[i]
}

/// AllocPages allocates up to n pages for pid. It keeps whatever it got: if
/// memory pressure stops it partway through, the caller gets the pages that
/// did succeed back in a non-empty PageVec rather than losing them to a
/// rollback. It only fails outright if the very first allocation fails.
func AllocPages(k *Kernel, pid defs.ProcessId, n int) (*PageVec, defs.Err_t) {
	pv := NewPageVec(pid)
	pv.pages = make([]*OwnedPage, 0, n)
	for i := 0; i < n; i++ {
		p, err := AllocPage(k, pid)
		if err != 0 {
			if len(pv.pages) == 0 {
				return nil, err
			}
			break
		}
		pv.pages = append(pv.pages, p)
	}
	return pv, 0
}

/// Len returns the number of pages held.
func (pv *PageVec) Len() int { return len(pv.pages) }

/// At returns the i'th page. It panics on an out-of-range index, the same
/// contract as indexing a slice directly.
func (pv *PageVec) At(i int) *OwnedPage { return pv.pages[i] }

/// Close releases every page still held, swallowing individual failures
/// exactly as OwnedPage.Close does.
func (pv *PageVec) Close() {
	for _, p := range pv.pages {
		if p != nil {
			p.Close()
		}
	}
	pv.pages = nil
}
