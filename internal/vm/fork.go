package vm

import (
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
)

// Fork duplicates s into a freshly-constructed SPT backed by dstPT,
// following spec.md §4.3's "With VM" address-space duplication rule:
//   - UNINIT pages copy their initializer and argument (any held file handle
//     is reopened via reopen so parent and child get independent cursors).
//   - Already-populated ANON pages are allocated and claimed immediately in
//     the child and their contents memcopied.
//   - FILE_BACKED mappings (mmap'd regions) are not inherited at all.
func (s *SPT) Fork(dstPT hw.PageTable, dstFA *FrameAllocator, reopen func(*fs.Handle) *fs.Handle) (*SPT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := NewSPT(dstPT, dstFA)
	for va, p := range s.pages {
		switch p.Kind {
		case KindUninit:
			if p.mapping != nil {
				// not-yet-faulted mmap pages are skipped like KindFile ones.
				continue
			}
			arg := p.initArg
			if fb, ok := arg.(*FileBacking); ok {
				dup := *fb
				dup.Handle = reopen(fb.Handle)
				arg = &dup
			}
			cp := newUninit(va, p.Writable, p.init, arg)
			if fb, ok := arg.(*FileBacking); ok {
				cp.file = fb
			}
			if err := child.insert(cp); err != nil {
				return nil, err
			}
		case KindAnon:
			cp := &Page{VA: va, Writable: p.Writable, Kind: KindAnon, Stack: p.Stack, SwapSlot: -1}
			if err := child.insert(cp); err != nil {
				return nil, err
			}
			if err := child.Claim(cp); err != nil {
				return nil, err
			}
			if p.Frame != nil {
				copy(cp.Frame.Data, p.Frame.Data)
			} else {
				// evicted: pull the parent's swapped-out bytes in without
				// disturbing the parent's own swap slot.
				buf := make([]byte, PageSize)
				s.fa.readSlot(p.SwapSlot, buf)
				copy(cp.Frame.Data, buf)
			}
		case KindFile:
			// mmap'd pages vanish across fork (spec.md §4.3).
		}
	}
	return child, nil
}
