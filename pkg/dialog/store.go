package dialog

import (
	"sync"
	"time"
)

// Store maps dialog handles to dialogs. One Store is owned by one Call;
// events of a Call are serialized by its owner, the mutex only guards
// read access from outside the Call loop.
type Store struct {
	mutex   sync.Mutex
	dialogs map[ID]*Dialog
}

func NewStore() *Store {
	return &Store{
		dialogs: make(map[ID]*Dialog),
	}
}

func (s *Store) Find(id ID) (*Dialog, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d, ok := s.dialogs[id]
	return d, ok
}

// Update upserts the dialog and stamps it. When a different record
// replaces the stored one under the same handle, its local CSeq is
// raised to the stored value; changes made in place to the stored
// record itself are kept as they are.
func (s *Store) Update(d *Dialog) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if prev, ok := s.dialogs[d.ID]; ok && prev != d && prev.LocalSeq > d.LocalSeq {
		d.LocalSeq = prev.LocalSeq
	}
	d.Updated = time.Now()
	s.dialogs[d.ID] = d
}

func (s *Store) Remove(id ID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.dialogs, id)
}

func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.dialogs)
}

func (s *Store) All() []*Dialog {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	all := make([]*Dialog, 0, len(s.dialogs))
	for _, d := range s.dialogs {
		all = append(all, d)
	}
	return all
}
