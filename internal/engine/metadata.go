package engine

// Meta summarizes a completed session: size statistics, an extension
// histogram, and the space reclaimable by deleting all but one member of each
// duplicate group.
type Meta struct {
	TotalFiles         int
	TotalSize          int64
	DuplicateGroups    int
	DuplicateFiles     int
	NameConflictGroups int
	PotentialSavings   int64
	Warnings           int

	ExtensionCounts map[string]int
	ExtensionSizes  map[string]int64
}

// Metadata computes summary statistics for a completed session.
func Metadata(s *Session) (Meta, error) {
	if err := requireCompleted(s); err != nil {
		return Meta{}, err
	}

	m := Meta{
		ExtensionCounts: make(map[string]int),
		ExtensionSizes:  make(map[string]int64),
	}

	for _, rec := range s.Files() {
		m.TotalFiles++
		m.TotalSize += rec.Size
		m.ExtensionCounts[rec.Ext]++
		m.ExtensionSizes[rec.Ext] += rec.Size
	}
	m.Warnings = len(s.Warnings())

	dups, err := Duplicates(s)
	if err != nil {
		return Meta{}, err
	}
	m.DuplicateGroups = len(dups)
	for _, g := range dups {
		m.DuplicateFiles += len(g.Files)
		// Keep one copy, reclaim the rest.
		m.PotentialSavings += g.Files[0].Size * int64(len(g.Files)-1)
	}

	conflicts, err := NameConflicts(s, ConflictOptions{})
	if err != nil {
		return Meta{}, err
	}
	m.NameConflictGroups = len(conflicts)

	return m, nil
}
