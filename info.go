package blockfs

// FileInfo describes one file for the reporting surface.
type FileInfo struct {
	Name       string
	Size       int
	FirstBlock uint16
}

// Info is a read-only snapshot of the volume's geometry and occupancy.
type Info struct {
	TotalBlocks int
	FATBlocks   int
	DirBlock    int
	DataStart   int
	DataBlocks  int

	FreeBlocks     int // free allocation table entries
	FreeDirEntries int // empty directory slots
	MaxFiles       int
}

// Info reports the volume's geometry and free-space ratios.
func (v *Volume) Info() (Info, error) {
	if !v.mounted {
		return Info{}, ErrNotMounted
	}
	return Info{
		TotalBlocks:    int(v.sb.TotalBlocks),
		FATBlocks:      int(v.sb.FATBlocks),
		DirBlock:       int(v.sb.DirBlock),
		DataStart:      int(v.sb.DataStart),
		DataBlocks:     int(v.sb.DataBlocks),
		FreeBlocks:     v.fat.FreeCount(),
		FreeDirEntries: v.dir.FreeCount(),
		MaxFiles:       v.dir.Capacity(),
	}, nil
}
