package scan

// index is an in-memory resolve.Lookup over exactly this scan's
// discoveries, keyed the same way the persisted store is: absolute path
// (unique) and basename (possibly many).
type index struct {
	scriptByPath  map[string]int64
	scriptByBase  map[string][]int64
	controlByPath map[string]int64
	controlByBase map[string][]int64
}

func newIndex() *index {
	return &index{
		scriptByPath:  map[string]int64{},
		scriptByBase:  map[string][]int64{},
		controlByPath: map[string]int64{},
		controlByBase: map[string][]int64{},
	}
}

func (idx *index) addScript(absPath, basename string, id int64) {
	idx.scriptByPath[absPath] = id
	idx.scriptByBase[basename] = append(idx.scriptByBase[basename], id)
}

func (idx *index) addControlFile(absPath, basename string, id int64) {
	idx.controlByPath[absPath] = id
	idx.controlByBase[basename] = append(idx.controlByBase[basename], id)
}

func (idx *index) ScriptByAbsPath(absPath string) (int64, bool) {
	id, ok := idx.scriptByPath[absPath]
	return id, ok
}

func (idx *index) ControlFileByAbsPath(absPath string) (int64, bool) {
	id, ok := idx.controlByPath[absPath]
	return id, ok
}

func (idx *index) ScriptsByBasename(basename string) ([]int64, error) {
	return idx.scriptByBase[basename], nil
}

func (idx *index) ControlFilesByBasename(basename string) ([]int64, error) {
	return idx.controlByBase[basename], nil
}
